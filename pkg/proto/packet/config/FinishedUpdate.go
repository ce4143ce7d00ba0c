package config

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
)

// FinishedUpdate ends the configuration state. The client
// acknowledges it with the same (empty) packet.
type FinishedUpdate struct{}

var _ proto.Packet = (*FinishedUpdate)(nil)

func (p *FinishedUpdate) Encode(c *proto.PacketContext, wr io.Writer) error {
	return nil
}

func (p *FinishedUpdate) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	return nil
}
