package packet

import (
	"bytes"
	"errors"
	"io"

	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// Disconnect kicks the client with a reason.
// It is valid in the login, config and play states.
type Disconnect struct {
	Reason string // json serialized chat component
}

func (d *Disconnect) Encode(_ *proto.PacketContext, wr io.Writer) error {
	if d.Reason == "" {
		return errors.New("no reason specified")
	}
	return util.WriteString(wr, d.Reason)
}

func (d *Disconnect) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	d.Reason, err = util.ReadString(rd)
	return
}

var _ proto.Packet = (*Disconnect)(nil)

// JsonCodec returns the chat component codec for the given protocol
// version. Older clients do not understand RGB colors.
func JsonCodec(protocol proto.Protocol) codec.Codec {
	if protocol.GreaterEqual(version.Minecraft_1_16) {
		return jsonCodecModern
	}
	return jsonCodecLegacy
}

var (
	jsonCodecLegacy = &codec.Json{}
	jsonCodecModern = &codec.Json{
		NoDownsampleColor: true,
		NoLegacyHover:     true,
	}
)

// NewDisconnect creates a Disconnect packet with the reason
// serialized for the given protocol version.
func NewDisconnect(reason component.Component, protocol proto.Protocol) (*Disconnect, error) {
	if reason == nil {
		reason = &component.Text{}
	}
	buf := new(bytes.Buffer)
	if err := JsonCodec(protocol).Marshal(buf, reason); err != nil {
		return nil, err
	}
	return &Disconnect{Reason: buf.String()}, nil
}
