package packet

import (
	"bytes"
	"errors"
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// The client brand channel was renamed in 1.13.
const (
	BrandChannel       = "minecraft:brand"
	BrandChannelLegacy = "MC|Brand"
)

type PluginMessage struct {
	Channel string
	Data    []byte
}

func (p *PluginMessage) Encode(c *proto.PacketContext, wr io.Writer) error {
	err := util.WriteString(wr, p.Channel)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		return util.WriteRawBytes(wr, p.Data)
	}
	err = util.WriteInt16(wr, int16(len(p.Data)))
	if err != nil {
		return err
	}
	return util.WriteRawBytes(wr, p.Data)
}

func (p *PluginMessage) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	p.Channel, err = util.ReadStringMax(rd, 128)
	if err != nil {
		return err
	}
	if c.Protocol.Lower(version.Minecraft_1_8) {
		length, err := util.ReadInt16(rd)
		if err != nil {
			return err
		}
		if length < 0 {
			return errors.New("negative plugin message data length")
		}
		p.Data = make([]byte, length)
		_, err = io.ReadFull(rd, p.Data)
		return err
	}
	p.Data, err = util.ReadRawBytes(rd)
	return err
}

// IsBrandChannel indicates whether the message is
// the client brand for the given protocol version.
func (p *PluginMessage) IsBrandChannel(protocol proto.Protocol) bool {
	if protocol.GreaterEqual(version.Minecraft_1_13) {
		return p.Channel == BrandChannel
	}
	return p.Channel == BrandChannelLegacy
}

// BrandMessage extracts the client brand string from the message data.
// Since 1.8 the brand is written as a length prefixed string.
func (p *PluginMessage) BrandMessage(protocol proto.Protocol, maxLen int) (string, error) {
	if protocol.GreaterEqual(version.Minecraft_1_8) {
		return util.ReadStringMax(bytes.NewReader(p.Data), maxLen)
	}
	if len(p.Data) > maxLen {
		return "", errors.New("brand message too long")
	}
	return string(p.Data), nil
}

var _ proto.Packet = (*PluginMessage)(nil)
