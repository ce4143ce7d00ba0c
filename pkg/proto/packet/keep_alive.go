package packet

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// KeepAlive carries a token the client must echo back.
// The id encoding changed twice over the protocol's history.
type KeepAlive struct {
	RandomID int64
}

func (k *KeepAlive) Encode(c *proto.PacketContext, wr io.Writer) error {
	if c.Protocol.GreaterEqual(version.Minecraft_1_12_2) {
		return util.WriteInt64(wr, k.RandomID)
	} else if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		return util.WriteVarInt(wr, int(k.RandomID))
	}
	return util.WriteInt32(wr, int32(k.RandomID))
}

func (k *KeepAlive) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_12_2) {
		k.RandomID, err = util.ReadInt64(rd)
	} else if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
		var id int
		id, err = util.ReadVarInt(rd)
		k.RandomID = int64(id)
	} else {
		var id int32
		id, err = util.ReadInt32(rd)
		k.RandomID = int64(id)
	}
	return
}

var _ proto.Packet = (*KeepAlive)(nil)
