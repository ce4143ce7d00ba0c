package packet

import (
	"errors"
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/util/errs"
	"github.com/Chumb3x/sonar/pkg/util/uuid"
)

// ServerLogin is the login start packet sent by the client.
// The 1.19-1.19.2 chat signing key is skipped, it plays no role
// during verification.
type ServerLogin struct {
	Username string
	HolderID uuid.UUID // the client claimed uuid, 1.19.1+
}

var errEmptyUsername = errs.NewSilentErr("empty username")

const maxUsernameLen = 16

func (s *ServerLogin) Encode(c *proto.PacketContext, wr io.Writer) error {
	if s.Username == "" {
		return errors.New("username not specified")
	}
	err := util.WriteString(wr, s.Username)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			err = util.WriteBool(wr, false) // no player key
			if err != nil {
				return err
			}
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
			if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
				return util.WriteUUID(wr, s.HolderID)
			}
			err = util.WriteBool(wr, s.HolderID != uuid.Nil)
			if err != nil {
				return err
			}
			if s.HolderID != uuid.Nil {
				return util.WriteUUID(wr, s.HolderID)
			}
		}
	}
	return nil
}

func (s *ServerLogin) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	s.Username, err = util.ReadStringMax(rd, maxUsernameLen)
	if err != nil {
		return err
	}
	if len(s.Username) == 0 {
		return errEmptyUsername
	}

	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		if c.Protocol.Lower(version.Minecraft_1_19_3) {
			ok, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if ok { // skip the chat signing key
				if _, err = util.ReadInt64(rd); err != nil { // expiry
					return err
				}
				if _, err = util.ReadBytesLen(rd, 512); err != nil { // public key
					return err
				}
				if _, err = util.ReadBytesLen(rd, 4096); err != nil { // signature
					return err
				}
			}
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_20_2) {
			s.HolderID, err = util.ReadUUID(rd)
			return err
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_19_1) {
			ok, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if ok {
				s.HolderID, err = util.ReadUUID(rd)
				return err
			}
		}
	}
	return nil
}

type ServerLoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (s *ServerLoginSuccess) Encode(c *proto.PacketContext, wr io.Writer) (err error) {
	if s.Username == "" {
		return errors.New("no username specified")
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		err = util.WriteUUID(wr, s.UUID)
	} else if c.Protocol.GreaterEqual(version.Minecraft_1_7_6) {
		err = util.WriteString(wr, s.UUID.String())
	} else {
		err = util.WriteString(wr, s.UUID.Undashed())
	}
	if err != nil {
		return err
	}
	err = util.WriteString(wr, s.Username)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		return util.WriteVarInt(wr, 0) // no profile properties
	}
	return nil
}

func (s *ServerLoginSuccess) Decode(c *proto.PacketContext, rd io.Reader) (err error) {
	if c.Protocol.GreaterEqual(version.Minecraft_1_16) {
		s.UUID, err = util.ReadUUID(rd)
	} else {
		var uuidString string
		if c.Protocol.GreaterEqual(version.Minecraft_1_7_6) {
			uuidString, err = util.ReadStringMax(rd, 36)
		} else {
			uuidString, err = util.ReadStringMax(rd, 32)
		}
		if err != nil {
			return err
		}
		s.UUID, err = uuid.Parse(uuidString)
	}
	if err != nil {
		return err
	}
	s.Username, err = util.ReadStringMax(rd, maxUsernameLen)
	if err != nil {
		return err
	}
	if c.Protocol.GreaterEqual(version.Minecraft_1_19) {
		// skip profile properties
		count, err := util.ReadVarInt(rd)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if _, err = util.ReadString(rd); err != nil { // name
				return err
			}
			if _, err = util.ReadString(rd); err != nil { // value
				return err
			}
			signed, err := util.ReadBool(rd)
			if err != nil {
				return err
			}
			if signed {
				if _, err = util.ReadString(rd); err != nil { // signature
					return err
				}
			}
		}
	}
	return nil
}

type SetCompression struct {
	Threshold int
}

func (s *SetCompression) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteVarInt(wr, s.Threshold)
}

func (s *SetCompression) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	s.Threshold, err = util.ReadVarInt(rd)
	return
}

// LoginAcknowledged is sent by 1.20.2+ clients to
// enter the configuration state.
type LoginAcknowledged struct{}

func (*LoginAcknowledged) Encode(_ *proto.PacketContext, _ io.Writer) error  { return nil }
func (*LoginAcknowledged) Decode(_ *proto.PacketContext, _ io.Reader) error { return nil }

var (
	_ proto.Packet = (*ServerLogin)(nil)
	_ proto.Packet = (*ServerLoginSuccess)(nil)
	_ proto.Packet = (*SetCompression)(nil)
	_ proto.Packet = (*LoginAcknowledged)(nil)
)
