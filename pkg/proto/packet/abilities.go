package packet

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
)

// Abilities ability flag bits.
const (
	AbilityInvulnerable byte = 0x01
	AbilityFlying       byte = 0x02
	AbilityAllowFlight  byte = 0x04
	AbilityCreativeMode byte = 0x08
)

type Abilities struct {
	Flags       byte
	FlyingSpeed float32
	FieldOfView float32
}

func (a *Abilities) Encode(_ *proto.PacketContext, wr io.Writer) error {
	err := util.WriteByte(wr, a.Flags)
	if err != nil {
		return err
	}
	err = util.WriteFloat32(wr, a.FlyingSpeed)
	if err != nil {
		return err
	}
	return util.WriteFloat32(wr, a.FieldOfView)
}

func (a *Abilities) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	a.Flags, err = util.ReadByte(rd)
	if err != nil {
		return err
	}
	a.FlyingSpeed, err = util.ReadFloat32(rd)
	if err != nil {
		return err
	}
	a.FieldOfView, err = util.ReadFloat32(rd)
	return
}

var _ proto.Packet = (*Abilities)(nil)
