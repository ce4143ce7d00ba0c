package packet

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// PlayerPosAndLook teleports the client to an absolute position.
// The client answers with a TeleportConfirm since 1.9.
type PlayerPosAndLook struct {
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32

	// OnGround is only part of the 1.7 packet.
	OnGround bool

	// Flags is a bit field controlling which values are relative,
	// 1.8 and above. Zero means all values are absolute.
	Flags byte

	TeleportID int // 1.9+
}

func (p *PlayerPosAndLook) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	return util.RecoverFunc(func() error {
		w.Float64(p.X)
		w.Float64(p.Y)
		w.Float64(p.Z)
		w.Float32(p.Yaw)
		w.Float32(p.Pitch)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			w.Bool(p.OnGround)
			return nil
		}
		w.Byte(p.Flags)
		if c.Protocol.GreaterEqual(version.Minecraft_1_9) {
			w.VarInt(p.TeleportID)
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_17) &&
			c.Protocol.Lower(version.Minecraft_1_19_4) {
			w.Bool(false) // dismount vehicle
		}
		return nil
	})
}

func (p *PlayerPosAndLook) Decode(c *proto.PacketContext, rd io.Reader) error {
	r := util.PanicReader(rd)
	return util.RecoverFunc(func() error {
		r.Float64(&p.X)
		r.Float64(&p.Y)
		r.Float64(&p.Z)
		r.Float32(&p.Yaw)
		r.Float32(&p.Pitch)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			r.Bool(&p.OnGround)
			return nil
		}
		r.Byte(&p.Flags)
		if c.Protocol.GreaterEqual(version.Minecraft_1_9) {
			r.VarInt(&p.TeleportID)
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_17) &&
			c.Protocol.Lower(version.Minecraft_1_19_4) {
			var dismount bool
			r.Bool(&dismount)
		}
		return nil
	})
}

// PlayerPosition is the client movement packet without rotation.
type PlayerPosition struct {
	X, Y, Z  float64
	OnGround bool
}

func (p *PlayerPosition) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	return util.RecoverFunc(func() error {
		w.Float64(p.X)
		w.Float64(p.Y)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			w.Float64(p.Y + 1.62) // head y
		}
		w.Float64(p.Z)
		w.Bool(p.OnGround)
		return nil
	})
}

func (p *PlayerPosition) Decode(c *proto.PacketContext, rd io.Reader) error {
	r := util.PanicReader(rd)
	return util.RecoverFunc(func() error {
		r.Float64(&p.X)
		r.Float64(&p.Y)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			var headY float64
			r.Float64(&headY)
		}
		r.Float64(&p.Z)
		r.Bool(&p.OnGround)
		return nil
	})
}

// PlayerPositionLook is the client movement packet with rotation.
type PlayerPositionLook struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	OnGround   bool
}

func (p *PlayerPositionLook) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	return util.RecoverFunc(func() error {
		w.Float64(p.X)
		w.Float64(p.Y)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			w.Float64(p.Y + 1.62) // head y
		}
		w.Float64(p.Z)
		w.Float32(p.Yaw)
		w.Float32(p.Pitch)
		w.Bool(p.OnGround)
		return nil
	})
}

func (p *PlayerPositionLook) Decode(c *proto.PacketContext, rd io.Reader) error {
	r := util.PanicReader(rd)
	return util.RecoverFunc(func() error {
		r.Float64(&p.X)
		r.Float64(&p.Y)
		if c.Protocol.Lower(version.Minecraft_1_8) {
			var headY float64
			r.Float64(&headY)
		}
		r.Float64(&p.Z)
		r.Float32(&p.Yaw)
		r.Float32(&p.Pitch)
		r.Bool(&p.OnGround)
		return nil
	})
}

// TeleportConfirm acknowledges a PlayerPosAndLook teleport, 1.9+.
type TeleportConfirm struct {
	TeleportID int
}

func (t *TeleportConfirm) Encode(_ *proto.PacketContext, wr io.Writer) error {
	return util.WriteVarInt(wr, t.TeleportID)
}

func (t *TeleportConfirm) Decode(_ *proto.PacketContext, rd io.Reader) (err error) {
	t.TeleportID, err = util.ReadVarInt(rd)
	return
}

var (
	_ proto.Packet = (*PlayerPosAndLook)(nil)
	_ proto.Packet = (*PlayerPosition)(nil)
	_ proto.Packet = (*PlayerPositionLook)(nil)
	_ proto.Packet = (*TeleportConfirm)(nil)
)
