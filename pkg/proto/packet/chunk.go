package packet

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// ChunkData sends an empty chunk without any blocks. The verification
// platform is applied on top of it with UpdateSectionBlocks.
type ChunkData struct {
	X, Z int32
}

func (p *ChunkData) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	return util.RecoverFunc(func() error {
		w.Int32(p.X)
		w.Int32(p.Z)

		if c.Protocol.Lower(version.Minecraft_1_17) {
			w.Bool(true) // full chunk
		}
		if c.Protocol.GreaterEqual(version.Minecraft_1_16) &&
			c.Protocol.Lower(version.Minecraft_1_16_2) {
			w.Bool(true) // ignore old data
		}

		// Section mask, no sections are sent.
		if c.Protocol.GreaterEqual(version.Minecraft_1_17) {
			w.VarInt(0) // empty bitset
		} else if c.Protocol.GreaterEqual(version.Minecraft_1_9) {
			w.VarInt(0)
		} else if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
			w.Int16(0)
		} else {
			w.Int16(0) // primary bit mask
			w.Int16(0) // add bit mask
		}

		if c.Protocol.GreaterEqual(version.Minecraft_1_14) {
			if err := util.WriteNetworkNBT(wr, c.Protocol, heightmaps(c.Protocol)); err != nil {
				return err
			}
			if c.Protocol.GreaterEqual(version.Minecraft_1_15) &&
				c.Protocol.Lower(version.Minecraft_1_18) {
				if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
					w.VarInt(1024)
					for i := 0; i < 1024; i++ {
						w.VarInt(1) // plains
					}
				} else {
					for i := 0; i < 1024; i++ {
						w.Int32(0)
					}
				}
			}
		}

		switch {
		case c.Protocol.Lower(version.Minecraft_1_8):
			w.Int32(0) // compressed data size
		case c.Protocol.Lower(version.Minecraft_1_13):
			w.Bytes(make([]byte, 256)) // biomes
		case c.Protocol.Lower(version.Minecraft_1_15):
			w.Bytes(make([]byte, 1024*4)) // int biomes
		case c.Protocol.Lower(version.Minecraft_1_18):
			w.VarInt(0) // no section data
		default:
			// 16 sections of zero block count, empty block palette (air)
			// and single value biome palette (plains).
			section := []byte{0, 0, 0, 0, 0, 0, 1, 0}
			w.VarInt(len(section) * 16)
			for i := 0; i < 16; i++ {
				w.RawBytes(section)
			}
		}

		if c.Protocol.GreaterEqual(version.Minecraft_1_9_4) {
			w.VarInt(0) // block entities
		}

		if c.Protocol.GreaterEqual(version.Minecraft_1_18) {
			if c.Protocol.Lower(version.Minecraft_1_20) {
				w.Bool(true) // trust edges
			}
			w.VarInt(0) // sky light mask
			w.VarInt(0) // block light mask
			w.VarInt(0) // empty sky light mask
			w.VarInt(0) // empty block light mask
			w.VarInt(0) // sky light entries
			w.VarInt(0) // block light entries
		}
		return nil
	})
}

func (p *ChunkData) Decode(_ *proto.PacketContext, _ io.Reader) error {
	return errDecodeClientBound
}

// heightmaps returns the empty chunk heightmap compound.
// The long array packing changed in 1.16 from tightly packed
// 9 bit entries to padded longs.
func heightmaps(protocol proto.Protocol) util.NBT {
	length := 36
	if protocol.GreaterEqual(version.Minecraft_1_16) {
		length = 37
	}
	return util.NBT{
		"MOTION_BLOCKING": make([]int64, length),
	}
}

// ChangedBlock is a single block of the verification platform.
// Coordinates are absolute.
type ChangedBlock struct {
	X, Y, Z int
}

// BlockType resolves the block state id of a block
// for a protocol version.
type BlockType func(protocol proto.Protocol) int

// BarrierBlock is the invisible, unbreakable block the
// verification platform is made of.
var BarrierBlock BlockType = func(protocol proto.Protocol) int {
	switch {
	case protocol.Lower(version.Minecraft_1_13):
		return 166
	case protocol.LowerEqual(version.Minecraft_1_13_2):
		return 7011
	case protocol.LowerEqual(version.Minecraft_1_15_2):
		return 7559
	case protocol.LowerEqual(version.Minecraft_1_16_4):
		return 7539
	case protocol.LowerEqual(version.Minecraft_1_19_3):
		return 7754
	case protocol.LowerEqual(version.Minecraft_1_19_4):
		return 12297
	default:
		return 12449
	}
}

// UpdateSectionBlocks applies the platform blocks to the chunk
// section at the given section coordinates.
type UpdateSectionBlocks struct {
	SectionX, SectionZ int
	Blocks             []ChangedBlock
	Block              BlockType
}

func (p *UpdateSectionBlocks) Encode(c *proto.PacketContext, wr io.Writer) error {
	w := util.PanicWriter(wr)
	return util.RecoverFunc(func() error {
		blockID := p.Block(c.Protocol)

		if c.Protocol.GreaterEqual(version.Minecraft_1_16_2) {
			// Section position with the section y the blocks are in.
			sectionY := 15 // y 240..255
			pos := (int64(p.SectionX&0x3FFFFF) << 42) |
				(int64(p.SectionZ&0x3FFFFF) << 20) |
				int64(sectionY&0xFFFFF)
			w.Int64(pos)
			if c.Protocol.Lower(version.Minecraft_1_20) {
				w.Bool(true) // suppress light updates
			}
			w.VarInt(len(p.Blocks))
			for _, b := range p.Blocks {
				rel := int64(b.X&0xF)<<8 | int64(b.Z&0xF)<<4 | int64(b.Y&0xF)
				w.VarLong(int64(blockID)<<12 | rel)
			}
			return nil
		}

		w.Int32(int32(p.SectionX))
		w.Int32(int32(p.SectionZ))
		if c.Protocol.GreaterEqual(version.Minecraft_1_8) {
			w.VarInt(len(p.Blocks))
			for _, b := range p.Blocks {
				w.Byte(byte(b.X&0xF)<<4 | byte(b.Z&0xF))
				w.Byte(byte(b.Y))
				if c.Protocol.GreaterEqual(version.Minecraft_1_13) {
					w.VarInt(blockID)
				} else {
					w.VarInt(blockID << 4) // id and metadata
				}
			}
			return nil
		}

		// 1.7 writes fixed size records
		w.Int16(int16(len(p.Blocks)))
		w.Int32(int32(len(p.Blocks) * 4))
		for _, b := range p.Blocks {
			w.Int16(int16(b.X&0xF)<<12 | int16(b.Z&0xF)<<8 | int16(b.Y))
			w.Int16(int16(blockID << 4))
		}
		return nil
	})
}

func (p *UpdateSectionBlocks) Decode(_ *proto.PacketContext, _ io.Reader) error {
	return errDecodeClientBound
}

var (
	_ proto.Packet = (*ChunkData)(nil)
	_ proto.Packet = (*UpdateSectionBlocks)(nil)
)
