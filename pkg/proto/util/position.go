package util

import (
	"io"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// BlockPos is an integer block position in the world.
type BlockPos struct {
	X, Y, Z int
}

// pack returns the 64-bit wire form of the position. The field layout
// changed in 1.14: the y bits moved from the middle to the bottom.
func (p BlockPos) pack(protocol proto.Protocol) uint64 {
	x := uint64(p.X)
	y := uint64(p.Y)
	z := uint64(p.Z)
	if protocol.GreaterEqual(version.Minecraft_1_14) {
		return ((x & 0x3FFFFFF) << 38) | ((z & 0x3FFFFFF) << 12) | (y & 0xFFF)
	}
	return (x << 38) | ((y & 0xFFF) << 26) | (z & 0x3FFFFFF)
}

func unpackBlockPos(v uint64, protocol proto.Protocol) BlockPos {
	signExtend := func(val uint64, bits uint) int {
		shift := 64 - bits
		return int(int64(val<<shift) >> shift)
	}
	if protocol.GreaterEqual(version.Minecraft_1_14) {
		return BlockPos{
			X: signExtend(v>>38, 26),
			Z: signExtend(v>>12, 26),
			Y: signExtend(v, 12),
		}
	}
	return BlockPos{
		X: signExtend(v>>38, 26),
		Y: signExtend(v>>26, 12),
		Z: signExtend(v, 26),
	}
}

func WriteBlockPos(w io.Writer, protocol proto.Protocol, p BlockPos) error {
	return WriteUint64(w, p.pack(protocol))
}

func ReadBlockPos(r io.Reader, protocol proto.Protocol) (BlockPos, error) {
	v, err := ReadUint64(r)
	if err != nil {
		return BlockPos{}, err
	}
	return unpackBlockPos(v, protocol), nil
}
