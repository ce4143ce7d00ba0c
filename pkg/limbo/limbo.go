// Package limbo prebuilds the packets of the virtual verification
// world that joining clients are put into. All packets are prepared
// once at startup since their content only depends on the protocol
// version and the verification settings.
package limbo

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/packet/config"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

const (
	// BlocksPerRow is the side length of the square collision platform.
	BlocksPerRow = 8
	// SpawnX and SpawnZ place the player in the middle of the platform.
	SpawnX = BlocksPerRow
	SpawnZ = BlocksPerRow
	// CollideY is the Y position of the platform surface,
	// the maximum Y position a block can be placed at.
	CollideY = 255

	// spawnBuffer is the distance above the platform the player
	// spawns at, before accounting for the predicted fall distance.
	spawnBuffer = 5
)

// Limbo holds the prebuilt world packets and the precomputed
// gravity values of the fall check.
type Limbo struct {
	legacyJoinGame *packet.JoinGame // 1.7.2-1.15.2
	joinGame116    *packet.JoinGame // 1.16-1.16.1
	joinGame1162   *packet.JoinGame // 1.16.2-1.18
	joinGame1182   *packet.JoinGame // 1.18.2-1.19
	joinGame1191   *packet.JoinGame // 1.19.1-1.19.3
	joinGame1194   *packet.JoinGame // 1.19.4
	joinGame120    *packet.JoinGame // 1.20+

	// RegistrySync carries the 1.20.2+ configuration state registry data.
	RegistrySync *config.RegistrySync
	// FinishConfiguration ends the 1.20.2+ configuration state.
	FinishConfiguration *config.FinishedUpdate
	// EmptyChunk is the chunk the platform is placed in.
	EmptyChunk *packet.ChunkData
	// UpdateSectionBlocks places the collision platform.
	UpdateSectionBlocks *packet.UpdateSectionBlocks
	// DefaultAbilities revokes all special abilities, including flying.
	DefaultAbilities *packet.Abilities

	// Motions is the expected downwards motion per fall tick.
	Motions []float64
	// MaxFallDistance is the distance fallen after MaxMovementTicks.
	MaxFallDistance float64
	// MaxMovementTicks is the number of fall ticks the client is
	// observed for before it must collide with the platform.
	MaxMovementTicks int
	// SpawnY is the dynamic spawn height, far enough above the
	// platform that the fall spans MaxMovementTicks ticks.
	SpawnY int
}

// Prepare builds all world packets for the given verification settings.
func Prepare(maxMovementTicks int, gamemode int16) (*Limbo, error) {
	l := &Limbo{
		legacyJoinGame:      createJoinGame(version.Minecraft_1_8.Protocol, gamemode),
		joinGame116:         createJoinGame(version.Minecraft_1_16.Protocol, gamemode),
		joinGame1162:        createJoinGame(version.Minecraft_1_16_2.Protocol, gamemode),
		joinGame1182:        createJoinGame(version.Minecraft_1_18_2.Protocol, gamemode),
		joinGame1191:        createJoinGame(version.Minecraft_1_19_1.Protocol, gamemode),
		joinGame1194:        createJoinGame(version.Minecraft_1_19_4.Protocol, gamemode),
		joinGame120:         createJoinGame(version.Minecraft_1_20.Protocol, gamemode),
		FinishConfiguration: &config.FinishedUpdate{},
		EmptyChunk:          &packet.ChunkData{X: 0, Z: 0},
		DefaultAbilities:    &packet.Abilities{},
		MaxMovementTicks:    maxMovementTicks,
	}

	// The 1.20.2+ configuration state receives the same registry
	// the 1.20 join game packet carries, as nameless network NBT.
	var registry bytes.Buffer
	if err := util.WriteNetworkNBT(
		&registry, version.Minecraft_1_20_2.Protocol, l.joinGame120.Registry,
	); err != nil {
		return nil, fmt.Errorf("error encoding registry data: %w", err)
	}
	l.RegistrySync = &config.RegistrySync{Data: registry.Bytes()}

	// Precompute the client's downward motion for every fall tick.
	// The client is given a few extra ticks of slack before the
	// fall is considered timed out.
	maxPredictionTicks := maxMovementTicks + 10
	l.Motions = make([]float64, maxPredictionTicks+1)
	for i := range l.Motions {
		l.Motions[i] = -((math.Pow(0.98, float64(i)) - 1) * 3.92)
	}
	for i := 0; i < maxMovementTicks; i++ {
		l.MaxFallDistance += l.Motions[i]
	}

	// Spawn high enough above the platform that the fall takes
	// the full number of movement ticks.
	l.SpawnY = CollideY + spawnBuffer + int(l.MaxFallDistance)

	// The collision platform, one barrier block per position.
	blocks := make([]packet.ChangedBlock, 0, BlocksPerRow*BlocksPerRow)
	for x := 0; x < BlocksPerRow; x++ {
		for z := 0; z < BlocksPerRow; z++ {
			blocks = append(blocks, packet.ChangedBlock{
				X: x + BlocksPerRow/2,
				Y: CollideY,
				Z: z + BlocksPerRow/2,
			})
		}
	}
	l.UpdateSectionBlocks = &packet.UpdateSectionBlocks{
		SectionX: 0,
		SectionZ: 0,
		Blocks:   blocks,
		Block:    packet.BarrierBlock,
	}
	return l, nil
}

// JoinGame returns the prebuilt join game packet for a protocol version.
func (l *Limbo) JoinGame(protocol proto.Protocol) *packet.JoinGame {
	switch {
	case protocol.LowerEqual(version.Minecraft_1_15_2):
		return l.legacyJoinGame
	case protocol.LowerEqual(version.Minecraft_1_16_1):
		return l.joinGame116
	case protocol.LowerEqual(version.Minecraft_1_18):
		return l.joinGame1162
	case protocol.LowerEqual(version.Minecraft_1_19):
		return l.joinGame1182
	case protocol.LowerEqual(version.Minecraft_1_19_3):
		return l.joinGame1191
	case protocol == version.Minecraft_1_19_4.Protocol:
		return l.joinGame1194
	default:
		return l.joinGame120
	}
}

// PlatformBounds reports whether an X or Z coordinate is
// above the collision platform.
func PlatformBounds(pos float64) bool {
	return pos >= BlocksPerRow/2 && pos <= BlocksPerRow/2+BlocksPerRow
}
