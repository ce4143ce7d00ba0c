package limbo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

func TestPrepare(t *testing.T) {
	l, err := Prepare(8, 3)
	require.NoError(t, err)

	t.Run("motions", func(t *testing.T) {
		// 19 entries, max movement ticks plus prediction slack.
		require.Len(t, l.Motions, 19)
		assert.Zero(t, l.Motions[0])
		// Motion per tick follows -((0.98^tick - 1) * 3.92).
		assert.InDelta(t, 0.0784, l.Motions[1], 1e-9)
		assert.InDelta(t, 0.155232, l.Motions[2], 1e-9)
		// Motion grows monotonically towards terminal velocity.
		for i := 1; i < len(l.Motions); i++ {
			assert.Greater(t, l.Motions[i], l.Motions[i-1])
		}
	})

	t.Run("spawn height", func(t *testing.T) {
		// Fall distance of 8 ticks is ~2.11 blocks, spawning
		// at the collide position + buffer + fall distance.
		assert.InDelta(t, 2.1096, l.MaxFallDistance, 0.001)
		assert.Equal(t, 262, l.SpawnY)
	})

	t.Run("platform", func(t *testing.T) {
		require.Len(t, l.UpdateSectionBlocks.Blocks, 64)
		for _, b := range l.UpdateSectionBlocks.Blocks {
			assert.Equal(t, CollideY, b.Y)
			assert.GreaterOrEqual(t, b.X, 4)
			assert.Less(t, b.X, 12)
			assert.GreaterOrEqual(t, b.Z, 4)
			assert.Less(t, b.Z, 12)
		}
		assert.True(t, PlatformBounds(SpawnX))
		assert.True(t, PlatformBounds(4))
		assert.False(t, PlatformBounds(3.2))
		assert.False(t, PlatformBounds(12.9))
	})

	t.Run("registry sync", func(t *testing.T) {
		require.NotEmpty(t, l.RegistrySync.Data)
		// Nameless compound root of the network NBT format.
		assert.EqualValues(t, 10, l.RegistrySync.Data[0])
	})
}

func TestJoinGameBrackets(t *testing.T) {
	l, err := Prepare(8, 3)
	require.NoError(t, err)

	assert.Same(t, l.legacyJoinGame, l.JoinGame(version.Minecraft_1_7_2.Protocol))
	assert.Same(t, l.legacyJoinGame, l.JoinGame(version.Minecraft_1_15_2.Protocol))
	assert.Same(t, l.joinGame116, l.JoinGame(version.Minecraft_1_16.Protocol))
	assert.Same(t, l.joinGame1162, l.JoinGame(version.Minecraft_1_17.Protocol))
	assert.Same(t, l.joinGame1162, l.JoinGame(version.Minecraft_1_18.Protocol))
	assert.Same(t, l.joinGame1182, l.JoinGame(version.Minecraft_1_19.Protocol))
	assert.Same(t, l.joinGame1191, l.JoinGame(version.Minecraft_1_19_3.Protocol))
	assert.Same(t, l.joinGame1194, l.JoinGame(version.Minecraft_1_19_4.Protocol))
	assert.Same(t, l.joinGame120, l.JoinGame(version.Minecraft_1_20.Protocol))
	assert.Same(t, l.joinGame120, l.JoinGame(version.Minecraft_1_20_2.Protocol))
}

func TestCreateJoinGame(t *testing.T) {
	t.Run("legacy has no registry", func(t *testing.T) {
		j := createJoinGame(version.Minecraft_1_8.Protocol, 3)
		assert.Nil(t, j.Registry)
		assert.Nil(t, j.DimensionInfo)
		require.NotNil(t, j.LevelType)
		assert.Equal(t, "flat", *j.LevelType)
		assert.True(t, j.ReducedDebugInfo)
	})

	t.Run("1.16 keeps flat dimension list", func(t *testing.T) {
		j := createJoinGame(version.Minecraft_1_16.Protocol, 3)
		require.NotNil(t, j.Registry)
		assert.Contains(t, j.Registry, "dimension")
		assert.NotContains(t, j.Registry, "minecraft:dimension_type")
		assert.Equal(t, []string{"minecraft:overworld"}, j.LevelNames)
	})

	t.Run("1.16.2 wraps dimension element", func(t *testing.T) {
		j := createJoinGame(version.Minecraft_1_16_2.Protocol, 3)
		require.NotNil(t, j.Registry)
		assert.Contains(t, j.Registry, "minecraft:dimension_type")
		assert.Contains(t, j.Registry, "minecraft:worldgen/biome")
		assert.NotContains(t, j.Registry, "minecraft:damage_type")
		assert.EqualValues(t, int32(256), j.CurrentDimensionData["logical_height"])
	})

	t.Run("damage types", func(t *testing.T) {
		j := createJoinGame(version.Minecraft_1_19_4.Protocol, 3)
		reg, ok := j.Registry["minecraft:damage_type"].(util.NBT)
		require.True(t, ok)
		assert.Len(t, reg["value"], 42)

		j = createJoinGame(version.Minecraft_1_20.Protocol, 3)
		reg, ok = j.Registry["minecraft:damage_type"].(util.NBT)
		require.True(t, ok)
		assert.Len(t, reg["value"], 44)
	})

	t.Run("infiniburn tag prefix", func(t *testing.T) {
		old := dimensionData(version.Minecraft_1_16_2.Protocol)
		assert.Equal(t, "minecraft:infiniburn_nether", old["element"].(util.NBT)["infiniburn"])
		modern := dimensionData(version.Minecraft_1_18_2.Protocol)
		assert.Equal(t, "#minecraft:infiniburn_nether", modern["element"].(util.NBT)["infiniburn"])
	})
}
