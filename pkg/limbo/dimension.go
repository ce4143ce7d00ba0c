package limbo

import (
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

const (
	dimensionIdentifier = "minecraft:overworld"
	levelName           = "sonar"
)

// createJoinGame builds the join game packet of one version bracket.
// The registry only contains the minimum the client accepts: a single
// overworld dimension and the plains biome.
func createJoinGame(protocol proto.Protocol, gamemode int16) *packet.JoinGame {
	levelType := "flat"
	j := &packet.JoinGame{
		LevelType:        &levelType,
		Gamemode:         gamemode,
		Dimension:        0,
		MaxPlayers:       1,
		ViewDistance:     2,
		ReducedDebugInfo: true,
	}

	// 1.7.2-1.8.9 don't need any dimension information.
	if protocol.LowerEqual(version.Minecraft_1_8) {
		return j
	}

	name := levelName
	j.DimensionInfo = &packet.DimensionInfo{
		RegistryIdentifier: dimensionIdentifier,
		LevelName:          &name,
	}

	dimension := dimensionData(protocol)
	encodedDimensionRegistry := []any{dimension}

	registry := util.NBT{}
	if protocol.GreaterEqual(version.Minecraft_1_16_2) {
		registry["minecraft:dimension_type"] = util.NBT{
			"type":  "minecraft:dimension_type",
			"value": encodedDimensionRegistry,
		}
		registry["minecraft:worldgen/biome"] = util.NBT{
			"type": "minecraft:worldgen/biome",
			"value": []any{util.NBT{
				"name":    "minecraft:plains",
				"id":      int32(1),
				"element": biomeElement(protocol),
			}},
		}
		// The client validates the damage type registry since 1.19.4.
		if protocol.GreaterEqual(version.Minecraft_1_19_4) {
			registry["minecraft:damage_type"] = damageTypeRegistry(protocol)
		}
		j.CurrentDimensionData = dimension["element"].(util.NBT)
	} else {
		registry["dimension"] = encodedDimensionRegistry
		j.CurrentDimensionData = dimension
	}

	j.LevelNames = []string{dimensionIdentifier}
	j.Registry = registry
	return j
}

func dimensionData(protocol proto.Protocol) util.NBT {
	infiniburn := "minecraft:infiniburn_nether"
	if protocol.GreaterEqual(version.Minecraft_1_18_2) {
		infiniburn = "#" + infiniburn
	}
	details := util.NBT{
		"natural":                         false,
		"ambient_light":                   float32(0),
		"shrunk":                          false,
		"ultrawarm":                       false,
		"has_ceiling":                     false,
		"has_skylight":                    true,
		"piglin_safe":                     false,
		"bed_works":                       false,
		"respawn_anchor_works":            false,
		"has_raids":                       false,
		"logical_height":                  int32(256),
		"infiniburn":                      infiniburn,
		"coordinate_scale":                float64(1),
		"effects":                         dimensionIdentifier,
		"min_y":                           int32(0),
		"height":                          int32(256),
		"monster_spawn_block_light_limit": int32(0),
		"monster_spawn_light_level":       int32(0),
	}
	if protocol.GreaterEqual(version.Minecraft_1_16_2) {
		return util.NBT{
			"name":    dimensionIdentifier,
			"id":      int32(0),
			"element": details,
		}
	}
	details["name"] = dimensionIdentifier
	return details
}

func biomeElement(protocol proto.Protocol) util.NBT {
	element := util.NBT{
		"depth":       float32(0.125),
		"temperature": float32(0.8),
		"scale":       float32(0.05),
		"downfall":    float32(0.4),
		"category":    "plains",
		"effects": util.NBT{
			"sky_color":       int32(7907327),
			"fog_color":       int32(12638463),
			"water_color":     int32(0),
			"water_fog_color": int32(0),
		},
	}
	if protocol.GreaterEqual(version.Minecraft_1_19_4) {
		element["has_precipitation"] = false
	} else {
		element["precipitation"] = "rain"
	}
	return element
}
