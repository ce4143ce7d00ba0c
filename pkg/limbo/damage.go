package limbo

import (
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

type damageType struct {
	name             string
	messageID        string
	scaling          string
	exhaustion       float32
	effects          string
	deathMessageType string
}

const (
	scaleNonPlayer = "when_caused_by_living_non_player"
	scaleAlways    = "always"
)

// damageTypes is the vanilla damage type registry of 1.19.4.
// 1.20 appends two more entries at the end.
var damageTypes = []damageType{
	{name: "in_fire", messageID: "inFire", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "burning"},
	{name: "lightning_bolt", messageID: "lightningBolt", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "on_fire", messageID: "onFire", scaling: scaleNonPlayer, effects: "burning"},
	{name: "lava", messageID: "lava", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "burning"},
	{name: "hot_floor", messageID: "hotFloor", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "burning"},
	{name: "in_wall", messageID: "inWall", scaling: scaleNonPlayer},
	{name: "cramming", messageID: "cramming", scaling: scaleNonPlayer},
	{name: "drown", messageID: "drown", scaling: scaleNonPlayer, effects: "drowning"},
	{name: "starve", messageID: "starve", scaling: scaleNonPlayer},
	{name: "cactus", messageID: "cactus", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "fall", messageID: "fall", scaling: scaleNonPlayer, deathMessageType: "fall_variants"},
	{name: "fly_into_wall", messageID: "flyIntoWall", scaling: scaleNonPlayer},
	{name: "out_of_world", messageID: "outOfWorld", scaling: scaleNonPlayer},
	{name: "generic", messageID: "generic", scaling: scaleNonPlayer},
	{name: "magic", messageID: "magic", scaling: scaleNonPlayer},
	{name: "wither", messageID: "wither", scaling: scaleNonPlayer},
	{name: "dragon_breath", messageID: "dragonBreath", scaling: scaleNonPlayer},
	{name: "dry_out", messageID: "dryout", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "sweet_berry_bush", messageID: "sweetBerryBush", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "poking"},
	{name: "freeze", messageID: "freeze", scaling: scaleNonPlayer, effects: "freezing"},
	{name: "stalagmite", messageID: "stalagmite", scaling: scaleNonPlayer},
	{name: "falling_block", messageID: "fallingBlock", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "falling_anvil", messageID: "anvil", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "falling_stalactite", messageID: "fallingStalactite", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "sting", messageID: "sting", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "mob_attack", messageID: "mob", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "mob_attack_no_aggro", messageID: "mob", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "player_attack", messageID: "player", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "arrow", messageID: "arrow", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "trident", messageID: "trident", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "mob_projectile", messageID: "mob", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "fireworks", messageID: "fireworks", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "fireball", messageID: "fireball", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "burning"},
	{name: "unattributed_fireball", messageID: "onFire", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "burning"},
	{name: "wither_skull", messageID: "witherSkull", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "thrown", messageID: "thrown", scaling: scaleNonPlayer, exhaustion: 0.1},
	{name: "indirect_magic", messageID: "indirectMagic", scaling: scaleNonPlayer},
	{name: "thorns", messageID: "thorns", scaling: scaleNonPlayer, exhaustion: 0.1, effects: "thorns"},
	{name: "explosion", messageID: "explosion", scaling: scaleAlways, exhaustion: 0.1},
	{name: "player_explosion", messageID: "explosion.player", scaling: scaleAlways, exhaustion: 0.1},
	{name: "sonic_boom", messageID: "sonic_boom", scaling: scaleAlways},
	{name: "bad_respawn_point", messageID: "badRespawnPoint", scaling: scaleAlways, exhaustion: 0.1, deathMessageType: "intentional_game_design"},
}

var damageTypes120 = []damageType{
	{name: "outside_border", messageID: "outOfBorder", scaling: scaleNonPlayer},
	{name: "generic_kill", messageID: "genericKill", scaling: scaleNonPlayer},
}

func damageTypeRegistry(protocol proto.Protocol) util.NBT {
	types := damageTypes
	if protocol.GreaterEqual(version.Minecraft_1_20) {
		types = append(types[:len(types):len(types)], damageTypes120...)
	}
	value := make([]any, 0, len(types))
	for i, t := range types {
		element := util.NBT{
			"message_id": t.messageID,
			"scaling":    t.scaling,
			"exhaustion": t.exhaustion,
		}
		if t.effects != "" {
			element["effects"] = t.effects
		}
		if t.deathMessageType != "" {
			element["death_message_type"] = t.deathMessageType
		}
		value = append(value, util.NBT{
			"name":    "minecraft:" + t.name,
			"id":      int32(i),
			"element": element,
		})
	}
	return util.NBT{
		"type":  "minecraft:damage_type",
		"value": value,
	}
}
