package state

import (
	p "github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/packet/config"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// State is a Java edition client state.
type State int

// The states the Java edition client connection can be in.
const (
	HandshakeState State = iota
	StatusState
	LoginState
	ConfigState // since 1.20.2
	PlayState
)

func (s State) String() string {
	switch s {
	case HandshakeState:
		return "Handshake"
	case StatusState:
		return "Status"
	case LoginState:
		return "Login"
	case ConfigState:
		return "Config"
	case PlayState:
		return "Play"
	}
	return "Unknown"
}

// The registries storing the packets for a connection state.
var (
	Handshake = NewRegistry(HandshakeState)
	Status    = NewRegistry(StatusState)
	Login     = NewRegistry(LoginState)
	Config    = NewRegistry(ConfigState)
	Play      = NewRegistry(PlayState)
)

func init() {
	Handshake.ServerBound.Register(&p.Handshake{},
		m(0x00, version.Minecraft_1_7_2))

	Status.ServerBound.Register(&p.StatusRequest{},
		m(0x00, version.Minecraft_1_7_2))
	Status.ServerBound.Register(&p.StatusPing{},
		m(0x01, version.Minecraft_1_7_2))

	Status.ClientBound.Register(&p.StatusResponse{},
		m(0x00, version.Minecraft_1_7_2))
	Status.ClientBound.Register(&p.StatusPing{},
		m(0x01, version.Minecraft_1_7_2))

	Login.ServerBound.Register(&p.ServerLogin{},
		m(0x00, version.Minecraft_1_7_2))
	Login.ServerBound.Register(&p.LoginAcknowledged{},
		m(0x03, version.Minecraft_1_20_2))

	Login.ClientBound.Register(&p.Disconnect{},
		m(0x00, version.Minecraft_1_7_2))
	Login.ClientBound.Register(&p.ServerLoginSuccess{},
		m(0x02, version.Minecraft_1_7_2))
	Login.ClientBound.Register(&p.SetCompression{},
		m(0x03, version.Minecraft_1_8))

	// The configuration state exists since 1.20.2 only. Connections of
	// older versions never switch to this state.
	Config.ServerBound.Register(&p.ClientSettings{},
		m(0x00, version.Minecraft_1_20_2))
	Config.ServerBound.Register(&p.PluginMessage{},
		m(0x01, version.Minecraft_1_20_2))
	Config.ServerBound.Register(&config.FinishedUpdate{},
		m(0x02, version.Minecraft_1_20_2))
	Config.ServerBound.Register(&p.KeepAlive{},
		m(0x03, version.Minecraft_1_20_2))

	Config.ClientBound.Register(&p.Disconnect{},
		m(0x01, version.Minecraft_1_20_2))
	Config.ClientBound.Register(&config.FinishedUpdate{},
		m(0x02, version.Minecraft_1_20_2))
	Config.ClientBound.Register(&p.KeepAlive{},
		m(0x03, version.Minecraft_1_20_2))
	Config.ClientBound.Register(&config.RegistrySync{},
		m(0x05, version.Minecraft_1_20_2))

	// Unknown packet ids in the play state are dropped by the session,
	// never forwarded, so there is no version fallback here.
	Play.ServerBound.Fallback = false
	Play.ClientBound.Fallback = false

	Play.ServerBound.Register(&p.TeleportConfirm{},
		m(0x00, version.Minecraft_1_9))
	Play.ServerBound.Register(&p.KeepAlive{},
		m(0x00, version.Minecraft_1_7_2),
		m(0x0B, version.Minecraft_1_9),
		m(0x0C, version.Minecraft_1_12),
		m(0x0B, version.Minecraft_1_12_1),
		m(0x0E, version.Minecraft_1_13),
		m(0x0F, version.Minecraft_1_14),
		m(0x10, version.Minecraft_1_16),
		m(0x0F, version.Minecraft_1_17),
		m(0x11, version.Minecraft_1_19),
		m(0x12, version.Minecraft_1_19_1),
		m(0x11, version.Minecraft_1_19_3),
		m(0x12, version.Minecraft_1_19_4),
		m(0x14, version.Minecraft_1_20_2),
	)
	Play.ServerBound.Register(&p.PluginMessage{},
		m(0x17, version.Minecraft_1_7_2),
		m(0x09, version.Minecraft_1_9),
		m(0x0A, version.Minecraft_1_12),
		m(0x09, version.Minecraft_1_12_1),
		m(0x0A, version.Minecraft_1_13),
		m(0x0B, version.Minecraft_1_14),
		m(0x0A, version.Minecraft_1_17),
		m(0x0C, version.Minecraft_1_19),
		m(0x0D, version.Minecraft_1_19_1),
		m(0x0C, version.Minecraft_1_19_3),
		m(0x0D, version.Minecraft_1_19_4),
		m(0x0F, version.Minecraft_1_20_2),
	)
	Play.ServerBound.Register(&p.ClientSettings{},
		m(0x15, version.Minecraft_1_7_2),
		m(0x04, version.Minecraft_1_9),
		m(0x05, version.Minecraft_1_12),
		m(0x04, version.Minecraft_1_12_1),
		m(0x05, version.Minecraft_1_14),
		m(0x07, version.Minecraft_1_19),
		m(0x08, version.Minecraft_1_19_1),
		m(0x07, version.Minecraft_1_19_3),
		m(0x08, version.Minecraft_1_19_4),
		m(0x09, version.Minecraft_1_20_2),
	)
	Play.ServerBound.Register(&p.PlayerPosition{},
		m(0x04, version.Minecraft_1_7_2),
		m(0x0C, version.Minecraft_1_9),
		m(0x0E, version.Minecraft_1_12),
		m(0x0D, version.Minecraft_1_12_1),
		m(0x10, version.Minecraft_1_13),
		m(0x11, version.Minecraft_1_14),
		m(0x12, version.Minecraft_1_16),
		m(0x11, version.Minecraft_1_17),
		m(0x13, version.Minecraft_1_19),
		m(0x14, version.Minecraft_1_19_1),
		m(0x13, version.Minecraft_1_19_3),
		m(0x14, version.Minecraft_1_19_4),
		m(0x16, version.Minecraft_1_20_2),
	)
	Play.ServerBound.Register(&p.PlayerPositionLook{},
		m(0x06, version.Minecraft_1_7_2),
		m(0x0D, version.Minecraft_1_9),
		m(0x0F, version.Minecraft_1_12),
		m(0x0E, version.Minecraft_1_12_1),
		m(0x11, version.Minecraft_1_13),
		m(0x12, version.Minecraft_1_14),
		m(0x13, version.Minecraft_1_16),
		m(0x12, version.Minecraft_1_17),
		m(0x14, version.Minecraft_1_19),
		m(0x15, version.Minecraft_1_19_1),
		m(0x14, version.Minecraft_1_19_3),
		m(0x15, version.Minecraft_1_19_4),
		m(0x17, version.Minecraft_1_20_2),
	)

	Play.ClientBound.Register(&p.KeepAlive{},
		m(0x00, version.Minecraft_1_7_2),
		m(0x1F, version.Minecraft_1_9),
		m(0x21, version.Minecraft_1_13),
		m(0x20, version.Minecraft_1_14),
		m(0x21, version.Minecraft_1_15),
		m(0x20, version.Minecraft_1_16),
		m(0x1F, version.Minecraft_1_16_2),
		m(0x21, version.Minecraft_1_17),
		m(0x1E, version.Minecraft_1_19),
		m(0x20, version.Minecraft_1_19_1),
		m(0x1F, version.Minecraft_1_19_3),
		m(0x23, version.Minecraft_1_19_4),
		m(0x24, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.JoinGame{},
		m(0x01, version.Minecraft_1_7_2),
		m(0x23, version.Minecraft_1_9),
		m(0x25, version.Minecraft_1_13),
		m(0x26, version.Minecraft_1_15),
		m(0x25, version.Minecraft_1_16),
		m(0x24, version.Minecraft_1_16_2),
		m(0x26, version.Minecraft_1_17),
		m(0x23, version.Minecraft_1_19),
		m(0x25, version.Minecraft_1_19_1),
		m(0x24, version.Minecraft_1_19_3),
		m(0x28, version.Minecraft_1_19_4),
		m(0x29, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.Disconnect{},
		m(0x40, version.Minecraft_1_7_2),
		m(0x1A, version.Minecraft_1_9),
		m(0x1B, version.Minecraft_1_13),
		m(0x1A, version.Minecraft_1_14),
		m(0x1B, version.Minecraft_1_15),
		m(0x1A, version.Minecraft_1_16),
		m(0x19, version.Minecraft_1_16_2),
		m(0x1A, version.Minecraft_1_17),
		m(0x17, version.Minecraft_1_19),
		m(0x19, version.Minecraft_1_19_1),
		m(0x17, version.Minecraft_1_19_3),
		m(0x1A, version.Minecraft_1_19_4),
		m(0x1B, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.Abilities{},
		m(0x39, version.Minecraft_1_7_2),
		m(0x2B, version.Minecraft_1_9),
		m(0x2C, version.Minecraft_1_12),
		m(0x2E, version.Minecraft_1_12_1),
		m(0x31, version.Minecraft_1_14),
		m(0x32, version.Minecraft_1_15),
		m(0x31, version.Minecraft_1_16),
		m(0x30, version.Minecraft_1_16_2),
		m(0x32, version.Minecraft_1_17),
		m(0x2F, version.Minecraft_1_19),
		m(0x31, version.Minecraft_1_19_1),
		m(0x30, version.Minecraft_1_19_3),
		m(0x34, version.Minecraft_1_19_4),
		m(0x36, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.PlayerPosAndLook{},
		m(0x08, version.Minecraft_1_7_2),
		m(0x2E, version.Minecraft_1_9),
		m(0x2F, version.Minecraft_1_12_1),
		m(0x32, version.Minecraft_1_13),
		m(0x35, version.Minecraft_1_14),
		m(0x36, version.Minecraft_1_15),
		m(0x35, version.Minecraft_1_16),
		m(0x34, version.Minecraft_1_16_2),
		m(0x38, version.Minecraft_1_17),
		m(0x36, version.Minecraft_1_19),
		m(0x39, version.Minecraft_1_19_1),
		m(0x38, version.Minecraft_1_19_3),
		m(0x3C, version.Minecraft_1_19_4),
		m(0x3E, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.ChunkData{},
		m(0x21, version.Minecraft_1_7_2),
		m(0x20, version.Minecraft_1_9),
		m(0x22, version.Minecraft_1_13),
		m(0x21, version.Minecraft_1_14),
		m(0x22, version.Minecraft_1_15),
		m(0x21, version.Minecraft_1_16),
		m(0x20, version.Minecraft_1_16_2),
		m(0x22, version.Minecraft_1_17),
		m(0x1F, version.Minecraft_1_19),
		m(0x21, version.Minecraft_1_19_1),
		m(0x20, version.Minecraft_1_19_3),
		m(0x24, version.Minecraft_1_19_4),
		m(0x25, version.Minecraft_1_20_2),
	)
	Play.ClientBound.Register(&p.UpdateSectionBlocks{},
		m(0x22, version.Minecraft_1_7_2),
		m(0x10, version.Minecraft_1_9),
		m(0x0F, version.Minecraft_1_13),
		m(0x10, version.Minecraft_1_15),
		m(0x0F, version.Minecraft_1_16),
		m(0x3B, version.Minecraft_1_16_2),
		m(0x3F, version.Minecraft_1_17),
		m(0x3D, version.Minecraft_1_19),
		m(0x40, version.Minecraft_1_19_1),
		m(0x3F, version.Minecraft_1_19_3),
		m(0x43, version.Minecraft_1_19_4),
		m(0x45, version.Minecraft_1_20_2),
	)
}
