package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/proto"
	p "github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

func TestLoginRegistry(t *testing.T) {
	for _, v := range version.SupportedVersions {
		r := Login.ServerBound.ProtocolRegistry(v.Protocol)
		require.NotNil(t, r, v.String())

		id, ok := r.PacketID(&p.ServerLogin{})
		require.True(t, ok, v.String())
		assert.Equal(t, proto.PacketID(0x00), id)

		_, ok = r.PacketID(&p.LoginAcknowledged{})
		assert.Equal(t, v.Protocol.GreaterEqual(version.Minecraft_1_20_2), ok, v.String())
	}
}

func TestPlayKeepAliveIDs(t *testing.T) {
	for _, tt := range []struct {
		protocol *proto.Version
		want     proto.PacketID
	}{
		{version.Minecraft_1_7_2, 0x00},
		{version.Minecraft_1_8, 0x00},
		{version.Minecraft_1_12_2, 0x0B},
		{version.Minecraft_1_19_4, 0x12},
		{version.Minecraft_1_20_2, 0x14},
	} {
		r := Play.ServerBound.ProtocolRegistry(tt.protocol.Protocol)
		require.NotNil(t, r, tt.protocol.String())
		id, ok := r.PacketID(&p.KeepAlive{})
		require.True(t, ok, tt.protocol.String())
		assert.Equal(t, tt.want, id, tt.protocol.String())
	}
}

func TestPlayHasNoVersionFallback(t *testing.T) {
	// The play state must not misinterpret packet ids of protocol
	// versions it does not know.
	assert.False(t, Play.ServerBound.Fallback)
	assert.False(t, Play.ClientBound.Fallback)
	assert.Nil(t, Play.ServerBound.ProtocolRegistry(proto.Protocol(1)))

	// The handshake state falls back so unsupported clients can
	// still be told apart and rejected after their first packet.
	assert.NotNil(t, Handshake.ServerBound.ProtocolRegistry(proto.Protocol(1)))
}

func TestCreatePacketRoundTrip(t *testing.T) {
	r := Play.ClientBound.ProtocolRegistry(version.Minecraft_1_20_2.Protocol)
	require.NotNil(t, r)

	id, ok := r.PacketID(&p.JoinGame{})
	require.True(t, ok)
	created := r.CreatePacket(id)
	assert.IsType(t, &p.JoinGame{}, created)

	assert.Nil(t, r.CreatePacket(proto.PacketID(0x7F)))
}

func TestConfigStateSince1202(t *testing.T) {
	r := Config.ClientBound.ProtocolRegistry(version.Minecraft_1_20_2.Protocol)
	require.NotNil(t, r)
	_, ok := r.PacketID(&p.Disconnect{})
	assert.True(t, ok)

	// Config packets are unmapped for every older protocol version.
	older := Config.ClientBound.ProtocolRegistry(version.Minecraft_1_20.Protocol)
	require.NotNil(t, older)
	_, ok = older.PacketID(&p.Disconnect{})
	assert.False(t, ok)
}
