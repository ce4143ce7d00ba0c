package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

func ctxOf(v *proto.Version) *proto.PacketContext {
	return &proto.PacketContext{
		Direction: proto.ClientBound,
		Protocol:  v.Protocol,
	}
}

func TestKeepAliveEncodings(t *testing.T) {
	k := &KeepAlive{RandomID: 5}

	// 1.7 uses a plain int32.
	buf := new(bytes.Buffer)
	require.NoError(t, k.Encode(ctxOf(version.Minecraft_1_7_2), buf))
	assert.Equal(t, []byte{0, 0, 0, 5}, buf.Bytes())

	// 1.8 uses a varint.
	buf.Reset()
	require.NoError(t, k.Encode(ctxOf(version.Minecraft_1_8), buf))
	assert.Equal(t, []byte{5}, buf.Bytes())

	// 1.12.2 and above use an int64.
	buf.Reset()
	require.NoError(t, k.Encode(ctxOf(version.Minecraft_1_12_2), buf))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 5}, buf.Bytes())
}

func TestKeepAliveDecodeNegativeLegacyToken(t *testing.T) {
	// 1.7 tokens are 32 bit, the sign must survive the int64 widening.
	buf := new(bytes.Buffer)
	require.NoError(t, util.WriteInt32(buf, -7))

	k := new(KeepAlive)
	require.NoError(t, k.Decode(ctxOf(version.Minecraft_1_7_2), buf))
	assert.Equal(t, int64(-7), k.RandomID)
}

func TestPlayerPositionLegacyHeadY(t *testing.T) {
	p := &PlayerPosition{X: 8, Y: 262, Z: 8, OnGround: false}

	buf := new(bytes.Buffer)
	require.NoError(t, p.Encode(ctxOf(version.Minecraft_1_7_2), buf))
	assert.Equal(t, 33, buf.Len()) // x, feet y, head y, z, onGround

	buf.Reset()
	require.NoError(t, p.Encode(ctxOf(version.Minecraft_1_8), buf))
	assert.Equal(t, 25, buf.Len())
}

func TestHandshakeDecode(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, util.WriteVarInt(buf, 763))
	require.NoError(t, util.WriteString(buf, "mc.example.org"))
	require.NoError(t, util.WriteInt16(buf, 25565))
	require.NoError(t, util.WriteVarInt(buf, LoginHandshakeIntent))

	h := new(Handshake)
	require.NoError(t, h.Decode(nil, buf))
	assert.Equal(t, 763, h.ProtocolVersion)
	assert.Equal(t, "mc.example.org", h.ServerAddress)
	assert.Equal(t, 25565, h.Port)
	assert.Equal(t, LoginHandshakeIntent, h.NextStatus)
}

func TestPlayerPosAndLookTeleportID(t *testing.T) {
	p := &PlayerPosAndLook{X: 8, Y: 262, Z: 8, TeleportID: 1}

	// 1.8 has the flags byte but no teleport id yet.
	buf := new(bytes.Buffer)
	require.NoError(t, p.Encode(ctxOf(version.Minecraft_1_8), buf))
	assert.Equal(t, 33, buf.Len())

	buf.Reset()
	require.NoError(t, p.Encode(ctxOf(version.Minecraft_1_9), buf))
	assert.Equal(t, 34, buf.Len())

	// 1.17 to 1.19.3 carry a trailing dismount flag.
	buf.Reset()
	require.NoError(t, p.Encode(ctxOf(version.Minecraft_1_17), buf))
	assert.Equal(t, 35, buf.Len())
}

func TestNewDisconnectSerializesReason(t *testing.T) {
	d, err := NewDisconnect(nil, version.Minecraft_1_16.Protocol)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Reason)

	buf := new(bytes.Buffer)
	require.NoError(t, d.Encode(ctxOf(version.Minecraft_1_16), buf))

	back := new(Disconnect)
	require.NoError(t, back.Decode(ctxOf(version.Minecraft_1_16), buf))
	assert.Equal(t, d.Reason, back.Reason)
}
