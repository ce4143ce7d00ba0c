package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/state"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

func buildFrame(t *testing.T, packetID int, data func(*bytes.Buffer)) []byte {
	t.Helper()
	var payload bytes.Buffer
	require.NoError(t, util.WriteVarInt(&payload, packetID))
	data(&payload)

	var frame bytes.Buffer
	require.NoError(t, util.WriteVarInt(&frame, payload.Len()))
	frame.Write(payload.Bytes())
	return frame.Bytes()
}

func TestDecoder_Handshake(t *testing.T) {
	raw := buildFrame(t, 0x00, func(buf *bytes.Buffer) {
		require.NoError(t, util.WriteVarInt(buf, int(version.Minecraft_1_20_2.Protocol)))
		require.NoError(t, util.WriteString(buf, "play.example.com"))
		require.NoError(t, util.WriteInt16(buf, 25565))
		require.NoError(t, util.WriteVarInt(buf, packet.LoginHandshakeIntent))
	})

	dec := NewDecoder(bytes.NewReader(raw), proto.ServerBound, logr.Discard())

	ctx, err := dec.Decode()
	require.NoError(t, err)
	require.True(t, ctx.KnownPacket())

	h, ok := ctx.Packet.(*packet.Handshake)
	require.True(t, ok, "expected *packet.Handshake, got %T", ctx.Packet)
	assert.Equal(t, int(version.Minecraft_1_20_2.Protocol), h.ProtocolVersion)
	assert.Equal(t, "play.example.com", h.ServerAddress)
	assert.Equal(t, 25565, h.Port)
	assert.Equal(t, packet.LoginHandshakeIntent, h.NextStatus)
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	var frame bytes.Buffer
	require.NoError(t, util.WriteVarInt(&frame, MaxFrameLen+1))

	dec := NewDecoder(bytes.NewReader(frame.Bytes()), proto.ServerBound, logr.Discard())
	_, err := dec.Decode()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameTooLarge), "got: %v", err)
}

func TestDecoder_UnknownPacketID(t *testing.T) {
	raw := buildFrame(t, 0x7A, func(buf *bytes.Buffer) {
		buf.Write([]byte{1, 2, 3})
	})

	dec := NewDecoder(bytes.NewReader(raw), proto.ServerBound, logr.Discard())
	dec.SetState(state.Play)
	dec.SetProtocol(version.Minecraft_1_20_2.Protocol)

	ctx, err := dec.Decode()
	require.NoError(t, err)
	assert.False(t, ctx.KnownPacket())
	assert.Equal(t, proto.PacketID(0x7A), ctx.PacketID)
}

func TestDecoder_LeftBytes(t *testing.T) {
	// A login start with trailing garbage must surface ErrDecoderLeftBytes
	// while still returning the decoded packet.
	raw := buildFrame(t, 0x00, func(buf *bytes.Buffer) {
		require.NoError(t, util.WriteString(buf, "Notch"))
		buf.Write([]byte{0xde, 0xad})
	})

	dec := NewDecoder(bytes.NewReader(raw), proto.ServerBound, logr.Discard())
	dec.SetState(state.Login)
	dec.SetProtocol(version.Minecraft_1_8.Protocol)

	ctx, err := dec.Decode()
	require.Error(t, err)
	assert.True(t, errors.Is(err, proto.ErrDecoderLeftBytes), "got: %v", err)
	require.NotNil(t, ctx)
	require.IsType(t, &packet.ServerLogin{}, ctx.Packet)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "uncompressed"
		if compressed {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			var wire bytes.Buffer
			enc := NewEncoder(&wire, proto.ServerBound, logr.Discard())
			enc.SetState(state.Login)
			enc.SetProtocol(version.Minecraft_1_18.Protocol)

			dec := NewDecoder(&wire, proto.ServerBound, logr.Discard())
			dec.SetState(state.Login)
			dec.SetProtocol(version.Minecraft_1_18.Protocol)

			if compressed {
				require.NoError(t, enc.SetCompression(2, 6))
				dec.SetCompressionThreshold(2)
			}

			_, err := enc.WritePacket(&packet.ServerLogin{Username: "Notch"})
			require.NoError(t, err)

			ctx, err := dec.Decode()
			require.NoError(t, err)
			require.True(t, ctx.KnownPacket())
			login, ok := ctx.Packet.(*packet.ServerLogin)
			require.True(t, ok)
			assert.Equal(t, "Notch", login.Username)
		})
	}
}

func TestEncoder_UnregisteredPacket(t *testing.T) {
	var wire bytes.Buffer
	enc := NewEncoder(&wire, proto.ServerBound, logr.Discard())
	enc.SetState(state.Login)

	// JoinGame is a play state packet and must not encode in login.
	_, err := enc.WritePacket(&packet.JoinGame{})
	require.Error(t, err)
}
