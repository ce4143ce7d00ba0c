package sonar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chumb3x/sonar/pkg/admission"
	"github.com/Chumb3x/sonar/pkg/event"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/util"
	"github.com/Chumb3x/sonar/pkg/proto/version"
	"github.com/Chumb3x/sonar/pkg/sonar/config"
	"github.com/Chumb3x/sonar/pkg/util/configutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(configutil.SetDefaultFunc(v.SetDefault))
	cfg := new(config.Config)
	require.NoError(t, v.Unmarshal(cfg))
	cfg.Bind = "127.0.0.1:0"
	cfg.Storage.VerifiedFile = "" // in memory
	return cfg
}

func TestStatusJSON(t *testing.T) {
	s, err := New(testConfig(t), logr.Discard())
	require.NoError(t, err)
	defer s.pipeline.Shutdown()
	defer s.blacklist.Stop()

	raw, err := s.statusJSON(version.Minecraft_1_20_2.Protocol)
	require.NoError(t, err)

	var resp statusResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	assert.Equal(t, int(version.Minecraft_1_20_2.Protocol), resp.Version.Protocol)
	assert.Equal(t, "1.20.2", resp.Version.Name)
	assert.Equal(t, 1, resp.Players.Max)
	assert.NotEmpty(t, resp.Description)

	// An unsupported client sees the supported range.
	raw, err = s.statusJSON(1)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	assert.Equal(t, int(version.MaximumVersion.Protocol), resp.Version.Protocol)
	assert.Equal(t, version.SupportedVersionsString, resp.Version.Name)
}

func TestRejectReasons(t *testing.T) {
	s, err := New(testConfig(t), logr.Discard())
	require.NoError(t, err)
	defer s.pipeline.Shutdown()
	defer s.blacklist.Stop()

	for _, d := range []admission.Decision{
		admission.RejectLockdown,
		admission.RejectInvalidProtocol,
		admission.RejectTooManyOnline,
		admission.RejectTooFastReconnect,
		admission.RejectBlacklisted,
		admission.RejectAlreadyVerifying,
		admission.RejectTooManyPlayers,
	} {
		assert.NotNil(t, s.rejectReason(d), d.String())
	}
}

// startGateway runs the gateway on a random port and returns its address.
func startGateway(t *testing.T, cfg *config.Config) net.Addr {
	t.Helper()
	s, err := New(cfg, logr.Discard())
	require.NoError(t, err)

	ready := make(chan net.Addr, 1)
	event.Subscribe(s.Event(), 0, func(e *event.ReadyEvent) { ready <- e.Addr })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("gateway did not shut down")
		}
	})

	select {
	case addr := <-ready:
		return addr
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not become ready")
		return nil
	}
}

// writeFrame writes one uncompressed packet frame.
func writeFrame(t *testing.T, w io.Writer, id int, payload []byte) {
	t.Helper()
	body := new(bytes.Buffer)
	require.NoError(t, util.WriteVarInt(body, id))
	body.Write(payload)
	frame := new(bytes.Buffer)
	require.NoError(t, util.WriteVarInt(frame, body.Len()))
	frame.Write(body.Bytes())
	_, err := w.Write(frame.Bytes())
	require.NoError(t, err)
}

// readFrame reads one uncompressed packet frame and returns the
// packet id and its data.
func readFrame(t *testing.T, r *bufio.Reader) (int, *bytes.Buffer) {
	t.Helper()
	length, err := util.ReadVarInt(r)
	require.NoError(t, err)
	data := make([]byte, length)
	_, err = io.ReadFull(r, data)
	require.NoError(t, err)
	buf := bytes.NewBuffer(data)
	id, err := util.ReadVarInt(buf)
	require.NoError(t, err)
	return id, buf
}

func encodeHandshake(t *testing.T, protocol, nextStatus int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, util.WriteVarInt(buf, protocol))
	require.NoError(t, util.WriteString(buf, "localhost"))
	require.NoError(t, util.WriteInt16(buf, 25565))
	require.NoError(t, util.WriteVarInt(buf, nextStatus))
	return buf.Bytes()
}

func TestGatewayStatusSequence(t *testing.T) {
	addr := startGateway(t, testConfig(t))

	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	rd := bufio.NewReader(conn)

	proto := int(version.Minecraft_1_20_2.Protocol)
	writeFrame(t, conn, 0x00, encodeHandshake(t, proto, packet.StatusHandshakeIntent))
	writeFrame(t, conn, 0x00, nil) // status request

	id, body := readFrame(t, rd)
	assert.Equal(t, 0x00, id)
	status, err := util.ReadString(body)
	require.NoError(t, err)

	var resp statusResponse
	require.NoError(t, json.Unmarshal([]byte(status), &resp))
	assert.Equal(t, proto, resp.Version.Protocol)

	// Ping is echoed back.
	ping := new(bytes.Buffer)
	require.NoError(t, util.WriteInt64(ping, 42))
	writeFrame(t, conn, 0x01, ping.Bytes())
	id, body = readFrame(t, rd)
	assert.Equal(t, 0x01, id)
	echoed, err := util.ReadInt64(body)
	require.NoError(t, err)
	assert.Equal(t, int64(42), echoed)
}

func TestGatewayLockdownRejectsLogin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockdown = true
	addr := startGateway(t, cfg)

	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	rd := bufio.NewReader(conn)

	proto := int(version.Minecraft_1_20_2.Protocol)
	// The gateway decides at the handshake already, no login
	// packet is needed to receive the rejection.
	writeFrame(t, conn, 0x00, encodeHandshake(t, proto, packet.LoginHandshakeIntent))

	// The login state disconnect carries the lockdown reason.
	id, body := readFrame(t, rd)
	assert.Equal(t, 0x00, id)
	reason, err := util.ReadString(body)
	require.NoError(t, err)
	assert.Contains(t, reason, "lockdown")
}
