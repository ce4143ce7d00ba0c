package sonar

import (
	"bytes"
	"encoding/json"

	"github.com/go-logr/logr"

	"github.com/Chumb3x/sonar/pkg/netmc"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/version"
)

// statusSessionHandler answers server list pings.
type statusSessionHandler struct {
	conn netmc.MinecraftConn
	s    *Sonar
	log  logr.Logger

	receivedRequest bool

	nopSessionHandler
}

func newStatusSessionHandler(conn netmc.MinecraftConn, s *Sonar) netmc.SessionHandler {
	return &statusSessionHandler{
		conn: conn,
		s:    s,
		log:  s.log.WithName("status").WithValues("remoteAddr", conn.RemoteAddr()),
	}
}

func (h *statusSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		_ = netmc.CloseUnknown(h.conn)
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.StatusRequest:
		h.handleStatusRequest()
	case *packet.StatusPing:
		h.handleStatusPing(p)
	default:
		_ = netmc.CloseUnknown(h.conn)
	}
}

func (h *statusSessionHandler) handleStatusRequest() {
	if h.receivedRequest {
		// Client already got a response, cut it off.
		_ = h.conn.Close()
		return
	}
	h.receivedRequest = true

	if h.s.cfg.Status.ShowPingRequests {
		h.log.Info("ping request", "protocol", h.conn.Protocol())
	}

	status, err := h.s.statusJSON(h.conn.Protocol())
	if err != nil {
		h.log.V(1).Info("error building status response", "err", err)
		_ = h.conn.Close()
		return
	}
	_ = h.conn.WritePacket(&packet.StatusResponse{Status: status})
}

func (h *statusSessionHandler) handleStatusPing(p *packet.StatusPing) {
	// Echo the ping and close, the status sequence is complete.
	if err := h.conn.WritePacket(p); err == nil {
		_ = h.conn.Close()
	}
}

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type statusPlayers struct {
	Max    int           `json:"max"`
	Online int           `json:"online"`
	Sample []interface{} `json:"sample"`
}

type statusResponse struct {
	Version     statusVersion   `json:"version"`
	Players     statusPlayers   `json:"players"`
	Description json.RawMessage `json:"description"`
}

// statusJSON renders the server list entry for a pinging client.
func (s *Sonar) statusJSON(protocol proto.Protocol) (string, error) {
	name := version.SupportedVersionsString
	shown := int(version.MaximumVersion.Protocol)
	if v, ok := version.ProtocolToVersion[protocol]; ok {
		// A supported client sees its own version.
		name = v.LastName()
		shown = int(protocol)
	}

	buf := new(bytes.Buffer)
	if err := packet.JsonCodec(protocol).Marshal(buf, s.motd); err != nil {
		return "", err
	}

	b, err := json.Marshal(&statusResponse{
		Version: statusVersion{Name: name, Protocol: shown},
		Players: statusPlayers{
			Max:    s.cfg.Status.ShowMaxPlayers,
			Online: s.pipeline.Verifying(),
			Sample: []interface{}{},
		},
		Description: buf.Bytes(),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
