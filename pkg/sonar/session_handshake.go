package sonar

import (
	"sync"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"

	"github.com/Chumb3x/sonar/pkg/admission"
	"github.com/Chumb3x/sonar/pkg/netmc"
	"github.com/Chumb3x/sonar/pkg/proto"
	"github.com/Chumb3x/sonar/pkg/proto/packet"
	"github.com/Chumb3x/sonar/pkg/proto/state"
)

// handshakeSessionHandler handles the first packet of a new connection.
type handshakeSessionHandler struct {
	conn netmc.MinecraftConn
	s    *Sonar
	log  logr.Logger

	nopSessionHandler
}

func newHandshakeSessionHandler(conn netmc.MinecraftConn, s *Sonar) netmc.SessionHandler {
	return &handshakeSessionHandler{
		conn: conn,
		s:    s,
		log:  s.log.WithName("handshake").WithValues("remoteAddr", conn.RemoteAddr()),
	}
}

func (h *handshakeSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// Unknown packet received before handshake, close the connection.
		_ = netmc.CloseUnknown(h.conn)
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.Handshake:
		h.handleHandshake(p)
	default:
		_ = netmc.CloseUnknown(h.conn)
	}
}

func (h *handshakeSessionHandler) handleHandshake(p *packet.Handshake) {
	protocol := proto.Protocol(p.ProtocolVersion)
	h.conn.SetProtocol(protocol)

	switch p.NextStatus {
	case packet.StatusHandshakeIntent:
		h.conn.SetState(state.Status)
		h.conn.SetSessionHandler(newStatusSessionHandler(h.conn, h.s))
	case packet.LoginHandshakeIntent:
		h.conn.SetState(state.Login)
		h.handleLogin(protocol)
	default:
		_ = netmc.CloseUnknown(h.conn)
	}
}

// handleLogin runs the connection through the admission pipeline.
func (h *handshakeSessionHandler) handleLogin(protocol proto.Protocol) {
	conn, s := h.conn, h.s
	addr := conn.RemoteAddr()

	held := &heldPacket{}
	admit := func() {
		if netmc.Closed(conn) {
			// The connection went away while queued.
			s.pipeline.Release(addr, false)
			return
		}
		s.startVerification(conn, held)
	}
	reject := func() { s.disconnect(conn, s.msgs.tooManyPlayers) }

	d := s.pipeline.Check(addr, protocol, admit, reject)
	switch d {
	case admission.Admit, admission.Bypass:
		s.startVerification(conn, nil)
	case admission.Queued:
		// Hold the login packet until a queue poll promotes us.
		conn.SetSessionHandler(&queuedSessionHandler{conn: conn, s: s, held: held})
	default:
		if s.pipeline.ShouldLog() {
			h.log.V(1).Info("connection rejected", "decision", d.String())
		}
		s.disconnect(conn, s.rejectReason(d))
	}
}

// disconnect kicks the connection with a reason packet.
func (s *Sonar) disconnect(conn netmc.MinecraftConn, reason component.Component) {
	d, err := packet.NewDisconnect(reason, conn.Protocol())
	if err != nil {
		_ = conn.Close()
		return
	}
	_ = netmc.CloseWith(conn, d)
}

// heldPacket retains the login packet a client sent while its
// connection waited in the admission queue.
type heldPacket struct {
	mu sync.Mutex
	pc *proto.PacketContext
}

// queuedSessionHandler parks a connection that waits for a free
// verifying slot and retains its first login packet.
type queuedSessionHandler struct {
	conn netmc.MinecraftConn
	s    *Sonar
	held *heldPacket

	nopSessionHandler
}

func (h *queuedSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if _, ok := pc.Packet.(*packet.ServerLogin); !ok {
		return // drop anything else while queued
	}
	h.held.mu.Lock()
	if h.held.pc == nil {
		h.held.pc = pc
	}
	h.held.mu.Unlock()
}

func (h *queuedSessionHandler) Disconnected() {
	h.s.pipeline.Abandon(h.conn.RemoteAddr())
}

// nopSessionHandler implements the optional SessionHandler callbacks.
type nopSessionHandler struct{}

func (nopSessionHandler) Activated()    {}
func (nopSessionHandler) Deactivated()  {}
func (nopSessionHandler) Disconnected() {}
