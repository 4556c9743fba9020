// Package ws implements the persistent WebSocket and FlashSocket
// transports: a single bidirectional socket bound to a VirtualConnection for
// the lifetime of the connection.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

// Flavor distinguishes WebSocket from FlashSocket. Serve handles both the
// same way and writes no flavor-specific preamble; the flavor only selects
// the protocol label on the transport metrics.
type Flavor int

const (
	WebSocket Flavor = iota
	FlashSocket
)

func (f Flavor) protocolLabel() string {
	if f == FlashSocket {
		return "flashsocket"
	}
	return "websocket"
}

// noSessionControlFrame is the literal sentinel the first frame on a fresh
// WebSocket carries. It has no semantic meaning beyond keeping clients that
// drop the socket unless the server writes first.
const noSessionControlFrame = "no_session"

// Handler serves the WebSocket/FlashSocket transport.
type Handler struct {
	Upgrader          websocket.Upgrader
	Flavor            Flavor
	HeartbeatInterval time.Duration
}

// NewHandler returns a Handler with permissive defaults suitable for
// wrapping behind the gateway's own origin-checking middleware.
func NewHandler(flavor Flavor, heartbeatInterval time.Duration) *Handler {
	return &Handler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		Flavor:            flavor,
		HeartbeatInterval: heartbeatInterval,
	}
}

// transport is the vconn.Transport handle backing one upgraded socket.
type transport struct {
	conn    *websocket.Conn
	vc      *vconn.VirtualConnection
	writeMu sync.Mutex
}

func (t *transport) Push() {
	msgs := t.vc.DequeueAll()
	if len(msgs) == 0 {
		return
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	for _, m := range msgs {
		b, err := wire.Encode(m)
		if err != nil {
			log.WithComponent("transport.ws").Error().Err(err).Msg("encode failed, dropping message")
			continue
		}
		if err := t.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

// Serve upgrades the request to a WebSocket, attaches it to vc, and runs
// the read loop until the socket closes or an error occurs. It blocks for
// the lifetime of the connection; the caller should treat the session as
// over once Serve returns.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) error {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	t := &transport{conn: conn, vc: vc}
	if err := vc.Attach(t); err != nil {
		if err == vconn.ErrDoubleBind {
			metrics.TransportDoubleBindTotal.WithLabelValues(h.Flavor.protocolLabel()).Inc()
		}
		return err
	}
	metrics.TransportAttachTotal.WithLabelValues(h.Flavor.protocolLabel()).Inc()
	defer func() {
		vc.Detach(t)
		metrics.TransportDetachTotal.WithLabelValues(h.Flavor.protocolLabel(), "connection_closed").Inc()
	}()

	vc.ResetHeartbeat()
	defer vc.StopHeartbeat()

	vc.Send(noSessionControlFrame)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := vc.RawMessage(data); err != nil {
			log.WithComponent("transport.ws").Warn().Err(err).
				Str(log.FieldSessionID, vc.SessionID()).
				Msg("malformed inbound frame, closing socket")
			break
		}
	}

	vc.Close()
	return nil
}
