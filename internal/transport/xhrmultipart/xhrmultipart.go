// Package xhrmultipart implements the XHR multipart streaming transport: a
// single long-lived GET that flushes each outbound message as its own MIME
// part.
package xhrmultipart

import (
	"fmt"
	"net/http"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

const boundary = "socketio"
const protocolLabel = "xhr-multipart"

// Handler serves the XHR multipart streaming transport. Heartbeat cadence
// is configured on the VirtualConnection itself, not here.
type Handler struct{}

// NewHandler returns a Handler.
func NewHandler() *Handler {
	return &Handler{}
}

type transport struct {
	notify  chan struct{}
	flusher http.Flusher
	w       http.ResponseWriter
}

func (t *transport) Push() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ServeGET binds, writes the opening boundary, starts heartbeats, and then
// blocks, flushing each subsequently-queued message as its own MIME part
// until the client disconnects.
func (h *Handler) ServeGET(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	t := &transport{notify: make(chan struct{}, 1), flusher: flusher, w: w}
	if err := vc.Attach(t); err != nil {
		if err == vconn.ErrDoubleBind {
			metrics.TransportDoubleBindTotal.WithLabelValues(protocolLabel).Inc()
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	metrics.TransportAttachTotal.WithLabelValues(protocolLabel).Inc()
	defer func() {
		vc.Detach(t)
		metrics.TransportDetachTotal.WithLabelValues(protocolLabel, "connection_closed").Inc()
	}()

	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace;boundary=%q", boundary))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "--%s\n", boundary)
	flusher.Flush()

	vc.ResetHeartbeat()
	defer vc.StopHeartbeat()

	for {
		select {
		case <-t.notify:
			h.flushPending(w, flusher, vc)
		case <-r.Context().Done():
			log.WithComponent("transport.xhr-multipart").Debug().
				Str(log.FieldSessionID, vc.SessionID()).
				Msg("client disconnected")
			return
		}
	}
}

func (h *Handler) flushPending(w http.ResponseWriter, flusher http.Flusher, vc *vconn.VirtualConnection) {
	for _, m := range vc.DequeueAll() {
		b, err := wire.Encode(m)
		if err != nil {
			continue
		}
		w.Write(b)
		fmt.Fprintf(w, "\n--%s\n", boundary)
		flusher.Flush()
		vc.DelayHeartbeat()
	}
}
