// Package xhrpolling implements the XHR long-polling transport: a GET that
// blocks for queued messages or a timeout, and a POST that feeds inbound
// messages without ever binding as the sink.
package xhrpolling

import (
	"io"
	"net/http"
	"time"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

const protocolLabel = "xhr-polling"

// DefaultTimeout is the default single-shot poll timeout.
const DefaultTimeout = 20 * time.Second

// Handler serves the XHR long-polling transport.
type Handler struct {
	Timeout time.Duration
}

// NewHandler returns a Handler using DefaultTimeout when timeout is zero.
func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{Timeout: timeout}
}

// pollTransport is the vconn.Transport handle for one GET request.
type pollTransport struct {
	notify chan struct{}
}

func newPollTransport() *pollTransport {
	return &pollTransport{notify: make(chan struct{}, 1)}
}

func (t *pollTransport) Push() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ServeGET binds as the sink. If messages are already queued they are
// written immediately; otherwise the request blocks until a message
// arrives or Timeout elapses, at which point an empty body is written so
// the client reissues. On client disconnect the request unbinds without
// writing.
func (h *Handler) ServeGET(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) {
	t := newPollTransport()
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
		metrics.TransportDetachTotal.WithLabelValues(protocolLabel, "request_end").Inc()
	}()

	if vc.HasPending() {
		h.flush(w, vc)
		return
	}

	select {
	case <-t.notify:
		h.flush(w, vc)
	case <-time.After(h.Timeout):
		w.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		log.WithComponent("transport.xhr-polling").Debug().
			Str(log.FieldSessionID, vc.SessionID()).
			Msg("client disconnected during poll")
	}
}

func (h *Handler) flush(w http.ResponseWriter, vc *vconn.VirtualConnection) {
	msgs := vc.DequeueAll()
	b, err := wire.EncodeSequence(msgs)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// ServePOST reads the "data" form field, decodes it, and hands each frame to
// the connection's RawMessage. A POST never attaches as the sink, so a
// concurrent GET stays bound. Responds "ok" on success.
func (h *Handler) ServePOST(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) {
	defer r.Body.Close()

	data, err := readPostedData(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := vc.RawMessage(data); err != nil {
		log.WithComponent("transport.xhr-polling").Warn().Err(err).
			Str(log.FieldSessionID, vc.SessionID()).
			Msg("malformed inbound frame")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func readPostedData(r *http.Request) ([]byte, error) {
	if err := r.ParseForm(); err == nil {
		if v := r.FormValue("data"); v != "" {
			return []byte(v), nil
		}
	}
	return io.ReadAll(r.Body)
}
