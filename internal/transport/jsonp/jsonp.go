// Package jsonp implements the JSONP polling transport: the same
// long-polling GET/POST shape as xhrpolling, but the GET response is a
// JavaScript callback invocation rather than a raw wire frame.
package jsonp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

// DefaultTimeout is the default single-shot poll timeout, matching xhrpolling.
const DefaultTimeout = 20 * time.Second

const protocolLabel = "jsonp-polling"

// Handler serves the JSONP polling transport.
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

type pollTransport struct {
	notify chan struct{}
}

func (t *pollTransport) Push() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ServeGET binds as the sink and writes an "io.JSONP[<index>]._(<json>);"
// response once a message is queued or the timeout fires, identically to
// xhrpolling except for response framing.
func (h *Handler) ServeGET(w http.ResponseWriter, r *http.Request, index string, vc *vconn.VirtualConnection) {
	t := &pollTransport{notify: make(chan struct{}, 1)}
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
		h.flush(w, index, vc)
		return
	}

	select {
	case <-t.notify:
		h.flush(w, index, vc)
	case <-time.After(h.Timeout):
		h.writeCallback(w, index, "")
	case <-r.Context().Done():
		log.WithComponent("transport.jsonp").Debug().
			Str(log.FieldSessionID, vc.SessionID()).
			Msg("client disconnected during poll")
	}
}

func (h *Handler) flush(w http.ResponseWriter, index string, vc *vconn.VirtualConnection) {
	msgs := vc.DequeueAll()
	b, err := wire.EncodeSequence(msgs)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	h.writeCallback(w, index, string(b))
}

func (h *Handler) writeCallback(w http.ResponseWriter, index, payload string) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "io.JSONP[%s]._(%s);", index, encoded)
}

// ServePOST matches the xhrpolling variant: it never binds as the sink.
func (h *Handler) ServePOST(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) {
	defer r.Body.Close()

	data, err := readPostedData(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := vc.RawMessage(data); err != nil {
		log.WithComponent("transport.jsonp").Warn().Err(err).
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
