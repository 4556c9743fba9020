// Package htmlfile implements the HtmlFile streaming transport: the same
// long-lived GET shape as xhrmultipart, but frames messages as inline
// <script> calls and pads the initial response to defeat IE's response
// buffering.
package htmlfile

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

const protocolLabel = "htmlfile"

// paddingBytes is the amount of leading whitespace written before the first
// script tag; IE does not start rendering a streamed document until it has
// received more than this many bytes.
const paddingBytes = 244

// Handler serves the HtmlFile streaming transport.
type Handler struct{}

// NewHandler returns a Handler.
func NewHandler() *Handler {
	return &Handler{}
}

type transport struct {
	notify chan struct{}
}

func (t *transport) Push() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ServeGET binds, writes the padded preamble, starts heartbeats, and then
// blocks, flushing each subsequently-queued message as a <script> call
// until the client disconnects.
func (h *Handler) ServeGET(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	t := &transport{notify: make(chan struct{}, 1)}
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

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, strings.Repeat(" ", paddingBytes))
	fmt.Fprint(w, "<html><body>")
	flusher.Flush()

	vc.ResetHeartbeat()
	defer vc.StopHeartbeat()

	for {
		select {
		case <-t.notify:
			h.flushPending(w, flusher, vc)
		case <-r.Context().Done():
			log.WithComponent("transport.htmlfile").Debug().
				Str(log.FieldSessionID, vc.SessionID()).
				Msg("client disconnected")
			return
		}
	}
}

func (h *Handler) flushPending(w http.ResponseWriter, flusher http.Flusher, vc *vconn.VirtualConnection) {
	for _, m := range vc.DequeueAll() {
		encoded, err := wire.Encode(m)
		if err != nil {
			continue
		}
		arg, err := json.Marshal(string(encoded))
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "<script>parent.s_(%s, document);</script>", arg)
		flusher.Flush()
		vc.DelayHeartbeat()
	}
}
