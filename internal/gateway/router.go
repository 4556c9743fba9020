// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/session"
	"github.com/sio6/gateway/internal/telemetry"
	"github.com/sio6/gateway/internal/transport/htmlfile"
	"github.com/sio6/gateway/internal/transport/jsonp"
	"github.com/sio6/gateway/internal/transport/ws"
	"github.com/sio6/gateway/internal/transport/xhrmultipart"
	"github.com/sio6/gateway/internal/transport/xhrpolling"
	"github.com/sio6/gateway/internal/vconn"
)

// Protocol names as they appear on the wire, matching the configured
// enabled-protocols set.
const (
	ProtocolWebSocket    = "websocket"
	ProtocolFlashSocket  = "flashsocket"
	ProtocolXHRPolling   = "xhr-polling"
	ProtocolXHRMultipart = "xhr-multipart"
	ProtocolHTMLFile     = "htmlfile"
	ProtocolJSONP        = "jsonp-polling"
)

// ConnectionFactory builds the application-level hook surface for a new
// session. Called once per handshake, before the session is inserted into
// the store.
type ConnectionFactory func() vconn.UserConnection

// Config configures a Router's session lifecycle and per-protocol timeouts.
type Config struct {
	SessionExpiry     time.Duration
	HeartbeatInterval time.Duration
	XHRPollingTimeout time.Duration
	EnabledProtocols  map[string]bool
}

// Router parses the Socket.IO 0.6 endpoint shape, resolves or creates the
// addressed session, and dispatches to the matching transport.
type Router struct {
	cfg   Config
	store *session.Store
	newUC ConnectionFactory

	ws           *ws.Handler
	flashSocket  *ws.Handler
	xhrPolling   *xhrpolling.Handler
	xhrMultipart *xhrmultipart.Handler
	htmlFile     *htmlfile.Handler
	jsonp        *jsonp.Handler
}

// NewRouter builds a Router backed by store, minting new UserConnections
// via newUC.
func NewRouter(store *session.Store, newUC ConnectionFactory, cfg Config) *Router {
	return &Router{
		cfg:          cfg,
		store:        store,
		newUC:        newUC,
		ws:           ws.NewHandler(ws.WebSocket, cfg.HeartbeatInterval),
		flashSocket:  ws.NewHandler(ws.FlashSocket, cfg.HeartbeatInterval),
		xhrPolling:   xhrpolling.NewHandler(cfg.XHRPollingTimeout),
		xhrMultipart: xhrmultipart.NewHandler(),
		htmlFile:     htmlfile.NewHandler(),
		jsonp:        jsonp.NewHandler(cfg.XHRPollingTimeout),
	}
}

// Handler returns an http.HandlerFunc suitable for mounting at a chi
// wildcard route (e.g. "/socket.io/*"); it reads the matched remainder from
// chi's "*" URL param and dispatches via ServeHTTP.
func (rt *Router) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt.ServeHTTP(w, r, chi.URLParam(r, "*"))
	}
}

// ServeHTTP parses `<protocol>/<session_id>/<protocol_init_or_xhr_path>` from
// the wildcard remainder chi leaves at the `*` URL param, resolves the
// addressed session, and dispatches to the matching transport. The jsonp
// callback index is read from the `i` query parameter.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request, rest string) {
	segments := splitNonEmpty(rest, "/")
	if len(segments) == 0 {
		http.Error(w, ErrMalformedRequest.Error(), StatusFor(ErrMalformedRequest))
		return
	}

	protocol := segments[0]
	sessionID := ""
	if len(segments) > 1 {
		sessionID = segments[1]
	}

	if rt.cfg.EnabledProtocols != nil && !rt.cfg.EnabledProtocols[protocol] {
		err := wrap(ErrProtocolDisabled, protocol)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	switch protocol {
	case ProtocolWebSocket, ProtocolFlashSocket, ProtocolXHRPolling, ProtocolXHRMultipart, ProtocolHTMLFile, ProtocolJSONP:
	default:
		err := wrap(ErrProtocolUnknown, protocol)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	vc, err := rt.resolve(sessionID)
	if err != nil {
		trace.SpanFromContext(r.Context()).SetAttributes(telemetry.ErrorAttributes(err, "session_resolve")...)
		http.Error(w, err.Error(), StatusFor(err))
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.SessionAttributes(protocol, vc.SessionID())...)

	log.WithComponent("gateway.router").Debug().
		Str(log.FieldProtocol, protocol).
		Str(log.FieldSessionID, vc.SessionID()).
		Msg("dispatching request")

	switch protocol {
	case ProtocolWebSocket, ProtocolFlashSocket:
		h := rt.ws
		if protocol == ProtocolFlashSocket {
			h = rt.flashSocket
		}
		if err := h.Serve(w, r, vc); err != nil {
			// The upgrade either never completed (Upgrade already wrote its
			// own HTTP error response) or completed and then failed after
			// the connection was hijacked, in which case there is no HTTP
			// response left to write.
			log.WithComponent("gateway.router").Debug().Err(err).
				Str(log.FieldSessionID, vc.SessionID()).
				Msg("websocket transport ended with error")
		}
	case ProtocolXHRPolling:
		rt.dispatchMethod(w, r, vc, rt.xhrPolling.ServeGET, rt.xhrPolling.ServePOST)
	case ProtocolXHRMultipart:
		rt.dispatchMethod(w, r, vc, rt.xhrMultipart.ServeGET, nil)
	case ProtocolHTMLFile:
		rt.dispatchMethod(w, r, vc, rt.htmlFile.ServeGET, nil)
	case ProtocolJSONP:
		index := r.URL.Query().Get("i")
		if index == "" {
			index = "0"
		}
		switch r.Method {
		case http.MethodGet:
			rt.jsonp.ServeGET(w, r, index, vc)
		case http.MethodPost:
			rt.jsonp.ServePOST(w, r, vc)
		default:
			http.Error(w, ErrMalformedRequest.Error(), StatusFor(ErrMalformedRequest))
		}
	}
}

type pollHandler func(http.ResponseWriter, *http.Request, *vconn.VirtualConnection)

func (rt *Router) dispatchMethod(w http.ResponseWriter, r *http.Request, vc *vconn.VirtualConnection, get, post pollHandler) {
	switch r.Method {
	case http.MethodGet:
		get(w, r, vc)
	case http.MethodPost:
		if post == nil {
			http.Error(w, ErrMalformedRequest.Error(), StatusFor(ErrMalformedRequest))
			return
		}
		post(w, r, vc)
	default:
		http.Error(w, ErrMalformedRequest.Error(), StatusFor(ErrMalformedRequest))
	}
}

// resolve looks up an existing session by id, or creates a fresh one when
// sessionID is empty. A supplied id that is missing or whose connection has
// already closed is reported as ErrSessionNotFound.
func (rt *Router) resolve(sessionID string) (*vconn.VirtualConnection, error) {
	if sessionID == "" {
		return rt.create()
	}

	sess, ok := rt.store.Get(sessionID, true)
	if !ok {
		return nil, wrap(ErrSessionNotFound, sessionID)
	}
	vc, ok := sess.Owner().(*vconn.VirtualConnection)
	if !ok || vc.Closed() {
		return nil, wrap(ErrSessionNotFound, sessionID)
	}
	return vc, nil
}

func (rt *Router) create() (*vconn.VirtualConnection, error) {
	vc := vconn.New("", rt.newUC(), rt.cfg.HeartbeatInterval)
	sess, err := rt.store.Create(rt.cfg.SessionExpiry, vc)
	if err != nil {
		return nil, err
	}
	vc.SetSessionID(sess.ID())
	vc.BindSession(sess)
	vc.Send(sess.ID())
	return vc, nil
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
