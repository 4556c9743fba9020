package gateway

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sio6/gateway/internal/session"
	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

type echoUser struct {
	vconn.BaseUserConnection
	vc *vconn.VirtualConnection
}

func (u *echoUser) BindVirtualConnection(vc *vconn.VirtualConnection) {
	u.vc = vc
}

func (u *echoUser) OnMessage(m any) {
	u.vc.Send(m)
}

func newTestRouter() *Router {
	store := session.NewStore()
	cfg := Config{
		SessionExpiry:     time.Minute,
		HeartbeatInterval: 0,
		XHRPollingTimeout: 50 * time.Millisecond,
		EnabledProtocols: map[string]bool{
			ProtocolXHRPolling:   true,
			ProtocolXHRMultipart: true,
			ProtocolHTMLFile:     true,
			ProtocolJSONP:        true,
			ProtocolWebSocket:    true,
		},
	}
	return NewRouter(store, func() vconn.UserConnection {
		return &echoUser{}
	}, cfg)
}

func TestServeHTTPCreatesSessionWhenIDMissing(t *testing.T) {
	rt := newTestRouter()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling", nil)

	rt.ServeHTTP(w, r, "xhr-polling")

	assert.Equal(t, 200, w.Code)

	// A fresh session sends its id as the first Text frame so the client
	// can address subsequent requests to it.
	frames, err := wire.Decode(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, wire.Text, frames[0].Kind)
	assert.NotEmpty(t, frames[0].Value)
}

func TestServeHTTPUnknownSessionIDReturns401(t *testing.T) {
	rt := newTestRouter()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling/deadbeef", nil)

	rt.ServeHTTP(w, r, "xhr-polling/deadbeef")

	assert.Equal(t, 401, w.Code)
}

func TestServeHTTPDisabledProtocolReturns403(t *testing.T) {
	rt := newTestRouter()
	rt.cfg.EnabledProtocols = map[string]bool{ProtocolXHRPolling: false}
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/xhr-polling", nil)

	rt.ServeHTTP(w, r, "xhr-polling")

	assert.Equal(t, 403, w.Code)
}

func TestServeHTTPUnknownProtocolReturns403(t *testing.T) {
	rt := newTestRouter()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/carrier-pigeon", nil)

	rt.ServeHTTP(w, r, "carrier-pigeon")

	assert.Equal(t, 403, w.Code)
}

func TestServeHTTPRoundTripsThroughSameSession(t *testing.T) {
	rt := newTestRouter()

	vc, err := rt.resolve("")
	require.NoError(t, err)
	sessionID := vc.SessionID()

	// resolve("") already enqueued the fresh session's id; drain it first
	// so the round trip below observes only the echoed message.
	require.Len(t, vc.DequeueAll(), 1)

	form := url.Values{"data": {"~m~5~m~hello"}}
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/socket.io/1/xhr-polling/"+sessionID, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rt.ServeHTTP(w, r, "xhr-polling/"+sessionID)
	assert.Equal(t, "ok", w.Body.String())

	// The echoUser hook sent the decoded message straight back onto the
	// same VirtualConnection's queue; a subsequent GET should flush it.
	wGet := httptest.NewRecorder()
	rGet := httptest.NewRequest("GET", "/socket.io/1/xhr-polling/"+sessionID, nil)
	rt.ServeHTTP(wGet, rGet, "xhr-polling/"+sessionID)
	assert.Equal(t, "~m~5~m~hello", wGet.Body.String())
}
