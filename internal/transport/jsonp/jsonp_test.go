package jsonp

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sio6/gateway/internal/vconn"
)

func TestServeGETFlushesAlreadyQueuedMessages(t *testing.T) {
	user := &vconn.BaseUserConnection{}
	vc := vconn.New("sess1", user, 0)
	vc.Send("hello")

	h := NewHandler(time.Second)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/jsonp-polling/sess1", nil)

	h.ServeGET(w, r, "0", vc)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/javascript; charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `io.JSONP[0]._("~m~5~m~hello");`, w.Body.String())
	assert.False(t, vc.Attached(), "GET unbinds after flushing")
}

func TestServeGETTimesOutWithEmptyPayload(t *testing.T) {
	user := &vconn.BaseUserConnection{}
	vc := vconn.New("sess1", user, 0)

	h := NewHandler(10 * time.Millisecond)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/jsonp-polling/sess1", nil)

	h.ServeGET(w, r, "3", vc)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, `io.JSONP[3]._("");`, w.Body.String())
}

func TestServeGETWakesOnSend(t *testing.T) {
	user := &vconn.BaseUserConnection{}
	vc := vconn.New("sess1", user, 0)

	h := NewHandler(2 * time.Second)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/socket.io/1/jsonp-polling/sess1", nil)

	done := make(chan struct{})
	go func() {
		h.ServeGET(w, r, "1", vc)
		close(done)
	}()

	require.Eventually(t, vc.Attached, time.Second, time.Millisecond)
	vc.Send("hi")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeGET did not return after Send")
	}
	assert.True(t, strings.Contains(w.Body.String(), "~m~2~m~hi"))
}

func TestServePOSTDeliversDataAndRespondsOK(t *testing.T) {
	var received any
	user := testUser{onMessage: func(m any) { received = m }}
	vc := vconn.New("sess1", user, 0)

	h := NewHandler(time.Second)
	w := httptest.NewRecorder()
	form := url.Values{"data": {"~m~5~m~hello"}}
	r := httptest.NewRequest("POST", "/socket.io/1/jsonp-polling/sess1", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.ServePOST(w, r, vc)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "hello", received)
}

func TestServePOSTDoesNotBindAsSink(t *testing.T) {
	user := &vconn.BaseUserConnection{}
	vc := vconn.New("sess1", user, 0)

	h := NewHandler(time.Second)
	w := httptest.NewRecorder()
	form := url.Values{"data": {"~m~3~m~abc"}}
	r := httptest.NewRequest("POST", "/socket.io/1/jsonp-polling/sess1", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.ServePOST(w, r, vc)
	assert.False(t, vc.Attached())
}

type testUser struct {
	vconn.BaseUserConnection
	onMessage func(m any)
}

func (u testUser) OnMessage(m any) {
	if u.onMessage != nil {
		u.onMessage(m)
	}
}
