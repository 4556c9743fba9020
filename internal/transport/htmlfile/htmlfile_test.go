package htmlfile

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sio6/gateway/internal/vconn"
)

func TestServeGETPadsPreambleAndStreamsScriptCalls(t *testing.T) {
	user := &vconn.BaseUserConnection{}
	vc := vconn.New("sess1", user, 0)

	h := NewHandler()
	w := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest("GET", "/socket.io/1/htmlfile/sess1", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		h.ServeGET(w, r, vc)
		close(done)
	}()

	require.Eventually(t, vc.Attached, time.Second, time.Millisecond)
	vc.Send("hi")

	require.Eventually(t, func() bool {
		return strings.Contains(w.Body.String(), "parent.s_")
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeGET did not return after context cancellation")
	}

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, strings.Repeat(" ", paddingBytes)))
	assert.Contains(t, body, `<script>parent.s_("~m~2~m~hi", document);</script>`)
}
