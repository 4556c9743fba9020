// Package gateway ties the session store, virtual connections, and
// transports together behind an HTTP router implementing the Socket.IO 0.6
// endpoint shape.
package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sio6/gateway/internal/vconn"
	"github.com/sio6/gateway/internal/wire"
)

// Sentinel errors for the router's request-handling taxonomy. Each maps to
// a fixed HTTP status via StatusFor.
var (
	ErrSessionNotFound  = errors.New("gateway: session not found")
	ErrProtocolDisabled = errors.New("gateway: protocol disabled")
	ErrProtocolUnknown  = errors.New("gateway: protocol unknown")
	ErrMalformedRequest = errors.New("gateway: malformed request")
)

// ErrDoubleBind re-exports vconn's sentinel so callers matching gateway
// errors don't also need to import vconn.
var ErrDoubleBind = vconn.ErrDoubleBind

// wrap attaches context to a sentinel error while keeping it matchable with
// errors.Is.
func wrap(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// StatusFor maps a gateway or codec error to the HTTP status the router
// should respond with. Unrecognized errors map to 500.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, vconn.ErrDoubleBind), errors.Is(err, vconn.ErrClosed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrProtocolDisabled), errors.Is(err, ErrProtocolUnknown):
		return http.StatusForbidden
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	default:
		var codecErr *wire.CodecError
		if errors.As(err, &codecErr) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
