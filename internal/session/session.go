// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the sliding-window session store: a stable
// per-connection identifier, an outbound message queue owner back-reference,
// and a min-heap-backed idle-expiry sweep.
package session

import (
	"sync"
	"time"
)

// Owner is the back-reference a Session holds to the object that owns
// application state for it (the virtual connection). OnDelete is invoked
// by Remove (forced=true) and by every expiry sweep that finds the session
// due (forced=false), so a reprieved session gets OnDelete(false) again on
// a later sweep; in the sweep case the owner may call Session.Promote
// before OnDelete returns to request a last-chance reprieve (used when a
// long-poll transport is currently attached).
type Owner interface {
	OnDelete(forced bool)
}

// Session is a single entry in the store: a stable id, an optional idle
// expiry, and the heap bookkeeping fields the sweep needs. The promoted
// deadline has its own mutex because Owner.OnDelete may call Promote from
// outside the Store's lock (the sweep releases it for the duration of the
// callback to avoid a self-deadlock on reentrant store access).
type Session struct {
	id    string
	owner Owner

	expiry     time.Duration
	expiryDate time.Time

	promoMu  sync.Mutex
	promoted time.Time

	heapIndex int
}

// ID returns the session's stable 32-character hex identifier.
func (s *Session) ID() string { return s.id }

// Expiry returns the configured idle-expiry duration (zero if unset).
func (s *Session) Expiry() time.Duration { return s.expiry }

// Owner returns the session's owner back-reference.
func (s *Session) Owner() Owner { return s.owner }

// Promote pushes the session's reschedule deadline to now+expiry. A no-op
// when the session has no configured expiry. Safe to call from an
// Owner.OnDelete callback to request a reprieve.
func (s *Session) Promote() {
	if s.expiry <= 0 {
		return
	}
	s.promoMu.Lock()
	s.promoted = time.Now().Add(s.expiry)
	s.promoMu.Unlock()
}

func (s *Session) promotedDeadline() time.Time {
	s.promoMu.Lock()
	defer s.promoMu.Unlock()
	return s.promoted
}

func (s *Session) setPromotedDeadline(t time.Time) {
	s.promoMu.Lock()
	s.promoted = t
	s.promoMu.Unlock()
}

// negativeInfinity is a sentinel deadline that is never After(now) for any
// now the sweep will ever observe, marking a session forcibly removed.
var negativeInfinity = time.Unix(0, 0)
