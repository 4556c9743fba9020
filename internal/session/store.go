// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"container/heap"
	"sync"
	"time"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/metrics"
)

// Store is the id→session map plus its expiry min-heap, safe for concurrent
// use. The heap and the map are kept consistent per the shared-resource
// policy: an id never in the map is never the live heap root, and a heap
// pop that finds no matching map entry is a no-op.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	queue    sessionHeap
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Create allocates a fresh id, builds a Session with the given expiry and
// owner, inserts it into the store, and — if expiry is positive — pushes it
// onto the expiry heap.
func (st *Store) Create(expiry time.Duration, owner Owner) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	for _, exists := st.sessions[id]; exists; _, exists = st.sessions[id] {
		id, err = newID()
		if err != nil {
			return nil, err
		}
	}

	s := &Session{id: id, owner: owner, expiry: expiry, heapIndex: -1}
	if expiry > 0 {
		s.expiryDate = time.Now().Add(expiry)
		heap.Push(&st.queue, s)
	}
	st.sessions[id] = s
	metrics.SessionsCreatedTotal.Inc()
	metrics.SessionsActive.Inc()
	return s, nil
}

// Get looks up a session by id. If promote is true and the session has a
// configured expiry, its reschedule deadline is pushed to now+expiry.
func (st *Store) Get(id string, promote bool) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()

	if ok && promote {
		s.Promote()
	}
	return s, ok
}

// Remove unlinks the session from the map, marks it forcibly deleted so any
// later heap visit discards it, and invokes its owner's OnDelete(true).
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return false
	}
	delete(st.sessions, id)
	st.mu.Unlock()

	metrics.SessionsActive.Dec()
	metrics.SessionsClosedTotal.WithLabelValues("explicit").Inc()

	s.setPromotedDeadline(negativeInfinity)

	if s.owner != nil {
		s.owner.OnDelete(true)
	}
	return true
}

// Expire runs one sweep pass against now: while the heap root is due
// (unpromoted and past its expiry date, or a pending promotion already
// elapsed), pop it. A promotion still in the future reschedules the
// session. Otherwise the owner's OnDelete(false) runs, which may request a
// last-chance reprieve by calling Session.Promote before returning; absent a
// reprieve, the session is deleted from the map.
func (st *Store) Expire(now time.Time) {
	for {
		st.mu.Lock()
		if st.queue.Len() == 0 {
			st.mu.Unlock()
			return
		}

		top := st.queue[0]
		promoted := top.promotedDeadline()
		if promoted.IsZero() && top.expiryDate.After(now) {
			st.mu.Unlock()
			return
		}

		heap.Pop(&st.queue)

		current, present := st.sessions[top.id]
		if !present || current != top {
			// Stale heap entry for an id already removed elsewhere: no-op.
			st.mu.Unlock()
			continue
		}

		if !promoted.IsZero() && promoted.After(now) {
			top.expiryDate = promoted
			top.setPromotedDeadline(time.Time{})
			heap.Push(&st.queue, top)
			st.mu.Unlock()
			continue
		}
		st.mu.Unlock()

		if top.owner != nil {
			top.owner.OnDelete(false)
		}

		reprieve := top.promotedDeadline()
		st.mu.Lock()
		if !reprieve.IsZero() && reprieve.After(now) {
			top.expiryDate = reprieve
			top.setPromotedDeadline(time.Time{})
			heap.Push(&st.queue, top)
			st.mu.Unlock()
			continue
		}
		delete(st.sessions, top.id)
		st.mu.Unlock()

		metrics.SessionsActive.Dec()
		metrics.SessionsExpiredTotal.Inc()

		log.WithComponent("session").Debug().
			Str(log.FieldSessionID, top.id).
			Msg("session expired")
	}
}

// Len reports the number of live sessions in the store.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
