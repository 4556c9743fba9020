// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package vconn implements the VirtualConnection: the per-session message
// queue, heartbeat timer, and transport-attachment state that every
// transport adapts to, plus the UserConnection hook surface application
// code implements against.
package vconn

import (
	"sync"
	"time"

	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/session"
	"github.com/sio6/gateway/internal/timer"
	"github.com/sio6/gateway/internal/wire"
)

// UserConnection is the hook surface a caller implements to receive
// lifecycle and message events. OnMessage is required; OnOpen and OnClose
// default to no-ops via BaseUserConnection.
type UserConnection interface {
	OnOpen(args ...any)
	OnMessage(m any)
	OnClose()
}

// BaseUserConnection supplies no-op OnOpen/OnClose so implementers only need
// to provide OnMessage.
type BaseUserConnection struct{}

func (BaseUserConnection) OnOpen(args ...any) {}
func (BaseUserConnection) OnClose()           {}

// Transport is the handle a transport registers with a VirtualConnection.
// Push is called whenever new messages are queued on an attached
// connection; a persistent transport (WebSocket) flushes immediately, a
// polling transport wakes a blocked request if one is waiting and otherwise
// lets the next poll drain the queue on its own.
type Transport interface {
	Push()
}

// VirtualConnection is the per-session application-facing state: a pending
// message queue, at most one attached transport, heartbeat bookkeeping, and
// the UserConnection hooks.
type VirtualConnection struct {
	mu sync.Mutex

	sessionID string
	sess      *session.Session
	user      UserConnection

	sendQueue []wire.Message
	transport Transport

	heartbeatInterval time.Duration
	heartbeatTimer    *timer.PeriodicTimer
	heartbeatCounter  int
	heartbeatDeadline time.Time

	opened bool
	closed bool
}

// ConnectionBinder is an optional UserConnection extension. If a
// UserConnection implements it, New calls BindVirtualConnection with the
// owning VirtualConnection before any hook fires, so application code can
// call Send/Close outward from within OnOpen/OnMessage instead of only
// reacting to inbound events.
type ConnectionBinder interface {
	BindVirtualConnection(vc *VirtualConnection)
}

// New creates a VirtualConnection bound to the given session id, delivering
// events to user.
func New(sessionID string, user UserConnection, heartbeatInterval time.Duration) *VirtualConnection {
	vc := &VirtualConnection{
		sessionID:         sessionID,
		user:              user,
		heartbeatInterval: heartbeatInterval,
	}
	if binder, ok := user.(ConnectionBinder); ok {
		binder.BindVirtualConnection(vc)
	}
	return vc
}

// SessionID returns the id of the session this connection belongs to.
func (vc *VirtualConnection) SessionID() string {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.sessionID
}

// SetSessionID records the id the store generated for this connection.
// Store.Create mints the id only after the VirtualConnection already exists
// (it is constructed as the Owner passed into Create), so the router calls
// this immediately after Create returns, before BindSession.
func (vc *VirtualConnection) SetSessionID(id string) {
	vc.mu.Lock()
	vc.sessionID = id
	vc.mu.Unlock()
}

// BindSession records the store-owned Session record for this connection.
// The session layer creates the Session and the VirtualConnection
// independently (Store.Create needs the Owner before the Session exists),
// so the router wires this back-reference immediately after creation, before
// either is exposed to a transport.
func (vc *VirtualConnection) BindSession(s *session.Session) {
	vc.mu.Lock()
	vc.sess = s
	vc.mu.Unlock()
}

// Attach binds t as this connection's unique active transport. Returns
// ErrDoubleBind if a transport is already attached, ErrClosed if the
// connection is closed. On the first successful attach, OnOpen fires.
func (vc *VirtualConnection) Attach(t Transport, openArgs ...any) error {
	vc.mu.Lock()
	if vc.closed {
		vc.mu.Unlock()
		return ErrClosed
	}
	if vc.transport != nil {
		vc.mu.Unlock()
		return ErrDoubleBind
	}
	vc.transport = t
	firstOpen := !vc.opened
	vc.opened = true
	vc.mu.Unlock()

	if firstOpen && vc.user != nil {
		vc.user.OnOpen(openArgs...)
	}
	return nil
}

// Detach unbinds t if it is the currently attached transport. A no-op
// otherwise (e.g. a stale reference from a transport that already lost the
// race to attach).
func (vc *VirtualConnection) Detach(t Transport) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.transport == t {
		vc.transport = nil
	}
}

// Attached reports whether a transport currently holds the sink.
func (vc *VirtualConnection) Attached() bool {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.transport != nil
}

// Send appends m to the outbound queue and, if a transport is attached,
// notifies it that new data is available. Every send slides the heartbeat
// deadline forward, since outbound traffic is itself evidence of liveness.
func (vc *VirtualConnection) Send(m wire.Message) {
	vc.mu.Lock()
	if vc.closed {
		vc.mu.Unlock()
		return
	}
	vc.sendQueue = append(vc.sendQueue, m)
	t := vc.transport
	vc.mu.Unlock()

	vc.DelayHeartbeat()

	if t != nil {
		t.Push()
	}
}

// DequeueAll drains and returns the pending outbound queue, in FIFO order.
func (vc *VirtualConnection) DequeueAll() []wire.Message {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	q := vc.sendQueue
	vc.sendQueue = nil
	return q
}

// HasPending reports whether messages are queued for delivery.
func (vc *VirtualConnection) HasPending() bool {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.sendQueue) > 0
}

// RawMessage decodes wire-format bytes and dispatches each frame: Text/JSON
// frames go to the user's OnMessage, in wire order; Heartbeat frames are
// acknowledgements and are not forwarded.
func (vc *VirtualConnection) RawMessage(data []byte) error {
	frames, err := wire.Decode(data)
	if err != nil {
		return err
	}
	for _, f := range frames {
		switch f.Kind {
		case wire.Text:
			if vc.user != nil {
				vc.user.OnMessage(f.Value)
			}
		case wire.Heartbeat:
			log.WithComponent("vconn").Debug().
				Str(log.FieldSessionID, vc.sessionID).
				Msg("heartbeat acknowledgement received")
		}
	}
	return nil
}

// Close fires OnClose exactly once, marks the connection closed, stops the
// heartbeat timer, and drops any attached transport.
func (vc *VirtualConnection) Close() {
	vc.mu.Lock()
	if vc.closed {
		vc.mu.Unlock()
		return
	}
	vc.closed = true
	vc.transport = nil
	ht := vc.heartbeatTimer
	vc.heartbeatTimer = nil
	vc.mu.Unlock()

	if ht != nil {
		ht.Stop()
	}
	if vc.user != nil {
		vc.user.OnClose()
	}
}

// Closed reports whether Close has already run.
func (vc *VirtualConnection) Closed() bool {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.closed
}

// ResetHeartbeat (re)starts the heartbeat timer at the configured interval,
// stopping any timer already running.
func (vc *VirtualConnection) ResetHeartbeat() {
	vc.StopHeartbeat()

	vc.mu.Lock()
	interval := vc.heartbeatInterval
	vc.mu.Unlock()
	if interval <= 0 {
		return
	}

	pt := timer.New(interval, vc.fireHeartbeat)
	vc.mu.Lock()
	vc.heartbeatTimer = pt
	vc.mu.Unlock()
	pt.Start(time.Time{})
}

// StopHeartbeat cancels the heartbeat timer, if running.
func (vc *VirtualConnection) StopHeartbeat() {
	vc.mu.Lock()
	ht := vc.heartbeatTimer
	vc.heartbeatTimer = nil
	vc.mu.Unlock()
	if ht != nil {
		ht.Stop()
	}
}

// DelayHeartbeat records a pushed-forward deadline so the next scheduled
// heartbeat firing slides forward instead of sending immediately.
func (vc *VirtualConnection) DelayHeartbeat() {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.heartbeatInterval <= 0 {
		return
	}
	vc.heartbeatDeadline = time.Now().Add(vc.heartbeatInterval)
}

// fireHeartbeat is the PeriodicTimer callback: if traffic pushed the
// deadline into the future, it reschedules without sending; otherwise it
// increments the counter, enqueues a heartbeat frame, and reschedules at the
// default interval.
func (vc *VirtualConnection) fireHeartbeat() time.Time {
	vc.mu.Lock()
	deadline := vc.heartbeatDeadline
	now := time.Now()
	if !deadline.IsZero() && now.Before(deadline) {
		vc.mu.Unlock()
		return deadline
	}
	if vc.closed {
		vc.mu.Unlock()
		return time.Time{}
	}
	vc.heartbeatCounter++
	counter := vc.heartbeatCounter
	vc.mu.Unlock()

	vc.Send(wire.HeartbeatCounter(counter))
	return time.Time{}
}

// HeartbeatCount returns the number of heartbeats sent so far.
func (vc *VirtualConnection) HeartbeatCount() int {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.heartbeatCounter
}

// OnDelete implements session.Owner. A forced delete (explicit removal)
// closes the connection outright. An unforced delete is an idle-expiry
// sweep: if a transport — typically a long-poll handler holding the sink
// open — is currently attached, the session is granted a reprieve so the
// sweep does not tear down a connection mid-poll.
func (vc *VirtualConnection) OnDelete(forced bool) {
	if forced {
		vc.Close()
		return
	}
	vc.mu.Lock()
	sess := vc.sess
	attached := vc.transport != nil
	vc.mu.Unlock()

	if attached && sess != nil {
		sess.Promote()
		return
	}
	vc.Close()
}
