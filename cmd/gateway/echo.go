package main

import (
	"github.com/sio6/gateway/internal/log"
	"github.com/sio6/gateway/internal/vconn"
)

// echoConnection is the default application behind every session: it logs
// each inbound message and sends it straight back. It exists so the gateway
// binary is runnable standalone; a real deployment would supply its own
// vconn.UserConnection implementation via gateway.ConnectionFactory.
type echoConnection struct {
	vconn.BaseUserConnection
	vc *vconn.VirtualConnection
}

func newEchoConnection() vconn.UserConnection {
	return &echoConnection{}
}

func (c *echoConnection) BindVirtualConnection(vc *vconn.VirtualConnection) {
	c.vc = vc
}

func (c *echoConnection) OnOpen(args ...any) {
	log.WithComponent("gateway.echo").Debug().
		Str(log.FieldSessionID, c.vc.SessionID()).
		Msg("session opened")
}

func (c *echoConnection) OnMessage(m any) {
	log.WithComponent("gateway.echo").Debug().
		Str(log.FieldSessionID, c.vc.SessionID()).
		Interface("message", m).
		Msg("echoing message")
	c.vc.Send(m)
}

func (c *echoConnection) OnClose() {
	log.WithComponent("gateway.echo").Debug().
		Str(log.FieldSessionID, c.vc.SessionID()).
		Msg("session closed")
}
