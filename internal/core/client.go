package core

import (
	"net"
	"time"
)

// Client is one slot of the registry.
type Client struct {
	Slot       int
	ID         string
	Username   string
	Conn       net.Conn
	RemoteAddr string
	JoinedAt   time.Time
	Active     bool
}

// Origin identifies the session a message came from.
// The connection disambiguates a slot that was freed and reused.
type Origin struct {
	Slot int
	Conn net.Conn
}
