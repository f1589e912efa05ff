package core

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// peer is the client side of a net.Pipe whose records are drained into msgs.
type peer struct {
	conn net.Conn
	msgs chan proto.Message
	done chan struct{}
}

func newPeer(t *testing.T) (net.Conn, *peer) {
	t.Helper()

	srv, cli := net.Pipe()
	p := &peer{
		conn: cli,
		msgs: make(chan proto.Message, 256),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for {
			m, err := proto.ReadMessage(cli)
			if err != nil {
				return
			}
			p.msgs <- m
		}
	}()
	t.Cleanup(func() {
		_ = cli.Close()
		_ = srv.Close()
	})
	return srv, p
}

func (p *peer) send(t *testing.T, m proto.Message) {
	t.Helper()
	if err := proto.WriteMessage(p.conn, m); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

func mustMessage(t *testing.T, p *peer) proto.Message {
	t.Helper()

	select {
	case m := <-p.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a message, none received")
		return proto.Message{}
	}
}

func mustNoMessage(t *testing.T, p *peer) {
	t.Helper()

	select {
	case m := <-p.msgs:
		t.Fatalf("unexpected message: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestRegistry(t *testing.T, opts RegistryOptions) (*Registry, *Router) {
	t.Helper()

	logger := zerolog.Nop()
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = time.Second
	}
	reg := NewRegistry(opts, &logger)
	return reg, NewRouter(reg, &logger)
}

func mustRegister(t *testing.T, reg *Registry, conn net.Conn, name string) Origin {
	t.Helper()

	slot, err := reg.Register(conn, name, nil)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return Origin{Slot: slot, Conn: conn}
}
