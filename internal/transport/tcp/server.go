// Package tcp accepts chat connections, runs the registration handshake and
// hands each registered connection to its own session.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("tcp: server closed")

// Options tunes a Server.
type Options struct {
	// HandshakeTimeout bounds reading the username and answering it.
	HandshakeTimeout time.Duration
	// Session is passed to every session the server starts.
	Session core.SessionOptions
}

// Server is the connection acceptor and shutdown coordinator.
type Server struct {
	reg    *core.Registry
	router *core.Router
	opts   Options
	log    *zerolog.Logger

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	pending   map[net.Conn]struct{}
	wg        sync.WaitGroup
}

// NewServer builds a server over a shared registry and router.
func NewServer(reg *core.Registry, router *core.Router, opts Options, logger *zerolog.Logger) *Server {
	return &Server{
		reg:       reg,
		router:    router,
		opts:      opts,
		log:       logger,
		listeners: make(map[net.Listener]struct{}),
		pending:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on ln until Shutdown is called or ln fails.
// Each connection is handled in its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept")
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		go s.ServeConn(ctx, conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// ServeConn runs the handshake on an accepted connection and, if the client
// registers, its session. It returns when the session ends.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	if !s.begin(conn) {
		rejectClosed(conn)
		return
	}
	defer s.wg.Done()

	client, ok := s.handshake(conn)
	s.endHandshake(conn)
	if !ok {
		return
	}

	core.NewSession(s.reg, s.router, client, s.opts.Session).Run(ctx)
}

// Shutdown stops accepting, sends a Leave record to every registered client,
// closes all connections and waits for handlers until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	for ln := range s.listeners {
		if err := ln.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close listener")
		}
	}
	for conn := range s.pending {
		_ = conn.Close()
	}
	s.mu.Unlock()

	notified := s.reg.Close()
	s.log.Info().Int("notified", notified).Msg("clients notified of shutdown")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for sessions: %w", ctx.Err())
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// begin counts conn as in flight unless the server is closing.
func (s *Server) begin(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	s.pending[conn] = struct{}{}
	return true
}

func (s *Server) endHandshake(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, conn)
}
