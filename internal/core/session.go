package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// SessionOptions tunes a Session.
type SessionOptions struct {
	// RateLimit is the sustained number of inbound records per second. Zero disables limiting.
	RateLimit float64
	// RateBurst is the number of records accepted at once before limiting applies.
	RateBurst int
	// Journal records the session lifecycle. Optional.
	Journal store.SessionStore
}

// Session owns the receive loop of one registered connection.
type Session struct {
	client  Client
	origin  Origin
	reg     *Registry
	router  *Router
	limiter *rate.Limiter
	journal store.SessionStore
	log     zerolog.Logger
}

// NewSession binds a session to a registered slot.
func NewSession(reg *Registry, router *Router, client Client, opts SessionOptions) *Session {
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Session{
		client:  client,
		origin:  Origin{Slot: client.Slot, Conn: client.Conn},
		reg:     reg,
		router:  router,
		limiter: limiter,
		journal: opts.Journal,
		log: router.log.With().
			Int("slot", client.Slot).
			Str("username", client.Username).
			Str("session_id", client.ID).
			Logger(),
	}
}

// Run announces the client, then routes its records until it leaves, its
// connection fails, or the server removes it. It returns how the session ended.
func (s *Session) Run(ctx context.Context) store.LeaveReason {
	s.journalStart(ctx)
	s.log.Info().Str("remote_addr", s.client.RemoteAddr).Msg("client joined")

	s.dispatch(proto.Message{Kind: proto.KindBroadcast, Text: JoinedText})

	reason := s.loop()

	s.journalEnd(ctx, reason)
	s.log.Info().Str("reason", string(reason)).Msg("client left")
	return reason
}

func (s *Session) loop() store.LeaveReason {
	for {
		msg, err := proto.ReadMessage(s.origin.Conn)
		if err != nil {
			if !s.reg.Holds(s.origin) {
				return store.LeaveReasonShutdown
			}
			if !errors.Is(err, io.EOF) {
				s.log.Debug().Err(err).Msg("read record")
			}
			s.dispatch(proto.Message{Kind: proto.KindLeave})
			return store.LeaveReasonDisconnect
		}

		if s.limiter != nil && msg.Kind != proto.KindLeave && !s.limiter.Allow() {
			if err := s.router.Reply(s.origin, RateLimitedText); err != nil {
				s.log.Debug().Err(err).Msg("reply rate limited")
			}
			continue
		}

		s.dispatch(msg)

		if !s.reg.Holds(s.origin) {
			if msg.Kind == proto.KindLeave {
				return store.LeaveReasonExit
			}
			return store.LeaveReasonShutdown
		}
	}
}

func (s *Session) dispatch(msg proto.Message) {
	if err := s.router.Dispatch(msg, s.origin); err != nil {
		s.log.Warn().Err(err).Stringer("kind", msg.Kind).Msg("partial delivery")
	}
}

func (s *Session) journalStart(ctx context.Context) {
	if s.journal == nil {
		return
	}
	err := s.journal.CreateSession(ctx, &store.Session{
		ID:         s.client.ID,
		Username:   s.client.Username,
		RemoteAddr: s.client.RemoteAddr,
		JoinedAt:   s.client.JoinedAt,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("journal session start")
	}
}

func (s *Session) journalEnd(ctx context.Context, reason store.LeaveReason) {
	if s.journal == nil {
		return
	}
	// The server context may already be cancelled during shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.journal.EndSession(ctx, s.client.ID, reason, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Msg("journal session end")
	}
}
