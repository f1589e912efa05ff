package tcp

import (
	"errors"
	"net"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// resultCode maps a registration outcome to its wire code.
func resultCode(err error) int32 {
	switch {
	case err == nil:
		return proto.ResultAccepted
	case errors.Is(err, core.ErrDuplicateUsername):
		return proto.ResultDuplicateUsername
	case errors.Is(err, core.ErrInvalidUsername):
		return proto.ResultInvalidUsername
	default:
		return proto.ResultUnavailable
	}
}

// handshake reads the proposed username and registers it. The result code is
// written while the registry is locked, so it always precedes routed records.
func (s *Server) handshake(conn net.Conn) (core.Client, bool) {
	log := s.log.With().Str("remote_addr", remoteAddr(conn)).Logger()

	if s.opts.HandshakeTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
			log.Debug().Err(err).Msg("set handshake deadline")
		}
	}

	name, err := proto.ReadUsername(conn)
	if err != nil {
		if errors.Is(err, proto.ErrEmptyUsername) {
			_ = proto.WriteResult(conn, proto.ResultInvalidUsername)
		}
		log.Debug().Err(err).Msg("read username")
		_ = conn.Close()
		return core.Client{}, false
	}

	slot, err := s.reg.Register(conn, name, func(regErr error) error {
		if err := proto.WriteResult(conn, resultCode(regErr)); err != nil {
			return err
		}
		return conn.SetDeadline(time.Time{})
	})
	if err != nil {
		log.Info().Err(err).Str("username", name).Msg("registration rejected")
		_ = conn.Close()
		return core.Client{}, false
	}

	client, ok := s.reg.Client(slot)
	if !ok || client.Conn != conn {
		// Removed before the session started, e.g. by shutdown.
		return core.Client{}, false
	}
	return client, true
}

func rejectClosed(conn net.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = proto.WriteResult(conn, proto.ResultUnavailable)
	_ = conn.Close()
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
