package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

const readHeaderTimeout = 5 * time.Second

// ConnServer runs the chat protocol over an established connection.
type ConnServer interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// NewServer builds the admin HTTP server: health, live clients, the session
// journal and a WebSocket bridge into the chat protocol.
// sessions and conns may be nil to disable their endpoints.
func NewServer(reg *core.Registry, sessions store.SessionStore, conns ConnServer, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.AdminAddr,
		Handler:           NewRouter(reg, sessions, conns, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// NewRouter builds the handler behind NewServer. The WebSocket bridge sits on
// a plain mux in front of gin because it must hijack the raw ResponseWriter.
func NewRouter(reg *core.Registry, sessions store.SessionStore, conns ConnServer, logger *zerolog.Logger) stdhttp.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", healthHandler)

	h := NewAPIHandlers(reg, sessions, logger)
	api := r.Group("/api")
	api.GET("/clients", h.ListClients)
	api.GET("/sessions", h.ListSessions)

	if conns == nil {
		return r
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(conns, logger))
	mux.Handle("/", r)
	return mux
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
