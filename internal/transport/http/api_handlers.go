package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

const maxSessionsLimit = 500

// APIHandlers provides read-only HTTP handlers over the live registry and the session journal.
type APIHandlers struct {
	reg      *core.Registry
	sessions store.SessionStore
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(reg *core.Registry, sessions store.SessionStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		reg:      reg,
		sessions: sessions,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClientsResponse lists connected clients.
type ClientsResponse struct {
	Count    int              `json:"count"`
	Capacity int              `json:"capacity"`
	Clients  []ClientResponse `json:"clients"`
}

// ListClients returns the connected clients.
// GET /api/clients
func (h *APIHandlers) ListClients(c *gin.Context) {
	clients := h.reg.Clients()
	resp := ClientsResponse{
		Count:    len(clients),
		Capacity: h.reg.Cap(),
		Clients:  make([]ClientResponse, 0, len(clients)),
	}
	for _, cl := range clients {
		resp.Clients = append(resp.Clients, clientToResponse(cl))
	}
	c.JSON(http.StatusOK, resp)
}

// ListSessions returns the most recent journaled sessions.
// GET /api/sessions?limit=50
func (h *APIHandlers) ListSessions(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "session journal disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSessionsLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionToResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}
