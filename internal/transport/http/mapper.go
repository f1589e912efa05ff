package http

import (
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// ClientResponse describes a connected client.
type ClientResponse struct {
	Slot       int    `json:"slot"`
	Username   string `json:"username"`
	SessionID  string `json:"session_id"`
	RemoteAddr string `json:"remote_addr"`
	JoinedAt   string `json:"joined_at"`
}

// SessionResponse describes a journaled session.
type SessionResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	RemoteAddr string  `json:"remote_addr"`
	JoinedAt   string  `json:"joined_at"`
	LeftAt     *string `json:"left_at,omitempty"`
	Reason     *string `json:"reason,omitempty"`
}

func clientToResponse(c core.Client) ClientResponse {
	return ClientResponse{
		Slot:       c.Slot,
		Username:   c.Username,
		SessionID:  c.ID,
		RemoteAddr: c.RemoteAddr,
		JoinedAt:   c.JoinedAt.Format(time.RFC3339),
	}
}

func sessionToResponse(s store.Session) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID,
		Username:   s.Username,
		RemoteAddr: s.RemoteAddr,
		JoinedAt:   s.JoinedAt.Format(time.RFC3339),
	}
	if s.LeftAt != nil {
		left := s.LeftAt.Format(time.RFC3339)
		resp.LeftAt = &left
	}
	if s.Reason != nil {
		reason := string(*s.Reason)
		resp.Reason = &reason
	}
	return resp
}
