// Package client is the terminal side of the chat: it turns typed lines into
// records and records into printable lines.
package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

var (
	// ErrUnknownCommand is returned for a slash command the client does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingRecipient is returned for /private without a username.
	ErrMissingRecipient = errors.New("usage: /private <user> <message>")
	// ErrInvalidUsername is returned for names the server would refuse.
	ErrInvalidUsername = fmt.Errorf("username must be 1 to %d bytes", proto.NameSize)
)

const (
	cmdExit    = "/exit"
	cmdPrivate = "/private"
)

// ParseLine turns one line of input into the record to send.
// Lines not starting with "/" are broadcast as typed.
func ParseLine(line string) (proto.Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "/") {
		return proto.Message{Kind: proto.KindBroadcast, Text: line + "\n"}, nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case cmdExit:
		return proto.Message{Kind: proto.KindLeave}, nil
	case cmdPrivate:
		to, text, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
		if to == "" {
			return proto.Message{}, ErrMissingRecipient
		}
		return proto.Message{Kind: proto.KindPrivate, To: to, Text: text + "\n"}, nil
	default:
		return proto.Message{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

// Render formats a received record for the terminal. Records that have no
// printable form render as "".
func Render(m proto.Message) string {
	var s string
	switch m.Kind {
	case proto.KindBroadcast:
		s = m.From + ": " + m.Text
	case proto.KindPrivate:
		s = "Private[" + m.From + "]: " + m.Text
	case proto.KindSystemOnly:
		s = "Chat: " + m.Text
	default:
		return ""
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// ValidateUsername checks the name against the wire field width.
func ValidateUsername(name string) error {
	if name == "" || len(name) > proto.NameSize {
		return ErrInvalidUsername
	}
	return nil
}
