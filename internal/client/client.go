package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// RejectedError reports a negative registration result.
type RejectedError struct {
	Username string
	Code     int32
}

func (e *RejectedError) Error() string {
	switch e.Code {
	case proto.ResultDuplicateUsername:
		return fmt.Sprintf("username exists: %s", e.Username)
	case proto.ResultInvalidUsername:
		return fmt.Sprintf("username rejected: %q", e.Username)
	default:
		return fmt.Sprintf("server unavailable (code %d)", e.Code)
	}
}

// Client is a registered connection to a chat server.
type Client struct {
	conn     net.Conn
	username string
	log      *zerolog.Logger
}

// Dial connects to addr and registers username.
func Dial(ctx context.Context, addr, username string, logger *zerolog.Logger) (*Client, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := proto.WriteUsername(conn, username); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send username: %w", err)
	}
	code, err := proto.ReadResult(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read registration result: %w", err)
	}
	if code < 0 {
		_ = conn.Close()
		return nil, &RejectedError{Username: username, Code: code}
	}
	_ = conn.SetDeadline(time.Time{})

	logger.Debug().Str("addr", addr).Str("username", username).Msg("registered")
	return &Client{conn: conn, username: username, log: logger}, nil
}

// Username returns the registered name.
func (c *Client) Username() string {
	return c.username
}

// Send writes one record.
func (c *Client) Send(m proto.Message) error {
	return proto.WriteMessage(c.conn, m)
}

// Receive reads one record.
func (c *Client) Receive() (proto.Message, error) {
	return proto.ReadMessage(c.conn)
}

// Close closes the connection without saying goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run pumps lines from in to the server and rendered records to out.
// It sends Leave when ctx is cancelled, on /exit, and when in reaches EOF,
// and returns once the server acknowledges the Leave or the connection drops.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	incoming := make(chan proto.Message)
	recvErr := make(chan error, 1)
	go func() {
		for {
			m, err := c.Receive()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case incoming <- m:
			case <-stop:
				return
			}
		}
	}()

	left := false
	leave := func() error {
		if left {
			return nil
		}
		left = true
		if err := c.Send(proto.Message{Kind: proto.KindLeave}); err != nil {
			return fmt.Errorf("send leave: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Closing connection..")
			return leave()

		case line, ok := <-lines:
			if !ok {
				lines = nil
				if err := leave(); err != nil {
					return err
				}
				continue
			}
			if left || strings.TrimSpace(line) == "" {
				continue
			}
			m, err := ParseLine(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if m.Kind == proto.KindLeave {
				if err := leave(); err != nil {
					return err
				}
				continue
			}
			if err := c.Send(m); err != nil {
				return fmt.Errorf("send: %w", err)
			}

		case m := <-incoming:
			if m.Kind == proto.KindLeave {
				c.log.Debug().Bool("requested", left).Msg("server ended the session")
				return nil
			}
			fmt.Fprint(out, Render(m))

		case err := <-recvErr:
			if left && (errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
	}
}
