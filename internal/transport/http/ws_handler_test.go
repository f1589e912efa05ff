package http

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

func wsJoin(ctx context.Context, t *testing.T, url, username string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	if err := conn.Write(ctx, websocket.MessageBinary, []byte(username)); err != nil {
		t.Fatalf("send username: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	code, err := proto.ReadResult(strings.NewReader(string(data)))
	if err != nil || code != proto.ResultAccepted {
		t.Fatalf("registration failed: code=%d err=%v", code, err)
	}
	return conn
}

func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	m, err := proto.Decode(data)
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return m
}

func TestWebSocketBridge(t *testing.T) {
	st := createTestStore(t)
	env := startTestServer(t, st)
	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := wsJoin(ctx, t, wsURL, "alice")
	if m := wsRead(ctx, t, alice); m.From != "alice" || m.Text != core.JoinedText {
		t.Fatalf("expected own join notice, got %+v", m)
	}

	bob := wsJoin(ctx, t, wsURL, "bob")
	wsRead(ctx, t, bob)
	wsRead(ctx, t, alice)

	rec := proto.Encode(proto.Message{Kind: proto.KindBroadcast, Text: "over websocket\n"})
	if err := alice.Write(ctx, websocket.MessageBinary, rec[:]); err != nil {
		t.Fatalf("send record: %v", err)
	}
	for _, conn := range []*websocket.Conn{alice, bob} {
		if m := wsRead(ctx, t, conn); m.From != "alice" || m.Text != "over websocket\n" {
			t.Fatalf("unexpected broadcast: %+v", m)
		}
	}

	leave := proto.Encode(proto.Message{Kind: proto.KindLeave})
	if err := alice.Write(ctx, websocket.MessageBinary, leave[:]); err != nil {
		t.Fatalf("send leave: %v", err)
	}
	if m := wsRead(ctx, t, alice); m.Kind != proto.KindLeave {
		t.Fatalf("expected leave ack, got %+v", m)
	}
	if m := wsRead(ctx, t, bob); m.Text != core.DisconnectedText {
		t.Fatalf("expected departure notice, got %+v", m)
	}

	// The journal entry is closed once the session has fully ended.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sessions, err := st.ListSessions(ctx, 10)
		if err != nil {
			t.Fatalf("list sessions: %v", err)
		}
		for _, s := range sessions {
			if s.Username == "alice" && s.Reason != nil {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("alice's session was not journaled as ended")
}
