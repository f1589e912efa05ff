package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

type memJournal struct {
	mu      sync.Mutex
	started map[string]store.Session
	ended   map[string]store.LeaveReason
}

func newMemJournal() *memJournal {
	return &memJournal{
		started: make(map[string]store.Session),
		ended:   make(map[string]store.LeaveReason),
	}
}

func (j *memJournal) CreateSession(_ context.Context, s *store.Session) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started[s.ID] = *s
	return nil
}

func (j *memJournal) EndSession(_ context.Context, id string, reason store.LeaveReason, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended[id] = reason
	return nil
}

func (j *memJournal) ListSessions(context.Context, int) ([]store.Session, error) {
	return nil, nil
}

func startSession(t *testing.T, reg *Registry, router *Router, origin Origin, opts SessionOptions) <-chan store.LeaveReason {
	t.Helper()

	c, ok := reg.Client(origin.Slot)
	if !ok {
		t.Fatalf("slot %d not registered", origin.Slot)
	}
	done := make(chan store.LeaveReason, 1)
	go func() {
		done <- NewSession(reg, router, c, opts).Run(context.Background())
	}()
	return done
}

func mustLeave(t *testing.T, done <-chan store.LeaveReason, want store.LeaveReason) {
	t.Helper()

	select {
	case got := <-done:
		if got != want {
			t.Fatalf("expected session to end with %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end")
	}
}

func TestSessionAnnouncesJoinAndRoutesMessages(t *testing.T) {
	reg, router := newTestRegistry(t, RegistryOptions{})
	journal := newMemJournal()

	connA, peerA := newPeer(t)
	connB, peerB := newPeer(t)
	alice := mustRegister(t, reg, connA, "alice")
	doneA := startSession(t, reg, router, alice, SessionOptions{Journal: journal})

	if m := mustMessage(t, peerA); m.Kind != proto.KindBroadcast || m.From != "alice" || m.Text != JoinedText {
		t.Fatalf("alice should see her own join notice, got %+v", m)
	}

	bob := mustRegister(t, reg, connB, "bob")
	doneB := startSession(t, reg, router, bob, SessionOptions{Journal: journal})
	for _, p := range []*peer{peerA, peerB} {
		if m := mustMessage(t, p); m.From != "bob" || m.Text != JoinedText {
			t.Fatalf("expected bob's join notice, got %+v", m)
		}
	}

	peerA.send(t, proto.Message{Kind: proto.KindBroadcast, Text: "hi\n"})
	for _, p := range []*peer{peerA, peerB} {
		if m := mustMessage(t, p); m.From != "alice" || m.Text != "hi\n" {
			t.Fatalf("expected alice's broadcast, got %+v", m)
		}
	}

	peerA.send(t, proto.Message{Kind: proto.KindLeave})
	if m := mustMessage(t, peerA); m.Kind != proto.KindLeave {
		t.Fatalf("expected leave ack, got %+v", m)
	}
	if m := mustMessage(t, peerB); m.From != "alice" || m.Text != DisconnectedText {
		t.Fatalf("expected departure notice, got %+v", m)
	}
	mustLeave(t, doneA, store.LeaveReasonExit)

	// bob drops without saying goodbye.
	_ = peerB.conn.Close()
	mustLeave(t, doneB, store.LeaveReasonDisconnect)

	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.started) != 2 {
		t.Fatalf("expected 2 journaled sessions, got %d", len(journal.started))
	}
	reasons := map[store.LeaveReason]int{}
	for _, r := range journal.ended {
		reasons[r]++
	}
	if reasons[store.LeaveReasonExit] != 1 || reasons[store.LeaveReasonDisconnect] != 1 {
		t.Fatalf("unexpected journal reasons: %v", journal.ended)
	}
}

func TestSessionImplicitLeaveNotifiesOthers(t *testing.T) {
	reg, router := newTestRegistry(t, RegistryOptions{})

	connA, peerA := newPeer(t)
	connB, peerB := newPeer(t)
	alice := mustRegister(t, reg, connA, "alice")
	mustRegister(t, reg, connB, "bob")

	doneA := startSession(t, reg, router, alice, SessionOptions{})
	mustMessage(t, peerA)
	mustMessage(t, peerB)

	// A partial record counts as a failed read.
	buf := proto.Encode(proto.Message{Text: "cut"})
	if _, err := peerA.conn.Write(buf[:10]); err != nil {
		t.Fatalf("partial write: %v", err)
	}
	_ = peerA.conn.Close()

	mustLeave(t, doneA, store.LeaveReasonDisconnect)
	if m := mustMessage(t, peerB); m.Kind != proto.KindBroadcast || m.From != "alice" || m.Text != DisconnectedText {
		t.Fatalf("expected departure notice, got %+v", m)
	}
	if reg.Holds(alice) {
		t.Fatalf("alice must be removed")
	}
}

func TestSessionEndsOnShutdown(t *testing.T) {
	reg, router := newTestRegistry(t, RegistryOptions{})

	connA, peerA := newPeer(t)
	alice := mustRegister(t, reg, connA, "alice")
	doneA := startSession(t, reg, router, alice, SessionOptions{})
	mustMessage(t, peerA)

	reg.Close()

	if m := mustMessage(t, peerA); m.Kind != proto.KindLeave {
		t.Fatalf("expected shutdown leave notice, got %+v", m)
	}
	mustLeave(t, doneA, store.LeaveReasonShutdown)
}

func TestSessionRateLimit(t *testing.T) {
	reg, router := newTestRegistry(t, RegistryOptions{})

	connA, peerA := newPeer(t)
	alice := mustRegister(t, reg, connA, "alice")
	doneA := startSession(t, reg, router, alice, SessionOptions{RateLimit: 0.001, RateBurst: 1})
	mustMessage(t, peerA)

	peerA.send(t, proto.Message{Kind: proto.KindBroadcast, Text: "one"})
	if m := mustMessage(t, peerA); m.Text != "one" {
		t.Fatalf("first message should pass, got %+v", m)
	}

	peerA.send(t, proto.Message{Kind: proto.KindBroadcast, Text: "two"})
	if m := mustMessage(t, peerA); m.Kind != proto.KindSystemOnly || m.Text != RateLimitedText {
		t.Fatalf("expected rate limit reply, got %+v", m)
	}

	// Leave is never rate limited.
	peerA.send(t, proto.Message{Kind: proto.KindLeave})
	if m := mustMessage(t, peerA); m.Kind != proto.KindLeave {
		t.Fatalf("expected leave ack, got %+v", m)
	}
	mustLeave(t, doneA, store.LeaveReasonExit)
}
