package core

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
	"github.com/vovakirdan/wirechat-tcp/internal/utils"
)

const initialCapacity = 10

// RegistryOptions tunes a Registry.
type RegistryOptions struct {
	// MaxClients caps the slot table. Zero means unlimited.
	MaxClients int
	// WriteTimeout bounds every write the registry's owners perform under its lock.
	WriteTimeout time.Duration
}

// Registry is the authoritative table of connected clients.
//
// Slots live in a single slice addressed by index. They are never removed,
// only marked inactive and reused, so a slot index is a stable identity for
// as long as its connection is registered.
type Registry struct {
	// mu guards every traversal or mutation of slots. The router holds it for
	// the full span of a dispatch.
	mu sync.Mutex
	// freeMu guards the remove-and-free sequence against slot reuse.
	// Lock order is mu, then freeMu.
	freeMu sync.Mutex

	slots  []Client
	active int
	closed bool

	maxClients   int
	writeTimeout time.Duration
	log          *zerolog.Logger
}

// NewRegistry creates an empty registry. Capacity is allocated on first use.
func NewRegistry(opts RegistryOptions, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		maxClients:   opts.MaxClients,
		writeTimeout: opts.WriteTimeout,
		log:          logger,
	}
}

// Register claims a slot for conn under username.
//
// ack, when non-nil, is called inside the critical section with the outcome
// (nil on success) before the slot becomes visible to other sessions. This lets
// the caller answer the handshake before any routed record reaches conn. If ack
// fails on success the slot is not taken.
func (r *Registry) Register(conn net.Conn, username string, ack func(error) error) (int, error) {
	if username == "" || len(username) > proto.NameSize {
		return -1, reject(ack, ErrInvalidUsername)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return -1, reject(ack, ErrClosed)
	}
	if _, ok := r.lookupLocked(username); ok {
		return -1, reject(ack, ErrDuplicateUsername)
	}

	r.freeMu.Lock()
	defer r.freeMu.Unlock()

	slot := r.freeSlotLocked()
	if slot < 0 {
		if err := r.growLocked(); err != nil {
			return -1, reject(ack, err)
		}
		slot = r.freeSlotLocked()
	}

	if ack != nil {
		if err := ack(nil); err != nil {
			return -1, fmt.Errorf("acknowledge registration: %w", err)
		}
	}

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	r.slots[slot] = Client{
		Slot:       slot,
		ID:         utils.NewID(),
		Username:   username,
		Conn:       conn,
		RemoteAddr: remote,
		JoinedAt:   time.Now().UTC(),
		Active:     true,
	}
	r.active++

	r.log.Debug().Int("slot", slot).Str("username", username).Int("active", r.active).Msg("client registered")
	return slot, nil
}

func reject(ack func(error) error, err error) error {
	if ack != nil {
		// The rejection itself is what the caller reports.
		_ = ack(err)
	}
	return err
}

// Remove marks the slot inactive, closes its connection and frees its username.
// Removing an inactive slot is a no-op. It reports whether a client was removed.
func (r *Registry) Remove(slot int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.removeLocked(slot, nil)
	return ok
}

// removeLocked frees slot. A non-nil conn must match the slot's connection.
func (r *Registry) removeLocked(slot int, conn net.Conn) (Client, bool) {
	r.freeMu.Lock()
	defer r.freeMu.Unlock()

	if slot < 0 || slot >= len(r.slots) {
		return Client{}, false
	}
	c := r.slots[slot]
	if !c.Active || (conn != nil && c.Conn != conn) {
		return Client{}, false
	}

	if err := c.Conn.Close(); err != nil {
		r.log.Debug().Err(err).Int("slot", slot).Msg("close connection")
	}
	r.slots[slot] = Client{Slot: slot}
	r.active--

	r.log.Debug().Int("slot", slot).Str("username", c.Username).Int("active", r.active).Msg("client removed")
	return c, true
}

// Lookup returns the slot held by username.
func (r *Registry) Lookup(username string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.lookupLocked(username); ok {
		return slot, nil
	}
	return -1, ErrNotFound
}

func (r *Registry) lookupLocked(username string) (int, bool) {
	for i := range r.slots {
		if r.slots[i].Active && r.slots[i].Username == username {
			return i, true
		}
	}
	return -1, false
}

// ForEachActive calls fn for every active client while holding the registry
// lock, so no slot is added or removed during the traversal. fn must not call
// back into the registry.
func (r *Registry) ForEachActive(fn func(Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].Active {
			fn(r.slots[i])
		}
	}
}

// Holds reports whether origin still owns its slot.
func (r *Registry) Holds(origin Origin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clientLocked(origin)
	return ok
}

func (r *Registry) clientLocked(origin Origin) (Client, bool) {
	if origin.Slot < 0 || origin.Slot >= len(r.slots) {
		return Client{}, false
	}
	c := r.slots[origin.Slot]
	if !c.Active || c.Conn != origin.Conn {
		return Client{}, false
	}
	return c, true
}

// Client returns a copy of the slot's entry.
func (r *Registry) Client(slot int) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot < 0 || slot >= len(r.slots) || !r.slots[slot].Active {
		return Client{}, false
	}
	return r.slots[slot], true
}

// Clients returns a snapshot of the active clients ordered by slot.
func (r *Registry) Clients() []Client {
	out := make([]Client, 0, r.Len())
	r.ForEachActive(func(c Client) {
		out = append(out, c)
	})
	return out
}

// Len returns the number of active clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Cap returns the current slot table capacity.
func (r *Registry) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Close notifies every active client with a Leave record, closes all
// connections and releases the slot table. All notices share one write
// deadline, so stalled peers delay Close by at most WriteTimeout in total.
// Later registrations fail with ErrClosed. It returns the number of clients
// notified.
func (r *Registry) Close() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0
	}
	r.closed = true

	r.freeMu.Lock()
	defer r.freeMu.Unlock()

	// One deadline covers every notice, so stalled peers cannot add up.
	var deadline time.Time
	if r.writeTimeout > 0 {
		deadline = time.Now().Add(r.writeTimeout)
	}

	notified := 0
	for i := range r.slots {
		c := r.slots[i]
		if !c.Active {
			continue
		}
		if err := writeBy(c, proto.Message{Kind: proto.KindLeave, From: c.Username}, deadline); err != nil {
			r.log.Debug().Err(err).Str("username", c.Username).Msg("send shutdown notice")
		} else {
			notified++
		}
		if err := c.Conn.Close(); err != nil {
			r.log.Debug().Err(err).Str("username", c.Username).Msg("close connection")
		}
	}
	r.slots = nil
	r.active = 0
	return notified
}

func (r *Registry) freeSlotLocked() int {
	for i := range r.slots {
		if !r.slots[i].Active {
			return i
		}
	}
	return -1
}

// growLocked extends the table to 10 slots, then by half again each time.
func (r *Registry) growLocked() error {
	n := len(r.slots)
	next := initialCapacity
	if n > 0 {
		next = n * 3 / 2
		if next <= n {
			next = n + 1
		}
	}
	if r.maxClients > 0 && next > r.maxClients {
		next = r.maxClients
	}
	if next <= n {
		return fmt.Errorf("grow beyond %d slots: %w", n, ErrRegistryFull)
	}

	slots := make([]Client, next)
	copy(slots, r.slots)
	for i := n; i < next; i++ {
		slots[i].Slot = i
	}
	r.slots = slots

	r.log.Debug().Int("from", n).Int("to", next).Msg("registry grown")
	return nil
}

// sendLocked writes one record to c under the write deadline.
func (r *Registry) sendLocked(c Client, m proto.Message) error {
	var deadline time.Time
	if r.writeTimeout > 0 {
		deadline = time.Now().Add(r.writeTimeout)
	}
	return writeBy(c, m, deadline)
}

// writeBy writes one record to c, giving up at deadline. A zero deadline never expires.
func writeBy(c Client, m proto.Message, deadline time.Time) error {
	if !deadline.IsZero() {
		if err := c.Conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return proto.WriteMessage(c.Conn, m)
}
