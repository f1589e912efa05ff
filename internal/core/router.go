package core

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

// Router decides who receives each message.
// Every dispatch runs entirely under the registry lock.
type Router struct {
	reg *Registry
	log *zerolog.Logger
}

// NewRouter creates a router over reg.
func NewRouter(reg *Registry, logger *zerolog.Logger) *Router {
	if logger == nil {
		logger = reg.log
	}
	return &Router{reg: reg, log: logger}
}

// Dispatch routes msg on behalf of origin. Messages from an origin that no
// longer holds its slot are dropped. The returned error, if any, joins one
// *DeliveryError per destination that could not be written.
func (rt *Router) Dispatch(msg proto.Message, origin Origin) error {
	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	self, ok := rt.reg.clientLocked(origin)
	if !ok {
		return nil
	}
	msg.From = self.Username

	switch msg.Kind {
	case proto.KindBroadcast:
		return rt.broadcastLocked(msg, -1)
	case proto.KindPrivate:
		return rt.privateLocked(msg, self)
	case proto.KindLeave:
		return rt.leaveLocked(self)
	default:
		rt.log.Debug().Stringer("kind", msg.Kind).Str("username", self.Username).Msg("ignoring inbound kind")
		return nil
	}
}

// Reply sends a SystemOnly text to origin alone.
func (rt *Router) Reply(origin Origin, text string) error {
	rt.reg.mu.Lock()
	defer rt.reg.mu.Unlock()

	self, ok := rt.reg.clientLocked(origin)
	if !ok {
		return nil
	}
	return rt.sendLocked(self, proto.Message{Kind: proto.KindSystemOnly, Text: text, From: self.Username})
}

// broadcastLocked writes msg to every active slot except skip.
func (rt *Router) broadcastLocked(msg proto.Message, skip int) error {
	var errs []error
	for i := range rt.reg.slots {
		c := rt.reg.slots[i]
		if !c.Active || i == skip {
			continue
		}
		if err := rt.sendLocked(c, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (rt *Router) privateLocked(msg proto.Message, self Client) error {
	slot, found := rt.reg.lookupLocked(msg.To)
	if !found || rt.reg.slots[slot].Conn == self.Conn {
		return rt.sendLocked(self, proto.Message{
			Kind: proto.KindSystemOnly,
			Text: InvalidParamsText,
			From: self.Username,
			To:   msg.To,
		})
	}
	return rt.sendLocked(rt.reg.slots[slot], msg)
}

// leaveLocked acknowledges the leaving client, tells everyone else, then frees
// the slot. The departing client is still addressable for the notice only.
func (rt *Router) leaveLocked(self Client) error {
	var errs []error
	if err := rt.sendLocked(self, proto.Message{Kind: proto.KindLeave, From: self.Username}); err != nil {
		errs = append(errs, err)
	}
	notice := proto.Message{Kind: proto.KindBroadcast, Text: DisconnectedText, From: self.Username}
	if err := rt.broadcastLocked(notice, self.Slot); err != nil {
		errs = append(errs, err)
	}
	rt.reg.removeLocked(self.Slot, self.Conn)
	return errors.Join(errs...)
}

func (rt *Router) sendLocked(c Client, msg proto.Message) error {
	if err := rt.reg.sendLocked(c, msg); err != nil {
		return &DeliveryError{Slot: c.Slot, Username: c.Username, Kind: msg.Kind, Err: err}
	}
	return nil
}
