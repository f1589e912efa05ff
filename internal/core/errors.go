package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrNotFound          = errors.New("client not found")
	ErrRegistryFull      = errors.New("registry full")
	ErrClosed            = errors.New("registry closed")
)

// DeliveryError reports a record that could not be written to one destination.
// Other destinations of the same dispatch are unaffected.
type DeliveryError struct {
	Slot     int
	Username string
	Kind     proto.Kind
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %q (slot %d): %v", e.Kind, e.Username, e.Slot, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
