package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Kind tells the router how a record must be delivered.
type Kind int32

const (
	// KindBroadcast is delivered to every active client.
	KindBroadcast Kind = iota
	// KindPrivate is delivered to the client named in To.
	KindPrivate
	// KindLeave asks the server to end the session, and acknowledges it.
	KindLeave
	// KindOffline is reserved on the wire and never produced.
	KindOffline
	// KindSystemOnly is a server reply addressed to a single client.
	KindSystemOnly
)

func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "broadcast"
	case KindPrivate:
		return "private"
	case KindLeave:
		return "leave"
	case KindOffline:
		return "offline"
	case KindSystemOnly:
		return "system_only"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

const (
	// TextSize is the text field width, terminator included.
	TextSize = 200
	// NameSize is the width of the From and To fields.
	NameSize = 20
	// RecordSize is the fixed size of every record on the wire.
	RecordSize = 4 + TextSize + 2*NameSize

	offText = 4
	offFrom = offText + TextSize
	offTo   = offFrom + NameSize
)

// ErrShortRecord is returned when fewer than RecordSize bytes are available.
var ErrShortRecord = errors.New("short record")

// Message is the single record exchanged between client and server.
type Message struct {
	Kind Kind
	Text string
	From string
	To   string
}

// Encode lays the message out as a fixed-size record.
// Text keeps room for a terminator; names may fill their field.
func Encode(m Message) [RecordSize]byte {
	var buf [RecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Kind))
	copy(buf[offText:offFrom], Truncate(m.Text, TextSize-1))
	copy(buf[offFrom:offTo], Truncate(m.From, NameSize))
	copy(buf[offTo:RecordSize], Truncate(m.To, NameSize))
	return buf
}

// Decode parses a record produced by Encode.
func Decode(b []byte) (Message, error) {
	if len(b) < RecordSize {
		return Message{}, fmt.Errorf("decode %d bytes: %w", len(b), ErrShortRecord)
	}
	return Message{
		Kind: Kind(int32(binary.LittleEndian.Uint32(b[0:4]))),
		Text: cString(b[offText:offFrom]),
		From: cString(b[offFrom:offTo]),
		To:   cString(b[offTo:RecordSize]),
	}, nil
}

// ReadMessage reads exactly one record from r.
// A partial record is reported as io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader) (Message, error) {
	var buf [RecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Message{}, err
	}
	return Decode(buf[:])
}

// WriteMessage writes m as a single record.
func WriteMessage(w io.Writer, m Message) error {
	buf := Encode(m)
	_, err := w.Write(buf[:])
	return err
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
