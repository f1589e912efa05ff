package proto

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

// Registration result codes. Any negative value is a rejection.
const (
	ResultAccepted          int32 = 1
	ResultDuplicateUsername int32 = -1
	ResultInvalidUsername   int32 = -2
	ResultUnavailable       int32 = -3
)

// ErrEmptyUsername is returned when the peer sent no usable name.
var ErrEmptyUsername = errors.New("empty username")

// ReadUsername performs the single bounded read of the registration handshake.
// The name is not framed: whatever the first read returns, up to NameSize bytes, is the name.
func ReadUsername(r io.Reader) (string, error) {
	buf := make([]byte, NameSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil {
			err = ErrEmptyUsername
		}
		return "", err
	}
	name := strings.TrimSpace(cString(buf[:n]))
	if name == "" {
		return "", ErrEmptyUsername
	}
	return name, nil
}

// WriteUsername sends the proposed name as raw bytes.
func WriteUsername(w io.Writer, name string) error {
	_, err := io.WriteString(w, Truncate(name, NameSize))
	return err
}

// WriteResult sends the registration outcome.
func WriteResult(w io.Writer, code int32) error {
	return binary.Write(w, binary.LittleEndian, code)
}

// ReadResult reads the registration outcome.
func ReadResult(r io.Reader) (int32, error) {
	var code int32
	if err := binary.Read(r, binary.LittleEndian, &code); err != nil {
		return 0, err
	}
	return code, nil
}
