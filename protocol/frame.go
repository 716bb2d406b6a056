package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const MaxPacketSize = 64 * 1024

var ErrPacketSize = errors.New("packet size is invalid")

// ReadFrame reads one message prefixed by its 4-byte big-endian length.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32

	err := binary.Read(r, binary.BigEndian, &length)
	if err != nil {
		return nil, err
	}

	if length == 0 || length > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d", ErrPacketSize, length)
	}

	data := make([]byte, length)

	_, err = io.ReadFull(r, data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFrame writes data prefixed by its 4-byte big-endian length in a single write.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 || len(data) > MaxPacketSize {
		return fmt.Errorf("%w: %d", ErrPacketSize, len(data))
	}

	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], data)

	_, err := w.Write(out)
	return err
}
