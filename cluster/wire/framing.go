package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrameSize is the default upper bound on one frame's payload
// size (spec §6: "max frame size SHOULD be configurable (default >= 1
// MiB)").
const DefaultMaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned by ReadFrame when the advertised length
// prefix exceeds maxFrameSize.
type ErrFrameTooLarge struct {
	Size, Max int
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("wire: frame size %d exceeds max %d", e.Size, e.Max)
}

// WriteFrame writes a 4-byte big-endian length prefix followed by
// payload (spec §4.7/§6 framing).
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting any frame whose
// advertised length exceeds maxFrameSize (or DefaultMaxFrameSize if <=0).
func ReadFrame(r io.Reader, maxFrameSize int) ([]byte, error) {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	size := int(binary.BigEndian.Uint32(lenBuf[:]))
	if size > maxFrameSize {
		return nil, &ErrFrameTooLarge{Size: size, Max: maxFrameSize}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}
	return body, nil
}
