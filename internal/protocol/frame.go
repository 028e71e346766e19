// Package protocol implements the loom control channel wire format: a
// 4-byte big-endian length followed by that many payload bytes. The length
// counts the payload only, never the header itself. Payloads are UTF-8
// command and reply strings, decoded into a closed set of Command values
// at the protocol boundary.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the length prefix.
	HeaderSize = 4

	// MaxFrameSize bounds the payload. A declared length at or above it
	// is a framing error.
	MaxFrameSize = 1024
)

var (
	// ErrFrameTooLarge is returned when a frame's declared or actual
	// payload length is at least MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrShortFrame is returned when the peer closes the stream partway
	// through a header or payload.
	ErrShortFrame = errors.New("short frame")
)

// WriteFrame writes payload to w as a single frame. Header and payload go
// out in one Write call so a frame is never interleaved with another
// writer's bytes at frame granularity.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) >= MaxFrameSize {
		return fmt.Errorf("write frame: %w: length = %d", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns its payload.
//
// It returns io.EOF if the stream ends cleanly before any header byte,
// ErrShortFrame (wrapping io.ErrUnexpectedEOF) if it ends mid-frame, and
// ErrFrameTooLarge without consuming any payload if the declared length
// is at least MaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read frame header: %w: %w", ErrShortFrame, err)
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length >= MaxFrameSize {
		return nil, fmt.Errorf("read frame: %w: length = %d", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if length == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read frame payload: %w: got fewer than %d bytes", ErrShortFrame, length)
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// WriteMessage frames and writes a string payload.
func WriteMessage(w io.Writer, msg string) error {
	return WriteFrame(w, []byte(msg))
}

// ReadMessage reads one frame and returns its payload as a string.
func ReadMessage(r io.Reader) (string, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// IsFramingError reports whether err means the stream can no longer be
// trusted to be at a frame boundary.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrShortFrame)
}
