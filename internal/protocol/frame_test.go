package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(length uint32) []byte {
	h := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(h, length)
	return h
}

func TestWriteFrame_WireFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, "get_name"))

	want := append([]byte{0x00, 0x00, 0x00, 0x08}, "get_name"...)
	assert.Equal(t, want, buf.Bytes(), "length prefix must count the payload only")
}

func TestFrameRoundTrip_AllLengths(t *testing.T) {
	t.Parallel()

	for n := 0; n < MaxFrameSize; n++ {
		payload := bytes.Repeat([]byte{byte('a' + n%26)}, n)

		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, payload), "length %d", n)
		require.Equal(t, HeaderSize+n, buf.Len())

		got, err := ReadFrame(&buf)
		require.NoError(t, err, "length %d", n)
		require.Equal(t, payload, got, "length %d", n)
		require.Zero(t, buf.Len(), "frame of length %d left bytes behind", n)
	}
}

func TestFrameRoundTrip_Sequence(t *testing.T) {
	t.Parallel()

	msgs := []string{"get_name", "add 7 hotfix_a", "", "del 7", "ls"}

	var buf bytes.Buffer
	for _, m := range msgs {
		require.NoError(t, WriteMessage(&buf, m))
	}
	for _, m := range msgs {
		got, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteFrame_TooLarge(t *testing.T) {
	t.Parallel()

	for _, n := range []int{MaxFrameSize, MaxFrameSize + 1, 4096} {
		var buf bytes.Buffer
		err := WriteFrame(&buf, make([]byte, n))
		require.ErrorIs(t, err, ErrFrameTooLarge)
		assert.Zero(t, buf.Len(), "nothing may be written for an oversized frame")
	}
}

func TestReadFrame_TooLargeDoesNotReadPayload(t *testing.T) {
	t.Parallel()

	for _, length := range []uint32{MaxFrameSize, 2000, 1 << 31} {
		body := bytes.Repeat([]byte("x"), 2000)
		r := bytes.NewReader(append(header(length), body...))

		_, err := ReadFrame(r)
		require.ErrorIs(t, err, ErrFrameTooLarge)
		assert.True(t, IsFramingError(err))
		assert.Equal(t, len(body), r.Len(), "payload bytes must not be consumed (length %d)", length)
	}
}

func TestReadFrame_ShortPayload(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader(append(header(10), "abc"...))

	_, err := ReadFrame(r)
	require.ErrorIs(t, err, ErrShortFrame)
	assert.True(t, IsFramingError(err))
}

func TestReadFrame_ShortHeader(t *testing.T) {
	t.Parallel()

	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00}))
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestReadFrame_CleanEOF(t *testing.T) {
	t.Parallel()

	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
	assert.False(t, IsFramingError(err))
}

func TestReadFrame_MaxAllowed(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("z", MaxFrameSize-1)
	r := bytes.NewReader(append(header(MaxFrameSize-1), payload...))

	got, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteFrame_WriterError(t *testing.T) {
	t.Parallel()

	err := WriteMessage(failingWriter{}, "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.False(t, IsFramingError(err))
}
