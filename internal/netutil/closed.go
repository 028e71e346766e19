// Package netutil has small helpers shared by the control channel server
// and client.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// closeErrors are the ways a control session ends when the peer simply
// goes away between frames.
var closeErrors = []error{
	io.EOF,
	net.ErrClosed,
	syscall.EPIPE,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
}

// IsExpectedCloseError reports whether err (or anything it wraps) is one
// of the normal ways a session ends, so it can be logged quietly instead
// of as a failure.
func IsExpectedCloseError(err error) bool {
	for _, target := range closeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
