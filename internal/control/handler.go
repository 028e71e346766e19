package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thruflo/loom/internal/fixes"
	"github.com/thruflo/loom/internal/protocol"
)

// Handler turns one decoded command into exactly one reply payload.
type Handler interface {
	Handle(cmd protocol.Command) string
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cmd protocol.Command) string

// Handle calls f(cmd).
func (f HandlerFunc) Handle(cmd protocol.Command) string {
	return f(cmd)
}

// FixStore is the fix set owned by the update engine. *fixes.Set
// satisfies it.
type FixStore interface {
	Add(fix fixes.Fix) (replaced bool, err error)
	Remove(id int) (removed bool, err error)
	List() []fixes.Fix
}

// FixHandler answers identity queries and applies add/del to a FixStore.
type FixHandler struct {
	identity string
	store    FixStore
}

// NewFixHandler creates a handler. An empty identity falls back to
// DefaultIdentity.
func NewFixHandler(identity string, store FixStore) *FixHandler {
	if identity == "" {
		identity = DefaultIdentity()
	}
	return &FixHandler{identity: identity, store: store}
}

// DefaultIdentity returns "<absolute executable path> 0", the identity
// string instrumented processes have always answered get_name with.
func DefaultIdentity() string {
	path, err := os.Executable()
	if err != nil {
		return "unknown 0"
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path + " 0"
}

// Identity returns the get_name reply.
func (h *FixHandler) Identity() string {
	return h.identity
}

// Handle implements Handler.
func (h *FixHandler) Handle(cmd protocol.Command) string {
	switch c := cmd.(type) {
	case protocol.GetName:
		return h.identity

	case protocol.Add:
		replaced, err := h.store.Add(fixes.Fix{ID: c.ID, Extension: c.Extension})
		if err != nil {
			return fmt.Sprintf("ERR %s %d: %v", protocol.OpAdd, c.ID, err)
		}
		verb := "add"
		if replaced {
			verb = "replace"
		}
		return fmt.Sprintf("OK %s %d %s", verb, c.ID, c.Extension)

	case protocol.Del:
		removed, err := h.store.Remove(c.ID)
		if err != nil {
			return fmt.Sprintf("ERR %s %d: %v", protocol.OpDel, c.ID, err)
		}
		if !removed {
			return fmt.Sprintf("OK del %d (not present)", c.ID)
		}
		return fmt.Sprintf("OK del %d", c.ID)

	case protocol.List:
		var sb strings.Builder
		sb.WriteString("ID\textension")
		for _, fix := range h.store.List() {
			sb.WriteString("\n")
			sb.WriteString(fix.String())
		}
		return sb.String()

	case protocol.Malformed:
		return "format error: " + c.Usage

	case protocol.Unknown:
		op := c.Op()
		if op == "" {
			op = "(empty)"
		}
		return "Unknown command: " + op
	}

	return fmt.Sprintf("Unknown command: %s", cmd)
}
