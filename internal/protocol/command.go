package protocol

import (
	"strconv"
	"strings"
)

// Command operation names as they appear on the wire. They are
// case-sensitive.
const (
	OpGetName = "get_name"
	OpAdd     = "add"
	OpDel     = "del"
	OpList    = "ls"
)

// Usage strings returned for malformed commands.
const (
	UsageAdd = "add <fix_id> <extension>"
	UsageDel = "del <fix_id>"
)

// Command is a decoded control request. The set of implementations is
// closed: GetName, Add, Del, List, Malformed and Unknown.
type Command interface {
	// String returns the wire payload for the command.
	String() string
	isCommand()
}

// GetName asks the endpoint to identify the running process.
type GetName struct{}

// Add installs the fix ID backed by Extension, replacing any fix with
// the same ID.
type Add struct {
	ID        int
	Extension string
}

// Del removes the fix ID if present.
type Del struct {
	ID int
}

// List asks for the current fix set.
type List struct{}

// Malformed is a known operation with missing or invalid arguments.
type Malformed struct {
	Op    string
	Raw   string
	Usage string
}

// Unknown is any payload whose operation is not recognised, including
// the empty payload.
type Unknown struct {
	Raw string
}

func (GetName) isCommand()   {}
func (Add) isCommand()       {}
func (Del) isCommand()       {}
func (List) isCommand()      {}
func (Malformed) isCommand() {}
func (Unknown) isCommand()   {}

func (GetName) String() string { return OpGetName }

func (c Add) String() string {
	return OpAdd + " " + strconv.Itoa(c.ID) + " " + c.Extension
}

func (c Del) String() string {
	return OpDel + " " + strconv.Itoa(c.ID)
}

func (List) String() string { return OpList }

func (c Malformed) String() string { return c.Raw }

func (c Unknown) String() string { return c.Raw }

// Op returns the first token of the raw payload, or "" if it is blank.
func (c Unknown) Op() string {
	fields := strings.Fields(c.Raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ParseCommand decodes a payload into a Command. Tokens are separated by
// any run of whitespace. Fix IDs must be non-negative decimal integers
// and extra arguments make a command malformed.
func ParseCommand(payload string) Command {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return Unknown{Raw: payload}
	}

	switch fields[0] {
	case OpGetName:
		if len(fields) != 1 {
			return Malformed{Op: OpGetName, Raw: payload, Usage: OpGetName}
		}
		return GetName{}

	case OpAdd:
		if len(fields) != 3 {
			return Malformed{Op: OpAdd, Raw: payload, Usage: UsageAdd}
		}
		id, ok := parseFixID(fields[1])
		if !ok {
			return Malformed{Op: OpAdd, Raw: payload, Usage: UsageAdd}
		}
		return Add{ID: id, Extension: fields[2]}

	case OpDel:
		if len(fields) != 2 {
			return Malformed{Op: OpDel, Raw: payload, Usage: UsageDel}
		}
		id, ok := parseFixID(fields[1])
		if !ok {
			return Malformed{Op: OpDel, Raw: payload, Usage: UsageDel}
		}
		return Del{ID: id}

	case OpList:
		if len(fields) != 1 {
			return Malformed{Op: OpList, Raw: payload, Usage: OpList}
		}
		return List{}
	}

	return Unknown{Raw: payload}
}

// parseFixID accepts plain decimal digits only: no sign, no spaces.
func parseFixID(s string) (int, bool) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
