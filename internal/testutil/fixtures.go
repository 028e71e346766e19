package testutil

import (
	"path/filepath"
	"testing"
)

// SampleBitcode is stand-in content for a starting bitcode artifact. It
// carries the LLVM bitcode magic so anything sniffing the header sees a
// plausible file.
var SampleBitcode = []byte("BC\xc0\xde" + "loom test module: main, worker, lock_acquire")

// SampleStub is stand-in content for the runtime stub merged by the
// inline stage.
var SampleStub = []byte("BC\xc0\xde" + "loom runtime stub")

// SampleFixSource is a minimal .lm fix description.
const SampleFixSource = `critical_region hotfix_a
  enter mysqld.cc:1021
  exit  mysqld.cc:1048
`

// SampleCommands is a realistic operator session.
var SampleCommands = []string{
	"get_name",
	"add 7 hotfix_a",
	"add 9 lock_order",
	"ls",
	"del 7",
	"del 7",
}

// WriteBitcode writes SampleBitcode as name in a fresh temp directory and
// returns its path.
func WriteBitcode(t *testing.T, name string) string {
	t.Helper()
	return WriteTestFile(t, t.TempDir(), name, SampleBitcode)
}

// WriteFixSource writes SampleFixSource as name next to dir and returns its path.
func WriteFixSource(t *testing.T, dir, name string) string {
	t.Helper()
	return WriteTestFile(t, dir, name, []byte(SampleFixSource))
}

// PathIn joins dir and name. It exists so table tests can name outputs
// without repeating filepath.Join.
func PathIn(dir, name string) string {
	return filepath.Join(dir, name)
}
