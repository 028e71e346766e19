package pipeline

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Kind identifies what compilation stage an artifact belongs to.
type Kind int

const (
	Bitcode Kind = iota
	Assembly
	Executable
	Filter
)

func (k Kind) String() string {
	switch k {
	case Bitcode:
		return "bitcode"
	case Assembly:
		return "assembly"
	case Executable:
		return "executable"
	case Filter:
		return "filter"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Artifact is a build product on disk. The orchestrator never rewrites an
// artifact once the stage that produced it has finished, and never deletes
// one: intermediates stay behind for inspection.
type Artifact struct {
	Kind Kind
	// Stage that produced the artifact. Zero for the starting input.
	Stage Stage
	Path  string
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s %s", a.Kind, a.Path)
}

// Digest returns the hex BLAKE3 digest of the artifact's content.
func (a Artifact) Digest() (string, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", a.Path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// exists reports whether the artifact is present as a regular file.
func (a Artifact) exists() bool {
	info, err := os.Stat(a.Path)
	return err == nil && info.Mode().IsRegular()
}
