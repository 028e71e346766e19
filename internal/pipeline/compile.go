package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/thruflo/loom/internal/logging"
)

// FixSourceExt is the required suffix of a fix description.
const FixSourceExt = ".lm"

// ErrNotFixSource is returned by CompileFix for a path without the .lm suffix.
var ErrNotFixSource = errors.New("fix description must end with " + FixSourceExt)

// CompileOptions configures CompileFix.
type CompileOptions struct {
	Tools    Toolchain
	Executor Executor
	Logger   *logging.Logger
}

// FilterPath is where CompileFix writes the filter for lmPath.
func FilterPath(lmPath string) string {
	return strings.TrimSuffix(lmPath, FixSourceExt) + ".filter"
}

// CompileFix analyses bitcode against the fix description at lmPath and
// writes the resulting filter next to it. The bitcode should be the same
// module the running program was instrumented from.
func CompileFix(ctx context.Context, bitcode, lmPath string, opts CompileOptions) (Artifact, error) {
	if !strings.HasSuffix(lmPath, FixSourceExt) || len(lmPath) == len(FixSourceExt) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFixSource, lmPath)
	}
	for _, p := range []string{bitcode, lmPath} {
		info, err := os.Stat(p)
		if err != nil {
			return Artifact{}, fmt.Errorf("invalid input: %w", err)
		}
		if !info.Mode().IsRegular() {
			return Artifact{}, fmt.Errorf("invalid input: %s is not a regular file", p)
		}
	}
	if opts.Tools.Opt == "" {
		return Artifact{}, errors.New("toolchain: opt not configured")
	}

	executor := opts.Executor
	if executor == nil {
		executor = NewLocalExecutor()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	inv := compileInvocation(opts.Tools, bitcode, lmPath)
	sr := runStage(ctx, executor, logger.WithComponent("pipeline"), inv)
	if sr.Err != nil {
		return Artifact{}, &StageError{Stage: StageCompileFix, ExitCode: sr.ExitCode, Err: sr.Err}
	}
	return inv.Output, nil
}

func compileInvocation(tools Toolchain, bitcode, lmPath string) Invocation {
	out := Artifact{Kind: Filter, Stage: StageCompileFix, Path: FilterPath(lmPath)}
	args := loadArgs(tools.CompilePlugins)
	args = append(args, "-compile", "-lm", lmPath, "-analyze", "-q")
	return Invocation{
		Stage:   StageCompileFix,
		Program: tools.Opt,
		Args:    args,
		Stdin:   bitcode,
		Stdout:  out.Path,
		Input:   Artifact{Kind: Bitcode, Path: bitcode},
		Output:  out,
	}
}
