package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thruflo/loom/internal/logging"
)

var (
	// ErrRunConsumed is returned by Execute on a Run that already ran.
	ErrRunConsumed = errors.New("pipeline run already executed")

	// ErrMissingOutput means a stage exited zero without writing its
	// declared output.
	ErrMissingOutput = errors.New("stage did not produce its output")
)

// LanguageMode selects the compiler driver for the final link.
type LanguageMode int

const (
	LanguageNative LanguageMode = iota
	LanguageCPP
)

func (m LanguageMode) String() string {
	if m == LanguageCPP {
		return "cpp"
	}
	return "native"
}

func (m LanguageMode) driver(tools Toolchain) string {
	if m == LanguageCPP {
		return tools.CXX
	}
	return tools.CC
}

// Options configures a Run.
type Options struct {
	// Inline merges the runtime stub into the bitcode before codegen.
	Inline   bool
	Language LanguageMode
	// LinkArgs are passed verbatim, in order, to the final link.
	LinkArgs []string

	Tools    Toolchain
	Executor Executor

	// Progress receives one status line per stage. Defaults to stderr.
	Progress io.Writer
	Logger   *logging.Logger
}

// StageError reports the stage that aborted a run.
type StageError struct {
	// Index is the stage's ordinal position in the run, or 0 for a
	// standalone stage.
	Index int
	Stage Stage
	// ExitCode is the process exit status, or -1 if the process did not
	// run to completion.
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("stage %d/%d (%s) failed: %v", e.Index, NumStages, e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageResult is the outcome of one planned stage.
type StageResult struct {
	Stage    Stage
	Input    Artifact
	Output   Artifact
	ExitCode int
	Duration time.Duration
	Skipped  bool
	Err      error
}

// OK reports whether the stage completed or was skipped.
func (r StageResult) OK() bool {
	return r.Err == nil
}

// RunResult is what a run produced. On failure it holds the stages that
// ran, the last one being the failure.
type RunResult struct {
	Stages   []StageResult
	Output   Artifact
	Duration time.Duration
}

// Run is a single, non-resumable instrumentation of one input.
type Run struct {
	input  string
	output string
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	consumed bool
}

// NewRun checks the run's paths and toolchain and binds them. Nothing is
// executed until Execute.
func NewRun(input, output string, opts Options) (*Run, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("invalid input: %s is not a regular file", input)
	}

	if output == "" {
		return nil, errors.New("output path is required")
	}
	if sameFile(input, output) {
		return nil, fmt.Errorf("output %s would overwrite the input", output)
	}
	dir := filepath.Dir(output)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("output directory %s does not exist", dir)
	}

	if err := validateToolchain(opts); err != nil {
		return nil, err
	}

	if opts.Executor == nil {
		opts.Executor = NewLocalExecutor()
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Run{
		input:  input,
		output: output,
		opts:   opts,
		logger: logger.WithComponent("pipeline"),
	}, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func validateToolchain(opts Options) error {
	tools := opts.Tools
	missing := func(what string) error {
		return fmt.Errorf("toolchain: %s not configured", what)
	}
	if tools.Opt == "" {
		return missing("opt")
	}
	if tools.LLC == "" {
		return missing("llc")
	}
	if opts.Language.driver(tools) == "" {
		return missing(opts.Language.String() + " compiler driver")
	}
	if tools.Runtime == "" {
		return missing("runtime support object (set DEFENS_ROOT or pipeline.runtime)")
	}
	if opts.Inline {
		if tools.Link == "" {
			return missing("bitcode linker")
		}
		if tools.Stub == "" {
			return missing("runtime stub (set LOOM_ROOT or pipeline.stub)")
		}
	}
	return nil
}

// Plan returns the invocations Execute would perform, in order.
func (r *Run) Plan() []Invocation {
	return plan(r.input, r.output, r.opts)
}

// Execute runs every stage in order, stopping at the first failure. It
// may be called once.
func (r *Run) Execute(ctx context.Context) (*RunResult, error) {
	r.mu.Lock()
	if r.consumed {
		r.mu.Unlock()
		return nil, ErrRunConsumed
	}
	r.consumed = true
	r.mu.Unlock()

	start := time.Now()
	result := &RunResult{}
	invocations := r.Plan()

	for i, inv := range invocations {
		index := i + 1
		r.status(index, inv)

		if inv.Skipped {
			r.logger.Debug("stage skipped", "stage", inv.Stage, "index", index)
			result.Stages = append(result.Stages, StageResult{
				Stage:   inv.Stage,
				Input:   inv.Input,
				Output:  inv.Output,
				Skipped: true,
			})
			continue
		}

		sr := runStage(ctx, r.opts.Executor, r.logger.With("index", index), inv)
		result.Stages = append(result.Stages, sr)
		if sr.Err != nil {
			result.Duration = time.Since(start)
			return result, &StageError{Index: index, Stage: inv.Stage, ExitCode: sr.ExitCode, Err: sr.Err}
		}
	}

	result.Output = invocations[len(invocations)-1].Output
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Run) status(index int, inv Invocation) {
	line := fmt.Sprintf("Stage %d/%d: %s", index, NumStages, inv.Stage.Description())
	if inv.Skipped {
		line += " (skipped)"
	}
	fmt.Fprintln(r.opts.Progress, line)
}

// runStage executes one invocation and checks that it produced its
// declared output.
func runStage(ctx context.Context, executor Executor, logger *logging.Logger, inv Invocation) StageResult {
	logger = logger.With("stage", inv.Stage)
	logger.Debug("invoking stage", "cmd", inv.CommandLine())

	sr := StageResult{Stage: inv.Stage, Input: inv.Input, Output: inv.Output}

	if err := ctx.Err(); err != nil {
		sr.ExitCode = -1
		sr.Err = err
		return sr
	}

	// Intermediates are cleared so a file left by an earlier run cannot
	// pass for this stage's output. The final executable is only compared,
	// since a failed run must leave it untouched.
	var before fileStamp
	if inv.Stage == StageLink {
		before = stampOf(inv.Output.Path)
	} else if err := os.Remove(inv.Output.Path); err != nil && !os.IsNotExist(err) {
		sr.ExitCode = -1
		sr.Err = fmt.Errorf("failed to clear stale output: %w", err)
		return sr
	}

	started := time.Now()
	err := executor.Execute(ctx, inv, func(line string) {
		logger.Debug(line)
	})
	sr.Duration = time.Since(started)

	if err != nil {
		sr.ExitCode = -1
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			sr.ExitCode = exitErr.Code
		}
		sr.Err = err
		logger.Debug("stage failed", "exit", sr.ExitCode, "duration", sr.Duration, "error", err)
		return sr
	}

	if !inv.Output.exists() || (before.info != nil && before.same(stampOf(inv.Output.Path))) {
		sr.Err = fmt.Errorf("%w: %s", ErrMissingOutput, inv.Output.Path)
		return sr
	}

	if logger.Level() <= logging.LevelDebug {
		digest, err := inv.Output.Digest()
		if err != nil {
			digest = "unavailable"
		}
		logger.Debug("stage done", "exit", sr.ExitCode, "duration", sr.Duration, "output", inv.Output.Path, "blake3", digest)
	}
	return sr
}

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	info os.FileInfo
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{info: info}
}

// same reports whether other is the same, unmodified file.
func (s fileStamp) same(other fileStamp) bool {
	if s.info == nil || other.info == nil {
		return false
	}
	return os.SameFile(s.info, other.info) &&
		s.info.Size() == other.info.Size() &&
		s.info.ModTime().Equal(other.info.ModTime())
}
