package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Executor runs stage invocations. This abstraction allows for testing
// without a real toolchain.
type Executor interface {
	// Execute runs inv to completion. lineCallback receives each line the
	// process writes to stderr, and to stdout when stdout is not
	// redirected. A process that exits non-zero yields an *ExitError.
	Execute(ctx context.Context, inv Invocation, lineCallback func(string)) error
}

// ExitError reports a stage process that ran and exited non-zero.
type ExitError struct {
	Program string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Program, e.Code)
}

// LocalExecutor runs stages as child processes of the current process.
type LocalExecutor struct {
	// Dir is the working directory for stage processes. Empty means the
	// current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// NewLocalExecutor creates a LocalExecutor that runs in the current
// directory with the inherited environment.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute runs inv locally.
func (e *LocalExecutor) Execute(ctx context.Context, inv Invocation, lineCallback func(string)) error {
	if inv.Program == "" {
		return fmt.Errorf("no program specified for stage %s", inv.Stage)
	}

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	if inv.Stdin != "" {
		in, err := os.Open(inv.Stdin)
		if err != nil {
			return fmt.Errorf("failed to open stage input: %w", err)
		}
		defer in.Close()
		cmd.Stdin = in
	}

	var streams []io.Reader
	var redirect *os.File
	if inv.Stdout != "" {
		out, err := os.Create(inv.Stdout)
		if err != nil {
			return fmt.Errorf("failed to create stage output: %w", err)
		}
		redirect = out
		cmd.Stdout = out
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		streams = append(streams, stdout)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeRedirect(redirect, true)
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	streams = append(streams, stderr)

	if err := cmd.Start(); err != nil {
		closeRedirect(redirect, true)
		return fmt.Errorf("failed to start %s: %w", inv.Program, err)
	}

	errCh := make(chan error, len(streams))
	for _, r := range streams {
		go func(r io.Reader) {
			scanner := bufio.NewScanner(r)
			buf := make([]byte, 64*1024)
			scanner.Buffer(buf, 1024*1024)
			for scanner.Scan() {
				if lineCallback != nil {
					lineCallback(scanner.Text())
				}
			}
			errCh <- scanner.Err()
		}(r)
	}
	var streamErr error
	for range streams {
		if err := <-errCh; err != nil && streamErr == nil {
			streamErr = err
		}
	}

	waitErr := cmd.Wait()
	closeRedirect(redirect, waitErr != nil)

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", inv.Program, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Program: inv.Program, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("%s failed: %w", inv.Program, waitErr)
	}
	if streamErr != nil {
		return fmt.Errorf("failed to read %s output: %w", inv.Program, streamErr)
	}
	return nil
}

// closeRedirect closes a stdout redirect file, removing it when the
// process failed so no partial artifact is left behind.
func closeRedirect(f *os.File, failed bool) {
	if f == nil {
		return
	}
	f.Close()
	if failed {
		os.Remove(f.Name())
	}
}

// MockExecutor is a test double for Executor.
type MockExecutor struct {
	// ExecuteFunc is called when Execute is invoked.
	// If nil, Execute returns nil.
	ExecuteFunc func(ctx context.Context, inv Invocation, lineCallback func(string)) error
}

// Execute calls the mock function if set.
func (m *MockExecutor) Execute(ctx context.Context, inv Invocation, lineCallback func(string)) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, inv, lineCallback)
	}
	return nil
}
