package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"tiksound/domain/media"
)

// DefaultTimeout bounds every external tool invocation
const DefaultTimeout = 3 * time.Minute

// maxStderrInError caps how much stderr is copied into error messages
const maxStderrInError = 2048

// Result is the captured outcome of a finished process
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner defines the interface for running external commands.
// This allows replacing exec.Command in tests.
type Runner interface {
	// Run executes name with args to completion. A nonzero exit returns the
	// populated Result together with an *ExitError.
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExitError reports a nonzero exit or an aborted run
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
	cause    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.cause != nil && !isExit(e.cause) {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap exposes both the tool-failed sentinel and the underlying cause
func (e *ExitError) Unwrap() []error {
	if e.cause == nil {
		return []error{media.ErrToolFailed}
	}
	return []error{media.ErrToolFailed, e.cause}
}

func isExit(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// ExecRunner is the production implementation using os/exec
type ExecRunner struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// RunnerOption is a functional option for configuring ExecRunner
type RunnerOption func(*ExecRunner)

// WithTimeout sets the per-invocation timeout
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		r.Timeout = d
	}
}

// WithLogger sets the logger used for invocation diagnostics
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *ExecRunner) {
		r.Logger = l
	}
}

// NewExecRunner creates a new ExecRunner
func NewExecRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		Timeout: DefaultTimeout,
		Logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	return r
}

// Run implements Runner. The child is killed if ctx is cancelled or the
// timeout elapses, and its pipes are released before Run returns.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	if err := ctx.Err(); err != nil {
		return nil, &ExitError{Tool: name, ExitCode: -1, cause: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", media.ErrToolUnavailable, name, err)
	}

	waitErr := cmd.Wait()
	result := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	r.Logger.Debug("external tool finished",
		zap.String("tool", name),
		zap.Int("args", len(args)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
	)

	if waitErr == nil {
		return result, nil
	}

	exitErr := &ExitError{
		Tool:     name,
		ExitCode: result.ExitCode,
		Stderr:   truncate(strings.TrimSpace(stderr.String()), maxStderrInError),
		cause:    waitErr,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		exitErr.cause = ctxErr
	}
	return result, exitErr
}

// LookPath reports whether name resolves to an executable
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s: %v", media.ErrToolUnavailable, name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ Runner = (*ExecRunner)(nil)
