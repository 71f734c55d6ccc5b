package agentloop

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"
)

// DefaultCommandTimeout bounds command execution when no timeout is
// configured.
const DefaultCommandTimeout = 300 * time.Second

// Outcome is the normalized result of attempting to run a shell command.
// The same shape is used whether the command ran, timed out, or failed to
// spawn: command failures are data, not control-flow signals.
type Outcome struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
}

// CommandExecutor runs shell command strings with a bounded timeout,
// capturing stdout, stderr, and the exit code as text.
type CommandExecutor struct {
	workingDir string
	timeout    time.Duration
	status     io.Writer
}

// ExecutorOption configures a CommandExecutor.
type ExecutorOption func(*CommandExecutor)

// WithTimeout overrides the default command timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *CommandExecutor) {
		e.timeout = timeout
	}
}

// WithStatusWriter sets the destination for progress lines. Pass nil to
// silence them in non-interactive contexts.
func WithStatusWriter(w io.Writer) ExecutorOption {
	return func(e *CommandExecutor) {
		e.status = w
	}
}

// NewCommandExecutor creates an executor rooted at workingDir. An empty
// workingDir resolves to the process working directory.
func NewCommandExecutor(workingDir string, opts ...ExecutorOption) *CommandExecutor {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	e := &CommandExecutor{
		workingDir: workingDir,
		timeout:    DefaultCommandTimeout,
		status:     os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WorkingDirectory returns the directory commands run in.
func (e *CommandExecutor) WorkingDirectory() string {
	return e.workingDir
}

// Timeout returns the configured command timeout.
func (e *CommandExecutor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs command through a shell, bounded by the configured timeout.
// The description is only used for progress lines. Execute never returns a
// Go error; every failure mode is folded into the Outcome:
//
//   - timeout: empty stdout, timeout message in stderr, exit code -1. The
//     process group is killed so nothing is left running.
//   - spawn failure: empty stdout, failure message in stderr, exit code -1.
//   - nonzero exit: captured output with the real exit code.
func (e *CommandExecutor) Execute(ctx context.Context, command, description string) Outcome {
	e.statusf("\n> Executing: %s\n", description)
	e.statusf("  Command: %s\n", command)

	timeout := e.timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell, shellArg := "/bin/bash", "-c"
	if runtime.GOOS == "windows" {
		shell, shellArg = "cmd.exe", "/c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, command)
	cmd.Dir = e.workingDir

	// Own process group so a timeout kill takes children down too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	outcome := Outcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
			outcome = Outcome{
				Stderr:   fmt.Sprintf("Command timed out after %d seconds", int(timeout.Seconds())),
				ExitCode: -1,
			}
		default:
			if exitErr, ok := err.(*exec.ExitError); ok {
				outcome.ExitCode = exitErr.ExitCode()
			} else {
				outcome = Outcome{
					Stderr:   fmt.Sprintf("Error executing command: %v", err),
					ExitCode: -1,
				}
			}
		}
	}

	outcome.Success = outcome.ExitCode == 0

	if outcome.Success {
		e.statusf("  ✓ Success (exit code: %d)\n", outcome.ExitCode)
	} else {
		e.statusf("  ✗ Failed (exit code: %d)\n", outcome.ExitCode)
	}

	return outcome
}

func (e *CommandExecutor) statusf(format string, args ...interface{}) {
	if e.status == nil {
		return
	}
	fmt.Fprintf(e.status, format, args...)
}
