package bachroot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Executor provides a consistent interface for executing commands,
// abstracting away the privilege escalation (sudo) logic.
type Executor struct {
	Context         context.Context // The context to use for cancellation
	ShouldRunAsRoot bool            // ShouldRunAsRoot specifies whether the command MUST be executed with root privileges.
	Interactive     bool            // Interactive indicates whether the command may prompt the user
}

func NewExecutor(ctx context.Context, asRoot bool) *Executor {
	return &Executor{Context: ctx, ShouldRunAsRoot: asRoot}
}

// ToolError reports an external program that could not be started at all.
// It is fatal for the whole operation.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

var errNotExecutable = errors.New("not an executable file")

// resolveTool finds the program the way exec would, but reports failure as
// a ToolError naming the tool. Paths are checked directly, bare names go
// through $PATH.
func resolveTool(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil {
			return "", &ToolError{Tool: name, Err: err}
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return "", &ToolError{Tool: name, Err: errNotExecutable}
		}
		return name, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &ToolError{Tool: name, Err: err}
	}
	return path, nil
}

// runInteractiveCommand executes a command, ensuring it's attached to the TTY for interactive prompts.
// It does not use process group isolation, making it suitable for commands like `sudo -v`.
func runInteractiveCommand(ctx context.Context, name string, arg ...string) error {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// context returns the executor's context, or context.Background when unset.
func (e *Executor) context() context.Context {
	if e.Context == nil {
		return context.Background()
	}
	return e.Context
}

// ensureSudo checks if the sudo ticket is still valid and re-prompts if necessary.
// No action needed if we are already root or the command doesn't require root.
func (e *Executor) ensureSudo(ctx context.Context) error {
	if os.Geteuid() == 0 || !e.ShouldRunAsRoot {
		return nil
	}
	checkCmd := exec.CommandContext(ctx, "sudo", "-nv")
	checkCmd.Stdout = io.Discard
	checkCmd.Stderr = io.Discard

	if err := checkCmd.Run(); err == nil {
		return nil
	}

	// The ticket has likely expired; re-authenticate on the TTY.
	colArrow.Print("-> ")
	colWarn.Println("Sudo ticket has expired. Re-authenticating")

	if err := runInteractiveCommand(ctx, "sudo", "-v"); err != nil {
		return fmt.Errorf("sudo re-authentication failed: %w", err)
	}
	return nil
}

// Run executes the given command, elevating via sudo -E only when needed,
// and blocks until it exits.
//
// A program that cannot be found or started yields a *ToolError. A program
// that ran and exited non-zero yields its *exec.ExitError.
func (e *Executor) Run(cmd *exec.Cmd) error {
	// --- Phase 0: wire up stdio ---
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// --- Phase 1: make sure the tool exists before involving sudo ---
	basePath, err := resolveTool(cmd.Args[0])
	if err != nil {
		return err
	}
	baseArgs := cmd.Args[1:]

	ctx := e.context()
	if err := e.ensureSudo(ctx); err != nil {
		return err
	}

	// --- Phase 2: build the final command ---
	var finalCmd *exec.Cmd
	if e.ShouldRunAsRoot && os.Geteuid() != 0 {
		args := append([]string{"-E", basePath}, baseArgs...)
		finalCmd = exec.CommandContext(ctx, "sudo", args...)
	} else {
		finalCmd = exec.CommandContext(ctx, basePath, baseArgs...)
	}
	finalCmd.Dir = cmd.Dir

	// preserve or inherit the environment
	if len(cmd.Env) > 0 {
		finalCmd.Env = cmd.Env
	} else {
		finalCmd.Env = os.Environ()
	}

	finalCmd.Stdin = cmd.Stdin
	finalCmd.Stdout = cmd.Stdout
	finalCmd.Stderr = cmd.Stderr

	// --- Phase 3: isolate process group for context-based cleanup ---
	if !e.Interactive {
		finalCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	debugf("running: %s", strings.Join(finalCmd.Args, " "))

	// --- Phase 4: start and watch for cancel ---
	if err := finalCmd.Start(); err != nil {
		return &ToolError{Tool: basePath, Err: err}
	}

	if !e.Interactive {
		pgid := finalCmd.Process.Pid

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				syscall.Kill(-pgid, syscall.SIGKILL)
			case <-done:
			}
		}()
	}

	// --- Phase 5: wait and return ---
	if waitErr := finalCmd.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %w", ctx.Err())
		}
		return waitErr
	}
	return nil
}

// exitFailure reports whether err is a started program exiting non-zero.
func exitFailure(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
