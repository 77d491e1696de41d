package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunOutput is what one interpreter invocation produced
type RunOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Workspace is the per-invocation set of temporary files: the generated
// script, the marshaled data file, and the result envelope. It belongs to
// exactly one execution and is removed when that execution finishes.
type Workspace struct {
	Dir        string
	ScriptPath string
	DataPath   string
	ResultPath string
}

// Cleanup removes the workspace. Failures are logged and swallowed; they
// must never mask the primary execution result.
func (w *Workspace) Cleanup() {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Printf("workspace cleanup failed for %s: %v", w.Dir, err)
	}
}

// Supervisor owns the lifecycle of external interpreter processes: workspace
// allocation, spawn, stream capture, timeout enforcement, and termination.
type Supervisor struct {
	interpreter string
	baseDir     string
}

func NewSupervisor(interpreter, baseDir string) *Supervisor {
	return &Supervisor{
		interpreter: interpreter,
		baseDir:     baseDir,
	}
}

// NewWorkspace allocates a fresh uuid-named workspace directory
func (s *Supervisor) NewWorkspace() (*Workspace, error) {
	dir := filepath.Join(s.baseDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{
		Dir:        dir,
		ScriptPath: filepath.Join(dir, ScriptFileName),
		DataPath:   filepath.Join(dir, DataFileName),
		ResultPath: filepath.Join(dir, ResultFileName),
	}, nil
}

// Run executes the workspace script under the interpreter with a hard
// wall-clock timeout. Cancelling ctx terminates the child immediately, not
// just at timeout expiry. Spawn failures come back as a synthetic exit-1
// result; this method never panics past the supervisor boundary.
func (s *Supervisor) Run(ctx context.Context, ws *Workspace, timeout time.Duration) *RunOutput {
	return s.runProcess(ctx, timeout, ws.Dir, s.interpreter, ws.ScriptPath)
}

// RunInterpreter invokes the interpreter binary with arbitrary arguments,
// used for auxiliary calls like package installation
func (s *Supervisor) RunInterpreter(ctx context.Context, timeout time.Duration, args ...string) *RunOutput {
	return s.runProcess(ctx, timeout, "", s.interpreter, args...)
}

func (s *Supervisor) runProcess(ctx context.Context, timeout time.Duration, dir, name string, args ...string) *RunOutput {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	// A killed script can leave grandchildren holding the output pipes open;
	// without a wait delay, Wait would block until they exit on their own.
	cmd.WaitDelay = time.Second

	// Buffers receive writes as the process produces them, so partial
	// output survives a timeout kill.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &RunOutput{
			Stderr:   fmt.Sprintf("failed to start interpreter %q: %v", name, err),
			ExitCode: 1,
		}
	}

	err := cmd.Wait()

	out := &RunOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		out.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		out.ExitCode = -1
		if out.TimedOut && out.Stderr == "" {
			out.Stderr = fmt.Sprintf("execution timed out after %v", timeout)
		}
		if !out.TimedOut && out.Stderr == "" {
			out.Stderr = "execution canceled"
		}
		return out
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = 1
			if out.Stderr == "" {
				out.Stderr = err.Error()
			}
		}
	}

	return out
}
