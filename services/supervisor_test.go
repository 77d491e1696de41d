package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The supervisor is interpreter-agnostic, so the tests drive it with sh
// instead of a real interpreter runtime.
func newShSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	return NewSupervisor("sh", t.TempDir())
}

func writeScript(t *testing.T, ws *Workspace, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(ws.ScriptPath, []byte(body), 0644))
}

func TestNewWorkspace(t *testing.T) {
	s := newShSupervisor(t)

	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	info, err := os.Stat(ws.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, filepath.Join(ws.Dir, ScriptFileName), ws.ScriptPath)
	assert.Equal(t, filepath.Join(ws.Dir, DataFileName), ws.DataPath)
	assert.Equal(t, filepath.Join(ws.Dir, ResultFileName), ws.ResultPath)

	// Two workspaces never collide
	ws2, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws2.Cleanup()
	assert.NotEqual(t, ws.Dir, ws2.Dir)
}

func TestRunCapturesStreamsAndExitCode(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	writeScript(t, ws, "echo out-line\necho err-line >&2\nexit 0\n")

	out := s.Run(context.Background(), ws, 5*time.Second)
	assert.Equal(t, "out-line\n", out.Stdout)
	assert.Equal(t, "err-line\n", out.Stderr)
	assert.Equal(t, 0, out.ExitCode)
	assert.False(t, out.TimedOut)
}

func TestRunNonZeroExit(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	writeScript(t, ws, "exit 7\n")

	out := s.Run(context.Background(), ws, 5*time.Second)
	assert.Equal(t, 7, out.ExitCode)
	assert.False(t, out.TimedOut)
}

func TestRunWorkingDirectoryIsWorkspace(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	// Scripts refer to interchange files by relative name
	writeScript(t, ws, "echo '{\"ok\": true}' > "+ResultFileName+"\n")

	out := s.Run(context.Background(), ws, 5*time.Second)
	require.Equal(t, 0, out.ExitCode)

	data, err := os.ReadFile(ws.ResultPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ok")
}

func TestRunTimeout(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	writeScript(t, ws, "echo before-sleep\nsleep 5\necho after-sleep\n")

	start := time.Now()
	out := s.Run(context.Background(), ws, 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, out.TimedOut)
	assert.Equal(t, -1, out.ExitCode)
	assert.Contains(t, out.Stderr, "timed out")
	assert.Less(t, elapsed, 3*time.Second, "process must be killed at the deadline, not waited out")

	// Output produced before the kill survives
	assert.Contains(t, out.Stdout, "before-sleep")
	assert.NotContains(t, out.Stdout, "after-sleep")
}

func TestRunCancel(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	writeScript(t, ws, "sleep 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out := s.Run(ctx, ws, 30*time.Second)
	assert.False(t, out.TimedOut)
	assert.Equal(t, -1, out.ExitCode)
	assert.Contains(t, out.Stderr, "canceled")
}

func TestRunSpawnFailure(t *testing.T) {
	s := NewSupervisor("/nonexistent/interpreter-binary", t.TempDir())
	ws, err := s.NewWorkspace()
	require.NoError(t, err)
	defer ws.Cleanup()

	writeScript(t, ws, "exit 0\n")

	out := s.Run(context.Background(), ws, time.Second)
	assert.Equal(t, 1, out.ExitCode)
	assert.False(t, out.TimedOut)
	assert.Contains(t, out.Stderr, "failed to start interpreter")
}

func TestRunInterpreter(t *testing.T) {
	s := NewSupervisor("sh", t.TempDir())

	out := s.RunInterpreter(context.Background(), 5*time.Second, "-c", "echo aux")
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "aux\n", out.Stdout)
}

func TestWorkspaceCleanup(t *testing.T) {
	s := newShSupervisor(t)
	ws, err := s.NewWorkspace()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(ws.DataPath, []byte("{}"), 0644))

	ws.Cleanup()
	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err))

	// Cleanup is safe to repeat and safe on a nil workspace
	ws.Cleanup()
	var nilWs *Workspace
	nilWs.Cleanup()
}
