package bridge

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/keytap/keytap/pkg/consts"
	"github.com/keytap/keytap/pkg/util/errutil"
)

// ExitStatus describes how an agent process ended
type ExitStatus struct {
	Code int
	Err  error
}

// Process is one running agent subprocess. The supervisor owns the
// returned pipes and calls Wait exactly once after both output pipes
// reach EOF.
type Process interface {
	Pid() int
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() ExitStatus
	Signal(sig os.Signal) error
	Kill() error
}

// Spawner launches agent subprocesses
type Spawner interface {
	Spawn(ctx context.Context, cmdline []string) (Process, error)
}

// DefaultAgentCommand locates the agent executable. An agent binary
// next to the current executable wins over a PATH lookup.
func DefaultAgentCommand() []string {
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), consts.AgentAppName)
		if _, err := os.Stat(sibling); err == nil {
			return []string{sibling}
		}
	}

	return []string{consts.AgentAppName}
}

type execSpawner struct{}

func (ref *execSpawner) Spawn(ctx context.Context, cmdline []string) (Process, error) {
	if len(cmdline) == 0 {
		return nil, errors.New("empty agent command line")
	}

	cmd := exec.Command(cmdline[0], cmdline[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (ref *execProcess) Pid() int {
	return ref.cmd.Process.Pid
}

func (ref *execProcess) Stdin() io.WriteCloser {
	return ref.stdin
}

func (ref *execProcess) Stdout() io.Reader {
	return ref.stdout
}

func (ref *execProcess) Stderr() io.Reader {
	return ref.stderr
}

// Wait reaps the agent process. Wait also closes the remaining pipe
// handles, so it must run after the output pipes are drained.
func (ref *execProcess) Wait() ExitStatus {
	err := ref.cmd.Wait()
	if err == nil {
		return ExitStatus{Code: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode(), Err: err}
	}

	if errutil.IsNoChildProcesses(err) {
		//lost the reap race for a fast exit, treated as a clean one
		return ExitStatus{Code: 0}
	}

	return ExitStatus{Code: -1, Err: err}
}

func (ref *execProcess) Signal(sig os.Signal) error {
	return ref.cmd.Process.Signal(sig)
}

func (ref *execProcess) Kill() error {
	return ref.cmd.Process.Kill()
}
