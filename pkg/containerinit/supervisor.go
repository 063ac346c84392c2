package containerinit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cuemby/pkgrun/pkg/types"
)

// Namespace is the containerd namespace containerinitd operates in,
// narrowed from the teacher's DefaultNamespace ("warren") to this binary's
// own identity.
const Namespace = "pkgrun"

// Supervisor spawns and tracks the processes a package's procedures start
// inside one already-running containerd task, answering the Container RPC
// wire contract's RunCommand/SendSignal/SignalGroup/Output methods.
// Grounded on pkg/runtime.ContainerdRuntime's client/namespace handling,
// narrowed from whole-container lifecycle (pull/create/start/stop/delete)
// to exec'ing additional processes inside one already-running task, the
// capability this daemon's RunCommand actually needs.
type Supervisor struct {
	client  *containerd.Client
	task    containerd.Task
	journal *Journal

	mu      sync.Mutex
	byPid   map[types.ProcessId]*trackedProcess
	nextPid uint32
}

type trackedProcess struct {
	proc   containerd.Process
	gid    types.ProcessGroupId
	done   chan struct{}
	exit   int
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// NewSupervisor attaches to containerID's running task on client.
func NewSupervisor(ctx context.Context, client *containerd.Client, containerID string, journal *Journal) (*Supervisor, error) {
	ctx = namespaces.WithNamespace(ctx, Namespace)
	container, err := client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("loading container %s: %w", containerID, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("loading task for container %s: %w", containerID, err)
	}
	return &Supervisor{
		client:  client,
		task:    task,
		journal: journal,
		byPid:   make(map[types.ProcessId]*trackedProcess),
	}, nil
}

// RunCommand execs command inside the container's task and returns the
// pkgrun-local process id callers use for SendSignal/Output. Output
// collection is governed by strategy, matching rpcclient.RunCommandParams'
// Output field.
func (s *Supervisor) RunCommand(ctx context.Context, gid types.ProcessGroupId, command string, args []string, strategy types.OutputStrategy) (types.ProcessId, error) {
	ctx = namespaces.WithNamespace(ctx, Namespace)

	ambient, err := s.task.Spec(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading task spec: %w", err)
	}

	// Build the exec's process spec explicitly: argv is always this call's
	// own command, everything else is inherited from the container's
	// ambient process so the exec runs as the same user, in the same
	// working directory, with the same environment and capabilities.
	procSpec := specs.Process{
		Args:         append([]string{command}, args...),
		Cwd:          ambient.Process.Cwd,
		Env:          ambient.Process.Env,
		User:         ambient.Process.User,
		Capabilities: ambient.Process.Capabilities,
	}

	var stdout, stderr *bytes.Buffer
	var creator cio.Creator
	if strategy == types.OutputStrategyCollect {
		stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
		creator = cio.NewCreator(cio.WithStreams(nil, stdout, stderr))
	} else {
		creator = cio.NullIO
	}

	execID := uuid.NewString()
	proc, err := s.task.Exec(ctx, execID, &procSpec, creator)
	if err != nil {
		return 0, fmt.Errorf("exec %s: %w", command, err)
	}
	statusC, err := proc.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting on exec %s: %w", command, err)
	}
	if err := proc.Start(ctx); err != nil {
		return 0, fmt.Errorf("starting exec %s: %w", command, err)
	}

	pid := types.ProcessId(atomic.AddUint32(&s.nextPid, 1))
	tp := &trackedProcess{proc: proc, gid: gid, done: make(chan struct{}), stdout: stdout, stderr: stderr}

	s.mu.Lock()
	s.byPid[pid] = tp
	s.mu.Unlock()

	if s.journal != nil {
		_ = s.journal.Put(ProcessRecord{Pid: pid, Gid: gid, Command: command, Args: args})
	}

	go func() {
		status := <-statusC
		tp.exit = int(status.ExitCode())
		close(tp.done)

		if s.journal != nil {
			rec := ProcessRecord{Pid: pid, Gid: gid, Command: command, Args: args, ExitCode: &tp.exit}
			if stdout != nil {
				rec.Stdout = stdout.String()
			}
			if stderr != nil {
				rec.Stderr = stderr.String()
			}
			_ = s.journal.Put(rec)
		}
	}()

	return pid, nil
}

// SendSignal delivers signal to a single tracked process.
func (s *Supervisor) SendSignal(ctx context.Context, pid types.ProcessId, signal uint32) error {
	s.mu.Lock()
	tp, ok := s.byPid[pid]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown process %d", pid)
	}
	return tp.proc.Kill(ctx, syscall.Signal(signal))
}

// SignalGroup delivers signal to every live tracked process started under
// gid. Processes that have already exited are skipped. Only processes
// started since this containerinitd instance began are tracked: the journal
// is not consulted, so after a restart SignalGroup reaches no process of a
// group started before it and returns nil.
func (s *Supervisor) SignalGroup(ctx context.Context, gid types.ProcessGroupId, signal uint32) error {
	s.mu.Lock()
	var targets []*trackedProcess
	for _, tp := range s.byPid {
		if tp.gid != gid {
			continue
		}
		select {
		case <-tp.done:
			continue
		default:
		}
		targets = append(targets, tp)
	}
	s.mu.Unlock()

	var firstErr error
	for _, tp := range targets {
		if err := tp.proc.Kill(ctx, syscall.Signal(signal)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Output blocks until pid exits (or ctx is canceled) and returns its
// captured result as the json.RawMessage pkg/ops.WaitCommand forwards to
// the calling script.
func (s *Supervisor) Output(ctx context.Context, pid types.ProcessId) (json.RawMessage, error) {
	s.mu.Lock()
	tp, ok := s.byPid[pid]
	s.mu.Unlock()

	if !ok {
		if s.journal == nil {
			return nil, fmt.Errorf("unknown process %d", pid)
		}
		rec, found, err := s.journal.Get(pid)
		if err != nil {
			return nil, err
		}
		if !found || rec.ExitCode == nil {
			return nil, fmt.Errorf("unknown process %d", pid)
		}
		return outputJSON(*rec.ExitCode, rec.Stdout, rec.Stderr)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-tp.done:
	}

	stdout, stderr := "", ""
	if tp.stdout != nil {
		stdout = tp.stdout.String()
	}
	if tp.stderr != nil {
		stderr = tp.stderr.String()
	}
	return outputJSON(tp.exit, stdout, stderr)
}

func outputJSON(exitCode int, stdout, stderr string) (json.RawMessage, error) {
	return json.Marshal(struct {
		ExitCode int    `json:"exitCode"`
		Stdout   string `json:"stdout,omitempty"`
		Stderr   string `json:"stderr,omitempty"`
	}{ExitCode: exitCode, Stdout: stdout, Stderr: stderr})
}

// Close releases the supervisor's containerd client.
func (s *Supervisor) Close() error {
	return s.client.Close()
}
