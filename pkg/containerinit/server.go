package containerinit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/types"
)

// request/response mirror pkg/rpcclient's unexported wire types exactly:
// this server is the other end of that client's line-framed JSON protocol.
type request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     string           `json:"id"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  *rpcclient.Error `json:"error,omitempty"`
}

// commandRunner is the subset of *Supervisor the server depends on, so
// tests can exercise request dispatch against a fake without a real
// containerd task.
type commandRunner interface {
	RunCommand(ctx context.Context, gid types.ProcessGroupId, command string, args []string, strategy types.OutputStrategy) (types.ProcessId, error)
	SendSignal(ctx context.Context, pid types.ProcessId, signal uint32) error
	SignalGroup(ctx context.Context, gid types.ProcessGroupId, signal uint32) error
	Output(ctx context.Context, pid types.ProcessId) (json.RawMessage, error)
}

// Server accepts Container RPC connections on a unix socket, one connection
// per pkg/rpcclient.Client. Log requests are forwarded to logger rather
// than a runner method, since logging has no supervisor state to consult.
type Server struct {
	runner   commandRunner
	logger   zerolog.Logger
	listener net.Listener

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewServer wires a Server to runner (normally a *Supervisor).
func NewServer(runner commandRunner, logger zerolog.Logger) *Server {
	return &Server{runner: runner, logger: logger}
}

// Serve accepts connections on lis until it is closed.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() error {
	s.mu.Lock()
	lis := s.listener
	s.mu.Unlock()
	if lis == nil {
		return nil
	}
	err := lis.Close()
	s.wg.Wait()
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	w := bufio.NewWriter(conn)
	var writeMu sync.Mutex
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.logger.Warn().Err(err).Msg("malformed container rpc request")
			continue
		}

		go func(req request) {
			resp := s.dispatch(context.Background(), req)
			line, err := json.Marshal(resp)
			if err != nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if _, err := w.Write(append(line, '\n')); err != nil {
				return
			}
			_ = w.Flush()
		}(req)
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	result, err := s.call(ctx, req.Method, req.Params)
	if err != nil {
		return response{ID: req.ID, Error: &rpcclient.Error{Code: 1, Message: err.Error()}}
	}
	return response{ID: req.ID, Result: result}
}

func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	switch method {
	case rpcclient.MethodRunCommand:
		var p rpcclient.RunCommandParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		gid := types.ProcessGroupId(0)
		if p.Gid != nil {
			gid = *p.Gid
		}
		pid, err := s.runner.RunCommand(ctx, gid, p.Command, p.Args, p.Output)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pid)

	case rpcclient.MethodSendSignal:
		var p rpcclient.SendSignalParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		if err := s.runner.SendSignal(ctx, p.Pid, p.Signal); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case rpcclient.MethodSignalGroup:
		var p rpcclient.SignalGroupParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		if err := s.runner.SignalGroup(ctx, p.Gid, p.Signal); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case rpcclient.MethodOutput:
		var p rpcclient.OutputParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		return s.runner.Output(ctx, p.Pid)

	case rpcclient.MethodLog:
		var p rpcclient.LogParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		s.logAt(p.Level, p.Message)
		return json.Marshal(struct{}{})

	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func (s *Server) logAt(level, message string) {
	switch level {
	case "debug":
		s.logger.Debug().Msg(message)
	case "warn":
		s.logger.Warn().Msg(message)
	case "error":
		s.logger.Error().Msg(message)
	default:
		s.logger.Info().Msg(message)
	}
}
