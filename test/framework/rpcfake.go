package framework

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"

	"github.com/cuemby/pkgrun/pkg/rpcclient"
)

// RPCCall records one request a FakeContainerInit received, for tests that
// assert on what a procedure actually sent (e.g. a signal number).
type RPCCall struct {
	ID     string
	Method string
	Params json.RawMessage
}

type fakeRPCRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type fakeRPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// FakeContainerInit is a reusable stand-in for a real containerinitd, for
// end-to-end tests that need a package's start_command/wait_command/
// send_signal/signal_group/log_* ops to have something to talk to without
// a real container. Grounded on pkg/ops/process_test.go's
// startFakeContainerInit, generalized into a type so callers can override
// individual methods' canned responses instead of only ever returning a
// fixed RunCommand pid.
type FakeContainerInit struct {
	// RunCommandPid is returned for every RunCommand call; defaults to 7.
	RunCommandPid int
	// Output, if set, is returned verbatim for every Output call instead
	// of the default {"exitCode":0} response.
	Output json.RawMessage

	mu    sync.Mutex
	calls []RPCCall
}

// Calls returns every request the fake has received so far, for tests
// that assert on what a procedure actually sent (e.g. signal number).
func (f *FakeContainerInit) Calls() []RPCCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RPCCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Listen starts the fake server on a unix socket at dir/ctl.sock and
// returns its path. Callers pass a t.TempDir()-backed dir so the socket is
// cleaned up with the rest of the test's temp files.
func (f *FakeContainerInit) Listen(t TestingT, dir string) string {
	t.Helper()
	if f.RunCommandPid == 0 {
		f.RunCommandPid = 7
	}

	socketPath := filepath.Join(dir, "ctl.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listening on fake container rpc socket: %v", err)
	}

	go f.serve(ln)
	return socketPath
}

func (f *FakeContainerInit) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *FakeContainerInit) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		var req fakeRPCRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}

		f.mu.Lock()
		f.calls = append(f.calls, RPCCall{ID: req.ID, Method: req.Method, Params: req.Params})
		f.mu.Unlock()

		var resp fakeRPCResponse
		resp.ID = req.ID
		switch req.Method {
		case rpcclient.MethodRunCommand:
			resp.Result, _ = json.Marshal(f.RunCommandPid)
		case rpcclient.MethodOutput:
			if f.Output != nil {
				resp.Result = f.Output
			} else {
				resp.Result, _ = json.Marshal(map[string]any{"exitCode": 0})
			}
		default:
			resp.Result, _ = json.Marshal(map[string]any{})
		}

		line, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return
		}
		_ = w.Flush()
	}
}
