package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// killGrace is how long Shutdown and a mid-restart kill wait for the
// child to exit after stdin is closed before force-killing it.
const killGrace = 3 * time.Second

// stdioChild is one live subprocess and its piped streams.
type stdioChild struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	closer io.Closer // underlying stdout pipe, closed on teardown
	stderr io.ReadCloser
}

// StdioTransport spawns an MCP server as a child process and speaks
// line-delimited JSON-RPC over its stdin/stdout. Only one request is ever
// in flight per transport: the mutex held across Send's full
// write-then-read body is the serialization mechanism, not a pipelining
// optimization.
type StdioTransport struct {
	command     string
	args        []string
	env         map[string]string
	autoRestart bool

	spawn func() (*stdioChild, error)

	mu    sync.Mutex
	child *stdioChild
	alive atomic.Bool

	restartedMu sync.Mutex
	restarted   bool
}

// NewStdioTransport spawns command with args and env and returns a
// transport wrapping it. Only variables present in env are forwarded to
// the child — the parent's environment is not inherited.
func NewStdioTransport(command string, args []string, env map[string]string, autoRestart bool) (*StdioTransport, error) {
	if command == "" {
		return nil, newConfigError("stdio transport requires 'command'")
	}
	t := &StdioTransport{
		command:     command,
		args:        append([]string(nil), args...),
		env:         env,
		autoRestart: autoRestart,
	}
	t.spawn = func() (*stdioChild, error) { return spawnStdioChild(command, args, env) }

	child, err := t.spawn()
	if err != nil {
		return nil, newTransportError(fmt.Sprintf("failed to spawn MCP server: %s", command), err)
	}
	t.child = child
	t.alive.Store(true)
	return t, nil
}

// newStdioTransportWithSpawner builds a transport around a caller-supplied
// spawn function instead of a real exec.Command, so tests can exercise the
// framing, correlation, and restart logic against an in-memory fake server
// without launching a real OS process.
func newStdioTransportWithSpawner(spawn func() (*stdioChild, error), autoRestart bool) (*StdioTransport, error) {
	t := &StdioTransport{spawn: spawn, autoRestart: autoRestart}
	child, err := spawn()
	if err != nil {
		return nil, newTransportError("failed to spawn MCP server", err)
	}
	t.child = child
	t.alive.Store(true)
	return t, nil
}

func spawnStdioChild(command string, args []string, env map[string]string) (*stdioChild, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = make([]string, 0, len(env))
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command %q: %w", command, err)
	}

	return &stdioChild{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		closer: stdout,
		stderr: stderr,
	}, nil
}

// Send writes req as a single JSON line and reads lines until the
// correlated response arrives. On any failure, if auto-restart is
// enabled, the child is killed and respawned and the send retried exactly
// once; a second failure is propagated.
func (t *StdioTransport) Send(ctx context.Context, req JsonRpcRequest) (JsonRpcResponse, error) {
	resp, err := t.doSend(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !t.autoRestart {
		return JsonRpcResponse{}, err
	}

	if restartErr := t.restart(); restartErr != nil {
		return JsonRpcResponse{}, restartErr
	}
	t.setRestarted(true)

	resp, err = t.doSend(ctx, req)
	if err != nil {
		return JsonRpcResponse{}, err
	}
	return resp, nil
}

// ConsumeRestarted reports whether a restart happened since the last call
// and clears the flag. The session layer polls this after every Send to
// decide whether to transparently re-handshake before trusting the
// response's context (a freshly spawned child has not seen initialize).
func (t *StdioTransport) ConsumeRestarted() bool {
	t.restartedMu.Lock()
	defer t.restartedMu.Unlock()
	v := t.restarted
	t.restarted = false
	return v
}

func (t *StdioTransport) setRestarted(v bool) {
	t.restartedMu.Lock()
	t.restarted = v
	t.restartedMu.Unlock()
}

// doSend performs exactly one write-then-read-until-correlated attempt
// under the transport's exclusive lock.
func (t *StdioTransport) doSend(ctx context.Context, req JsonRpcRequest) (JsonRpcResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.alive.Load() || t.child == nil {
		return JsonRpcResponse{}, newTransportError("transport is not alive", nil)
	}

	line, err := json.Marshal(req)
	if err != nil {
		return JsonRpcResponse{}, newTransportError("failed to encode request", err)
	}
	line = append(line, '\n')

	type writeResult struct{ err error }
	writeDone := make(chan writeResult, 1)
	go func() {
		_, werr := t.child.stdin.Write(line)
		writeDone <- writeResult{werr}
	}()

	select {
	case <-ctx.Done():
		return JsonRpcResponse{}, newTimeoutError("write to MCP stdin", ctx.Err())
	case wr := <-writeDone:
		if wr.err != nil {
			t.alive.Store(false)
			return JsonRpcResponse{}, newTransportError("failed to write to MCP stdin", wr.err)
		}
	}

	// Notifications get no reply; return once the line is written rather
	// than waiting for a correlated response that never arrives.
	if strings.HasPrefix(req.Method, "notifications/") {
		return JsonRpcResponse{}, nil
	}

	return t.readCorrelated(ctx, req.ID)
}

type lineResult struct {
	line []byte
	err  error
}

func (t *StdioTransport) readCorrelated(ctx context.Context, id uint64) (JsonRpcResponse, error) {
	for {
		ch := make(chan lineResult, 1)
		go func() {
			b, err := t.child.stdout.ReadBytes('\n')
			ch <- lineResult{b, err}
		}()

		var lr lineResult
		select {
		case <-ctx.Done():
			return JsonRpcResponse{}, newTimeoutError("read from MCP stdout", ctx.Err())
		case lr = <-ch:
		}

		if lr.err != nil {
			if lr.err == io.EOF && len(lr.line) == 0 {
				t.alive.Store(false)
				return JsonRpcResponse{}, newTransportError("MCP server closed stdout (EOF)", nil)
			}
			t.alive.Store(false)
			return JsonRpcResponse{}, newTransportError("failed to read from MCP stdout", lr.err)
		}

		trimmed := bytes.TrimSpace(lr.line)
		if len(trimmed) == 0 {
			continue
		}
		if !gjson.ValidBytes(trimmed) {
			continue // stray non-JSON line: stderr noise leaked onto stdout
		}
		idResult := gjson.GetBytes(trimmed, "id")
		if !idResult.Exists() || idResult.Type != gjson.Number {
			continue // notification, or malformed — keep reading
		}
		if uint64(idResult.Uint()) != id {
			continue // reply to another in-flight caller; discard
		}

		var resp JsonRpcResponse
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return JsonRpcResponse{}, newDecodeError("response body was not parseable JSON-RPC")
		}
		return resp, nil
	}
}

// restart is called after doSend has returned and released the lock; it
// re-acquires the lock, kills the current child, and spawns a fresh one
// with the same command/args/env.
func (t *StdioTransport) restart() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.killLocked()

	child, err := t.spawn()
	if err != nil {
		t.alive.Store(false)
		return newTransportError("failed to respawn MCP server after crash", err)
	}
	t.child = child
	t.alive.Store(true)
	return nil
}

// killLocked shuts down stdin, waits briefly for a clean exit, then force
// kills. Caller must hold t.mu.
func (t *StdioTransport) killLocked() {
	if t.child == nil {
		return
	}
	_ = t.child.stdin.Close()

	if t.child.cmd != nil {
		done := make(chan struct{})
		go func() {
			_ = t.child.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(killGrace):
			if t.child.cmd.Process != nil {
				_ = t.child.cmd.Process.Kill()
			}
			<-done
		}
	}
	if t.child.closer != nil {
		_ = t.child.closer.Close()
	}
	t.child = nil
}

// Shutdown is idempotent. It releases the child, marking the transport
// dead. It is the only path that kills the child: no finalizer or other
// drop-time cleanup is registered, so a transport dropped without
// Shutdown leaves its subprocess running until it exits on its own.
func (t *StdioTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive.Store(false)
	t.killLocked()
	return nil
}

func (t *StdioTransport) IsAlive() bool {
	return t.alive.Load()
}

func (t *StdioTransport) Stderr() io.Reader {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.child == nil {
		return nil
	}
	return t.child.stderr
}
