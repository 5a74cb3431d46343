package stdiotransport

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/mcp/transport"
)

// defaultCloseGrace is how long Close waits for the subprocess to exit after
// its stdin is closed before it is killed.
const defaultCloseGrace = 5 * time.Second

// ClientTransport launches a tool-server subprocess and frames JSON-RPC over
// its stdin/stdout pipes. The subprocess's stderr is passed through to the
// host's stderr for diagnostics.
type ClientTransport struct {
	command    string
	args       []string
	env        []string
	closeGrace time.Duration

	mu             sync.RWMutex
	cmd            *exec.Cmd
	stream         *StreamTransport
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
}

var _ transport.Transport = (*ClientTransport)(nil)

// NewClientTransport creates a transport that will launch the given command.
func NewClientTransport(command string, args ...string) *ClientTransport {
	return &ClientTransport{
		command:    command,
		args:       args,
		closeGrace: defaultCloseGrace,
	}
}

// WithEnv sets extra environment variables for the subprocess,
// in "key=value" form. The parent environment is inherited.
func (t *ClientTransport) WithEnv(env ...string) *ClientTransport {
	t.env = append(t.env, env...)
	return t
}

// WithCloseGrace sets how long Close waits for the subprocess to exit on its
// own before killing it.
func (t *ClientTransport) WithCloseGrace(grace time.Duration) *ClientTransport {
	t.closeGrace = grace
	return t
}

// Start implements transport.Transport. It launches the subprocess, wires the
// pipes into a stream transport, and starts the read loop. Handlers installed
// before Start are carried over to the live stream.
func (t *ClientTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stream != nil {
		return errors.New("transport already started")
	}

	cmd := exec.Command(t.command, t.args...)
	cmd.Env = append(os.Environ(), t.env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to open stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to launch tool server: %s", t.command)
	}

	logger.KV(xlog.DEBUG,
		"status", "server_launched",
		"command", t.command,
		"pid", cmd.Process.Pid,
	)

	stream := NewStreamTransport(stdout, stdin)
	stream.SetMessageHandler(t.messageHandler)
	stream.SetErrorHandler(t.errorHandler)
	stream.SetCloseHandler(t.closeHandler)
	if err := stream.Start(ctx); err != nil {
		_ = cmd.Process.Kill()
		return err
	}

	t.cmd = cmd
	t.stream = stream
	return nil
}

// Send implements transport.Transport.
func (t *ClientTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	t.mu.RLock()
	stream := t.stream
	t.mu.RUnlock()

	if stream == nil {
		return errors.New("transport not started")
	}
	return stream.Send(ctx, message)
}

// Close implements transport.Transport. The subprocess's stdin is closed
// first, giving it a chance to exit cleanly, then the process is reaped.
// A server that ignores the stdin close is killed after the grace period.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	cmd := t.cmd
	stream := t.stream
	t.cmd = nil
	t.stream = nil
	t.mu.Unlock()

	if stream == nil {
		return nil
	}

	err := stream.Close()

	if cmd != nil {
		exited := make(chan error, 1)
		go func() {
			exited <- cmd.Wait()
		}()

		select {
		case waitErr := <-exited:
			if waitErr != nil {
				// a non-zero exit after stdin closed is diagnostic, not fatal
				logger.KV(xlog.DEBUG,
					"status", "server_exited",
					"command", t.command,
					"err", waitErr.Error(),
				)
			}
		case <-time.After(t.closeGrace):
			logger.KV(xlog.WARNING,
				"reason", "server_not_exiting",
				"command", t.command,
				"grace", t.closeGrace.String(),
			)
			_ = cmd.Process.Kill()
			<-exited
		}
	}
	return err
}

// SetCloseHandler implements transport.Transport.
func (t *ClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
	if t.stream != nil {
		t.stream.SetCloseHandler(handler)
	}
}

// SetErrorHandler implements transport.Transport.
func (t *ClientTransport) SetErrorHandler(handler func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
	if t.stream != nil {
		t.stream.SetErrorHandler(handler)
	}
}

// SetMessageHandler implements transport.Transport.
func (t *ClientTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
	if t.stream != nil {
		t.stream.SetMessageHandler(handler)
	}
}
