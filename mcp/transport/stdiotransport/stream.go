// Package stdiotransport implements the MCP stdio transport: JSON-RPC
// messages framed as newline-delimited JSON over a byte stream. The client
// side launches the tool-server subprocess and speaks over its pipes; the
// server side speaks over the process's own stdin/stdout.
package stdiotransport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/mcp/transport"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent/mcp/transport", "stdiotransport")

// maxMessageSize bounds a single framed message.
const maxMessageSize = 4 * 1024 * 1024

// StreamTransport frames JSON-RPC messages as newline-delimited JSON over an
// arbitrary reader/writer pair. It is the common core of the stdio client and
// server transports, and is usable directly in tests over in-memory pipes.
type StreamTransport struct {
	reader io.Reader
	writer io.Writer

	mu             sync.RWMutex
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()

	sendMu    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

var _ transport.Transport = (*StreamTransport)(nil)

// NewStreamTransport creates a transport over the given stream pair.
func NewStreamTransport(r io.Reader, w io.Writer) *StreamTransport {
	return &StreamTransport{
		reader: r,
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start implements transport.Transport.
// It spawns the read loop and returns immediately.
func (t *StreamTransport) Start(ctx context.Context) error {
	go t.readLoop(ctx)
	return nil
}

func (t *StreamTransport) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		message, err := transport.ParseJsonRpcMessage(line)
		if err != nil {
			t.handleError(errors.WithMessage(err, "failed to parse incoming message"))
			continue
		}

		t.mu.RLock()
		handler := t.messageHandler
		t.mu.RUnlock()

		if handler != nil {
			handler(ctx, message)
		}
	}

	if err := scanner.Err(); err != nil {
		t.handleError(errors.Wrap(err, "read loop terminated"))
	}
	t.handleClose()
}

// Send implements transport.Transport.
func (t *StreamTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	bs, err := message.MarshalJSON()
	if err != nil {
		return errors.WithMessage(err, "failed to marshal message")
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if _, err := t.writer.Write(append(bs, '\n')); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close implements transport.Transport.
func (t *StreamTransport) Close() error {
	var err error
	if c, ok := t.writer.(io.Closer); ok {
		err = c.Close()
	}
	t.handleClose()
	return err
}

// Done is closed when the read loop has terminated, either because the peer
// closed the stream or because the transport was closed locally.
func (t *StreamTransport) Done() <-chan struct{} {
	return t.done
}

// SetCloseHandler implements transport.Transport.
func (t *StreamTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetErrorHandler implements transport.Transport.
func (t *StreamTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// SetMessageHandler implements transport.Transport.
func (t *StreamTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

func (t *StreamTransport) handleError(err error) {
	logger.KV(xlog.DEBUG, "err", err.Error())

	t.mu.RLock()
	handler := t.errorHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(err)
	}
}

func (t *StreamTransport) handleClose() {
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.RLock()
		handler := t.closeHandler
		t.mu.RUnlock()

		if handler != nil {
			handler()
		}
	})
}
