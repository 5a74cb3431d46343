// Package localtransport provides an in-process transport pair that links two
// protocol endpoints directly, without any wire framing. It exists so client
// and server stacks can be exercised in the same process.
package localtransport

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/palagent/palagent/mcp/transport"
)

// Transport is one end of a linked in-process pair. Messages sent on one end
// are delivered to the peer's message handler on a separate goroutine.
type Transport struct {
	mu             sync.RWMutex
	peer           *Transport
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	errorHandler   func(error)
	closeHandler   func()
	closed         bool
}

var _ transport.Transport = (*Transport)(nil)

// NewPipe creates a linked pair of transports.
func NewPipe() (*Transport, *Transport) {
	a := &Transport{}
	b := &Transport{}
	a.peer = b
	b.peer = a
	return a, b
}

// Start implements transport.Transport. The pair is always connected.
func (s *Transport) Start(ctx context.Context) error {
	return nil
}

// Send implements transport.Transport. It hands the message to the peer's
// handler asynchronously, mirroring how a wire transport would deliver it.
func (s *Transport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	s.mu.RLock()
	closed := s.closed
	peer := s.peer
	s.mu.RUnlock()

	if closed {
		return errors.New("transport is closed")
	}

	peer.mu.RLock()
	handler := peer.messageHandler
	peer.mu.RUnlock()

	if handler == nil {
		return errors.Newf("peer has no message handler for method delivery")
	}

	go handler(ctx, message)
	return nil
}

// Close implements transport.Transport. Both ends observe the close.
func (s *Transport) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handler := s.closeHandler
	peer := s.peer
	s.mu.Unlock()

	if handler != nil {
		handler()
	}
	if peer != nil {
		peer.peerClosed()
	}
	return nil
}

func (s *Transport) peerClosed() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handler := s.closeHandler
	s.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// SetCloseHandler implements transport.Transport.
func (s *Transport) SetCloseHandler(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandler = handler
}

// SetErrorHandler implements transport.Transport.
func (s *Transport) SetErrorHandler(handler func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// SetMessageHandler implements transport.Transport.
func (s *Transport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandler = handler
}
