// Package transport defines the pluggable transport layer for MCP
// connections: a Transport moves JSON-RPC messages between the two ends of a
// session, while the protocol layer above it handles correlation and
// lifecycle.
package transport

import (
	"context"
)

// JsonRpcBody is any marshalable JSON-RPC result or params body.
type JsonRpcBody any

// Transport describes the minimal contract of a message transport.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Start begins processing messages on the transport, including any
	// connection steps that might need to be taken.
	Start(ctx context.Context) error

	// Send transmits a JSON-RPC message.
	Send(ctx context.Context, message *BaseJsonRpcMessage) error

	// Close cleanly shuts down the message processing.
	Close() error

	// SetCloseHandler sets the callback for when the connection is closed for
	// any reason. This should be invoked when Close() is called as well.
	SetCloseHandler(handler func())

	// SetErrorHandler sets the callback for when an error occurs.
	// Note that errors are not necessarily fatal; they are used for reporting
	// any kind of exceptional condition out of band.
	SetErrorHandler(handler func(err error))

	// SetMessageHandler sets the callback for when a message (request,
	// notification or response) is received over the connection.
	SetMessageHandler(handler func(ctx context.Context, message *BaseJsonRpcMessage))
}
