package protocol_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/palagent/palagent/mcp/internal/protocol"
	"github.com/palagent/palagent/mcp/transport"
	"github.com/palagent/palagent/mcp/transport/localtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedPair(t *testing.T) (*protocol.Protocol, *protocol.Protocol) {
	t.Helper()

	clientTr, serverTr := localtransport.NewPipe()
	client := protocol.NewProtocol()
	server := protocol.NewProtocol()

	require.NoError(t, server.Connect(serverTr))
	require.NoError(t, client.Connect(clientTr))
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, server
}

func TestProtocol_RequestResponse(t *testing.T) {
	client, server := connectedPair(t)

	server.SetRequestHandler("echo", func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
		var params map[string]string
		require.NoError(t, json.Unmarshal(req.Params, &params))
		return map[string]string{"echo": params["text"]}, nil
	})

	result, err := client.Request(t.Context(), "echo", map[string]string{"text": "hello"}, nil)
	require.NoError(t, err)

	bs, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"echo":"hello"}`, string(bs))
}

func TestProtocol_HandlerError(t *testing.T) {
	client, server := connectedPair(t)

	server.SetRequestHandler("fail", func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
		return nil, errors.New("deliberate failure")
	})

	_, err := client.Request(t.Context(), "fail", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")
}

func TestProtocol_MethodNotFound(t *testing.T) {
	client, _ := connectedPair(t)

	_, err := client.Request(t.Context(), "no/such/method", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestProtocol_RequestTimeout(t *testing.T) {
	client, server := connectedPair(t)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	server.SetRequestHandler("slow", func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})

	_, err := client.Request(t.Context(), "slow", nil, &protocol.RequestOptions{
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timeout")
}

func TestProtocol_ContextCancellation(t *testing.T) {
	client, server := connectedPair(t)

	serverCancelled := make(chan struct{})
	server.SetRequestHandler("slow", func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
		<-ctx.Done()
		close(serverCancelled)
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Request(ctx, "slow", nil, nil)
	require.ErrorIs(t, err, context.Canceled)

	// the cancel notification propagates to the server-side handler context
	select {
	case <-serverCancelled:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server-side cancellation")
	}
}

func TestProtocol_Notification(t *testing.T) {
	client, server := connectedPair(t)

	received := make(chan json.RawMessage, 1)
	server.SetNotificationHandler("status", func(notification *transport.BaseJSONRPCNotification) error {
		received <- notification.Params
		return nil
	})

	require.NoError(t, client.Notification("status", map[string]string{"state": "ready"}))

	select {
	case params := <-received:
		assert.JSONEq(t, `{"state":"ready"}`, string(params))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestProtocol_CloseFailsPending(t *testing.T) {
	client, server := connectedPair(t)

	started := make(chan struct{})
	server.SetRequestHandler("hang", func(ctx context.Context, req *transport.BaseJSONRPCRequest, extra protocol.RequestHandlerExtra) (transport.JsonRpcBody, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), "hang", nil, nil)
		errCh <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for request to start")
	}

	require.NoError(t, client.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for pending request to fail")
	}
}

// inlineTransport delivers canned traffic synchronously from inside Send,
// before Send returns to the requester.
type inlineTransport struct {
	messageHandler func(ctx context.Context, message *transport.BaseJsonRpcMessage)
	closeHandler   func()
	onSend         func(message *transport.BaseJsonRpcMessage)
}

func (t *inlineTransport) Start(ctx context.Context) error { return nil }
func (t *inlineTransport) Close() error                    { return nil }

func (t *inlineTransport) Send(ctx context.Context, message *transport.BaseJsonRpcMessage) error {
	if t.onSend != nil {
		t.onSend(message)
	}
	return nil
}

func (t *inlineTransport) SetCloseHandler(handler func())          { t.closeHandler = handler }
func (t *inlineTransport) SetErrorHandler(handler func(err error)) {}

func (t *inlineTransport) SetMessageHandler(handler func(ctx context.Context, message *transport.BaseJsonRpcMessage)) {
	t.messageHandler = handler
}

// A response that is already buffered when the connection drops must still
// reach the requester; failing the pending request must not block on the
// full response channel.
func TestProtocol_ResponseArrivesBeforeClose(t *testing.T) {
	tr := &inlineTransport{}
	tr.onSend = func(message *transport.BaseJsonRpcMessage) {
		if message.Type != transport.BaseMessageTypeJSONRPCRequestType {
			return
		}
		result, err := json.Marshal(map[string]string{"state": "done"})
		require.NoError(t, err)
		tr.messageHandler(context.Background(), transport.NewBaseMessageResponse(&transport.BaseJSONRPCResponse{
			Jsonrpc: "2.0",
			Id:      message.JsonRpcRequest.Id,
			Result:  result,
		}))
		tr.closeHandler()
	}

	p := protocol.NewProtocol()
	require.NoError(t, p.Connect(tr))

	result, err := p.Request(t.Context(), "status", nil, nil)
	require.NoError(t, err)

	bs, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"state":"done"}`, string(bs))
}

func TestProtocol_RequestNotConnected(t *testing.T) {
	p := protocol.NewProtocol()

	_, err := p.Request(t.Context(), "anything", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	err = p.Notification("anything", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
