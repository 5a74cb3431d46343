package transport

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// RequestId is a JSON-RPC request identifier.
type RequestId int64

// BaseJSONRPCRequest is a request that expects a response.
type BaseJSONRPCRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Id      RequestId       `json:"id"`
}

// BaseJSONRPCNotification is a one-way message that does not expect a response.
type BaseJSONRPCNotification struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// BaseJSONRPCResponse is a successful response to a request.
type BaseJSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Id      RequestId       `json:"id"`
}

// BaseJSONRPCErrorInner is the error payload of an error response.
type BaseJSONRPCErrorInner struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BaseJSONRPCError is an error response to a request.
type BaseJSONRPCError struct {
	Jsonrpc string                `json:"jsonrpc"`
	Id      RequestId             `json:"id"`
	Error   BaseJSONRPCErrorInner `json:"error"`
}

// BaseMessageType discriminates the variants of BaseJsonRpcMessage.
type BaseMessageType string

const (
	BaseMessageTypeJSONRPCRequestType      BaseMessageType = "request"
	BaseMessageTypeJSONRPCNotificationType BaseMessageType = "notification"
	BaseMessageTypeJSONRPCResponseType     BaseMessageType = "response"
	BaseMessageTypeJSONRPCErrorType        BaseMessageType = "error"
)

// BaseJsonRpcMessage is a tagged union over the four JSON-RPC message kinds.
// Exactly one of the payload fields is set, as indicated by Type.
type BaseJsonRpcMessage struct {
	Type                BaseMessageType
	JsonRpcRequest      *BaseJSONRPCRequest
	JsonRpcNotification *BaseJSONRPCNotification
	JsonRpcResponse     *BaseJSONRPCResponse
	JsonRpcError        *BaseJSONRPCError
}

// NewBaseMessageRequest wraps a request.
func NewBaseMessageRequest(request *BaseJSONRPCRequest) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:           BaseMessageTypeJSONRPCRequestType,
		JsonRpcRequest: request,
	}
}

// NewBaseMessageNotification wraps a notification.
func NewBaseMessageNotification(notification *BaseJSONRPCNotification) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:                BaseMessageTypeJSONRPCNotificationType,
		JsonRpcNotification: notification,
	}
}

// NewBaseMessageResponse wraps a successful response.
func NewBaseMessageResponse(response *BaseJSONRPCResponse) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:            BaseMessageTypeJSONRPCResponseType,
		JsonRpcResponse: response,
	}
}

// NewBaseMessageError wraps an error response.
func NewBaseMessageError(errorResponse *BaseJSONRPCError) *BaseJsonRpcMessage {
	return &BaseJsonRpcMessage{
		Type:         BaseMessageTypeJSONRPCErrorType,
		JsonRpcError: errorResponse,
	}
}

// MarshalJSON serializes the active variant.
func (m *BaseJsonRpcMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case BaseMessageTypeJSONRPCRequestType:
		return json.Marshal(m.JsonRpcRequest)
	case BaseMessageTypeJSONRPCNotificationType:
		return json.Marshal(m.JsonRpcNotification)
	case BaseMessageTypeJSONRPCResponseType:
		return json.Marshal(m.JsonRpcResponse)
	case BaseMessageTypeJSONRPCErrorType:
		return json.Marshal(m.JsonRpcError)
	}
	return nil, errors.Newf("unknown message type: %q", m.Type)
}

// ParseJsonRpcMessage classifies a raw wire payload into one of the message
// kinds. A payload with both "id" and "method" is a request, with "method"
// only a notification, with "error" an error response, otherwise a response.
func ParseJsonRpcMessage(body []byte) (*BaseJsonRpcMessage, error) {
	var probe struct {
		Id     *RequestId             `json:"id"`
		Method *string                `json:"method"`
		Error  *BaseJSONRPCErrorInner `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	switch {
	case probe.Method != nil && probe.Id != nil:
		var request BaseJSONRPCRequest
		if err := json.Unmarshal(body, &request); err != nil {
			return nil, errors.Wrap(err, "failed to parse request")
		}
		return NewBaseMessageRequest(&request), nil
	case probe.Method != nil:
		var notification BaseJSONRPCNotification
		if err := json.Unmarshal(body, &notification); err != nil {
			return nil, errors.Wrap(err, "failed to parse notification")
		}
		return NewBaseMessageNotification(&notification), nil
	case probe.Error != nil:
		var errorResponse BaseJSONRPCError
		if err := json.Unmarshal(body, &errorResponse); err != nil {
			return nil, errors.Wrap(err, "failed to parse error response")
		}
		return NewBaseMessageError(&errorResponse), nil
	default:
		var response BaseJSONRPCResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, errors.Wrap(err, "failed to parse response")
		}
		return NewBaseMessageResponse(&response), nil
	}
}
