package mcp

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownTool is returned when a tool call names a tool that no
	// registered server exposes.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrNotConnected is returned when an operation requires an established
	// session.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("client already connected")
)
