package stdiotransport

import (
	"os"
)

// NewServerTransport creates the server side of the stdio transport, reading
// requests from the process's stdin and writing responses to stdout. Tool
// servers must keep their own diagnostics on stderr so the framing channel
// stays clean.
func NewServerTransport() *StreamTransport {
	return NewStreamTransport(os.Stdin, os.Stdout)
}
