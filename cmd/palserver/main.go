// Command palserver is a small MCP stdio tool server used to exercise the
// agent: it exposes echo and reverse tools and a canned greeting resource.
// All diagnostics go to stderr; stdout carries the protocol.
package main

import (
	"fmt"
	"os"

	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/mcp"
	"github.com/palagent/palagent/mcp/transport/stdiotransport"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

type reverseArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to reverse"`
}

func main() {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.WARNING)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	tr := stdiotransport.NewServerTransport()
	server := mcp.NewServer(tr,
		mcp.WithName("Test Server"),
		mcp.WithVersion("1.0.0"),
	)

	err := server.RegisterTool("echo_tool", "Echoes the input text.",
		func(args echoArgs) (*mcp.ToolResponse, error) {
			return mcp.NewToolResponse(mcp.NewTextContent(args.Text)), nil
		})
	if err != nil {
		return err
	}

	err = server.RegisterTool("reverse_tool", "Reverses the input text.",
		func(args reverseArgs) (*mcp.ToolResponse, error) {
			runes := []rune(args.Text)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return mcp.NewToolResponse(mcp.NewTextContent(string(runes))), nil
		})
	if err != nil {
		return err
	}

	server.RegisterResource("test://greeting", "greeting",
		"A canned greeting used for connectivity checks.", "text/plain")

	if err := server.Serve(); err != nil {
		return err
	}

	// the session ends when the client closes our stdin
	<-tr.Done()
	return server.Close()
}
