// Package callbacks provides observation hooks for the agent's chat flow.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Callback receives notifications at each stage of a chat interaction.
// Implementations must be safe for concurrent use.
type Callback interface {
	// OnChatStart is called when a question is accepted.
	OnChatStart(ctx context.Context, agent, question string)
	// OnToolCalling is called when the model requests tool calls,
	// with the raw call list.
	OnToolCalling(ctx context.Context, agent, calls string)
	// OnToolResult is called after tool execution, with the serialized
	// results.
	OnToolResult(ctx context.Context, agent, result string)
	// OnAnswer is called with the final textual answer.
	OnAnswer(ctx context.Context, agent, answer string)
	// OnError is called when the interaction fails.
	OnError(ctx context.Context, agent string, err error)
}

// Noop is a Callback that does nothing.
type Noop struct{}

var _ Callback = Noop{}

func (Noop) OnChatStart(ctx context.Context, agent, question string) {}
func (Noop) OnToolCalling(ctx context.Context, agent, calls string)  {}
func (Noop) OnToolResult(ctx context.Context, agent, result string)  {}
func (Noop) OnAnswer(ctx context.Context, agent, answer string)      {}
func (Noop) OnError(ctx context.Context, agent string, err error)    {}

// Printer writes a line per event to an io.Writer.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Callback = (*Printer)(nil)

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) OnChatStart(ctx context.Context, agent, question string) {
	p.printf("[%s] question: %s\n", agent, question)
}

func (p *Printer) OnToolCalling(ctx context.Context, agent, calls string) {
	p.printf("[%s] tool-calling: %s\n", agent, calls)
}

func (p *Printer) OnToolResult(ctx context.Context, agent, result string) {
	p.printf("[%s] tool-result: %s\n", agent, result)
}

func (p *Printer) OnAnswer(ctx context.Context, agent, answer string) {
	p.printf("[%s] answer: %s\n", agent, answer)
}

func (p *Printer) OnError(ctx context.Context, agent string, err error) {
	p.printf("[%s] error: %s\n", agent, err.Error())
}

// Fanout dispatches every event to a list of callbacks in order.
type Fanout struct {
	callbacks []Callback
}

var _ Callback = (*Fanout)(nil)

// NewFanout creates a Fanout over the given callbacks.
func NewFanout(callbacks ...Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (f *Fanout) OnChatStart(ctx context.Context, agent, question string) {
	for _, cb := range f.callbacks {
		cb.OnChatStart(ctx, agent, question)
	}
}

func (f *Fanout) OnToolCalling(ctx context.Context, agent, calls string) {
	for _, cb := range f.callbacks {
		cb.OnToolCalling(ctx, agent, calls)
	}
}

func (f *Fanout) OnToolResult(ctx context.Context, agent, result string) {
	for _, cb := range f.callbacks {
		cb.OnToolResult(ctx, agent, result)
	}
}

func (f *Fanout) OnAnswer(ctx context.Context, agent, answer string) {
	for _, cb := range f.callbacks {
		cb.OnAnswer(ctx, agent, answer)
	}
}

func (f *Fanout) OnError(ctx context.Context, agent string, err error) {
	for _, cb := range f.callbacks {
		cb.OnError(ctx, agent, err)
	}
}
