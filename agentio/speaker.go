// Package agentio provides optional audio output for agent answers.
package agentio

import "context"

// Speaker turns text into audible speech.
type Speaker interface {
	// Speak synthesizes and plays the given text, blocking until playback
	// finishes.
	Speak(ctx context.Context, text string) error
	// Close releases any resources held by the speaker.
	Close() error
}

// NoopSpeaker is a Speaker that discards all text.
type NoopSpeaker struct{}

var _ Speaker = NoopSpeaker{}

// Speak implements Speaker.
func (NoopSpeaker) Speak(ctx context.Context, text string) error { return nil }

// Close implements Speaker.
func (NoopSpeaker) Close() error { return nil }
