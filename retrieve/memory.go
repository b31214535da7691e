package retrieve

import "github.com/fwojciec/leadscout"

// DefaultMaxWindow is the number of live messages kept verbatim.
const DefaultMaxWindow = 6

// Memory is a conversation held as a compressed summary of older messages
// plus a live window of recent ones. Messages[:Cursor] are folded into
// Summary and Messages[Cursor:] form the window, so Cursor plus the window
// length always equals the message count. A Memory is not safe for
// concurrent use.
type Memory struct {
	Messages  []leadscout.Message `json:"messages"`
	Summary   string              `json:"summary"`
	Cursor    int                 `json:"cursor"`
	MaxWindow int                 `json:"maxWindow"`
}

// NewMemory creates an empty memory with a window of maxWindow messages.
// The window holds at least one full turn.
func NewMemory(maxWindow int) *Memory {
	if maxWindow <= 0 {
		maxWindow = DefaultMaxWindow
	}
	return &Memory{MaxWindow: max(maxWindow, 2)}
}

func (m *Memory) maxWindow() int {
	if m.MaxWindow <= 0 {
		return DefaultMaxWindow
	}
	return max(m.MaxWindow, 2)
}

// Window returns the live messages.
func (m *Memory) Window() []leadscout.Message {
	return m.Messages[m.Cursor:]
}

// Evictions returns the oldest window messages that must be folded into the
// summary so that incoming more messages fit the window.
func (m *Memory) Evictions(incoming int) []leadscout.Message {
	window := m.Window()
	over := len(window) + incoming - m.maxWindow()
	if over <= 0 {
		return nil
	}
	return window[:min(over, len(window))]
}

// Commit records a completed turn. Cursor advances by exactly folded, the
// number of evicted messages the summary now covers.
func (m *Memory) Commit(summary string, folded int, msgs ...leadscout.Message) {
	m.Summary = summary
	m.Cursor += min(max(folded, 0), len(m.Window()))
	m.Messages = append(m.Messages, msgs...)
}
