// Package audit buffers and delivers security events emitted by the token
// flows. The package owns buffering and sink delivery only; which events get
// emitted is the engine's call.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	TypeRegister      = "identity.register"
	TypeLoginSuccess  = "login.success"
	TypeLoginFailure  = "login.failure"
	TypeLoginLimited  = "login.ratelimited"
	TypeTokenIssue    = "token.issue"
	TypeTokenRotate   = "token.rotate"
	TypeReuseDetected = "token.reuse_detected"
	TypeRevoke        = "token.revoke"
	TypeRevokeAll     = "token.revoke_all"
)

// Event is one security-relevant occurrence. Fingerprint carries a truncated
// digest, never a raw token.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	Type        string            `json:"type"`
	OwnerID     string            `json:"owner_id,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink receives delivered events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops everything.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer over a buffered channel. Useful in
// tests and for custom pipelines.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONLinesSink writes one JSON object per line to the writer.
type JSONLinesSink struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{writer: w}
}

func (s *JSONLinesSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
