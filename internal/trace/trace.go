package trace

import (
	"context"
	"time"
)

type Level string

const (
	LevelOK    Level = "DEFAULT"
	LevelError Level = "ERROR"
)

// Tracer opens traces for agent sessions. Implementations must never let a
// backend failure escape into the caller; a misbehaving backend degrades to
// the same behavior as Noop.
type Tracer interface {
	StartTrace(name string, metadata map[string]any) Trace
	Flush(ctx context.Context) error
}

type Trace interface {
	TraceID() string
	Span(name string, metadata map[string]any) Span
	Generation(name, model string, input any) Span
	End()
}

// Span is the single adapter surface over backend observation handles.
// End is variadic so call sites can pass an output or nothing; backends with
// stricter signatures absorb the difference here instead of at every caller.
type Span interface {
	Update(opts ...UpdateOption)
	End(output ...any)
}

type spanState struct {
	level               Level
	completionStartTime *time.Time
	metadata            map[string]any
}

type UpdateOption func(*spanState)

func WithLevel(level Level) UpdateOption {
	return func(s *spanState) { s.level = level }
}

func WithCompletionStartTime(t time.Time) UpdateOption {
	return func(s *spanState) { s.completionStartTime = &t }
}

func WithMetadata(key string, value any) UpdateOption {
	return func(s *spanState) {
		if s.metadata == nil {
			s.metadata = make(map[string]any)
		}
		s.metadata[key] = value
	}
}

// Noop preserves the shape of every call so pipeline code never branches on
// whether tracing is configured.
type Noop struct{}

func (Noop) StartTrace(string, map[string]any) Trace { return noopTrace{} }
func (Noop) Flush(context.Context) error             { return nil }

type noopTrace struct{}

func (noopTrace) TraceID() string                  { return "" }
func (noopTrace) Span(string, map[string]any) Span { return noopSpan{} }
func (noopTrace) Generation(string, string, any) Span {
	return noopSpan{}
}
func (noopTrace) End() {}

type noopSpan struct{}

func (noopSpan) Update(...UpdateOption) {}
func (noopSpan) End(...any)             {}
