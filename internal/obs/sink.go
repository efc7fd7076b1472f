// Package obs provides the observability sink: a redacting structured
// logger plus a bounded ring buffer of recent events for the TUI and the
// /ws/events stream to read.
package obs

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mintya/auto-proxy/internal/security"
)

// Severity is one of the five levels spec.md §6 names.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
	Debug   Severity = "debug"
)

// Event is one ring-buffer entry, also the shape streamed over /ws/events.
type Event struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// ringCapacity is the fixed ring-buffer size spec.md §9 mandates
// ("capacity ≈ 100").
const ringCapacity = 100

// Sink fans every event out to a slog.Logger (wrapped in a redacting
// handler so provider tokens never reach stdout or a log file) and into a
// capacity-100 drop-oldest ring buffer for UI consumption.
type Sink struct {
	logger *slog.Logger

	mu     sync.Mutex
	ring   []Event
	start  int // index of the oldest element
	filled int // number of valid elements, <= ringCapacity

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
}

// New builds a Sink writing through a RedactingHandler over inner, keeping
// credentials in sync with store so tokens never leak even after rotation.
func New(inner slog.Handler, redactor *security.Redactor, store *security.CredentialStore) *Sink {
	redactor.SyncCredentials(store)
	handler := security.NewRedactingHandler(inner, redactor)
	return &Sink{
		logger: slog.New(handler),
		ring:   make([]Event, ringCapacity),
		subs:   make(map[chan Event]struct{}),
	}
}

func (s *Sink) emit(sev Severity, msg string, attrs ...any) {
	now := time.Now()
	switch sev {
	case Error:
		s.logger.Error(msg, attrs...)
	case Warning:
		s.logger.Warn(msg, attrs...)
	case Debug:
		s.logger.Debug(msg, attrs...)
	default: // Info, Success
		s.logger.Info(msg, attrs...)
	}
	s.push(Event{Time: now, Severity: sev, Message: msg})
}

// Info logs an informational event.
func (s *Sink) Info(msg string, attrs ...any) { s.emit(Info, msg, attrs...) }

// Success logs a successful-outcome event.
func (s *Sink) Success(msg string, attrs ...any) { s.emit(Success, msg, attrs...) }

// Warning logs a recoverable-problem event.
func (s *Sink) Warning(msg string, attrs ...any) { s.emit(Warning, msg, attrs...) }

// Error logs a failure event.
func (s *Sink) Error(msg string, attrs ...any) { s.emit(Error, msg, attrs...) }

// Debug logs a diagnostic event.
func (s *Sink) Debug(msg string, attrs ...any) { s.emit(Debug, msg, attrs...) }

// push appends to the ring buffer, dropping the oldest entry once full, and
// fans the event out to any active subscribers.
func (s *Sink) push(e Event) {
	s.mu.Lock()
	if s.filled < ringCapacity {
		s.ring[(s.start+s.filled)%ringCapacity] = e
		s.filled++
	} else {
		s.ring[s.start] = e
		s.start = (s.start + 1) % ringCapacity
	}
	s.mu.Unlock()

	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber: drop the event rather than block the sink.
		}
	}
	s.subsMu.Unlock()
}

// Recent returns up to ringCapacity most recent events, oldest first.
func (s *Sink) Recent() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, s.filled)
	for i := 0; i < s.filled; i++ {
		out[i] = s.ring[(s.start+i)%ringCapacity]
	}
	return out
}

// Subscribe registers ch to receive every future event until Unsubscribe is
// called. Used by the /ws/events handler; the TUI instead polls Recent.
func (s *Sink) Subscribe(ch chan Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs[ch] = struct{}{}
}

// Unsubscribe removes ch from the fan-out set.
func (s *Sink) Unsubscribe(ch chan Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	delete(s.subs, ch)
}

// Logger returns the underlying redacting slog.Logger, for components that
// want structured logging without going through the Severity helpers (e.g.
// the dispatcher's per-attempt events already shaped as slog calls).
func (s *Sink) Logger() *slog.Logger {
	return s.logger
}
