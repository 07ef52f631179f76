// Package ipc defines the line-oriented JSON event protocol spoken by
// the poll worker on its stdout. Each line is one versioned event; the
// controller decodes them to reconcile session status without matching
// against human-readable text.
package ipc

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Version is the current protocol version, carried in every event.
const Version = 1

// Type identifies the kind of worker event.
type Type string

const (
	// TypeCycleStarted marks a completed snapshot fetch beginning cycle N.
	// Failed fetch attempts never emit this, so N is the check count.
	TypeCycleStarted Type = "cycle_started"

	// TypeWagonChecked reports the observed state of one seat class.
	TypeWagonChecked Type = "wagon_checked"

	// TypeTransition reports a DOLU to MUSAIT transition for one class.
	TypeTransition Type = "transition"

	// TypeTicketFound is terminal: at least one class is available.
	TypeTicketFound Type = "ticket_found"

	// TypeWagonAbsent is terminal: the filtered class does not exist on
	// this trip.
	TypeWagonAbsent Type = "wagon_absent"

	// TypeRetrying reports a transient snapshot failure and backoff.
	TypeRetrying Type = "retrying"

	// TypeExhausted is terminal: the worker ended without finding anything.
	TypeExhausted Type = "exhausted"

	// TypeLog carries a free-form informational line.
	TypeLog Type = "log"
)

// Event is one worker progress event. Fields are populated per type.
type Event struct {
	V    int  `json:"v"`
	Type Type `json:"type"`

	N  int    `json:"n,omitempty"`  // cycle_started
	At string `json:"at,omitempty"` // cycle_started, HH:MM:SS

	Wagon      string   `json:"wagon,omitempty"`
	Wagons     []string `json:"wagons,omitempty"` // ticket_found
	Status     string   `json:"status,omitempty"` // wagon_checked
	Price      string   `json:"price,omitempty"`
	Passengers int      `json:"passengers,omitempty"`

	Reason  string `json:"reason,omitempty"`  // retrying
	Attempt int    `json:"attempt,omitempty"` // retrying

	Message string `json:"message,omitempty"` // log
}

// Encode serializes an event as a single JSON line (without newline).
func Encode(e Event) (string, error) {
	e.V = Version
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("ipc: encode %s: %w", e.Type, err)
	}
	return string(data), nil
}

// Decode parses one stdout line. ok is false for lines that are not
// protocol events (blank lines, scraper warnings, future versions);
// such lines are the caller's to fold into the plain log buffer.
func Decode(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Event{}, false
	}
	var e Event
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return Event{}, false
	}
	if e.V == 0 || e.V > Version || e.Type == "" {
		return Event{}, false
	}
	return e, true
}

// Render formats an event as a human-readable log line for the bounded
// session log buffer.
func (e Event) Render() string {
	switch e.Type {
	case TypeCycleStarted:
		return fmt.Sprintf("check #%d at %s", e.N, e.At)
	case TypeWagonChecked:
		if e.Price != "" {
			return fmt.Sprintf("%s: %s (%s)", e.Wagon, e.Status, e.Price)
		}
		return fmt.Sprintf("%s: %s", e.Wagon, e.Status)
	case TypeTransition:
		return fmt.Sprintf("%s opened up! price %s", e.Wagon, e.Price)
	case TypeTicketFound:
		return fmt.Sprintf("ticket found: %s", strings.Join(e.Wagons, ", "))
	case TypeWagonAbsent:
		return fmt.Sprintf("%s is not offered on this trip", e.Wagon)
	case TypeRetrying:
		return fmt.Sprintf("retrying (attempt %d): %s", e.Attempt, e.Reason)
	case TypeExhausted:
		return "watch ended without finding a ticket"
	case TypeLog:
		return e.Message
	}
	return string(e.Type)
}

// Emitter writes events to a stream, one per line. Writes are serialized
// so concurrent emitters never interleave partial lines.
type Emitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit encodes and writes one event. Errors are returned but callers
// typically treat a broken pipe as session teardown.
func (m *Emitter) Emit(e Event) error {
	line, err := Encode(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := fmt.Fprintln(m.w, line); err != nil {
		return fmt.Errorf("ipc: emit: %w", err)
	}
	return nil
}

// Logf emits a formatted log event, ignoring emit errors.
func (m *Emitter) Logf(format string, args ...interface{}) {
	m.Emit(Event{Type: TypeLog, Message: fmt.Sprintf(format, args...)})
}
