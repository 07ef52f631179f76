// Package model defines the core data types shared across raywatch:
// wagon classes, seat statuses, watch keys, snapshots, and session status.
package model

import (
	"fmt"
	"strings"
	"time"
)

// WagonType identifies a seat class on a TCDD trip.
type WagonType string

const (
	WagonEkonomi  WagonType = "EKONOMİ"
	WagonBusiness WagonType = "BUSINESS"
	WagonYatakli  WagonType = "YATAKLI"

	// WagonAll is the wildcard filter meaning "every class discovered on
	// the trip". It is never persisted as a state key.
	WagonAll WagonType = "ALL"
)

// KnownWagonTypes lists the concrete (non-wildcard) classes in display order.
var KnownWagonTypes = []WagonType{WagonEkonomi, WagonBusiness, WagonYatakli}

// ParseWagonType resolves a user-supplied class name to a canonical
// WagonType. Matching is case-insensitive and tolerates the ASCII
// spelling "EKONOMI".
func ParseWagonType(s string) (WagonType, error) {
	if s == "" {
		return WagonAll, nil
	}
	switch strings.ToUpper(s) {
	case "EKONOMİ", "EKONOMI":
		return WagonEkonomi, nil
	case "BUSINESS":
		return WagonBusiness, nil
	case "YATAKLI":
		return WagonYatakli, nil
	case "ALL":
		return WagonAll, nil
	}
	return "", fmt.Errorf("model: unknown wagon type %q", s)
}

// SeatStatus is the availability of one seat class. The wire values match
// the TCDD site vocabulary and the persisted state file.
type SeatStatus string

const (
	StatusFull      SeatStatus = "DOLU"
	StatusAvailable SeatStatus = "MUSAIT"
	StatusUnknown   SeatStatus = "UNKNOWN"
)

// WagonState is the persisted last-known state of one watched variant.
type WagonState struct {
	Status        SeatStatus `json:"status"`
	Price         *string    `json:"price"`
	Passengers    int        `json:"passengers"`
	LastChecked   string     `json:"last_checked"`
	WagonNotFound bool       `json:"wagon_not_found,omitempty"`
}

// Absent reports whether this state encodes "the seat class does not exist
// on this trip". Both the explicit flag and the legacy encoding
// (status DOLU with a null price) must be recognized.
func (s WagonState) Absent() bool {
	return s.WagonNotFound || (s.Status == StatusFull && s.Price == nil)
}

// WatchKey uniquely identifies one monitored variant.
type WatchKey struct {
	From       string
	To         string
	Date       string
	Wagon      WagonType
	Passengers int
}

// WatchParams are the caller-supplied parameters of a watch session.
// Wagon may be the ALL wildcard; Passengers defaults to 1.
type WatchParams struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	Date            string    `json:"date"`
	Wagon           WagonType `json:"wagon_type"`
	Passengers      int       `json:"passengers"`
	IntervalMinutes float64   `json:"interval_minutes,omitempty"`
}

// Validate checks the required fields of a watch request.
func (p WatchParams) Validate() error {
	var missing []string
	if p.From == "" {
		missing = append(missing, "from")
	}
	if p.To == "" {
		missing = append(missing, "to")
	}
	if p.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("model: missing required fields: %s", strings.Join(missing, ", "))
	}
	if p.Passengers < 0 {
		return fmt.Errorf("model: passengers must be positive")
	}
	if p.IntervalMinutes < 0 {
		return fmt.Errorf("model: interval must be positive")
	}
	return nil
}

// Key returns the WatchKey for a concrete wagon class under these params.
func (p WatchParams) Key(wagon WagonType) WatchKey {
	return WatchKey{From: p.From, To: p.To, Date: p.Date, Wagon: wagon, Passengers: p.Passengers}
}

// WagonInfo is the observed state of one seat class within a snapshot.
type WagonInfo struct {
	Status     SeatStatus
	Price      *string
	Passengers int
}

// WagonSnapshot is a point-in-time read of availability for all seat
// classes discovered on a trip, produced by the snapshot provider.
type WagonSnapshot struct {
	Wagons    map[WagonType]WagonInfo
	Timestamp time.Time
}

// MaxStatusLogs bounds the SessionStatus log buffer.
const MaxStatusLogs = 20

// SessionStatus is the externally visible state of the active watch
// session. It is mutated by the status reconciler and by the controller
// on lifecycle events, always under the controller's lock.
type SessionStatus struct {
	Watching      bool         `json:"watching"`
	TicketFound   bool         `json:"ticket_found"`
	WagonNotFound bool         `json:"wagon_not_found"`
	Message       string       `json:"message"`
	CheckCount    int          `json:"check_count"`
	LastCheckTime string       `json:"last_check_time,omitempty"`
	FoundWagon    string       `json:"found_wagon_type,omitempty"`
	Price         string       `json:"price,omitempty"`
	Logs          []string     `json:"logs"`
	Params        *WatchParams `json:"params,omitempty"`
}

// AppendLog adds a line to the bounded log buffer, evicting the oldest.
func (s *SessionStatus) AppendLog(line string) {
	s.Logs = append(s.Logs, line)
	if len(s.Logs) > MaxStatusLogs {
		s.Logs = s.Logs[len(s.Logs)-MaxStatusLogs:]
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s SessionStatus) Clone() SessionStatus {
	out := s
	out.Logs = append([]string(nil), s.Logs...)
	if s.Params != nil {
		p := *s.Params
		out.Params = &p
	}
	return out
}
