// Package history records watch sessions and their check cycles in a
// relational store, queryable through the control API.
package history

import "time"

// Session is one watch session from start to termination.
type Session struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FromStation     string `gorm:"size:64;index" json:"from"`
	ToStation       string `gorm:"size:64;index" json:"to"`
	Date            string `gorm:"size:10;index" json:"date"`
	WagonType       string `gorm:"size:16" json:"wagon_type"`
	Passengers      int    `gorm:"default:1" json:"passengers"`
	IntervalMinutes float64    `json:"interval_minutes"`
	Outcome         string     `gorm:"size:16;index" json:"outcome"` // running, ticket_found, wagon_not_found, stopped, completed, error
	Price           string     `gorm:"size:32" json:"price,omitempty"`
	CheckCount      int        `json:"check_count"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	Checks []Check `gorm:"foreignKey:SessionID" json:"checks,omitempty"`
}

// Check is one per-class observation within a session cycle.
type Check struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uint      `gorm:"index" json:"session_id"`
	Cycle     int       `json:"cycle"`
	WagonType string    `gorm:"size:16" json:"wagon_type"`
	Status    string    `gorm:"size:16" json:"status"`
	Price     string    `gorm:"size:32" json:"price,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// AllModels returns the GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{&Session{}, &Check{}}
}
