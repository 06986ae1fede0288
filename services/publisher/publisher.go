package publisher

import (
	"time"
)

// Observation is the payload published for each successful price check,
// for downstream consumers (dashboards, bots) to pick up.
type Observation struct {
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Notified  bool      `json:"notified"`
	CheckedAt time.Time `json:"checked_at"`
}

// Publisher emits price observations to an external stream. Publishing is
// best-effort; a failed publish never fails the check that produced it.
type Publisher interface {
	// Publish emits one observation
	Publish(obs Observation) error

	// Trim caps the stream to its configured maximum length
	Trim() error

	// Close closes the publisher connection
	Close() error
}
