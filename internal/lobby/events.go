package lobby

import "github.com/prophunt/prophunt-backend/internal/engine"

// Event is what a lobby pushes into each connection's outbox. The ws layer
// owns translating these to wire messages.
type Event interface{ isEvent() }

// Snapshot carries the full lobby state after any membership, readiness or
// status change.
type Snapshot struct {
	Version int
	State   engine.State
}

func (Snapshot) isEvent() {}

// Starting announces the countdown, once per STARTING entry.
type Starting struct{ Seconds int }

func (Starting) isEvent() {}

// Start carries the role and spawn maps, once per GAME entry.
type Start struct{ Round engine.Round }

func (Start) isEvent() {}

// Kicked goes only to the removed connection.
type Kicked struct{}

func (Kicked) isEvent() {}

// Moved is the movement relay; the sender never receives its own.
type Moved struct {
	PlayerID string
	Position [3]float64
	Rotation [3]float64
}

func (Moved) isEvent() {}
