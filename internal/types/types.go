package types

import "github.com/prophunt/prophunt-backend/internal/engine"

// ClientMessage is the single envelope for everything a client can send.
// Type selects the command; the other fields are populated per the event
// table ("lobby:create", "lobby:join", "lobby:ready", "lobby:kick",
// "lobby:leave", "player:move").
type ClientMessage struct {
	Type       string    `json:"type"`
	Code       string    `json:"code,omitempty"`
	HostName   string    `json:"hostName,omitempty"`
	HostID     string    `json:"hostId,omitempty"`
	PlayerName string    `json:"playerName,omitempty"`
	PlayerID   string    `json:"playerId,omitempty"`
	AdminID    string    `json:"adminId,omitempty"`
	TargetID   string    `json:"targetId,omitempty"`
	Position   []float64 `json:"position,omitempty"`
	Rotation   []float64 `json:"rotation,omitempty"`
}

// ServerMessage is the envelope going the other way:
//   - "lobby:created" / "lobby:joined": acks for create/join, Success plus
//     either Code/State or Error
//   - "lobby:update": full snapshot on any membership/readiness/status change
//   - "game:starting": countdown seconds, once per STARTING entry
//   - "game:start": role and spawn maps, once per GAME entry
//   - "player:kicked": targeted, only to the removed connection
//   - "player:moved": movement relay, excludes the sender
type ServerMessage struct {
	Type     string        `json:"type"`
	Success  bool          `json:"success"`
	Code     string        `json:"code,omitempty"`
	Version  int           `json:"version,omitempty"`
	State    *engine.State `json:"state,omitempty"`
	Seconds  int           `json:"seconds,omitempty"`
	Round    *engine.Round `json:"round,omitempty"`
	ID       string        `json:"id,omitempty"`
	Position []float64     `json:"position,omitempty"`
	Rotation []float64     `json:"rotation,omitempty"`
	Error    string        `json:"error,omitempty"`
}
