package engine

import (
	"errors"
	"slices"
)

var ErrLobbyFull = errors.New("lobby is full")
var ErrGameInProgress = errors.New("game already in progress")

type Status string

const (
	StatusLobby    Status = "LOBBY"
	StatusStarting Status = "STARTING"
	StatusGame     Status = "GAME"
)

type Role string

const (
	RoleHunter Role = "HUNTER"
	RoleProp   Role = "PROP"
)

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsAdmin     bool   `json:"isAdmin"`
	IsReady     bool   `json:"isReady"`
	Color       string `json:"color"`
	AvatarIndex int    `json:"avatarIndex"`
	Role        Role   `json:"role,omitempty"`
}

// Rules are the start-policy knobs; they ride along with the state but
// never go over the wire.
type Rules struct {
	MinPlayers int
	MaxPlayers int
}

type State struct {
	Code    string   `json:"code"`
	Status  Status   `json:"status"`
	Players []Player `json:"players"`
	Rules   Rules    `json:"-"`
}

// NewState builds a fresh lobby with the host as its only (admin) member.
func NewState(code, hostName, hostID string, rules Rules) State {
	return State{
		Code:   code,
		Status: StatusLobby,
		Players: []Player{{
			ID:          hostID,
			Name:        hostName,
			IsAdmin:     true,
			Color:       hostColor,
			AvatarIndex: 0,
		}},
		Rules: rules,
	}
}

func (s State) indexOf(id string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

func (s State) Find(id string) (Player, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

func (s State) IsAdmin(id string) bool {
	p, ok := s.Find(id)
	return ok && p.IsAdmin
}

// AddPlayer appends a non-admin member. Fails if the round has already left
// the LOBBY status or the lobby is at capacity.
func AddPlayer(s State, p Player) (State, error) {
	if s.Status != StatusLobby {
		return s, ErrGameInProgress
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return s, ErrLobbyFull
	}
	p.IsAdmin = false
	p.IsReady = false
	p.Role = ""
	s.Players = append(slices.Clone(s.Players), p)
	return s, nil
}

// RemovePlayer drops the member with the given id. If the departing member
// was admin, the lowest-index survivor is promoted so a non-empty lobby
// always has exactly one admin. Unknown ids are a no-op (removed=false).
func RemovePlayer(s State, id string) (State, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return s, false
	}
	players := slices.Delete(slices.Clone(s.Players), i, i+1)
	if len(players) > 0 && !slices.ContainsFunc(players, func(p Player) bool { return p.IsAdmin }) {
		players[0].IsAdmin = true
	}
	s.Players = players
	return s, true
}

// ToggleReady flips the member's ready flag. Valid only while the status is
// LOBBY; anything else (including unknown ids) is a no-op.
func ToggleReady(s State, id string) (State, bool) {
	if s.Status != StatusLobby {
		return s, false
	}
	i := s.indexOf(id)
	if i < 0 {
		return s, false
	}
	players := slices.Clone(s.Players)
	players[i].IsReady = !players[i].IsReady
	s.Players = players
	return s, true
}

// BeginStarting moves a LOBBY whose start predicate holds into STARTING.
// Any other state is returned unchanged (started=false), so the countdown
// can never be triggered twice for the same satisfying ready state.
func BeginStarting(s State) (State, bool) {
	if s.Status != StatusLobby || !AllReady(s) {
		return s, false
	}
	s.Status = StatusStarting
	return s, true
}

// AllReady reports whether the start predicate holds: every member ready and
// membership at or above the configured minimum.
func AllReady(s State) bool {
	if len(s.Players) < s.Rules.MinPlayers {
		return false
	}
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}
