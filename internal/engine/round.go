package engine

import (
	"math"
	"math/rand"
)

// Cosmetic palette shown in the lobby screen. The host always gets the
// second entry so the party leader is visually consistent.
var colors = []string{"#C8AA6E", "#0AC8B9", "#FF4655", "#A09B8C", "#E6E6E6", "#FF9900"}

const hostColor = "#0AC8B9"

const avatarCount = 3

// Cosmetics returns a random color/avatar pair for a joining player.
func Cosmetics(rnd *rand.Rand) (string, int) {
	return colors[rnd.Intn(len(colors))], rnd.Intn(avatarCount)
}

// Round is the per-round data computed on the STARTING -> GAME transition.
// It lives only as long as the round itself.
type Round struct {
	Roles       map[string]Role       `json:"roles"`
	SpawnPoints map[string][3]float64 `json:"spawnPoints"`
}

// SpawnPoint places the i-th member on a circle around the arena center:
// 45 degrees per index, radius randomized in [5,10). Distinct angles keep
// spawn points apart for lobby sizes up to 8.
func SpawnPoint(index int, rnd *rand.Rand) [3]float64 {
	angle := float64(index) * 45 * (math.Pi / 180)
	radius := 5 + rnd.Float64()*5
	return [3]float64{math.Cos(angle) * radius, 5, math.Sin(angle) * radius}
}

// AssignRound picks one member uniformly at random as HUNTER, everyone else
// as PROP, generates spawn points, tags the members and flips the status to
// GAME. Callers must only invoke this from STARTING with a non-empty lobby.
func AssignRound(s State, rnd *rand.Rand) (State, Round) {
	hunter := rnd.Intn(len(s.Players))
	round := Round{
		Roles:       make(map[string]Role, len(s.Players)),
		SpawnPoints: make(map[string][3]float64, len(s.Players)),
	}

	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		role := RoleProp
		if i == hunter {
			role = RoleHunter
		}
		round.Roles[p.ID] = role
		round.SpawnPoints[p.ID] = SpawnPoint(i, rnd)
		p.Role = role
		players[i] = p
	}

	s.Players = players
	s.Status = StatusGame
	return s, round
}
