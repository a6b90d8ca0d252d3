package lobby

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/prophunt/prophunt-backend/internal/engine"
)

type Msg interface{ isLobbyMsg() }

// Attach binds a connection whose player is already a member (the host,
// right after creation). Replies with the current snapshot.
type Attach struct {
	ConnID   string
	PlayerID string
	Outbox   chan Event
	Reply    chan Snapshot
}

func (Attach) isLobbyMsg() {}

// Join adds a new member and binds its connection in one step.
type Join struct {
	ConnID string
	Player engine.Player
	Outbox chan Event
	Reply  chan JoinReply
}

func (Join) isLobbyMsg() {}

type JoinReply struct {
	Snapshot Snapshot
	Err      error
}

// Leave removes the member bound to ConnID. Explicit leaves and transport
// disconnects both arrive here; unknown connections are a no-op.
type Leave struct{ ConnID string }

func (Leave) isLobbyMsg() {}

type ToggleReady struct{ PlayerID string }

func (ToggleReady) isLobbyMsg() {}

// Kick is silently dropped unless AdminID resolves to the current admin.
type Kick struct{ AdminID, TargetID string }

func (Kick) isLobbyMsg() {}

// Move is relayed to every other bound connection; no state is touched.
type Move struct {
	ConnID   string
	PlayerID string
	Position [3]float64
	Rotation [3]float64
}

func (Move) isLobbyMsg() {}

// CountdownFired is injected by the registry when the start timer elapses.
// It is dropped unless the lobby is still STARTING with members present.
type CountdownFired struct{}

func (CountdownFired) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// GetState reflects internal state without data races; test-only.
type GetState struct{ Reply chan View }

func (GetState) isLobbyMsg() {}

type View struct {
	Version  int
	NumConns int
	State    engine.State
}

// Hooks are the lobby's only way to reach back into the registry. The
// countdown deliberately goes through Fire with just the code so the timer
// never holds a live lobby reference.
type Hooks struct {
	OnEmpty func(code string)
	Fire    func(code string)
}

type Lobby struct {
	inbox     chan Msg
	state     engine.State
	version   int
	conns     map[string]chan Event // connID -> outbox
	binds     map[string]string     // connID -> playerID
	countdown time.Duration
	timer     *time.Timer
	rnd       *rand.Rand
	hooks     Hooks
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, initial engine.State, countdown time.Duration, hooks Hooks, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if hooks.OnEmpty == nil {
		hooks.OnEmpty = func(string) {}
	}
	if hooks.Fire == nil {
		hooks.Fire = func(string) {}
	}
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		inbox:     make(chan Msg, 64),
		state:     initial,
		conns:     make(map[string]chan Event),
		binds:     make(map[string]string),
		countdown: countdown,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		hooks:     hooks,
		log:       log.With(zap.String("lobby", initial.Code)),
		ctx:       ctx,
		cancel:    cancel,
	}

	go l.loop()
	return l
}

// Inbox exposes the message channel to the ws layer and tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Attach:
				l.conns[msg.ConnID] = msg.Outbox
				l.binds[msg.ConnID] = msg.PlayerID
				msg.Reply <- Snapshot{Version: l.version, State: l.state}

			case Join:
				l.handleJoin(msg)

			case Leave:
				l.handleLeave(msg.ConnID)

			case ToggleReady:
				l.handleToggleReady(msg.PlayerID)

			case Kick:
				l.handleKick(msg)

			case Move:
				l.relayMove(msg)

			case CountdownFired:
				l.handleCountdownFired()

			case GetState:
				msg.Reply <- View{Version: l.version, NumConns: len(l.conns), State: l.state}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handleJoin(msg Join) {
	p := msg.Player
	p.Color, p.AvatarIndex = engine.Cosmetics(l.rnd)

	next, err := engine.AddPlayer(l.state, p)
	if err != nil {
		msg.Reply <- JoinReply{Err: err}
		return
	}
	l.state = next
	l.version++
	l.conns[msg.ConnID] = msg.Outbox
	l.binds[msg.ConnID] = p.ID

	snap := Snapshot{Version: l.version, State: l.state}
	msg.Reply <- JoinReply{Snapshot: snap}
	l.broadcast(snap)
}

func (l *Lobby) handleLeave(connID string) {
	playerID, bound := l.binds[connID]
	l.detach(connID)
	if !bound {
		return
	}
	l.removePlayer(playerID)
}

func (l *Lobby) handleToggleReady(playerID string) {
	next, changed := engine.ToggleReady(l.state, playerID)
	if !changed {
		return
	}
	l.state = next
	l.version++
	l.broadcast(Snapshot{Version: l.version, State: l.state})

	l.beginStarting()
}

// beginStarting runs the STARTING transition exactly once per satisfying
// ready state; engine.BeginStarting refuses anything not all-ready in LOBBY.
func (l *Lobby) beginStarting() {
	next, started := engine.BeginStarting(l.state)
	if !started {
		return
	}
	l.state = next
	l.version++
	l.broadcast(Snapshot{Version: l.version, State: l.state})
	l.broadcast(Starting{Seconds: int(l.countdown / time.Second)})

	code := l.state.Code
	fire := l.hooks.Fire
	l.timer = time.AfterFunc(l.countdown, func() { fire(code) })
	l.log.Info("countdown started", zap.Duration("countdown", l.countdown))
}

func (l *Lobby) handleCountdownFired() {
	if l.state.Status != engine.StatusStarting || len(l.state.Players) == 0 {
		l.log.Debug("stale countdown fire dropped", zap.String("status", string(l.state.Status)))
		return
	}
	next, round := engine.AssignRound(l.state, l.rnd)
	l.state = next
	l.version++
	l.broadcast(Snapshot{Version: l.version, State: l.state})
	l.broadcast(Start{Round: round})
	l.log.Info("round started", zap.Int("players", len(l.state.Players)))
}

func (l *Lobby) handleKick(msg Kick) {
	// Unauthorized kicks are dropped without a reply on purpose.
	if !l.state.IsAdmin(msg.AdminID) {
		l.log.Debug("kick by non-admin ignored", zap.String("by", msg.AdminID))
		return
	}

	for connID, playerID := range l.binds {
		if playerID != msg.TargetID {
			continue
		}
		if out, ok := l.conns[connID]; ok {
			select {
			case out <- Kicked{}:
			default:
			}
		}
		l.detach(connID)
		break
	}
	l.removePlayer(msg.TargetID)
}

// removePlayer is the single mutation path shared by leave, disconnect and
// kick, so admin promotion and empty-lobby teardown happen in one place.
func (l *Lobby) removePlayer(playerID string) {
	next, removed := engine.RemovePlayer(l.state, playerID)
	if !removed {
		return
	}
	l.state = next

	if len(l.state.Players) == 0 {
		l.hooks.OnEmpty(l.state.Code)
		l.shutdown()
		return
	}
	l.version++
	l.broadcast(Snapshot{Version: l.version, State: l.state})
}

func (l *Lobby) relayMove(msg Move) {
	ev := Moved{PlayerID: msg.PlayerID, Position: msg.Position, Rotation: msg.Rotation}
	for connID, ch := range l.conns {
		if connID == msg.ConnID {
			continue
		}
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop the relay, not the connection.
		}
	}
}

func (l *Lobby) detach(connID string) {
	if ch, ok := l.conns[connID]; ok {
		close(ch)
		delete(l.conns, connID)
	}
	delete(l.binds, connID)
}

func (l *Lobby) broadcast(ev Event) {
	for connID, ch := range l.conns {
		select {
		case ch <- ev:
			// ok
		default:
			// Client is slow/full - drop them. The ws layer sees the closed
			// outbox and feeds the disconnect back as a Leave.
			l.log.Warn("dropping slow client", zap.String("conn", connID))
			l.detach(connID)
		}
	}
}

func (l *Lobby) shutdown() {
	if l.timer != nil {
		l.timer.Stop()
	}
	for connID := range l.conns {
		l.detach(connID)
	}
	l.cancel()
}
