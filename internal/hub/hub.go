package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prophunt/prophunt-backend/internal/engine"
	"github.com/prophunt/prophunt-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

// CreateLobby generates a fresh code (regenerating on collision), spins up
// the lobby actor with the host as admin, and replies with both.
type CreateLobby struct {
	HostName string
	HostID   string
	Reply    chan CreateReply
}

type CreateReply struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby drops the registry entry. Lobbies send this about themselves
// when their last member leaves.
type RemoveLobby struct{ Code string }

// FireCountdown is the weak-reference half of the start timer: it carries
// only a code, and is dropped silently when that code no longer resolves.
type FireCountdown struct{ Code string }

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()   {}
func (GetLobby) isHubMsg()      {}
func (RemoveLobby) isHubMsg()   {}
func (FireCountdown) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Options carries the policy every lobby is created with.
type Options struct {
	Rules     engine.Rules
	Countdown time.Duration
	Logger    *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				if _, ok := h.lobbies[msg.Code]; ok {
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("code", msg.Code))
				}

			case FireCountdown:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Inbox() <- lobby.CountdownFired{}
				} else {
					h.log.Debug("countdown fired for dead lobby", zap.String("code", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) CreateReply {
	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			return CreateReply{Err: err}
		}
		if _, taken := h.lobbies[c]; !taken {
			code = c
			break
		}
		h.log.Warn("lobby code collision, regenerating", zap.String("code", c))
	}

	state := engine.NewState(code, msg.HostName, msg.HostID, h.opts.Rules)
	hooks := lobby.Hooks{
		OnEmpty: func(code string) { h.inbox <- RemoveLobby{Code: code} },
		Fire:    func(code string) { h.inbox <- FireCountdown{Code: code} },
	}
	lb := lobby.NewLobby(h.ctx, state, h.opts.Countdown, hooks, h.log)
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("code", code), zap.String("host", msg.HostID))
	return CreateReply{Code: code, Lobby: lb}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Inbox() <- lobby.Shutdown{}
	}
	clear(h.lobbies)
	h.cancel()
}
