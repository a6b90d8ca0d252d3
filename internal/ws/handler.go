package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prophunt/prophunt-backend/internal/engine"
	"github.com/prophunt/prophunt-backend/internal/hub"
	"github.com/prophunt/prophunt-backend/internal/lobby"
	"github.com/prophunt/prophunt-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// session is the directory entry for one connection: which player it speaks
// for and which lobby it is bound to. A connection is bound to at most one
// lobby for its lifetime; the transport, not the client, decides liveness.
type session struct {
	connID string
	code   string
	lb     *lobby.Lobby
	left   bool // outbox is gone, no further create/join on this connection
}

func (s *session) bound() bool { return s.lb != nil }

// Handler upgrades to a WebSocket and speaks the whole command set over it.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sess := &session{connID: uuid.NewString()}
		out := make(chan lobby.Event, 16)
		log := log.With(zap.String("conn", sess.connID))
		log.Debug("client connected")

		// A connection drop is an implicit leave; kicks and explicit leaves
		// already unbound the session, so this is a no-op for them. For a
		// bound session the lobby owns the outbox and closes it on detach;
		// a session that never bound has to close it here or the writer
		// goroutine below blocks forever.
		defer func() {
			if sess.bound() {
				sess.lb.Inbox() <- lobby.Leave{ConnID: sess.connID}
			} else if !sess.left {
				close(out)
			}
			log.Debug("client disconnected")
		}()

		// Writer goroutine: drains the lobby outbox. The lobby closes the
		// outbox when it drops or removes this connection, which also ends
		// the session from the client's point of view.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for ev := range out {
				writeMessage(writeCtx, conn, toServerMessage(ev))
			}
			conn.Close(websocket.StatusNormalClosure, "session over")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMessage(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			dispatch(r.Context(), conn, h, sess, out, cm, log)
		}
	}
}

func dispatch(ctx context.Context, conn *websocket.Conn, h *hub.Hub, sess *session, out chan lobby.Event, cm types.ClientMessage, log *zap.Logger) {
	switch cm.Type {
	case "lobby:create":
		if sess.bound() || sess.left {
			writeMessage(ctx, conn, types.ServerMessage{Type: "lobby:created", Error: "already in a lobby"})
			return
		}
		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateLobby{HostName: cm.HostName, HostID: cm.HostID, Reply: reply}
		created := <-reply
		if created.Err != nil {
			log.Error("lobby create failed", zap.Error(created.Err))
			writeMessage(ctx, conn, types.ServerMessage{Type: "lobby:created", Error: "could not create lobby"})
			return
		}

		attach := make(chan lobby.Snapshot, 1)
		created.Lobby.Inbox() <- lobby.Attach{ConnID: sess.connID, PlayerID: cm.HostID, Outbox: out, Reply: attach}
		snap := <-attach
		sess.code, sess.lb = created.Code, created.Lobby
		writeMessage(ctx, conn, types.ServerMessage{
			Type: "lobby:created", Success: true, Code: created.Code,
			Version: snap.Version, State: &snap.State,
		})

	case "lobby:join":
		if sess.bound() || sess.left {
			writeMessage(ctx, conn, types.ServerMessage{Type: "lobby:joined", Error: "already in a lobby"})
			return
		}
		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: cm.Code, Reply: reply}
		lb := <-reply
		if lb == nil {
			writeMessage(ctx, conn, types.ServerMessage{Type: "lobby:joined", Error: "Lobby not found"})
			return
		}

		joined := make(chan lobby.JoinReply, 1)
		lb.Inbox() <- lobby.Join{
			ConnID: sess.connID,
			Player: engine.Player{ID: cm.PlayerID, Name: cm.PlayerName},
			Outbox: out,
			Reply:  joined,
		}
		res := <-joined
		if res.Err != nil {
			writeMessage(ctx, conn, types.ServerMessage{Type: "lobby:joined", Error: joinError(res.Err)})
			return
		}
		sess.code, sess.lb = cm.Code, lb
		writeMessage(ctx, conn, types.ServerMessage{
			Type: "lobby:joined", Success: true, Code: cm.Code,
			Version: res.Snapshot.Version, State: &res.Snapshot.State,
		})

	case "lobby:ready":
		if sess.bound() {
			sess.lb.Inbox() <- lobby.ToggleReady{PlayerID: cm.PlayerID}
		}

	case "lobby:kick":
		if sess.bound() {
			sess.lb.Inbox() <- lobby.Kick{AdminID: cm.AdminID, TargetID: cm.TargetID}
		}

	case "lobby:leave":
		if sess.bound() {
			sess.lb.Inbox() <- lobby.Leave{ConnID: sess.connID}
			sess.code, sess.lb = "", nil
			sess.left = true
		}

	case "player:move":
		pos, okPos := vec3(cm.Position)
		rot, okRot := vec3(cm.Rotation)
		if !sess.bound() || !okPos || !okRot {
			return
		}
		sess.lb.Inbox() <- lobby.Move{ConnID: sess.connID, PlayerID: cm.PlayerID, Position: pos, Rotation: rot}

	default:
		writeMessage(ctx, conn, types.ServerMessage{Type: "error", Error: "unknown type"})
	}
}

func joinError(err error) string {
	switch {
	case errors.Is(err, engine.ErrLobbyFull):
		return "Lobby is full"
	case errors.Is(err, engine.ErrGameInProgress):
		return "Game already in progress"
	default:
		return "Lobby not found"
	}
}

func toServerMessage(ev lobby.Event) types.ServerMessage {
	switch ev := ev.(type) {
	case lobby.Snapshot:
		return types.ServerMessage{Type: "lobby:update", Version: ev.Version, State: &ev.State}
	case lobby.Starting:
		return types.ServerMessage{Type: "game:starting", Seconds: ev.Seconds}
	case lobby.Start:
		return types.ServerMessage{Type: "game:start", Round: &ev.Round}
	case lobby.Kicked:
		return types.ServerMessage{Type: "player:kicked"}
	case lobby.Moved:
		return types.ServerMessage{
			Type: "player:moved", ID: ev.PlayerID,
			Position: ev.Position[:], Rotation: ev.Rotation[:],
		}
	default:
		return types.ServerMessage{Type: "error", Error: "unknown event"}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func vec3(v []float64) ([3]float64, bool) {
	if len(v) != 3 {
		return [3]float64{}, false
	}
	return [3]float64{v[0], v[1], v[2]}, true
}
