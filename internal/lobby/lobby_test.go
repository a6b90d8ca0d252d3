package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/prophunt/prophunt-backend/internal/engine"
)

func testRules(min int) engine.Rules {
	return engine.Rules{MinPlayers: min, MaxPlayers: 10}
}

// helper: receive one event with a timeout so tests never hang
func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return nil // unreachable
	}
}

func recvSnapshot(t *testing.T, ch <-chan Event, within time.Duration) Snapshot {
	t.Helper()
	ev := recvEvent(t, ch, within)
	snap, ok := ev.(Snapshot)
	if !ok {
		t.Fatalf("want Snapshot, got %T: %+v", ev, ev)
	}
	return snap
}

func recvNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			// closed is fine; no further events possible
			return
		}
		t.Fatalf("expected no event within %v, but got %T: %+v", within, ev, ev)
	case <-time.After(within):
	}
}

func recvClosed(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox not closed within %v", within)
		}
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

// newTestLobby spins up a lobby with an attached host connection.
func newTestLobby(t *testing.T, min int, countdown time.Duration, hooks Hooks) (*Lobby, chan Event) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	state := engine.NewState("AB12CD", "Ada", "ada", testRules(min))
	l := NewLobby(ctx, state, countdown, hooks, nil)

	hostOut := make(chan Event, 8)
	reply := make(chan Snapshot, 1)
	l.Inbox() <- Attach{ConnID: "c-ada", PlayerID: "ada", Outbox: hostOut, Reply: reply}
	snap := <-reply
	if snap.Version != 0 || len(snap.State.Players) != 1 {
		t.Fatalf("unexpected attach snapshot: %+v", snap)
	}
	return l, hostOut
}

func join(t *testing.T, l *Lobby, connID, playerID, name string) (chan Event, Snapshot) {
	t.Helper()
	out := make(chan Event, 8)
	reply := make(chan JoinReply, 1)
	l.Inbox() <- Join{ConnID: connID, Player: engine.Player{ID: playerID, Name: name}, Outbox: out, Reply: reply}
	res := <-reply
	if res.Err != nil {
		t.Fatalf("join failed: %v", res.Err)
	}
	return out, res.Snapshot
}

func TestLobby_JoinBroadcastsSnapshot(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Second, Hooks{})

	linOut, joined := join(t, l, "c-lin", "lin", "Lin")
	if len(joined.State.Players) != 2 {
		t.Fatalf("want 2 players in join reply, got %d", len(joined.State.Players))
	}
	lin, ok := joined.State.Find("lin")
	if !ok || lin.IsAdmin {
		t.Fatalf("joiner must be present and non-admin: %+v", lin)
	}
	if lin.Color == "" {
		t.Fatalf("joiner must get a cosmetic color")
	}

	// Both the existing member and the joiner see the update.
	hostSnap := recvSnapshot(t, hostOut, 100*time.Millisecond)
	linSnap := recvSnapshot(t, linOut, 100*time.Millisecond)
	if hostSnap.Version != 1 || linSnap.Version != 1 {
		t.Fatalf("want version 1 broadcasts, got %d/%d", hostSnap.Version, linSnap.Version)
	}
}

func TestLobby_AllReadyTriggersStartingOnce(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond) // join broadcast

	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, linOut, 100*time.Millisecond) // lin's own join broadcast

	l.Inbox() <- ToggleReady{PlayerID: "lin"}
	readySnap := recvSnapshot(t, hostOut, 100*time.Millisecond)
	if !engine.AllReady(readySnap.State) {
		t.Fatalf("expected all-ready snapshot, got %+v", readySnap.State.Players)
	}

	startingSnap := recvSnapshot(t, hostOut, 100*time.Millisecond)
	if startingSnap.State.Status != engine.StatusStarting {
		t.Fatalf("want STARTING, got %s", startingSnap.State.Status)
	}
	ev := recvEvent(t, hostOut, 100*time.Millisecond)
	starting, ok := ev.(Starting)
	if !ok {
		t.Fatalf("want Starting event, got %T", ev)
	}
	if starting.Seconds != 60 {
		t.Fatalf("want countdown 60s, got %d", starting.Seconds)
	}

	// A further toggle while STARTING must not re-trigger anything.
	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	recvNoEvent(t, hostOut, 100*time.Millisecond)
}

func TestLobby_CountdownAssignsExactlyOneHunter(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)

	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	l.Inbox() <- ToggleReady{PlayerID: "lin"}
	// drain: toggle, toggle, STARTING snapshot, Starting event
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvEvent(t, hostOut, 100*time.Millisecond)

	l.Inbox() <- CountdownFired{}

	gameSnap := recvSnapshot(t, hostOut, 100*time.Millisecond)
	if gameSnap.State.Status != engine.StatusGame {
		t.Fatalf("want GAME, got %s", gameSnap.State.Status)
	}

	ev := recvEvent(t, hostOut, 100*time.Millisecond)
	start, ok := ev.(Start)
	if !ok {
		t.Fatalf("want Start event, got %T", ev)
	}
	hunters := 0
	for _, role := range start.Round.Roles {
		if role == engine.RoleHunter {
			hunters++
		}
	}
	if hunters != 1 || len(start.Round.Roles) != 2 {
		t.Fatalf("want exactly one hunter among 2 roles, got %d/%d", hunters, len(start.Round.Roles))
	}
	if len(start.Round.SpawnPoints) != 2 {
		t.Fatalf("want 2 spawn points, got %d", len(start.Round.SpawnPoints))
	}

	// Lin sees the same transition.
	for {
		if ev := recvEvent(t, linOut, 100*time.Millisecond); ev != nil {
			if _, ok := ev.(Start); ok {
				return
			}
		}
	}
}

func TestLobby_CountdownFiredIgnoredOutsideStarting(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})

	l.Inbox() <- CountdownFired{}
	recvNoEvent(t, hostOut, 100*time.Millisecond)
}

func TestLobby_KickByNonAdminIgnored(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, linOut, 100*time.Millisecond)

	l.Inbox() <- Kick{AdminID: "lin", TargetID: "ada"}
	recvNoEvent(t, hostOut, 100*time.Millisecond)
	recvNoEvent(t, linOut, 100*time.Millisecond)

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if len(view.State.Players) != 2 {
		t.Fatalf("membership must be untouched, got %d players", len(view.State.Players))
	}
}

func TestLobby_KickRemovesTargetAndNotifies(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, linOut, 100*time.Millisecond)

	l.Inbox() <- Kick{AdminID: "ada", TargetID: "lin"}

	ev := recvEvent(t, linOut, 100*time.Millisecond)
	if _, ok := ev.(Kicked); !ok {
		t.Fatalf("want Kicked to the target, got %T", ev)
	}
	recvClosed(t, linOut, 100*time.Millisecond)

	snap := recvSnapshot(t, hostOut, 100*time.Millisecond)
	if len(snap.State.Players) != 1 || snap.State.Players[0].ID != "ada" {
		t.Fatalf("want Ada alone after kick, got %+v", snap.State.Players)
	}
}

func TestLobby_AdminLeavePromotesNext(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, linOut, 100*time.Millisecond)

	l.Inbox() <- Leave{ConnID: "c-ada"}

	snap := recvSnapshot(t, linOut, 100*time.Millisecond)
	if len(snap.State.Players) != 1 {
		t.Fatalf("want 1 player after leave, got %d", len(snap.State.Players))
	}
	if !snap.State.Players[0].IsAdmin || snap.State.Players[0].ID != "lin" {
		t.Fatalf("want Lin promoted to admin, got %+v", snap.State.Players[0])
	}
}

func TestLobby_LastLeaveReportsEmpty(t *testing.T) {
	empty := make(chan string, 1)
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{
		OnEmpty: func(code string) { empty <- code },
	})

	l.Inbox() <- Leave{ConnID: "c-ada"}

	select {
	case code := <-empty:
		if code != "AB12CD" {
			t.Fatalf("want AB12CD, got %q", code)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("OnEmpty never called")
	}
	recvClosed(t, hostOut, 100*time.Millisecond)

	// Leaving again is a harmless no-op.
	l.Inbox() <- Leave{ConnID: "c-ada"}
}

func TestLobby_MoveRelayExcludesSender(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})
	linOut, _ := join(t, l, "c-lin", "lin", "Lin")
	bobOut, _ := join(t, l, "c-bob", "bob", "Bob")
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond) // lin joined
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond) // bob joined
	_ = recvSnapshot(t, linOut, 100*time.Millisecond)
	_ = recvSnapshot(t, linOut, 100*time.Millisecond)
	_ = recvSnapshot(t, bobOut, 100*time.Millisecond)

	l.Inbox() <- Move{
		ConnID: "c-lin", PlayerID: "lin",
		Position: [3]float64{1, 2, 3}, Rotation: [3]float64{0, 1, 0},
	}

	for _, out := range []chan Event{hostOut, bobOut} {
		ev := recvEvent(t, out, 100*time.Millisecond)
		moved, ok := ev.(Moved)
		if !ok {
			t.Fatalf("want Moved, got %T", ev)
		}
		if moved.PlayerID != "lin" || moved.Position != [3]float64{1, 2, 3} {
			t.Fatalf("unexpected relay payload: %+v", moved)
		}
	}
	recvNoEvent(t, linOut, 100*time.Millisecond)
}

func TestLobby_DropSlowClient(t *testing.T) {
	l, hostOut := newTestLobby(t, 2, time.Minute, Hooks{})

	// Unbuffered outbox with no reader: first broadcast drops it.
	slow := make(chan Event)
	reply := make(chan Snapshot, 1)
	l.Inbox() <- Attach{ConnID: "c-slow", PlayerID: "slow", Outbox: slow, Reply: reply}
	<-reply

	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)

	view := make(chan View, 1)
	l.Inbox() <- GetState{Reply: view}
	v := recvView(t, view, 100*time.Millisecond)
	if v.NumConns != 1 {
		t.Fatalf("want slow client dropped, NumConns=%d", v.NumConns)
	}
}

func TestLobby_Shutdown_StopsTimer_NoFire(t *testing.T) {
	fired := make(chan string, 1)
	l, hostOut := newTestLobby(t, 1, 50*time.Millisecond, Hooks{
		Fire: func(code string) { fired <- code },
	})

	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond) // toggle
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond) // STARTING
	_ = recvEvent(t, hostOut, 100*time.Millisecond)    // Starting seconds

	l.Inbox() <- Shutdown{}

	select {
	case <-fired:
		t.Fatalf("timer fired after shutdown")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLobby_CountdownFiresThroughHook(t *testing.T) {
	fired := make(chan string, 1)
	l, hostOut := newTestLobby(t, 1, 20*time.Millisecond, Hooks{
		Fire: func(code string) { fired <- code },
	})

	l.Inbox() <- ToggleReady{PlayerID: "ada"}
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvSnapshot(t, hostOut, 100*time.Millisecond)
	_ = recvEvent(t, hostOut, 100*time.Millisecond)

	select {
	case code := <-fired:
		if code != "AB12CD" {
			t.Fatalf("fire hook got wrong code %q", code)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("countdown never fired")
	}
}
