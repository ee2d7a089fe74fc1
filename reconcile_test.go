package main

import (
	"encoding/json"
	"math"
	"testing"
)

func moveAction(t *testing.T, playerID string, ts int64, x, y, angle float64) GameAction {
	t.Helper()
	data, err := json.Marshal(MovePayload{X: x, Y: y, Angle: angle})
	if err != nil {
		t.Fatal(err)
	}
	return GameAction{Type: ActionMove, PlayerID: playerID, Data: data, Timestamp: ts}
}

func viewMatch() *MatchState {
	return &MatchState{Players: []PlayerState{
		testPlayer("me", 10, 10),
		testPlayer("bob", 100, 100),
		testPlayer("carol", 200, 200),
	}}
}

func TestRemoteViewSkipsSelf(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())

	players := v.Players()
	if len(players) != 2 || players[0].ID != "bob" || players[1].ID != "carol" {
		t.Fatalf("expected bob and carol, got %+v", players)
	}
	if _, ok := v.Player("me"); ok {
		t.Error("own player should not be tracked")
	}
	bob, _ := v.Player("bob")
	if bob.X != 100 || bob.TargetX != 100 {
		t.Errorf("first sighting should snap into place, got %+v", bob)
	}
}

func TestRemoteViewIgnoresOwnEcho(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())
	v.ApplyActions([]GameAction{moveAction(t, "me", 50, 500, 500, 0)})

	if v.LastSync() != 50 {
		t.Errorf("own echoes still advance the sync cursor, got %d", v.LastSync())
	}
	for _, p := range v.Players() {
		if p.TargetX == 500 {
			t.Errorf("own move leaked into %s", p.ID)
		}
	}
}

func TestRemoteViewInterpolates(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())
	v.ApplyActions([]GameAction{moveAction(t, "bob", 10, 200, 100, 0)})

	bob, _ := v.Player("bob")
	if bob.TargetX != 200 || bob.X != 100 {
		t.Fatalf("expected target 200 drawn at 100, got %+v", bob)
	}

	v.Step()
	bob, _ = v.Player("bob")
	if math.Abs(bob.X-120) > 1e-9 {
		t.Errorf("expected 20%% of the gap closed (120), got %v", bob.X)
	}
	for i := 0; i < 60; i++ {
		v.Step()
	}
	bob, _ = v.Player("bob")
	if math.Abs(bob.X-200) > 0.01 {
		t.Errorf("expected convergence to 200, got %v", bob.X)
	}
}

func TestRemoteViewInterpolatesAngleShortWay(t *testing.T) {
	v := NewRemoteView("me")
	m := viewMatch()
	m.Players[1].Angle = 3
	v.ApplySnapshot(m)
	v.ApplyActions([]GameAction{moveAction(t, "bob", 10, 100, 100, -3)})

	v.Step()
	bob, _ := v.Player("bob")
	// the short way from 3 to -3 passes through PI
	if math.Abs(bob.Angle) < 3 {
		t.Errorf("expected the angle to move toward ±PI, got %v", bob.Angle)
	}
}

func TestRemoteViewDropsDisconnected(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())

	data, _ := json.Marshal(HitPayload{Disconnected: true})
	v.ApplyActions([]GameAction{{Type: ActionHit, PlayerID: "bob", Data: data, Timestamp: 70}})

	if _, ok := v.Player("bob"); ok {
		t.Error("disconnected player should be dropped")
	}
	if v.LastSync() != 70 {
		t.Errorf("expected last sync 70, got %d", v.LastSync())
	}

	// an ordinary hit keeps the player
	hit, _ := json.Marshal(HitPayload{TargetID: "enemy_1", Damage: 10})
	v.ApplyActions([]GameAction{{Type: ActionHit, PlayerID: "carol", Data: hit, Timestamp: 80}})
	if _, ok := v.Player("carol"); !ok {
		t.Error("carol should still be tracked")
	}
}

func TestRemoteViewSnapshotRemovesDeparted(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())

	m := viewMatch()
	m.Players = m.Players[:2]
	v.Apply(StateResponse{Match: m, Actions: []GameAction{moveAction(t, "bob", 30, 150, 100, 0)}})

	if _, ok := v.Player("carol"); ok {
		t.Error("carol left the snapshot and should be gone")
	}
	bob, _ := v.Player("bob")
	if bob.TargetX != 150 || v.LastSync() != 30 {
		t.Errorf("expected the delta applied after the snapshot, got %+v sync %d", bob, v.LastSync())
	}
	if v.Match() != m {
		t.Error("expected the latest snapshot to be kept")
	}
}

func TestRemoteViewIgnoresUnknownPlayers(t *testing.T) {
	v := NewRemoteView("me")
	v.ApplySnapshot(viewMatch())
	v.ApplyActions([]GameAction{moveAction(t, "stranger", 5, 1, 1, 0)})
	if len(v.Players()) != 2 {
		t.Errorf("unknown players should not be added by actions, got %d", len(v.Players()))
	}
}
