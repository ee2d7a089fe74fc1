package main

import (
	"slices"
	"testing"
)

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(800, 600)
	grid.Insert(100, 100, 0)

	if got := grid.QueryBuf(100, 100, 50, nil); !slices.Equal(got, []int{0}) {
		t.Errorf("expected to find index 0 at (100,100), got %v", got)
	}
	if got := grid.QueryBuf(700, 500, 50, nil); len(got) != 0 {
		t.Errorf("query far away should be empty, got %v", got)
	}
}

func TestSpatialGridOffCanvas(t *testing.T) {
	grid := NewSpatialGrid(800, 600)
	grid.Insert(10, 300, 1)

	// an enemy waiting just past the left edge still sees the player
	if got := grid.QueryBuf(-50, 300, 55, nil); !slices.Equal(got, []int{1}) {
		t.Errorf("expected index 1 from off canvas, got %v", got)
	}
	grid.Insert(-40, 900, 2)
	if got := grid.QueryBuf(0, 650, 10, nil); !slices.Equal(got, []int{2}) {
		t.Errorf("out-of-range inserts should land in border cells, got %v", got)
	}
}

func TestSpatialGridQuerySorted(t *testing.T) {
	grid := NewSpatialGrid(800, 600)
	grid.Insert(170, 100, 0)
	grid.Insert(90, 100, 4)
	grid.Insert(150, 100, 2)

	buf := []int{9}
	got := grid.QueryBuf(130, 100, 50, buf)
	if !slices.Equal(got, []int{9, 0, 2, 4}) {
		t.Errorf("expected the existing prefix then sorted indices, got %v", got)
	}
}

func TestPlayerGrid(t *testing.T) {
	e := NewEngine(DefaultGameConfig(), NewSeqRand(0.5), nil)
	m := &MatchState{Players: []PlayerState{testPlayer("a", 50, 50), testPlayer("b", 750, 550)}}
	grid := e.playerGrid(m)

	if got := grid.QueryBuf(760, 540, 20, nil); !slices.Equal(got, []int{1}) {
		t.Errorf("expected player b, got %v", got)
	}
}
