package main

import (
	"math"
	"slices"
)

// spatialCellSize is a little over the widest contact reach (enemy + player radius)
const spatialCellSize = 80.0

// SpatialGrid buckets player indices by canvas cell for broad-phase queries.
// Positions outside the canvas fall into the border cells.
type SpatialGrid struct {
	cols, rows int
	cells      [][]int
}

// NewSpatialGrid sizes a grid to cover a width x height canvas
func NewSpatialGrid(width, height float64) *SpatialGrid {
	cols := int(math.Ceil(width/spatialCellSize)) + 1
	rows := int(math.Ceil(height/spatialCellSize)) + 1
	return &SpatialGrid{cols: cols, rows: rows, cells: make([][]int, cols*rows)}
}

func clampCell(v float64, n int) int {
	c := int(math.Floor(v / spatialCellSize))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// Insert adds index idx at the given position
func (g *SpatialGrid) Insert(x, y float64, idx int) {
	i := clampCell(y, g.rows)*g.cols + clampCell(x, g.cols)
	g.cells[i] = append(g.cells[i], idx)
}

// QueryBuf appends every index in the cells overlapping the box of the given
// radius around (x, y) to buf, in ascending order
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []int) []int {
	start := len(buf)
	minCX, maxCX := clampCell(x-radius, g.cols), clampCell(x+radius, g.cols)
	minCY, maxCY := clampCell(y-radius, g.rows), clampCell(y+radius, g.rows)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	slices.Sort(buf[start:])
	return buf
}

// playerGrid indexes the match's players by position
func (e *Engine) playerGrid(state *MatchState) *SpatialGrid {
	g := NewSpatialGrid(e.cfg.CanvasWidth, e.cfg.CanvasHeight)
	for i := range state.Players {
		g.Insert(state.Players[i].X, state.Players[i].Y, i)
	}
	return g
}
