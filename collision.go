package main

import "math"

// CheckCollision reports whether two circles overlap (strictly closer than r1+r2)
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	radSum := r1 + r2
	return dx*dx+dy*dy < radSum*radSum
}

// segmentProjection returns how far along the segment (x1,y1)-(x2,y2) the
// point closest to (px,py) lies, as a distance from (x1,y1), and the
// distance from that closest point to (px,py).
func segmentProjection(x1, y1, x2, y2, px, py float64) (along, dist float64) {
	dx := x2 - x1
	dy := y2 - y1
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, Distance(x1, y1, px, py)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / lenSq
	t = Clamp(t, 0, 1)
	cx := x1 + t*dx
	cy := y1 + t*dy
	return t * math.Sqrt(lenSq), Distance(cx, cy, px, py)
}
