package roi

// Point is a pixel-space coordinate.
type Point struct {
	X, Y float64
}

// Polygon is an ordered list of pixel-space vertices. A polygon with fewer
// than three vertices is degenerate and never contains anything.
type Polygon []Point

// Valid reports whether the polygon has enough vertices to enclose area.
func (p Polygon) Valid() bool {
	return len(p) >= 3
}

// Contains tests pt against the polygon by casting a horizontal ray towards
// +X and counting edge crossings (even-odd rule).
//
// Tie-break: edges are half-open in Y. An edge contributes a crossing only
// when one endpoint lies strictly below the ray and the other at or above
// it, and the crossing itself counts only when strictly to the right of the
// point. The net effect is that a point on the bottom or left boundary
// (including the bottom-left vertex) classifies as inside, while a point on
// the top or right boundary classifies as outside. The rule is arbitrary
// but deterministic, which is what the sampler needs.
func (p Polygon) Contains(x, y float64) bool {
	if !p.Valid() {
		return false
	}
	inside := false
	j := len(p) - 1
	for i := 0; i < len(p); i++ {
		a, b := p[i], p[j]
		if (a.Y > y) != (b.Y > y) {
			cross := (b.X-a.X)*(y-a.Y)/(b.Y-a.Y) + a.X
			if x < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Bounds returns the axis-aligned bounding box of the polygon vertices.
// ok is false for degenerate polygons.
func (p Polygon) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if !p.Valid() {
		return 0, 0, 0, 0, false
	}
	minX, maxX = p[0].X, p[0].X
	minY, maxY = p[0].Y, p[0].Y
	for _, v := range p[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return minX, minY, maxX, maxY, true
}
