package roi

import "math"

// DefaultSampleBudget bounds how many grid points one sampling pass visits,
// independent of region size on screen.
const DefaultSampleBudget = 2800

// minBoxSpan is the smallest bounding-box side, in pixels, worth sampling.
const minBoxSpan = 2.0

// SamplePolygons draws a bounded set of RGB samples from the union of the
// given polygons. The combined bounding box is walked on a stride grid sized
// so roughly budget points are visited regardless of polygon area; each grid
// point inside any polygon emits one sample. Degenerate polygons are ignored
// and an all-degenerate set yields an empty result.
func SamplePolygons(px Pixels, polys []Polygon, budget int) []Sample {
	if px.Empty() {
		return nil
	}
	if budget <= 0 {
		budget = DefaultSampleBudget
	}

	minX, minY, maxX, maxY, ok := unionBounds(polys)
	if !ok {
		return nil
	}

	// Clamp to the frame rectangle.
	minX = math.Max(minX, 0)
	minY = math.Max(minY, 0)
	maxX = math.Min(maxX, float64(px.Width-1))
	maxY = math.Min(maxY, float64(px.Height-1))

	spanX := maxX - minX
	spanY := maxY - minY
	if spanX <= minBoxSpan || spanY <= minBoxSpan {
		return nil
	}

	stride := int(math.Floor(math.Sqrt(spanX * spanY / float64(budget))))
	if stride < 1 {
		stride = 1
	}

	samples := make([]Sample, 0, budget)
	for y := int(math.Ceil(minY)); y <= int(maxY); y += stride {
		for x := int(math.Ceil(minX)); x <= int(maxX); x += stride {
			if insideAny(polys, float64(x), float64(y)) {
				samples = append(samples, px.At(x, y))
			}
		}
	}
	return samples
}

func insideAny(polys []Polygon, x, y float64) bool {
	for _, p := range polys {
		if p.Contains(x, y) {
			return true
		}
	}
	return false
}

func unionBounds(polys []Polygon) (minX, minY, maxX, maxY float64, ok bool) {
	for _, p := range polys {
		pMinX, pMinY, pMaxX, pMaxY, valid := p.Bounds()
		if !valid {
			continue
		}
		if !ok {
			minX, minY, maxX, maxY = pMinX, pMinY, pMaxX, pMaxY
			ok = true
			continue
		}
		minX = math.Min(minX, pMinX)
		minY = math.Min(minY, pMinY)
		maxX = math.Max(maxX, pMaxX)
		maxY = math.Max(maxY, pMaxY)
	}
	return minX, minY, maxX, maxY, ok
}
