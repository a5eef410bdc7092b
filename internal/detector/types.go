// Package detector finds faces and facial landmarks in camera frames. Two
// implementations exist: the ONNX mesh detector (face box + 106 landmarks)
// and a pure-Go cascade detector that reports boxes only.
package detector

import "github.com/ouva/dermascan/internal/roi"

// Point is a 2D pixel-space point.
type Point struct {
	X, Y float32
}

// BoundingBox is a face bounding box in pixel space.
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width.
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height.
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns the box center point.
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns the box area.
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// IoU returns the intersection-over-union overlap with another box, in
// [0,1]. Disjoint or degenerate boxes score 0.
func (b BoundingBox) IoU(o BoundingBox) float32 {
	x1 := max32(b.X1, o.X1)
	y1 := max32(b.Y1, o.Y1)
	x2 := min32(b.X2, o.X2)
	y2 := min32(b.Y2, o.Y2)
	if x1 >= x2 || y1 >= y2 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// NumLandmarks is the size of the fixed landmark topology (insightface
// 2d106det layout: jaw contour 0-32, nose 72-86, eyes, brows, mouth).
const NumLandmarks = 106

// Face is one detected face. Landmarks are normalized to [0,1] relative to
// the frame dimensions; nil when the detector is bounding-box-only.
type Face struct {
	Box       BoundingBox
	Landmarks []roi.Landmark
	Score     float32
}

// HasLandmarks reports whether the face carries a full landmark set.
func (f Face) HasLandmarks() bool {
	return len(f.Landmarks) == NumLandmarks
}
