package roi

// Landmark is a detector output point, normalized to [0,1] relative to the
// frame dimensions.
type Landmark struct {
	X, Y float64
}

// Region is a named polygon over a facial sub-area.
type Region struct {
	Name string
	Poly Polygon
}

// RegionSpec names a region and the landmark indices that outline it, in
// polygon winding order.
type RegionSpec struct {
	Name    string
	Indices []int
}

// Region names produced by DefaultRegionSpecs.
const (
	RegionLeftCheek  = "left-cheek"
	RegionRightCheek = "right-cheek"
	RegionNoseBridge = "nose-bridge"
)

// DefaultRegionSpecs outlines the scored skin areas on the insightface
// 106-point topology: jaw contour points up the side of the face, closed
// off through the nose wing and the under-eye rim.
func DefaultRegionSpecs() []RegionSpec {
	return []RegionSpec{
		{Name: RegionLeftCheek, Indices: []int{17, 19, 21, 23, 25, 93, 90, 84}},
		{Name: RegionRightCheek, Indices: []int{15, 13, 11, 9, 7, 39, 36, 76}},
		{Name: RegionNoseBridge, Indices: []int{72, 73, 74, 75, 77, 79}},
	}
}

// ExtractRegions builds the named pixel-space polygons for one face. Each
// landmark is scaled by (x*w, y*h). A spec referencing an index absent from
// the landmark list yields an empty polygon for that region; short landmark
// lists are a legitimate detector outcome, not an error.
func ExtractRegions(landmarks []Landmark, specs []RegionSpec, w, h int) []Region {
	regions := make([]Region, 0, len(specs))
	for _, spec := range specs {
		regions = append(regions, Region{
			Name: spec.Name,
			Poly: polygonAt(landmarks, spec.Indices, w, h),
		})
	}
	return regions
}

// Polygons collects the valid polygons out of a region list.
func Polygons(regions []Region) []Polygon {
	polys := make([]Polygon, 0, len(regions))
	for _, r := range regions {
		if r.Poly.Valid() {
			polys = append(polys, r.Poly)
		}
	}
	return polys
}

func polygonAt(landmarks []Landmark, indices []int, w, h int) Polygon {
	poly := make(Polygon, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(landmarks) {
			return nil
		}
		lm := landmarks[idx]
		poly = append(poly, Point{X: lm.X * float64(w), Y: lm.Y * float64(h)})
	}
	return poly
}
