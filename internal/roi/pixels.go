package roi

// Pixels is a row-major RGB pixel buffer for one video frame. Data holds
// 3 bytes per pixel, Width*Height*3 bytes total.
type Pixels struct {
	Data   []uint8
	Width  int
	Height int
}

// Sample is one RGB triplet drawn from a frame.
type Sample struct {
	R, G, B uint8
}

// At returns the RGB triplet at (x, y). Coordinates outside the frame
// rectangle return black rather than indexing out of bounds.
func (p Pixels) At(x, y int) Sample {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return Sample{}
	}
	i := (y*p.Width + x) * 3
	return Sample{R: p.Data[i], G: p.Data[i+1], B: p.Data[i+2]}
}

// Empty reports whether the buffer holds no usable frame.
func (p Pixels) Empty() bool {
	return p.Width <= 0 || p.Height <= 0 || len(p.Data) < p.Width*p.Height*3
}
