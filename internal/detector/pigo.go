package detector

import (
	"fmt"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/ouva/dermascan/internal/roi"
)

// CascadeConfig holds parameters for the pure-Go cascade detector.
type CascadeConfig struct {
	CascadePath  string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	QualityScore float32
	IoUThreshold float64
}

// DefaultCascadeConfig returns the standard cascade parameters.
func DefaultCascadeConfig(cascadePath string) CascadeConfig {
	return CascadeConfig{
		CascadePath:  cascadePath,
		MinSize:      100,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		QualityScore: 5.0,
		IoUThreshold: 0.2,
	}
}

// Cascade is the bounding-box-only detector backed by the pigo pixel
// intensity comparison cascade. It reports face presence without landmarks,
// so region scoring stays off while it is selected.
type Cascade struct {
	classifier *pigo.Pigo
	cfg        CascadeConfig
	gray       []uint8
}

// NewCascade reads and unpacks the binary cascade file.
func NewCascade(cfg CascadeConfig) (*Cascade, error) {
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade file: %w", err)
	}

	return &Cascade{classifier: classifier, cfg: cfg}, nil
}

// Detect runs the cascade over a grayscale view of the frame and returns
// clustered face boxes sorted by detection quality.
func (c *Cascade) Detect(px roi.Pixels, _ int64) ([]Face, error) {
	if px.Empty() {
		return nil, nil
	}

	c.grayscale(px)

	maxSize := c.cfg.MaxSize
	if m := minInt(px.Width, px.Height); maxSize > m {
		maxSize = m
	}

	cParams := pigo.CascadeParams{
		MinSize:     c.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: c.cfg.ShiftFactor,
		ScaleFactor: c.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: c.gray,
			Rows:   px.Height,
			Cols:   px.Width,
			Dim:    px.Width,
		},
	}

	dets := c.classifier.RunCascade(cParams, 0.0)
	dets = c.classifier.ClusterDetections(dets, c.cfg.IoUThreshold)

	var faces []Face
	for _, det := range dets {
		if det.Q < c.cfg.QualityScore {
			continue
		}
		half := float32(det.Scale) / 2
		faces = append(faces, Face{
			Box: BoundingBox{
				X1: float32(det.Col) - half,
				Y1: float32(det.Row) - half,
				X2: float32(det.Col) + half,
				Y2: float32(det.Row) + half,
			},
			Score: det.Q,
		})
	}

	sort.Slice(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})
	return faces, nil
}

// Close is a no-op; the cascade holds no native resources.
func (c *Cascade) Close() error {
	return nil
}

// grayscale rewrites the reusable luminance plane from the RGB buffer.
func (c *Cascade) grayscale(px roi.Pixels) {
	n := px.Width * px.Height
	if cap(c.gray) < n {
		c.gray = make([]uint8, n)
	}
	c.gray = c.gray[:n]
	for i := 0; i < n; i++ {
		r := uint32(px.Data[i*3])
		g := uint32(px.Data[i*3+1])
		b := uint32(px.Data[i*3+2])
		// Integer BT.601 luma approximation.
		c.gray[i] = uint8((299*r + 587*g + 114*b) / 1000)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
