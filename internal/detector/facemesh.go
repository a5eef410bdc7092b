package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ouva/dermascan/internal/roi"
)

// MeshConfig holds model paths and thresholds for the ONNX mesh detector.
type MeshConfig struct {
	FaceModelPath     string
	LandmarkModelPath string
	DetectionSize     int
	ConfThreshold     float32
	NMSThreshold      float32
}

// DefaultMeshConfig returns the standard model layout and thresholds.
func DefaultMeshConfig(modelsDir string) MeshConfig {
	return MeshConfig{
		FaceModelPath:     modelsDir + "/scrfd_10g.onnx",
		LandmarkModelPath: modelsDir + "/2d106det.onnx",
		DetectionSize:     640,
		ConfThreshold:     0.5,
		NMSThreshold:      0.4,
	}
}

// Mesh is the full landmark detector: SCRFD face boxes plus the 106-point
// landmark head run on the best box.
type Mesh struct {
	faces     *SCRFD
	landmarks *LandmarkHead
}

// NewMesh loads both models. On partial failure the already-loaded session
// is released before returning.
func NewMesh(cfg MeshConfig) (*Mesh, error) {
	faces, err := NewSCRFD(cfg.FaceModelPath, cfg.DetectionSize, cfg.ConfThreshold, cfg.NMSThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}

	landmarks, err := NewLandmarkHead(cfg.LandmarkModelPath)
	if err != nil {
		faces.Close()
		return nil, fmt.Errorf("failed to create landmark head: %w", err)
	}

	return &Mesh{faces: faces, landmarks: landmarks}, nil
}

// Detect finds faces in the RGB frame buffer and fills the landmark set for
// the highest-scoring face. Remaining faces keep boxes only; the scan loop
// scores a single face per frame and just counts the rest.
func (m *Mesh) Detect(px roi.Pixels, _ int64) ([]Face, error) {
	if px.Empty() {
		return nil, nil
	}

	img, err := gocv.NewMatFromBytes(px.Height, px.Width, gocv.MatTypeCV8UC3, px.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap frame buffer: %w", err)
	}
	defer img.Close()

	faces, err := m.faces.DetectBoxes(img)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}

	// NMS leaves faces sorted by score; the first is the best.
	if err := m.landmarks.Predict(img, &faces[0]); err != nil {
		// A failed landmark pass degrades to a box-only face; the loop
		// treats that as valid detection with no scorable regions.
		faces[0].Landmarks = nil
	}

	return faces, nil
}

// Close releases both model sessions.
func (m *Mesh) Close() error {
	var firstErr error
	if m.faces != nil {
		if err := m.faces.Close(); err != nil {
			firstErr = err
		}
	}
	if m.landmarks != nil {
		if err := m.landmarks.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
