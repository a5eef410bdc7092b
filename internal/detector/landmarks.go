package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/ouva/dermascan/internal/inference"
	"github.com/ouva/dermascan/internal/roi"
)

// LandmarkHead predicts the 106-point topology for one face crop using
// insightface's 2d106det model.
type LandmarkHead struct {
	session   *inference.Session
	inputSize int
	inputMean float32
	inputStd  float32
}

// NewLandmarkHead creates a new 106-point landmark predictor.
func NewLandmarkHead(modelPath string) (*LandmarkHead, error) {
	inputNames := []string{"data"}
	outputNames := []string{"fc1"}

	session, err := inference.NewSession(modelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}

	return &LandmarkHead{
		session:   session,
		inputSize: 192,
		inputMean: 127.5,
		inputStd:  128.0,
	}, nil
}

// Predict fills face.Landmarks with the normalized 106-point set. The face
// box is expanded 1.5x, warped into the model input square, and the output
// points are mapped back through the inverse transform, then divided by the
// frame dimensions so downstream geometry is resolution-independent.
func (l *LandmarkHead) Predict(img gocv.Mat, face *Face) error {
	bbox := face.Box

	w := bbox.Width()
	h := bbox.Height()
	center := bbox.Center()
	maxDim := w
	if h > w {
		maxDim = h
	}
	if maxDim <= 0 {
		return fmt.Errorf("degenerate face box")
	}
	scale := float32(l.inputSize) / (maxDim * 1.5)

	M := l.getTransformMatrix(center.X, center.Y, scale)

	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(l.inputSize, l.inputSize))
	M.Close()

	// Convert to float32 and normalize: (x - mean) / std
	floatMat := gocv.NewMat()
	aligned.ConvertTo(&floatMat, gocv.MatTypeCV32FC3)
	defer floatMat.Close()

	gocv.AddWeighted(floatMat, 1.0/float64(l.inputStd), floatMat, 0, -float64(l.inputMean)/float64(l.inputStd), &floatMat)

	blob := gocv.BlobFromImage(floatMat, 1.0, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	blobData := blob.ToBytes()
	floatData := bytesToFloat32(blobData)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(l.inputSize), int64(l.inputSize)),
		floatData,
	)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// Output is (1, 212) = 106 landmarks * 2 coords
	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 212})
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = l.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor})
	if err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	output := outputTensor.GetData()
	face.Landmarks = l.postprocess(output, center.X, center.Y, scale, img.Cols(), img.Rows())

	return nil
}

// getTransformMatrix creates the affine transform for the face crop.
func (l *LandmarkHead) getTransformMatrix(centerX, centerY, scale float32) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, float64(l.inputSize)/2-float64(centerX*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, float64(l.inputSize)/2-float64(centerY*scale))

	return M
}

// postprocess maps model output back to frame coordinates and normalizes.
func (l *LandmarkHead) postprocess(output []float32, centerX, centerY, scale float32, frameW, frameH int) []roi.Landmark {
	landmarks := make([]roi.Landmark, NumLandmarks)

	halfSize := float32(l.inputSize) / 2

	for i := 0; i < NumLandmarks; i++ {
		// Model output is in [-1, 1], mapped to [0, inputSize]
		x := (output[i*2] + 1) * halfSize
		y := (output[i*2+1] + 1) * halfSize

		px := (x-halfSize)/scale + centerX
		py := (y-halfSize)/scale + centerY

		landmarks[i] = roi.Landmark{
			X: float64(px) / float64(frameW),
			Y: float64(py) / float64(frameH),
		}
	}

	return landmarks
}

// Close releases predictor resources.
func (l *LandmarkHead) Close() error {
	return l.session.Destroy()
}
