// Package camera adapts a webcam to the scan loop's frame source.
package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ouva/dermascan/internal/roi"
	"github.com/ouva/dermascan/internal/scan"
)

// Capture manages webcam capture and converts frames to the RGB buffers
// the scan loop works on.
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	width     int
	height    int
	started   time.Time
	bgr       gocv.Mat
	rgb       gocv.Mat
	lastFrame *scan.Frame
	mu        sync.Mutex
}

// Open opens a camera capture with default 720p resolution.
func Open(deviceID int, targetFPS int) (*Capture, error) {
	return OpenWithResolution(deviceID, targetFPS, 1280, 720)
}

// OpenWithResolution opens a camera capture with the specified resolution.
func OpenWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	// The camera may not honor the requested resolution.
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:   webcam,
		deviceID: deviceID,
		width:    actualWidth,
		height:   actualHeight,
		started:  time.Now(),
		bgr:      gocv.NewMat(),
		rgb:      gocv.NewMat(),
	}, nil
}

// Grab captures the current frame as an RGB buffer stamped with a
// monotonic timestamp. When the device momentarily yields no new frame the
// previous frame is returned unchanged, which the loop's dedup guard
// recognizes by its repeated timestamp.
func (c *Capture) Grab() (*scan.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil, fmt.Errorf("camera %d is closed", c.deviceID)
	}

	if !c.webcam.Read(&c.bgr) || c.bgr.Empty() {
		if c.lastFrame != nil {
			return c.lastFrame, nil
		}
		return nil, fmt.Errorf("camera %d produced no frame", c.deviceID)
	}

	gocv.CvtColor(c.bgr, &c.rgb, gocv.ColorBGRToRGB)

	// ToBytes copies, so the frame owns its buffer and survives the next
	// Grab reusing the Mats.
	frame := &scan.Frame{
		Pixels: roi.Pixels{
			Data:   c.rgb.ToBytes(),
			Width:  c.rgb.Cols(),
			Height: c.rgb.Rows(),
		},
		TimestampMs: time.Since(c.started).Milliseconds(),
	}
	c.lastFrame = frame
	return frame, nil
}

// Width returns the actual frame width.
func (c *Capture) Width() int {
	return c.width
}

// Height returns the actual frame height.
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera and its scratch Mats.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil
	}
	err := c.webcam.Close()
	c.webcam = nil
	c.bgr.Close()
	c.rgb.Close()
	return err
}
