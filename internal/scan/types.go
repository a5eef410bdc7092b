// Package scan owns the frame-synchronized detection loop: it dedups
// frames, runs the detector, scores skin regions and decides when a frame
// is worth sending to the remote classifier.
package scan

import (
	"context"
	"encoding/json"

	"github.com/ouva/dermascan/internal/classify"
	"github.com/ouva/dermascan/internal/detector"
	"github.com/ouva/dermascan/internal/roi"
	"github.com/ouva/dermascan/internal/score"
)

// State is the scan session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is the classification call state.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Frame is one video frame handed to the loop: an RGB buffer plus the
// monotonic capture timestamp used for dedup.
type Frame struct {
	Pixels      roi.Pixels
	TimestampMs int64
}

// Context identifies the frame a result belongs to.
func (f *Frame) Context() FrameContext {
	return FrameContext{
		Width:       f.Pixels.Width,
		Height:      f.Pixels.Height,
		TimestampMs: f.TimestampMs,
	}
}

// FrameContext identifies a distinct video frame. Scores are only
// meaningful paired with the context that produced them.
type FrameContext struct {
	Width       int   `json:"width"`
	Height      int   `json:"height"`
	TimestampMs int64 `json:"timestamp_ms"`
}

// FrameSource supplies frames. Grab may legitimately return the previous
// frame again (same timestamp) when no new frame is available; the loop's
// dedup guard handles that.
type FrameSource interface {
	Grab() (*Frame, error)
	Close() error
}

// FaceDetector maps a frame buffer and timestamp to detected faces. It may
// return zero faces; that is not an error.
type FaceDetector interface {
	Detect(px roi.Pixels, timestampMs int64) ([]detector.Face, error)
	Close() error
}

// Classifier submits a frame to the remote skin classifier.
type Classifier interface {
	ClassifyFrame(ctx context.Context, px roi.Pixels) (*classify.Result, error)
}

// Publisher receives every published snapshot, e.g. the websocket hub.
type Publisher interface {
	Publish(Snapshot)
}

// Preview renders a frame with its extracted regions. Returning false asks
// the session to stop (quit key or closed window).
type Preview interface {
	Render(frame *Frame, regions []roi.Region, snap Snapshot) bool
}

// Snapshot is the externally visible loop state. The scores are always
// paired with the frame context that produced them.
type Snapshot struct {
	State          State            `json:"state"`
	Frame          FrameContext     `json:"frame"`
	Scores         score.ScoreSet   `json:"scores"`
	FaceCount      int              `json:"face_count"`
	Classification Status           `json:"classification"`
	Result         *classify.Result `json:"result,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
}
