package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouva/dermascan/internal/classify"
	"github.com/ouva/dermascan/internal/detector"
	"github.com/ouva/dermascan/internal/roi"
)

// fakeSource hands out a settable frame. With autoTick it stamps every
// grab with a fresh timestamp; otherwise the same frame repeats until
// SetFrame, exercising the dedup guard.
type fakeSource struct {
	mu       sync.Mutex
	frame    *Frame
	autoTick bool
	nextTs   int64
	grabs    atomic.Int32
	closed   atomic.Bool
}

func (s *fakeSource) Grab() (*Frame, error) {
	s.grabs.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := *s.frame
	if s.autoTick {
		s.nextTs++
		frame.TimestampMs = s.nextTs
	}
	return &frame, nil
}

func (s *fakeSource) SetFrame(f *Frame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeDetector struct {
	faces   []detector.Face
	err     error
	detects atomic.Int32
	closed  atomic.Bool
}

func (d *fakeDetector) Detect(px roi.Pixels, timestampMs int64) ([]detector.Face, error) {
	d.detects.Add(1)
	return d.faces, d.err
}

func (d *fakeDetector) Close() error {
	d.closed.Store(true)
	return nil
}

type fakeClassifier struct {
	result  *classify.Result
	err     error
	release chan struct{} // non-nil blocks the call until closed
	calls   atomic.Int32
}

func (c *fakeClassifier) ClassifyFrame(ctx context.Context, px roi.Pixels) (*classify.Result, error) {
	c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	return c.result, c.err
}

// meshLandmarks returns a 106-point set whose scored region indices trace
// large rectangles, so sampling a gray frame produces adequate lighting.
func meshLandmarks() []roi.Landmark {
	landmarks := make([]roi.Landmark, detector.NumLandmarks)
	place := func(indices []int, points [][2]float64) {
		for i, idx := range indices {
			landmarks[idx] = roi.Landmark{X: points[i][0], Y: points[i][1]}
		}
	}
	place([]int{17, 19, 21, 23, 25, 93, 90, 84}, [][2]float64{
		{0.05, 0.1}, {0.25, 0.1}, {0.45, 0.1}, {0.45, 0.9},
		{0.25, 0.9}, {0.05, 0.9}, {0.05, 0.5}, {0.05, 0.3},
	})
	place([]int{15, 13, 11, 9, 7, 39, 36, 76}, [][2]float64{
		{0.55, 0.1}, {0.75, 0.1}, {0.95, 0.1}, {0.95, 0.9},
		{0.75, 0.9}, {0.55, 0.9}, {0.55, 0.5}, {0.55, 0.3},
	})
	place([]int{72, 73, 74, 75, 77, 79}, [][2]float64{
		{0.48, 0.3}, {0.52, 0.3}, {0.52, 0.7}, {0.48, 0.7},
		{0.48, 0.5}, {0.48, 0.4},
	})
	return landmarks
}

func grayFrame(ts int64) *Frame {
	w, h := 100, 100
	data := make([]uint8, w*h*3)
	for i := range data {
		data[i] = 180
	}
	return &Frame{
		Pixels:      roi.Pixels{Data: data, Width: w, Height: h},
		TimestampMs: ts,
	}
}

func landmarkedFace() detector.Face {
	return detector.Face{
		Box:       detector.BoundingBox{X1: 5, Y1: 10, X2: 95, Y2: 90},
		Landmarks: meshLandmarks(),
		Score:     0.98,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 2 * time.Millisecond
	cfg.Cooldown = time.Hour // one auto fire per test unless overridden
	return cfg
}

func TestLoop_StartDetectorFailure(t *testing.T) {
	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return nil, errors.New("model missing") },
		OpenSource:   func() (FrameSource, error) { t.Fatal("source must not open"); return nil, nil },
	})

	err := loop.Start()
	require.Error(t, err)
	assert.Equal(t, StateIdle, loop.Snapshot().State)
}

func TestLoop_StartSourceFailure(t *testing.T) {
	det := &fakeDetector{}
	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return nil, errors.New("device busy") },
	})

	err := loop.Start()
	require.Error(t, err)
	assert.Equal(t, StateIdle, loop.Snapshot().State)
	assert.True(t, det.closed.Load(), "detector released after source failure")
}

func TestLoop_ScoresFrames(t *testing.T) {
	source := &fakeSource{frame: grayFrame(100)}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}

	cfg := testConfig()
	cfg.AutoTrigger = false
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool {
		return loop.Snapshot().Frame.TimestampMs == 100
	}, time.Second, time.Millisecond)

	snap := loop.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, 1, snap.FaceCount)
	assert.InDelta(t, 52.9, snap.Scores.Lighting, 0.5)
	assert.Greater(t, snap.Scores.Redness, 0.0)
}

func TestLoop_DedupSkipsRepeatedFrames(t *testing.T) {
	source := &fakeSource{frame: grayFrame(100)}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}

	cfg := testConfig()
	cfg.AutoTrigger = false
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool { return source.grabs.Load() >= 10 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), det.detects.Load(), "repeated timestamp must not re-run detection")

	// A genuinely new frame goes through.
	source.SetFrame(grayFrame(200))
	require.Eventually(t, func() bool { return det.detects.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return loop.Snapshot().Frame.TimestampMs == 200
	}, time.Second, time.Millisecond)
}

func TestLoop_DetectorErrorDegradesToNoFaces(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{err: errors.New("inference blew up")}

	cfg := testConfig()
	cfg.AutoTrigger = false
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool { return det.detects.Load() >= 3 }, time.Second, time.Millisecond)

	snap := loop.Snapshot()
	assert.Equal(t, StateRunning, snap.State, "per-frame detector failures do not end the session")
	assert.Equal(t, 0, snap.FaceCount)
	assert.Equal(t, 0.0, snap.Scores.Lighting)
}

func TestLoop_AutoTriggerClassifies(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}
	acne := 2
	classifier := &fakeClassifier{result: &classify.Result{OK: true, AcneClass: &acne}}

	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
		Classifier:   classifier,
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool {
		return loop.Snapshot().Classification == StatusDone
	}, time.Second, time.Millisecond)

	snap := loop.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, 2, *snap.Result.AcneClass)
	assert.Empty(t, snap.LastError)

	// Hour-long cooldown: the stream of eligible frames fires exactly once.
	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestLoop_ClassificationFailureKeepsRunning(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}
	classifier := &fakeClassifier{err: classify.ErrUnavailable}

	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
		Classifier:   classifier,
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool {
		return loop.Snapshot().Classification == StatusFailed
	}, time.Second, time.Millisecond)

	snap := loop.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.NotEmpty(t, snap.LastError)
	assert.Nil(t, snap.Result)
}

func TestLoop_InFlightCallDoesNotConsumeTrigger(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}
	classifier := &fakeClassifier{
		result:  &classify.Result{OK: true},
		release: make(chan struct{}),
	}

	base := time.Unix(1000, 0)
	var offsetMs atomic.Int64

	cfg := testConfig()
	cfg.Cooldown = 10 * time.Second
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
		Classifier:   classifier,
		Now: func() time.Time {
			return base.Add(time.Duration(offsetMs.Load()) * time.Millisecond)
		},
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool { return classifier.calls.Load() == 1 }, time.Second, time.Millisecond)

	// The cooldown elapses while the first call is still blocked; the
	// frames scored in that window must not burn the fire.
	offsetMs.Store(10_001)
	before := det.detects.Load()
	require.Eventually(t, func() bool { return det.detects.Load() >= before+5 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), classifier.calls.Load())

	// Once the slow call completes, the already-elapsed cooldown lets the
	// next eligible frame dispatch immediately, not a window later.
	close(classifier.release)
	require.Eventually(t, func() bool { return classifier.calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestLoop_AnalyzeNow(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}
	classifier := &fakeClassifier{result: &classify.Result{OK: true}}

	cfg := testConfig()
	cfg.AutoTrigger = false
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
		Classifier:   classifier,
	})

	assert.ErrorIs(t, loop.AnalyzeNow(), ErrNotRunning)

	require.NoError(t, loop.Start())
	defer loop.Stop()

	require.Eventually(t, func() bool {
		return loop.Snapshot().Frame.Width > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, loop.AnalyzeNow())
	require.Eventually(t, func() bool {
		return loop.Snapshot().Classification == StatusDone
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestLoop_StaleResponseDiscardedAfterStop(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}
	classifier := &fakeClassifier{
		result:  &classify.Result{OK: true},
		release: make(chan struct{}),
	}

	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
		Classifier:   classifier,
	})

	require.NoError(t, loop.Start())
	require.Eventually(t, func() bool {
		return loop.Snapshot().Classification == StatusRunning
	}, time.Second, time.Millisecond)

	loop.Stop()
	close(classifier.release)
	time.Sleep(20 * time.Millisecond)

	// The late response lands after the session ended; it must not
	// resurrect any classification state.
	snap := loop.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, StatusIdle, snap.Classification)
	assert.Nil(t, snap.Result)
}

func TestLoop_StopResetsAndReleases(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{faces: []detector.Face{landmarkedFace()}}

	cfg := testConfig()
	cfg.AutoTrigger = false
	loop := New(cfg, Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
	})

	require.NoError(t, loop.Start())
	require.Eventually(t, func() bool {
		return loop.Snapshot().Scores.Lighting > 0
	}, time.Second, time.Millisecond)

	loop.Stop()

	snap := loop.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, 0.0, snap.Scores.Lighting)
	assert.Equal(t, 0, snap.FaceCount)
	assert.True(t, source.closed.Load())
	assert.True(t, det.closed.Load())

	select {
	case <-loop.Done():
	default:
		t.Fatal("Done channel should be closed after Stop")
	}

	// Stopping twice is a no-op.
	loop.Stop()

	// A stopped loop can start a fresh session.
	require.NoError(t, loop.Start())
	require.Eventually(t, func() bool {
		return loop.Snapshot().State == StateRunning
	}, time.Second, time.Millisecond)
	loop.Stop()
}

func TestLoop_StartTwice(t *testing.T) {
	source := &fakeSource{frame: grayFrame(1), autoTick: true}
	det := &fakeDetector{}

	loop := New(testConfig(), Options{
		OpenDetector: func() (FaceDetector, error) { return det, nil },
		OpenSource:   func() (FrameSource, error) { return source, nil },
	})

	require.NoError(t, loop.Start())
	defer loop.Stop()

	assert.ErrorIs(t, loop.Start(), ErrAlreadyRunning)
}
