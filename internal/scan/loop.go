package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ouva/dermascan/internal/classify"
	"github.com/ouva/dermascan/internal/roi"
	"github.com/ouva/dermascan/internal/score"
)

// Config holds loop tuning knobs.
type Config struct {
	FrameInterval time.Duration
	SampleBudget  int
	Cooldown      time.Duration
	Adequacy      float64
	AutoTrigger   bool
	RegionSpecs   []roi.RegionSpec
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 33 * time.Millisecond,
		SampleBudget:  roi.DefaultSampleBudget,
		Cooldown:      DefaultCooldown,
		Adequacy:      score.AdequacyThreshold,
		AutoTrigger:   true,
		RegionSpecs:   roi.DefaultRegionSpecs(),
	}
}

// Options wires the loop's collaborators. Source and detector are opened
// by the loop itself so that init failures map onto the session states
// (Loading -> Idle on detector failure, scan not started on camera
// failure).
type Options struct {
	OpenSource   func() (FrameSource, error)
	OpenDetector func() (FaceDetector, error)
	Classifier   Classifier
	Publisher    Publisher
	Preview      Preview
	Logger       *slog.Logger
	Now          func() time.Time
}

var (
	ErrAlreadyRunning = errors.New("scan already running")
	ErrNotRunning     = errors.New("scan not running")
	ErrNoFrame        = errors.New("no frame captured yet")
)

type outcome struct {
	result *classify.Result
	err    error
}

// Loop is the frame-synchronized scan session. A single goroutine owns all
// mutable session state; classification runs in its own goroutine and
// posts its result back onto the loop via a channel, so no step is ever
// preempted and stale responses never touch shared state.
type Loop struct {
	cfg     Config
	opts    Options
	logger  *slog.Logger
	trigger *Trigger

	mu   sync.RWMutex
	snap Snapshot

	source FrameSource
	det    FaceDetector

	// Loop-goroutine-only state.
	lastTimestamp int64
	haveFrame     bool
	lastFrame     *Frame
	inFlight      bool

	stopping bool

	stopCh      chan struct{}
	doneCh      chan struct{}
	analyzeCh   chan struct{}
	resultCh    chan outcome
	sessionDone chan struct{}
}

// New creates an idle loop. Call Start to begin scanning.
func New(cfg Config, opts Options) *Loop {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 33 * time.Millisecond
	}
	if cfg.SampleBudget <= 0 {
		cfg.SampleBudget = roi.DefaultSampleBudget
	}
	if len(cfg.RegionSpecs) == 0 {
		cfg.RegionSpecs = roi.DefaultRegionSpecs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		trigger: NewTrigger(cfg.Cooldown, cfg.Adequacy),
	}
}

// Start opens the detector and frame source, then launches the session
// goroutine. A detector init failure returns the session to Idle; a frame
// source failure means the scan never starts.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.snap.State == StateLoading || l.snap.State == StateRunning {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.snap = Snapshot{State: StateLoading}
	l.mu.Unlock()

	det, err := l.opts.OpenDetector()
	if err != nil {
		l.setState(StateIdle)
		return fmt.Errorf("detector init: %w", err)
	}

	source, err := l.opts.OpenSource()
	if err != nil {
		det.Close()
		l.setState(StateIdle)
		return fmt.Errorf("frame source: %w", err)
	}

	l.det = det
	l.source = source
	l.lastTimestamp = 0
	l.haveFrame = false
	l.lastFrame = nil
	l.inFlight = false
	l.trigger.Reset()

	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.analyzeCh = make(chan struct{}, 1)
	l.resultCh = make(chan outcome, 1)
	l.mu.Lock()
	l.sessionDone = make(chan struct{})
	l.mu.Unlock()

	l.setState(StateRunning)
	l.logger.Info("scan started", "frame_interval", l.cfg.FrameInterval, "auto_trigger", l.cfg.AutoTrigger)

	go l.run()
	return nil
}

// Stop ends the session: the loop goroutine exits, the camera and detector
// are released, scores reset to zero, and any in-flight classification
// response is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.snap.State != StateRunning || l.stopping {
		l.mu.Unlock()
		return
	}
	l.stopping = true
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh

	if err := l.source.Close(); err != nil {
		l.logger.Warn("frame source close failed", "error", err)
	}
	if err := l.det.Close(); err != nil {
		l.logger.Warn("detector close failed", "error", err)
	}

	l.publish(func(s *Snapshot) {
		s.State = StateStopped
		s.Scores = score.ScoreSet{}
		s.FaceCount = 0
		s.Classification = StatusIdle
		s.Result = nil
	})
	l.mu.Lock()
	l.stopping = false
	close(l.sessionDone)
	l.mu.Unlock()
	l.logger.Info("scan stopped")
}

// Done returns a channel closed once the current session has fully
// stopped.
func (l *Loop) Done() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionDone
}

// AnalyzeNow requests an immediate classification, bypassing the cooldown
// gate. It still requires a running session and at least one captured
// frame.
func (l *Loop) AnalyzeNow() error {
	l.mu.RLock()
	running := l.snap.State == StateRunning
	hasFrame := l.snap.Frame.Width > 0
	analyzeCh := l.analyzeCh
	l.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if !hasFrame {
		return ErrNoFrame
	}
	select {
	case analyzeCh <- struct{}{}:
	default:
		// A manual request is already pending; one is enough.
	}
	return nil
}

// Snapshot returns the current published state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

func (l *Loop) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case out := <-l.resultCh:
			l.applyResult(out)
		case <-l.analyzeCh:
			l.dispatchClassification()
		case <-ticker.C:
			l.step()
		}
	}
}

// step processes one frame-ready signal.
func (l *Loop) step() {
	frame, err := l.source.Grab()
	if err != nil {
		l.logger.Warn("frame grab failed", "error", err)
		return
	}

	// Mandatory dedup guard: the ticker fires more often than frames
	// necessarily change, and scoring the same frame twice is wasted work
	// that can also double-fire the trigger.
	if l.haveFrame && frame.TimestampMs == l.lastTimestamp {
		return
	}
	l.lastTimestamp = frame.TimestampMs
	l.haveFrame = true
	l.lastFrame = frame

	faces, err := l.det.Detect(frame.Pixels, frame.TimestampMs)
	if err != nil {
		// Per-frame detector failures degrade to "no faces"; session-level
		// failures surface at init time instead.
		l.logger.Warn("detection failed", "error", err)
		faces = nil
	}

	var scores score.ScoreSet
	var regions []roi.Region
	faceCount := len(faces)
	if faceCount > 0 && faces[0].HasLandmarks() {
		// Single-face policy: only the best face is scored, the rest are
		// counted.
		regions = roi.ExtractRegions(faces[0].Landmarks, l.cfg.RegionSpecs, frame.Pixels.Width, frame.Pixels.Height)
		samples := roi.SamplePolygons(frame.Pixels, roi.Polygons(regions), l.cfg.SampleBudget)
		scores = score.Evaluate(samples)
	}

	ctxInfo := frame.Context()
	l.publish(func(s *Snapshot) {
		s.Frame = ctxInfo
		s.Scores = scores
		s.FaceCount = faceCount
	})

	// The trigger is consulted only when a dispatch can actually happen:
	// ShouldFire records the fire, and an in-flight call consuming it would
	// push the next real attempt a full cooldown past the wasted one.
	if l.cfg.AutoTrigger && !l.inFlight && l.trigger.ShouldFire(l.now(), scores.Lighting, faceCount) {
		l.dispatchClassification()
	}

	if l.opts.Preview != nil {
		if !l.opts.Preview.Render(frame, regions, l.Snapshot()) {
			l.logger.Info("preview requested stop")
			go l.Stop()
		}
	}
}

// dispatchClassification starts one fire-and-forget classification call.
// At most one call is in flight, and an in-flight call satisfies any
// overlapping request, manual ones included. The completion goroutine
// hands its outcome back to the loop goroutine, or drops it if the
// session stopped first.
func (l *Loop) dispatchClassification() {
	if l.opts.Classifier == nil || l.lastFrame == nil || l.inFlight {
		return
	}
	l.inFlight = true

	px := l.lastFrame.Pixels
	stopCh := l.stopCh
	resultCh := l.resultCh

	l.publish(func(s *Snapshot) {
		s.Classification = StatusRunning
		s.LastError = ""
	})

	go func() {
		result, err := l.opts.Classifier.ClassifyFrame(context.Background(), px)
		select {
		case resultCh <- outcome{result: result, err: err}:
		case <-stopCh:
			// The session that issued this call is gone; a stale response
			// must never be applied.
		}
	}()
}

func (l *Loop) applyResult(out outcome) {
	l.inFlight = false
	if out.err != nil {
		l.logger.Warn("classification failed", "error", out.err)
		l.publish(func(s *Snapshot) {
			s.Classification = StatusFailed
			s.LastError = out.err.Error()
			s.Result = nil
		})
		return
	}
	l.logger.Info("classification done")
	l.publish(func(s *Snapshot) {
		s.Classification = StatusDone
		s.LastError = ""
		s.Result = out.result
	})
}

func (l *Loop) publish(mutate func(*Snapshot)) {
	l.mu.Lock()
	mutate(&l.snap)
	snap := l.snap
	l.mu.Unlock()

	if l.opts.Publisher != nil {
		l.opts.Publisher.Publish(snap)
	}
}

func (l *Loop) setState(state State) {
	l.publish(func(s *Snapshot) {
		s.State = state
	})
}

func (l *Loop) now() time.Time {
	if l.opts.Now != nil {
		return l.opts.Now()
	}
	return time.Now()
}
