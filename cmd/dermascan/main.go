package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ouva/dermascan/internal/camera"
	"github.com/ouva/dermascan/internal/classify"
	"github.com/ouva/dermascan/internal/config"
	"github.com/ouva/dermascan/internal/detector"
	"github.com/ouva/dermascan/internal/inference"
	"github.com/ouva/dermascan/internal/scan"
	"github.com/ouva/dermascan/internal/stream"
	"github.com/ouva/dermascan/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// Required on macOS for OpenCV's highgui window handling.
	runtime.LockOSThread()
}

// DetectorType selects the face detector implementation.
type DetectorType string

const (
	DetectorLandmarks DetectorType = "landmarks"
	DetectorBBox      DetectorType = "bbox"
)

type Flags struct {
	CameraIndex int
	Detector    string
	Preview     bool
	AutoTrigger bool
	Serve       bool
	TargetFPS   int
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Flags {
	flags := Flags{}

	flag.IntVar(&flags.CameraIndex, "camera", 0, "Camera device index")
	flag.IntVar(&flags.CameraIndex, "c", 0, "Camera device index (shorthand)")
	flag.StringVar(&flags.Detector, "detector", "landmarks", "Detector type: landmarks or bbox")
	flag.StringVar(&flags.Detector, "d", "landmarks", "Detector type (shorthand)")
	flag.BoolVar(&flags.Preview, "preview", true, "Show preview window")
	flag.BoolVar(&flags.Preview, "p", true, "Show preview window (shorthand)")
	flag.BoolVar(&flags.AutoTrigger, "autotrigger", true, "Auto-submit good frames to the classifier")
	flag.BoolVar(&flags.Serve, "serve", false, "Serve status API and websocket stream")
	flag.IntVar(&flags.TargetFPS, "fps", 30, "Target frames per second")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dermascan - live facial skin scan with ML auto-trigger\n\n")
		fmt.Fprintf(os.Stderr, "Usage: dermascan [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dermascan\n")
		fmt.Fprintf(os.Stderr, "  dermascan --detector bbox --autotrigger=false\n")
		fmt.Fprintf(os.Stderr, "  dermascan --serve --preview=false\n")
	}

	flag.Parse()
	return flags
}

func run(flags Flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Environment)

	detectorType := DetectorType(flags.Detector)
	if detectorType != DetectorLandmarks && detectorType != DetectorBBox {
		return fmt.Errorf("invalid detector: %s (use 'landmarks' or 'bbox')", flags.Detector)
	}

	if detectorType == DetectorLandmarks {
		if err := inference.Initialize(cfg.ONNXLibrary); err != nil {
			return fmt.Errorf("failed to initialize inference: %w", err)
		}
		defer inference.Shutdown()
	}

	openDetector := func() (scan.FaceDetector, error) {
		if detectorType == DetectorBBox {
			return detector.NewCascade(detector.DefaultCascadeConfig(cfg.CascadePath))
		}
		return detector.NewMesh(detector.DefaultMeshConfig(cfg.ModelsDir))
	}

	openSource := func() (scan.FrameSource, error) {
		cam, err := camera.Open(flags.CameraIndex, flags.TargetFPS)
		if err != nil {
			return nil, err
		}
		logger.Info("camera opened", "device", flags.CameraIndex, "width", cam.Width(), "height", cam.Height())
		return cam, nil
	}

	classifier := classify.NewClient(classify.Config{
		BaseURL:     cfg.ClassifierURL,
		Path:        cfg.ClassifierPath,
		Timeout:     cfg.ClassifierTimeout,
		JPEGQuality: cfg.JPEGQuality,
	})

	var hub *stream.Hub
	if flags.Serve {
		hub = stream.NewHub()
		go hub.Run()
	}

	var window *ui.Window
	if flags.Preview {
		window = ui.NewWindow("dermascan")
		defer window.Close()
	}

	loopCfg := scan.DefaultConfig()
	loopCfg.Cooldown = cfg.Cooldown()
	loopCfg.Adequacy = cfg.AdequacyThreshold
	loopCfg.SampleBudget = cfg.SampleBudget
	loopCfg.AutoTrigger = flags.AutoTrigger

	opts := scan.Options{
		OpenSource:   openSource,
		OpenDetector: openDetector,
		Classifier:   classifier,
		Logger:       logger,
	}
	if hub != nil {
		opts.Publisher = hub
	}
	if window != nil {
		opts.Preview = window
	}

	loop := scan.New(loopCfg, opts)

	if err := loop.Start(); err != nil {
		return err
	}
	defer loop.Stop()

	var server *stream.Server
	if hub != nil {
		server = stream.NewServer(hub, loop, logger)
		go func() {
			if err := server.Listen(cfg.ListenAddr); err != nil {
				logger.Error("stream server failed", "error", err)
			}
		}()
		defer server.Shutdown()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("scanning; press Ctrl-C to quit")
	select {
	case <-sigCh:
		logger.Info("shutting down")
	case <-loop.Done():
		// Preview quit or session ended on its own.
	}

	return nil
}
