// Package ui renders the live preview window with region overlays and a
// score HUD.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ouva/dermascan/internal/roi"
	"github.com/ouva/dermascan/internal/scan"
)

var (
	regionColor = color.RGBA{R: 0, G: 255, B: 160, A: 255}
	hudColor    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// Window manages the preview display.
type Window struct {
	window     *gocv.Window
	bgr        gocv.Mat
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window.
func NewWindow(name string) *Window {
	window := gocv.NewWindow(name)
	window.ResizeWindow(1280, 720)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		bgr:       gocv.NewMat(),
		lastFrame: time.Now(),
	}
}

// Render draws the frame, its region outlines and the score HUD, then
// pumps window events. Returns false when the user quits ('q' or ESC).
func (w *Window) Render(frame *scan.Frame, regions []roi.Region, snap scan.Snapshot) bool {
	img, err := gocv.NewMatFromBytes(frame.Pixels.Height, frame.Pixels.Width, gocv.MatTypeCV8UC3, frame.Pixels.Data)
	if err != nil {
		return true
	}
	defer img.Close()

	gocv.CvtColor(img, &w.bgr, gocv.ColorRGBToBGR)

	for _, region := range regions {
		drawPolygon(&w.bgr, region.Poly)
	}

	w.updateFPS()
	hud := fmt.Sprintf("L:%.0f R:%.0f S:%.0f faces:%d %s (%.1f FPS)",
		snap.Scores.Lighting, snap.Scores.Redness, snap.Scores.Shine,
		snap.FaceCount, snap.Classification, w.fps)
	gocv.PutText(&w.bgr, hud, image.Pt(10, 30),
		gocv.FontHersheyPlain, 1.5, hudColor, 2)

	w.window.IMShow(w.bgr)

	key := w.window.WaitKey(1)
	return key != 'q' && key != 27
}

func (w *Window) updateFPS() {
	w.frameCount++
	now := time.Now()

	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}
}

// FPS returns the rendered frames per second.
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window.
func (w *Window) Close() error {
	w.bgr.Close()
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}

func drawPolygon(img *gocv.Mat, poly roi.Polygon) {
	if !poly.Valid() {
		return
	}
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		gocv.Line(img,
			image.Pt(int(a.X), int(a.Y)),
			image.Pt(int(b.X), int(b.Y)),
			regionColor, 2)
	}
}
