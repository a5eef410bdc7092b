// Package score turns pixel samples from facial regions into photometric
// quality scores used to gate classification.
package score

import (
	"math"

	"github.com/ouva/dermascan/internal/roi"
)

// ScoreSet holds the three per-frame quality signals, each in [0,100].
type ScoreSet struct {
	Lighting float64 `json:"lighting"`
	Redness  float64 `json:"redness"`
	Shine    float64 `json:"shine"`
}

const (
	// MinSamples is the smallest sample count that produces a real score.
	// Under-sampled regions read as "unknown" (all zeros), never as dark.
	MinSamples = 80

	// AdequacyThreshold is the lighting score below which redness and
	// shine are unreliable and forced to zero.
	AdequacyThreshold = 35.0

	shineValueMin     = 210
	shineSatMax       = 0.35
	shineAmplifier    = 250.0
	meanWeight        = 0.75
	contrastWeight    = 0.25
	contrastFullScale = 64.0
	rednessOffset     = 20.0
	rednessRange      = 120.0
)

// Evaluate computes all three scores, applying the adequacy gate: when
// lighting falls below AdequacyThreshold the color-derived metrics are
// forced to zero.
func Evaluate(samples []roi.Sample) ScoreSet {
	s := ScoreSet{Lighting: Lighting(samples)}
	if s.Lighting < AdequacyThreshold {
		return s
	}
	s.Redness = Redness(samples)
	s.Shine = Shine(samples)
	return s
}

// Lighting scores mean luminance blended with contrast. Per-sample relative
// luminance uses ITU-R BT.709 weights; the contrast term is the population
// standard deviation scaled so a std of 64 reads as full contrast.
func Lighting(samples []roi.Sample) float64 {
	if len(samples) < MinSamples {
		return 0
	}
	var sum, sumSq float64
	for _, s := range samples {
		y := 0.2126*float64(s.R) + 0.7152*float64(s.G) + 0.0722*float64(s.B)
		sum += y
		sumSq += y * y
	}
	n := float64(len(samples))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	meanScore := clamp(mean/255.0*100.0, 0, 100)
	contrastScore := clamp(std/contrastFullScale*100.0, 0, 100)
	return clamp(meanWeight*meanScore+contrastWeight*contrastScore, 0, 100)
}

// Redness scores the mean of the per-sample proxy r-(g+b)/2, remapped so a
// mid-range proxy lands near 50.
func Redness(samples []roi.Sample) float64 {
	if len(samples) < MinSamples {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.R) - (float64(s.G)+float64(s.B))/2.0
	}
	mean := sum / float64(len(samples))
	return clamp((mean+rednessOffset)/rednessRange*100.0, 0, 100)
}

// Shine scores the fraction of bright, low-chroma samples. Value over 210
// with saturation under 0.35 is read as a specular highlight; the fraction
// is amplified because even oily skin keeps the shiny fraction small.
func Shine(samples []roi.Sample) float64 {
	if len(samples) < MinSamples {
		return 0
	}
	shiny := 0
	for _, s := range samples {
		v := max3(s.R, s.G, s.B)
		if v <= shineValueMin {
			continue
		}
		sat := float64(v-min3(s.R, s.G, s.B)) / float64(v)
		if sat < shineSatMax {
			shiny++
		}
	}
	return clamp(float64(shiny)/float64(len(samples))*shineAmplifier, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max3(a, b, c uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
