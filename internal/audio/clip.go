// Package audio holds the PCM data model and the dub-track mixing engine.
// Everything operates on plain in-memory sample buffers; decoding and
// encoding WAV containers lives in wav.go.
package audio

import (
	"fmt"
	"math"
	"time"
)

// Clip is a mono PCM buffer with samples normalized to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// NewSilence returns a clip of zeros with the given duration.
func NewSilence(d time.Duration, sampleRate int) *Clip {
	n := int(math.Round(d.Seconds() * float64(sampleRate)))
	return &Clip{
		Samples:    make([]float64, n),
		SampleRate: sampleRate,
	}
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Clone returns an independent copy of the clip.
func (c *Clip) Clone() *Clip {
	samples := make([]float64, len(c.Samples))
	copy(samples, c.Samples)
	return &Clip{Samples: samples, SampleRate: c.SampleRate}
}

// sampleIndex converts a second offset to a clamped sample index.
func (c *Clip) sampleIndex(sec float64) int {
	idx := int(math.Round(sec * float64(c.SampleRate)))
	if idx < 0 {
		return 0
	}
	if idx > len(c.Samples) {
		return len(c.Samples)
	}
	return idx
}

// Slice returns a copy of the samples between start and end seconds, clamped
// to the clip bounds.
func (c *Clip) Slice(startSec, endSec float64) *Clip {
	start := c.sampleIndex(startSec)
	end := c.sampleIndex(endSec)
	if end < start {
		end = start
	}

	samples := make([]float64, end-start)
	copy(samples, c.Samples[start:end])
	return &Clip{Samples: samples, SampleRate: c.SampleRate}
}

// Erase zeroes the samples between start and end seconds. Used before
// overlaying a user take so the take replaces, not blends with, whatever was
// on the canvas in that interval.
func (c *Clip) Erase(startSec, endSec float64) {
	start := c.sampleIndex(startSec)
	end := c.sampleIndex(endSec)
	for i := start; i < end; i++ {
		c.Samples[i] = 0
	}
}

// Overlay mixes other onto the clip starting at the given second offset,
// sample-additive with clamping. Samples of other past the end of the
// canvas are dropped.
func (c *Clip) Overlay(other *Clip, atSec float64) error {
	if other.SampleRate != c.SampleRate {
		return fmt.Errorf("sample rate mismatch: canvas %d Hz, overlay %d Hz", c.SampleRate, other.SampleRate)
	}

	start := c.sampleIndex(atSec)
	for i, s := range other.Samples {
		pos := start + i
		if pos >= len(c.Samples) {
			break
		}
		c.Samples[pos] = clampSample(c.Samples[pos] + s)
	}

	return nil
}

func clampSample(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
