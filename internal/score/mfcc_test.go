package score

import (
	"math"
	"testing"

	"github.com/dubsync/dubsync-be/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineClip builds a clip of a pure tone.
func sineClip(freq float64, seconds float64, sampleRate int) *audio.Clip {
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return &audio.Clip{Samples: samples, SampleRate: sampleRate}
}

func TestExtractor_Extract(t *testing.T) {
	clip := sineClip(440, 1, 16000)

	frames, times := NewExtractor().Extract(clip)
	require.NotEmpty(t, frames)
	require.Len(t, times, len(frames))

	// 25ms frames at a 10ms hop over one second.
	assert.InDelta(t, 98, len(frames), 2)

	for _, frame := range frames {
		assert.Len(t, frame, 13)
	}

	// Frame centers advance monotonically within the clip.
	for i := 1; i < len(times); i++ {
		assert.Greater(t, times[i], times[i-1])
	}
	assert.Less(t, times[len(times)-1], clip.Duration())
}

func TestExtractor_Extract_TooShort(t *testing.T) {
	frames, times := NewExtractor().Extract(sineClip(440, 0.001, 16000))
	assert.Nil(t, frames)
	assert.Nil(t, times)
}

func TestFramesInRange(t *testing.T) {
	frames := [][]float64{{1}, {2}, {3}, {4}}
	times := []float64{0.1, 0.2, 0.3, 0.4}

	selected := FramesInRange(frames, times, 0.2, 0.4)
	require.Len(t, selected, 2)
	assert.Equal(t, []float64{2}, selected[0])
	assert.Equal(t, []float64{3}, selected[1])

	assert.Empty(t, FramesInRange(frames, times, 0.5, 1.0))
}

func TestCompareFrames(t *testing.T) {
	clip := sineClip(440, 1, 16000)
	frames, _ := NewExtractor().Extract(clip)
	require.NotEmpty(t, frames)

	// Identical fingerprints are a perfect match.
	assert.InDelta(t, 1.0, CompareFrames(frames, frames), 1e-9)

	// Empty input on either side scores zero.
	assert.Equal(t, 0.0, CompareFrames(nil, frames))
	assert.Equal(t, 0.0, CompareFrames(frames, nil))

	// A different tone scores strictly below a perfect match.
	other, _ := NewExtractor().Extract(sineClip(1850, 1, 16000))
	sim := CompareFrames(frames, other)
	assert.GreaterOrEqual(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
