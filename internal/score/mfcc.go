package score

import (
	"math"
	"math/cmplx"

	"github.com/dubsync/dubsync-be/internal/audio"
)

// MFCC extraction: the user recording is reduced to the same frame-by-frame
// cepstral fingerprint the enrollment pipeline stores for reference words,
// so per-word timbre comparison is a cosine over matching frames.

const (
	frameLengthSec = 0.025
	frameHopSec    = 0.010
	numMelFilters  = 26
	numCoefs       = 13
	preEmphasis    = 0.97
)

// Extractor computes MFCC frames from PCM audio.
type Extractor struct{}

// NewExtractor returns an extractor with the pipeline's fixed parameters.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one coefficient vector per frame plus each frame's center
// time in seconds.
func (e *Extractor) Extract(clip *audio.Clip) (frames [][]float64, frameTimes []float64) {
	frameLen := int(frameLengthSec * float64(clip.SampleRate))
	hop := int(frameHopSec * float64(clip.SampleRate))
	if frameLen <= 0 || hop <= 0 || len(clip.Samples) < frameLen {
		return nil, nil
	}

	fftSize := nextPowerOfTwo(frameLen)
	filterBank := melFilterBank(numMelFilters, fftSize, clip.SampleRate)
	window := hammingWindow(frameLen)

	// Pre-emphasis boosts the high end before framing.
	emphasized := make([]float64, len(clip.Samples))
	emphasized[0] = clip.Samples[0]
	for i := 1; i < len(clip.Samples); i++ {
		emphasized[i] = clip.Samples[i] - preEmphasis*clip.Samples[i-1]
	}

	for start := 0; start+frameLen <= len(emphasized); start += hop {
		frame := make([]complex128, fftSize)
		for i := 0; i < frameLen; i++ {
			frame[i] = complex(emphasized[start+i]*window[i], 0)
		}

		fft(frame)

		power := make([]float64, fftSize/2+1)
		for i := range power {
			power[i] = real(frame[i])*real(frame[i]) + imag(frame[i])*imag(frame[i])
			power[i] /= float64(fftSize)
		}

		logEnergies := make([]float64, numMelFilters)
		for f, filter := range filterBank {
			var sum float64
			for i, w := range filter {
				sum += power[i] * w
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			logEnergies[f] = math.Log(sum)
		}

		frames = append(frames, dct(logEnergies, numCoefs))
		frameTimes = append(frameTimes, (float64(start)+float64(frameLen)/2)/float64(clip.SampleRate))
	}

	return frames, frameTimes
}

// FramesInRange selects the frames whose center time falls in [start, end).
func FramesInRange(frames [][]float64, frameTimes []float64, start, end float64) [][]float64 {
	var selected [][]float64
	for i, t := range frameTimes {
		if t >= start && t < end {
			selected = append(selected, frames[i])
		}
	}
	return selected
}

// CompareFrames returns the mean cosine similarity over paired frames of the
// two fingerprints, clamped to [0, 1]. Extra frames on the longer side are
// ignored; empty input on either side scores 0.
func CompareFrames(reference, user [][]float64) float64 {
	n := len(reference)
	if len(user) < n {
		n = len(user)
	}
	if n == 0 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		total += cosineSimilarity(reference[i], user[i])
	}

	sim := total / float64(n)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterBank builds triangular filters over FFT bins, evenly spaced on
// the mel scale from 0 Hz to Nyquist.
func melFilterBank(numFilters, fftSize, sampleRate int) [][]float64 {
	numBins := fftSize/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)

	// Filter edge frequencies as FFT bin indices.
	edges := make([]int, numFilters+2)
	for i := range edges {
		hz := melToHz(maxMel * float64(i) / float64(numFilters+1))
		edges[i] = int(math.Floor((float64(fftSize) + 1) * hz / float64(sampleRate)))
		if edges[i] >= numBins {
			edges[i] = numBins - 1
		}
	}

	bank := make([][]float64, numFilters)
	for f := 0; f < numFilters; f++ {
		filter := make([]float64, numBins)
		lo, mid, hi := edges[f], edges[f+1], edges[f+2]
		for b := lo; b < mid; b++ {
			if mid > lo {
				filter[b] = float64(b-lo) / float64(mid-lo)
			}
		}
		for b := mid; b < hi; b++ {
			if hi > mid {
				filter[b] = float64(hi-b) / float64(hi-mid)
			}
		}
		bank[f] = filter
	}
	return bank
}

// dct computes the first numOut coefficients of the DCT-II of x.
func dct(x []float64, numOut int) []float64 {
	n := len(x)
	out := make([]float64, numOut)
	for k := 0; k < numOut; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		out[k] = sum
	}
	return out
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform. len(x) must
// be a power of two.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := x[i+j]
				v := x[i+j+length/2] * w
				x[i+j] = u + v
				x[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
