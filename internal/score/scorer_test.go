package score

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dubsync/dubsync-be/internal/audio"
	"github.com/dubsync/dubsync-be/internal/dubjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceWords fabricates a transcript of n distinct words with evenly
// spaced timings and no stored fingerprints.
func referenceWords(t *testing.T, n int) []dubjob.ReferenceWord {
	t.Helper()

	faker := gofakeit.New(42)
	seen := make(map[string]bool)
	words := make([]dubjob.ReferenceWord, 0, n)

	for len(words) < n {
		w := faker.Word()
		if seen[w] {
			continue
		}
		seen[w] = true

		i := len(words)
		words = append(words, dubjob.ReferenceWord{
			LineID:   1,
			Position: i,
			Word:     w,
			AbsStart: float64(i) * 0.4,
			AbsEnd:   float64(i)*0.4 + 0.4,
		})
	}

	return words
}

func transcript(words []dubjob.ReferenceWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}

func TestScorer_Score_AllWordsPass(t *testing.T) {
	ref := referenceWords(t, 3)
	wav := audio.EncodeWAV(sineClip(440, 2, 16000))

	scorer := New(&StubTranscriber{Text: transcript(ref)})
	result := scorer.Score(context.Background(), ref, wav)

	require.False(t, result.IsFailure())
	require.NotNil(t, result.Score)
	require.Len(t, result.Score.WordAnalysis, 3)

	// Without stored fingerprints the timbre part is exactly 0, so each
	// passing word is worth the text weight alone.
	for _, w := range result.Score.WordAnalysis {
		assert.Equal(t, "pass", w.TextStatus)
		assert.Equal(t, 0.0, w.MFCCSimilarity)
		assert.InDelta(t, 0.6, w.WordScore, 1e-9)
	}

	assert.InDelta(t, 0.6, result.Score.OverallScore, 1e-9)
	assert.Equal(t, 3, result.Score.Summary.TotalWords)
	assert.Equal(t, 3, result.Score.Summary.PassedWords)
	assert.InDelta(t, 1.0, result.Score.Summary.TextAccuracy, 1e-9)
	assert.InDelta(t, 0.0, result.Score.Summary.MFCCAverage, 1e-9)
}

func TestScorer_Score_PartialMatch(t *testing.T) {
	ref := referenceWords(t, 3)
	wav := audio.EncodeWAV(sineClip(440, 2, 16000))

	// The recognizer drops the middle word.
	recognized := ref[0].Word + " " + ref[2].Word
	scorer := New(&StubTranscriber{Text: recognized})

	result := scorer.Score(context.Background(), ref, wav)
	require.False(t, result.IsFailure())

	words := result.Score.WordAnalysis
	assert.Equal(t, "pass", words[0].TextStatus)
	assert.Equal(t, "fail", words[1].TextStatus)
	assert.Equal(t, "pass", words[2].TextStatus)

	assert.Equal(t, 2, result.Score.Summary.PassedWords)
	assert.InDelta(t, 2.0/3.0, result.Score.Summary.TextAccuracy, 1e-9)
	assert.InDelta(t, 0.4, result.Score.OverallScore, 1e-9)
}

func TestScorer_Score_OverallIsMeanOfWordScores(t *testing.T) {
	ref := referenceWords(t, 5)
	wav := audio.EncodeWAV(sineClip(440, 3, 16000))

	recognized := ref[0].Word + " " + ref[3].Word
	scorer := New(&StubTranscriber{Text: recognized})

	result := scorer.Score(context.Background(), ref, wav)
	require.False(t, result.IsFailure())

	var sum float64
	for _, w := range result.Score.WordAnalysis {
		sum += w.WordScore
	}
	assert.InDelta(t, sum/float64(len(ref)), result.Score.OverallScore, 1e-9)
}

func TestScorer_Score_WithFingerprint(t *testing.T) {
	wav := audio.EncodeWAV(sineClip(440, 2, 16000))
	clip, err := audio.DecodeWAV(wav)
	require.NoError(t, err)

	// The stored fingerprint is extracted from the same recording, so the
	// timbre comparison sees identical frames.
	frames, times := NewExtractor().Extract(clip)
	refMFCC := FramesInRange(frames, times, 0.5, 1.0)
	require.NotEmpty(t, refMFCC)

	ref := []dubjob.ReferenceWord{{
		Word:     "hello",
		AbsStart: 0.5,
		AbsEnd:   1.0,
		MFCC:     refMFCC,
	}}

	scorer := New(&StubTranscriber{Text: "hello"})
	result := scorer.Score(context.Background(), ref, wav)
	require.False(t, result.IsFailure())

	word := result.Score.WordAnalysis[0]
	assert.Equal(t, "pass", word.TextStatus)
	assert.InDelta(t, 1.0, word.MFCCSimilarity, 1e-9)
	assert.InDelta(t, 1.0, word.WordScore, 1e-9)
	assert.InDelta(t, 1.0, result.Score.OverallScore, 1e-9)
}

func TestScorer_Score_EmptyReference(t *testing.T) {
	scorer := New(&StubTranscriber{Text: "anything"})
	result := scorer.Score(context.Background(), nil, []byte("riff"))

	require.True(t, result.IsFailure())
	assert.Equal(t, dubjob.ErrNoReferenceWords.Error(), result.Error)
}

func TestScorer_Score_EmptyAudio(t *testing.T) {
	scorer := New(&StubTranscriber{Text: "anything"})
	result := scorer.Score(context.Background(), referenceWords(t, 1), nil)

	require.True(t, result.IsFailure())
	assert.Equal(t, dubjob.ErrEmptyAudio.Error(), result.Error)
}

func TestScorer_Score_UndecodableAudio(t *testing.T) {
	scorer := New(&StubTranscriber{Text: "anything"})
	result := scorer.Score(context.Background(), referenceWords(t, 1), []byte("not audio at all"))

	require.True(t, result.IsFailure())
	assert.NotEmpty(t, result.Error)
}

func TestScorer_Score_TranscriberError(t *testing.T) {
	wav := audio.EncodeWAV(sineClip(440, 1, 16000))
	scorer := New(&StubTranscriber{Err: errors.New("recognizer offline")})

	result := scorer.Score(context.Background(), referenceWords(t, 2), wav)

	require.True(t, result.IsFailure())
	assert.Contains(t, result.Error, "recognizer offline")
	assert.Nil(t, result.Score)
}
