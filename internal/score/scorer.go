// Package score turns a reference transcript and a user recording into
// per-word and overall pronunciation scores. It holds no state beyond its
// collaborators and never touches a database: reference words arrive as
// plain value objects prefetched by the caller.
package score

import (
	"context"
	"math"

	"github.com/dubsync/dubsync-be/internal/audio"
	"github.com/dubsync/dubsync-be/internal/dubjob"
)

const (
	textWeight   = 0.6
	timbreWeight = 0.4
)

// Scorer combines text alignment and timbre similarity into word scores.
type Scorer struct {
	transcriber Transcriber
	extractor   *Extractor
}

// New creates a scorer backed by the given recognizer.
func New(transcriber Transcriber) *Scorer {
	return &Scorer{
		transcriber: transcriber,
		extractor:   NewExtractor(),
	}
}

// Score evaluates a user recording against the reference words. Failures
// (recognizer errors, empty inputs, undecodable audio) come back as an
// ErrorResult, never as an error: the job completes its lifecycle either
// way and clients branch on the result's status.
//
// Per word: text contributes 0.6 (pass/fail), timbre similarity 0.4.
// A reference word without a stored fingerprint gets a timbre similarity of
// exactly 0 - a strict default, not a skip. The overall score is the plain
// mean of the word scores.
func (s *Scorer) Score(ctx context.Context, reference []dubjob.ReferenceWord, wav []byte) dubjob.Result {
	if len(reference) == 0 {
		return dubjob.NewErrorResult(dubjob.ErrNoReferenceWords)
	}
	if len(wav) == 0 {
		return dubjob.NewErrorResult(dubjob.ErrEmptyAudio)
	}

	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return dubjob.NewErrorResult(err)
	}

	recognized, err := s.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return dubjob.NewErrorResult(err)
	}

	refTexts := make([]string, len(reference))
	for i, w := range reference {
		refTexts[i] = w.Word
	}
	passes := alignWords(refTexts, tokenize(recognized))

	userFrames, frameTimes := s.extractor.Extract(clip)

	words := make([]dubjob.WordScore, len(reference))
	passedWords := 0
	var scoreTotal, mfccTotal float64

	for i, ref := range reference {
		textScore := 0.0
		textStatus := "fail"
		if passes[i] {
			textScore = 1.0
			textStatus = "pass"
			passedWords++
		}

		similarity := 0.0
		if len(ref.MFCC) > 0 {
			user := FramesInRange(userFrames, frameTimes, ref.AbsStart, ref.AbsEnd)
			similarity = CompareFrames(ref.MFCC, user)
		}

		wordScore := textWeight*textScore + timbreWeight*similarity

		words[i] = dubjob.WordScore{
			Word:           ref.Word,
			TextStatus:     textStatus,
			MFCCSimilarity: round3(similarity),
			WordScore:      wordScore,
		}

		scoreTotal += wordScore
		mfccTotal += similarity
	}

	n := float64(len(reference))
	return dubjob.NewScoreResult(dubjob.ScoreResult{
		OverallScore: scoreTotal / n,
		WordAnalysis: words,
		Summary: dubjob.Summary{
			TextAccuracy: float64(passedWords) / n,
			MFCCAverage:  mfccTotal / n,
			TotalWords:   len(reference),
			PassedWords:  passedWords,
		},
	})
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
