package dubjob

import "encoding/json"

// Result statuses carried in the job result payload.
const (
	ResultStatusCompleted = "completed"
	ResultStatusFailed    = "failed"
)

// WordScore is the per-word verdict of the pronunciation scorer.
type WordScore struct {
	Word           string  `json:"word"`
	TextStatus     string  `json:"text_status"` // "pass" or "fail"
	MFCCSimilarity float64 `json:"mfcc_similarity"`
	WordScore      float64 `json:"word_score"`
}

// Summary aggregates a scoring run.
type Summary struct {
	TextAccuracy float64 `json:"text_accuracy"`
	MFCCAverage  float64 `json:"mfcc_average"`
	TotalWords   int     `json:"total_words"`
	PassedWords  int     `json:"passed_words"`
}

// ScoreResult is the successful variant of a job result.
type ScoreResult struct {
	OverallScore float64     `json:"overall_score"`
	WordAnalysis []WordScore `json:"word_analysis"`
	Summary      Summary     `json:"summary"`
}

// Result is the tagged variant stored in the job record: either a score or
// an error, discriminated by Status. It is marshalled opaquely into the
// job's result column and into callback bodies.
type Result struct {
	Status string       `json:"status"`
	Score  *ScoreResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// NewScoreResult wraps a successful scoring run.
func NewScoreResult(score ScoreResult) Result {
	return Result{Status: ResultStatusCompleted, Score: &score}
}

// NewErrorResult wraps a scoring failure. The job still completes its
// lifecycle; clients branch on Status, not on payload shape.
func NewErrorResult(err error) Result {
	return Result{Status: ResultStatusFailed, Error: err.Error()}
}

// IsFailure reports whether the result carries an error instead of scores.
func (r Result) IsFailure() bool {
	return r.Status == ResultStatusFailed
}

// Marshal serializes the result for storage or transport.
func (r Result) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResult parses a stored or received result payload.
func UnmarshalResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, err
	}
	return r, nil
}
