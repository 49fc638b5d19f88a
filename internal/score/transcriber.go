package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Transcriber converts a user recording into a flat text string. The scorer
// depends on nothing else about the recognizer.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// HTTPTranscriberConfig configures the whisper-style HTTP recognizer client.
type HTTPTranscriberConfig struct {
	BaseURL        string
	Model          string
	Language       string
	RequestTimeout time.Duration
}

// HTTPTranscriber calls a whisper-style transcription endpoint: multipart
// POST with the audio file, JSON response carrying a "text" field.
type HTTPTranscriber struct {
	config     HTTPTranscriberConfig
	httpClient *http.Client
}

// NewHTTPTranscriber creates a recognizer client.
func NewHTTPTranscriber(config HTTPTranscriberConfig) *HTTPTranscriber {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPTranscriber{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe sends the recording and returns the recognized text.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if t.config.Model != "" {
		if err := writer.WriteField("model", t.config.Model); err != nil {
			return "", fmt.Errorf("failed to write model field: %w", err)
		}
	}

	if t.config.Language != "" {
		if err := writer.WriteField("language", t.config.Language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return parsed.Text, nil
}

// StubTranscriber returns a fixed transcript. Test implementation.
type StubTranscriber struct {
	Text string
	Err  error
}

func (s *StubTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}
