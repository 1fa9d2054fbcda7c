package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"murmur/internal/language"
	"murmur/internal/services"
	"murmur/internal/transcript"
)

// DefaultBaseURL points at the inference server's usual local port.
const DefaultBaseURL = "http://127.0.0.1:9090"

// Config holds the connection settings for the transcription service.
type Config struct {
	BaseURL string
	Model   string
}

// Client talks to the transcription and alignment endpoints. Requests carry
// no client-side timeout; stage contexts bound their lifetimes because
// transcription runtime scales with audio length.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a transcription service client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// RawSegment is a transcription segment before word alignment.
type RawSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscribeResult carries the detected language and the raw segments.
type TranscribeResult struct {
	Language string
	Segments []RawSegment
}

type transcribeRequest struct {
	AudioPath string `json:"audio_path"`
	Model     string `json:"model,omitempty"`
	Language  string `json:"language,omitempty"`
}

type transcribeResponse struct {
	Language string       `json:"language"`
	Segments []RawSegment `json:"segments"`
}

// Transcribe runs speech recognition over the audio file. An empty language
// hint lets the model detect the language; silence legitimately yields zero
// segments.
func (c *Client) Transcribe(ctx context.Context, audioPath, languageHint string) (TranscribeResult, error) {
	audioPath = strings.TrimSpace(audioPath)
	if audioPath == "" {
		return TranscribeResult{}, services.Wrap(services.ErrValidation, "transcribe", "request", "Audio path required", nil)
	}

	payload := transcribeRequest{
		AudioPath: audioPath,
		Model:     c.cfg.Model,
		Language:  language.ToISO2(languageHint),
	}
	var resp transcribeResponse
	if err := c.postJSON(ctx, "/v1/transcribe", payload, &resp); err != nil {
		return TranscribeResult{}, services.Wrap(services.ErrInference, "transcribe", "request", "Transcription service call failed", err)
	}

	segments := make([]RawSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return TranscribeResult{Language: strings.TrimSpace(resp.Language), Segments: segments}, nil
}

type alignRequest struct {
	AudioPath string       `json:"audio_path"`
	Language  string       `json:"language,omitempty"`
	Segments  []RawSegment `json:"segments"`
}

type alignResponse struct {
	Segments []alignedSegment `json:"segments"`
}

type alignedSegment struct {
	Text  string            `json:"text"`
	Start float64           `json:"start"`
	End   float64           `json:"end"`
	Words []transcript.Word `json:"words"`
}

// Align attaches word level timestamps to raw segments. Words the aligner
// could not time are dropped; a segment that loses every word keeps the
// segment level timestamps reported by the service.
func (c *Client) Align(ctx context.Context, audioPath, lang string, segments []RawSegment) ([]transcript.Segment, error) {
	audioPath = strings.TrimSpace(audioPath)
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "align", "request", "Audio path required", nil)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "align", "request", "No segments to align", nil)
	}

	payload := alignRequest{
		AudioPath: audioPath,
		Language:  language.ToISO2(lang),
		Segments:  segments,
	}
	var resp alignResponse
	if err := c.postJSON(ctx, "/v1/align", payload, &resp); err != nil {
		return nil, services.Wrap(services.ErrInference, "align", "request", "Alignment service call failed", err)
	}

	out := make([]transcript.Segment, 0, len(resp.Segments))
	for _, aligned := range resp.Segments {
		text := strings.TrimSpace(aligned.Text)
		if text == "" {
			continue
		}
		words := make([]transcript.Word, 0, len(aligned.Words))
		for _, word := range aligned.Words {
			word.Text = strings.TrimSpace(word.Text)
			if word.Text == "" || word.End < word.Start {
				continue
			}
			words = append(words, word)
		}
		seg := transcript.NewSegment(len(out)+1, words, text)
		if len(words) == 0 {
			seg.Start = aligned.Start
			seg.End = aligned.End
		}
		out = append(out, seg)
	}
	return out, nil
}

// HealthCheck verifies the inference server is reachable and reports healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrInference, "transcribe", "health", "Build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrInference, "transcribe", "health", "Transcription service unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrInference, "transcribe", "health",
			fmt.Sprintf("Transcription service returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, summarizeBody(data))
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func summarizeBody(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "<empty body>"
	}
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}
