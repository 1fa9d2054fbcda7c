package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"murmur/internal/services"
	"murmur/internal/transcript"
)

// DefaultBaseURL points at the diarization server's usual local port.
const DefaultBaseURL = "http://127.0.0.1:9091"

// Config holds the connection settings for the diarization service.
type Config struct {
	BaseURL     string
	MinSpeakers int
	MaxSpeakers int
}

// Client talks to the diarization endpoint. Requests carry no client-side
// timeout; stage contexts bound their lifetimes.
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

// NewClient builds a diarization service client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
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

type diarizeRequest struct {
	AudioPath   string `json:"audio_path"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
}

type diarizeResponse struct {
	Turns []transcript.SpeakerTurn `json:"turns"`
}

// Diarize segments the audio into speaker turns. Zero values for minSpeakers
// and maxSpeakers fall back to the configured bounds; zero there too lets the
// model decide. Speech without detectable speakers legitimately yields zero
// turns.
func (c *Client) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.SpeakerTurn, error) {
	audioPath = strings.TrimSpace(audioPath)
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "diarize", "request", "Audio path required", nil)
	}
	if minSpeakers <= 0 {
		minSpeakers = c.cfg.MinSpeakers
	}
	if maxSpeakers <= 0 {
		maxSpeakers = c.cfg.MaxSpeakers
	}

	payload := diarizeRequest{AudioPath: audioPath, MinSpeakers: minSpeakers, MaxSpeakers: maxSpeakers}
	var resp diarizeResponse
	if err := c.postJSON(ctx, "/v1/diarize", payload, &resp); err != nil {
		return nil, services.Wrap(services.ErrInference, "diarize", "request", "Diarization service call failed", err)
	}

	turns := make([]transcript.SpeakerTurn, 0, len(resp.Turns))
	for _, turn := range resp.Turns {
		turn.Speaker = strings.TrimSpace(turn.Speaker)
		if turn.Speaker == "" || turn.End < turn.Start {
			continue
		}
		turns = append(turns, turn)
	}
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start })
	return turns, nil
}

// HealthCheck verifies the diarization server is reachable and reports
// healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrInference, "diarize", "health", "Build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrInference, "diarize", "health", "Diarization service unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrInference, "diarize", "health",
			fmt.Sprintf("Diarization service returned status %d", resp.StatusCode), nil)
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
