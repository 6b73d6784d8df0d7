// Package flux wraps the Black Forest Labs image generation API: a submit
// call that returns a job handle, and a poll call that reports job status
// until the rendered image is ready.
package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"glenn-svanberg-backend/internal/apperr"
)

// Job statuses as reported by the provider. Anything else is passed through
// to the caller verbatim and treated as still in flight.
const (
	StatusReady      = "Ready"
	StatusError      = "Error"
	StatusFailed     = "Failed"
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
)

// Generation defaults for the Glenn finetune.
const (
	DefaultFinetuneStrength = 1.4
	DefaultAspectRatio      = "1:1"
	DefaultSteps            = 50
	DefaultGuidance         = 3.5
	DefaultSafetyTolerance  = "6"
)

type Client struct {
	baseURL    string
	endpoint   string
	apiKey     string
	finetuneID string
	httpClient *http.Client
	logger     zerolog.Logger
}

// GenerationParams are the caller-supplied tuning knobs. Zero values fall
// back to the documented defaults at submit time.
type GenerationParams struct {
	FinetuneID       string  `json:"finetune_id,omitempty"`
	FinetuneStrength float64 `json:"finetune_strength,omitempty"`
	AspectRatio      string  `json:"aspect_ratio,omitempty"`
	Steps            int     `json:"steps,omitempty"`
	Guidance         float64 `json:"guidance,omitempty"`
	SafetyTolerance  string  `json:"safety_tolerance,omitempty"`
	Seed             *int64  `json:"seed,omitempty"`
}

// Job is the provider's handle for an accepted generation request.
type Job struct {
	RequestID  string
	PollingURL string
}

// PollResult is the normalized outcome of one status check.
type PollResult struct {
	Status   string
	ImageURL string
	Error    string
}

func (r *PollResult) InFlight() bool {
	switch r.Status {
	case StatusReady, StatusError, StatusFailed:
		return false
	default:
		return true
	}
}

type submitPayload struct {
	Prompt           string  `json:"prompt"`
	FinetuneID       string  `json:"finetune_id"`
	FinetuneStrength float64 `json:"finetune_strength"`
	AspectRatio      string  `json:"aspect_ratio"`
	Steps            int     `json:"steps"`
	Guidance         float64 `json:"guidance"`
	SafetyTolerance  string  `json:"safety_tolerance"`
	Seed             *int64  `json:"seed,omitempty"`
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type pollResponse struct {
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
		Error  string `json:"error"`
	} `json:"result"`
}

func NewClient(baseURL, endpoint, apiKey, finetuneID string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/",
		endpoint:   endpoint,
		apiKey:     apiKey,
		finetuneID: finetuneID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Submit sends a generation request with the prompt and tuning parameters
// merged over the defaults, and returns the job handle to poll.
func (c *Client) Submit(ctx context.Context, userPrompt string, params GenerationParams) (*Job, error) {
	if c.apiKey == "" {
		return nil, apperr.Configuration("BFL_API_KEY not found in environment variables")
	}

	trimmed := strings.TrimSpace(userPrompt)
	if trimmed == "" {
		return nil, apperr.Validation("prompt is required and must be a non-empty string")
	}

	payload := submitPayload{
		Prompt:           trimmed,
		FinetuneID:       c.finetuneID,
		FinetuneStrength: DefaultFinetuneStrength,
		AspectRatio:      DefaultAspectRatio,
		Steps:            DefaultSteps,
		Guidance:         DefaultGuidance,
		SafetyTolerance:  DefaultSafetyTolerance,
	}
	if params.FinetuneID != "" {
		payload.FinetuneID = params.FinetuneID
	}
	if params.FinetuneStrength != 0 {
		payload.FinetuneStrength = params.FinetuneStrength
	}
	if params.AspectRatio != "" {
		payload.AspectRatio = params.AspectRatio
	}
	if params.Steps != 0 {
		payload.Steps = params.Steps
	}
	if params.Guidance != 0 {
		payload.Guidance = params.Guidance
	}
	if params.SafetyTolerance != "" {
		payload.SafetyTolerance = params.SafetyTolerance
	}
	payload.Seed = params.Seed

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + c.endpoint
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info().Str("prompt", trimmed).Str("finetune_id", payload.FinetuneID).Msg("submitting generation request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "generation request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream("generation request failed: %d - %s", resp.StatusCode, string(body))
	}

	var result submitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to decode generation response", err)
	}

	pollingURL := result.PollingURL
	if pollingURL == "" {
		pollingURL = c.baseURL + "get_result"
	}

	c.logger.Info().Str("request_id", result.ID).Str("polling_url", pollingURL).Msg("generation request submitted")

	return &Job{RequestID: result.ID, PollingURL: pollingURL}, nil
}

// Poll performs a single status check against the job's polling URL. The
// request id is validated as a canonical UUID before any network call.
func (c *Client) Poll(ctx context.Context, requestID, pollingURL string) (*PollResult, error) {
	if c.apiKey == "" {
		return nil, apperr.Configuration("BFL_API_KEY not found in environment variables")
	}
	if requestID == "" || pollingURL == "" {
		return nil, apperr.Validation("requestId and pollingUrl are required")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, apperr.Validation("invalid UUID format: %s", requestID)
	}

	url := resolvePollingURL(requestID, pollingURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "polling request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.Upstream("polling request failed: %d - %s", resp.StatusCode, string(body))
	}

	var result pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to decode poll response", err)
	}

	out := &PollResult{Status: result.Status}
	switch result.Status {
	case StatusReady:
		if result.Result == nil || result.Result.Sample == "" {
			return nil, apperr.Upstream("no image URL in result")
		}
		out.ImageURL = result.Result.Sample
	case StatusError, StatusFailed:
		out.Status = StatusError
		out.Error = "Unknown error"
		if result.Result != nil && result.Result.Error != "" {
			out.Error = result.Result.Error
		}
	}

	c.logger.Debug().Str("request_id", requestID).Str("status", result.Status).Msg("poll result")

	return out, nil
}

// Download fetches the rendered image from the provider-hosted URL. The URL
// is short-lived, so this runs immediately after a Ready poll.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "GlennSvanberg-App/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUpstream, "failed to download image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperr.Upstream("failed to download image: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return data, contentType, nil
}

// resolvePollingURL handles the two shapes the provider returns: a complete
// URL that already embeds the job id, or the legacy get_result endpoint that
// needs the id appended as a query parameter.
func resolvePollingURL(requestID, pollingURL string) string {
	if strings.Contains(pollingURL, "?id=") || strings.Contains(pollingURL, "&id=") {
		return pollingURL
	}
	if strings.Contains(pollingURL, "get_result") {
		return pollingURL + "?id=" + requestID
	}
	return pollingURL
}
