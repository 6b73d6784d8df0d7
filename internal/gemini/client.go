// Package gemini calls the Gemini generateContent REST API for
// reference-conditioned image generation. A single multimodal request
// carries the hidden instruction plus the reference photo inline; an ordered
// list of models is tried until one returns an image.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glenn-svanberg-backend/internal/apperr"
)

// fallbackModels are tried after the configured model, in order.
var fallbackModels = []string{
	"gemini-2.5-flash-image",
	"gemini-2.0-flash-preview-image-generation",
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ReferenceImage is a pre-existing photo of the subject, read-only input to
// generation.
type ReferenceImage struct {
	Path     string
	Data     []byte
	MimeType string
}

// GeneratedImage is the normalized output of a generation call.
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// part tolerates both casings the API has used for inline image payloads:
// camelCase in current responses, snake_case in older ones. Exactly one of
// the two is populated on output; only InlineData is set on input.
type part struct {
	Text            string      `json:"text,omitempty"`
	InlineData      *inlineData `json:"inlineData,omitempty"`
	InlineDataSnake *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

func NewClient(baseURL, apiKey, model string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Models returns the ordered list of model identifiers this client will try.
func (c *Client) Models() []string {
	models := make([]string, 0, len(fallbackModels)+1)
	if c.model != "" {
		models = append(models, c.model)
	}
	for _, m := range fallbackModels {
		if m != c.model {
			models = append(models, m)
		}
	}
	return models
}

// Generate sends the instruction and reference image to each model in order
// until one returns an inline image. Authentication failures abort the chain
// immediately: a rejected key is rejected for every model, and retrying would
// only disguise the misconfiguration as a content failure.
func (c *Client) Generate(ctx context.Context, instruction string, ref ReferenceImage) (*GeneratedImage, error) {
	if c.apiKey == "" {
		return nil, apperr.Configuration("GEMINI_API_KEY not found in environment variables")
	}

	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: instruction},
				{InlineData: &inlineData{
					MimeType: ref.MimeType,
					Data:     base64.StdEncoding.EncodeToString(ref.Data),
				}},
			},
		}},
	}

	var lastErr error
	for _, model := range c.Models() {
		img, err := c.generateWithModel(ctx, model, payload)
		if err == nil {
			return img, nil
		}
		if apperr.IsKind(err, apperr.KindConfiguration) {
			return nil, err
		}
		c.logger.Warn().Err(err).Str("model", model).Msg("model attempt failed, trying next")
		lastErr = err
	}

	return nil, apperr.Wrap(apperr.KindUpstream, "all models failed to generate an image", lastErr)
}

func (c *Client) generateWithModel(ctx context.Context, model string, payload generateRequest) (*GeneratedImage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to call gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.Configuration("gemini rejected the API key: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, apperr.Upstream("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, apperr.Upstream("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to decode gemini response", err)
	}

	for _, candidate := range result.Candidates {
		for _, p := range candidate.Content.Parts {
			blob := p.InlineData
			if blob == nil {
				blob = p.InlineDataSnake
			}
			if blob == nil || blob.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(blob.Data)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindUpstream, "failed to decode inline image data", err)
			}
			mimeType := blob.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &GeneratedImage{Data: data, MimeType: mimeType}, nil
		}
	}

	return nil, apperr.Upstream("model %s returned no inline image", model)
}
