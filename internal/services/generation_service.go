// Package services contains the generation pipeline: prompt in, public URL
// of a freshly stored image out. The two provider strategies hide behind one
// Backend interface; the orchestrator owns validation, naming and storage.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/flux"
	"glenn-svanberg-backend/internal/prompt"
	"glenn-svanberg-backend/internal/supabase"
)

const (
	pollInterval = 500 * time.Millisecond
	maxPollTime  = 300 * time.Second
)

// GenerationRequest is one user submission. Params are only meaningful for
// the polling backend; the reference backend ignores them.
type GenerationRequest struct {
	Prompt string
	Params flux.GenerationParams
}

// GeneratedImage is the normalized output of either backend.
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

// StoredResult is what the pipeline hands back on success.
type StoredResult struct {
	Filename    string
	PublicURL   string
	OriginalURL string
}

// Backend generates image bytes for a request. Implementations wrap the
// submit/poll provider and the synchronous reference-conditioned provider.
type Backend interface {
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error)
}

// Storage is the slice of the bucket adapter the pipeline needs.
type Storage interface {
	List(prefix string, limit int) ([]supabase.ObjectInfo, error)
	Upload(key string, data []byte, contentType string) error
	Download(key string) ([]byte, error)
	PublicURL(key string) string
}

// Fetcher downloads an externally hosted image, returning bytes and content
// type. *flux.Client implements it.
type Fetcher interface {
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Photo is one gallery entry.
type Photo struct {
	ID        string
	Name      string
	URL       string
	CreatedAt string
	UpdatedAt string
	Size      int64
	MimeType  string
}

type Service struct {
	backend Backend
	storage Storage
	fetcher Fetcher
	logger  zerolog.Logger

	// Now feeds the filename timestamp; injectable for deterministic tests.
	Now func() time.Time
}

func NewService(backend Backend, storage Storage, fetcher Fetcher, logger zerolog.Logger) *Service {
	return &Service{
		backend: backend,
		storage: storage,
		fetcher: fetcher,
		logger:  logger,
		Now:     time.Now,
	}
}

// Generate runs the full pipeline: validate, generate, name, store, and
// return the public URL. Any stage failure aborts the rest; nothing needs
// rolling back because the upload is the final stage.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) (*StoredResult, error) {
	trimmed := strings.TrimSpace(req.Prompt)
	if trimmed == "" {
		return nil, apperr.Validation("prompt is required and must be a non-empty string")
	}
	req.Prompt = trimmed

	img, err := s.backend.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.store(trimmed, img, "")
}

// DownloadAndStore fetches a provider-hosted image and persists it under a
// prompt-derived filename. This serves clients that drive the submit/poll
// steps themselves and only hand the final URL to the server.
func (s *Service) DownloadAndStore(ctx context.Context, imageURL, userPrompt string) (*StoredResult, error) {
	if imageURL == "" || strings.TrimSpace(userPrompt) == "" {
		return nil, apperr.Validation("imageUrl and prompt are required")
	}
	if s.fetcher == nil {
		return nil, apperr.Configuration("image download is not available on this backend")
	}

	s.logger.Info().Str("image_url", imageURL).Msg("downloading image for storage")

	data, contentType, err := s.fetcher.Download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	return s.store(strings.TrimSpace(userPrompt), &GeneratedImage{Data: data, MimeType: contentType}, imageURL)
}

// ListPhotos returns the gallery entries: stored images newest first with
// their public URLs.
func (s *Service) ListPhotos(limit int) ([]Photo, error) {
	if limit <= 0 {
		limit = 100
	}

	objects, err := s.storage.List("", limit)
	if err != nil {
		return nil, err
	}

	photos := make([]Photo, 0, len(objects))
	for _, obj := range objects {
		if !isImageFile(obj.Name) {
			continue
		}
		photos = append(photos, Photo{
			ID:        obj.ID,
			Name:      obj.Name,
			URL:       s.storage.PublicURL(obj.Name),
			CreatedAt: obj.CreatedAt,
			UpdatedAt: obj.UpdatedAt,
			Size:      obj.Size,
			MimeType:  obj.MimeType,
		})
	}

	return photos, nil
}

func (s *Service) store(userPrompt string, img *GeneratedImage, originalURL string) (*StoredResult, error) {
	ext := prompt.ExtensionForMime(img.MimeType)
	filename := prompt.MakeFilename(userPrompt, ext, s.Now())

	contentType := img.MimeType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := s.storage.Upload(filename, img.Data, contentType); err != nil {
		return nil, err
	}

	publicURL := s.storage.PublicURL(filename)
	s.logger.Info().Str("filename", filename).Str("public_url", publicURL).Int("size", len(img.Data)).Msg("image stored")

	return &StoredResult{
		Filename:    filename,
		PublicURL:   publicURL,
		OriginalURL: originalURL,
	}, nil
}

// FluxAPI is the slice of the flux client the polling backend uses.
type FluxAPI interface {
	Submit(ctx context.Context, userPrompt string, params flux.GenerationParams) (*flux.Job, error)
	Poll(ctx context.Context, requestID, pollingURL string) (*flux.PollResult, error)
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// PollingBackend drives the submit/poll provider: submit once, poll on a
// fixed interval until a terminal status or the wall-clock ceiling, then
// download the rendered image. Now and Sleep are injection points so the
// timeout path is testable without real wall-clock delay.
type PollingBackend struct {
	client   FluxAPI
	interval time.Duration
	maxWait  time.Duration
	logger   zerolog.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewPollingBackend(client FluxAPI, logger zerolog.Logger) *PollingBackend {
	return &PollingBackend{
		client:   client,
		interval: pollInterval,
		maxWait:  maxPollTime,
		logger:   logger,
		Now:      time.Now,
		Sleep:    sleepContext,
	}
}

func (b *PollingBackend) Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error) {
	job, err := b.client.Submit(ctx, req.Prompt, req.Params)
	if err != nil {
		return nil, err
	}

	result, err := b.waitForResult(ctx, job)
	if err != nil {
		return nil, err
	}

	data, contentType, err := b.client.Download(ctx, result.ImageURL)
	if err != nil {
		return nil, err
	}

	return &GeneratedImage{Data: data, MimeType: contentType}, nil
}

// waitForResult polls until the job reaches a terminal status. Pending,
// Processing and any unrecognized status keep the loop going; the ceiling
// turns the wait into a timeout failure.
func (b *PollingBackend) waitForResult(ctx context.Context, job *flux.Job) (*flux.PollResult, error) {
	start := b.Now()
	for {
		// Wait before every poll, including the first.
		if err := b.Sleep(ctx, b.interval); err != nil {
			return nil, apperr.Wrap(apperr.KindTimeout, "generation cancelled", err)
		}

		if b.Now().Sub(start) > b.maxWait {
			return nil, apperr.Timeout("generation timed out after %.0f seconds", b.maxWait.Seconds())
		}

		result, err := b.client.Poll(ctx, job.RequestID, job.PollingURL)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case flux.StatusReady:
			return result, nil
		case flux.StatusError, flux.StatusFailed:
			return nil, apperr.Upstream("generation failed: %s", result.Error)
		default:
			b.logger.Debug().Str("request_id", job.RequestID).Str("status", result.Status).Msg("still waiting")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
