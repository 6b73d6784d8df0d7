package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/flux"
	"glenn-svanberg-backend/internal/gemini"
	"glenn-svanberg-backend/internal/services"
	"glenn-svanberg-backend/internal/supabase"
)

const testRequestID = "0f8fad5b-d9cb-469f-a165-70867728950e"

type fakeFlux struct {
	submitCalls   int
	pollCalls     int
	downloadCalls int
	pollResults   []*flux.PollResult
	submitErr     error
}

func (f *fakeFlux) Submit(ctx context.Context, userPrompt string, params flux.GenerationParams) (*flux.Job, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &flux.Job{RequestID: testRequestID, PollingURL: "https://api.test/get_result"}, nil
}

func (f *fakeFlux) Poll(ctx context.Context, requestID, pollingURL string) (*flux.PollResult, error) {
	f.pollCalls++
	if f.pollCalls <= len(f.pollResults) {
		return f.pollResults[f.pollCalls-1], nil
	}
	return &flux.PollResult{Status: flux.StatusPending}, nil
}

func (f *fakeFlux) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	f.downloadCalls++
	return []byte("image-bytes"), "image/jpeg", nil
}

type fakeStorage struct {
	objects     map[string][]byte
	listing     []supabase.ObjectInfo
	uploadCalls int
	listErr     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) List(prefix string, limit int) ([]supabase.ObjectInfo, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listing, nil
}

func (s *fakeStorage) Upload(key string, data []byte, contentType string) error {
	s.uploadCalls++
	if _, exists := s.objects[key]; exists {
		return apperr.Storage("failed to upload %s: the resource already exists", key)
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Download(key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, apperr.Storage("failed to download %s: object not found", key)
	}
	return data, nil
}

func (s *fakeStorage) PublicURL(key string) string {
	return "https://project.supabase.co/storage/v1/object/public/glennsvanberg/" + key
}

// fakeClock advances by the slept duration, so the poll ceiling is reached
// without real waiting.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

func newTestBackend(client services.FluxAPI) *services.PollingBackend {
	backend := services.NewPollingBackend(client, zerolog.Nop())
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	backend.Now = clock.Now
	backend.Sleep = clock.Sleep
	return backend
}

func TestPipeline_WhitespacePromptRejectedBeforeAnyCall(t *testing.T) {
	client := &fakeFlux{}
	storage := newFakeStorage()
	service := services.NewService(newTestBackend(client), storage, client, zerolog.Nop())

	_, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "   \t  "})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, client.submitCalls)
	assert.Zero(t, storage.uploadCalls)
}

func TestPipeline_PendingTwiceThenReady(t *testing.T) {
	client := &fakeFlux{
		pollResults: []*flux.PollResult{
			{Status: flux.StatusPending},
			{Status: flux.StatusProcessing},
			{Status: flux.StatusReady, ImageURL: "https://delivery.test/image.jpg"},
		},
	}
	storage := newFakeStorage()
	service := services.NewService(newTestBackend(client), storage, client, zerolog.Nop())

	result, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})

	require.NoError(t, err)
	assert.Equal(t, 3, client.pollCalls)
	assert.Equal(t, 1, client.downloadCalls)
	assert.True(t, strings.HasPrefix(result.Filename, "glenn_glenn_som_pirat_"))
	assert.Equal(t, storage.PublicURL(result.Filename), result.PublicURL)
	assert.Equal(t, []byte("image-bytes"), storage.objects[result.Filename])
}

func TestPipeline_NeverReadyTimesOut(t *testing.T) {
	client := &fakeFlux{}
	backend := newTestBackend(client)

	_, err := backend.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})

	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	// 500 ms interval against a 300 s ceiling: the 601st sleep crosses the
	// ceiling, so exactly 600 polls were issued and none after.
	assert.Equal(t, 600, client.pollCalls)
	assert.Zero(t, client.downloadCalls)
}

func TestPipeline_ProviderErrorAborts(t *testing.T) {
	client := &fakeFlux{
		pollResults: []*flux.PollResult{
			{Status: flux.StatusError, Error: "nsfw content detected"},
		},
	}
	storage := newFakeStorage()
	service := services.NewService(newTestBackend(client), storage, client, zerolog.Nop())

	_, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})

	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "nsfw content detected")
	assert.Equal(t, 1, client.pollCalls)
	assert.Zero(t, storage.uploadCalls)
}

func TestPipeline_CancelledContextStopsPolling(t *testing.T) {
	client := &fakeFlux{}
	backend := newTestBackend(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := backend.Generate(ctx, services.GenerationRequest{Prompt: "glenn som pirat"})

	require.Error(t, err)
	assert.Zero(t, client.pollCalls)
}

func TestPipeline_DuplicateFilenameFailsWithoutSuccess(t *testing.T) {
	storage := newFakeStorage()
	service := services.NewService(&staticBackend{}, storage, nil, zerolog.Nop())
	// Freeze the clock so both runs derive the identical filename.
	service.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	first, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})
	require.NoError(t, err)

	second, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})
	assert.Nil(t, second)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Equal(t, []byte("bytes"), storage.objects[first.Filename], "existing object must not be overwritten")
}

type staticBackend struct{}

func (b *staticBackend) Generate(ctx context.Context, req services.GenerationRequest) (*services.GeneratedImage, error) {
	return &services.GeneratedImage{Data: []byte("bytes"), MimeType: "image/jpeg"}, nil
}

func TestDownloadAndStore(t *testing.T) {
	client := &fakeFlux{}
	storage := newFakeStorage()
	service := services.NewService(newTestBackend(client), storage, client, zerolog.Nop())

	result, err := service.DownloadAndStore(context.Background(), "https://delivery.test/image.jpg", "glenn som cowboy")

	require.NoError(t, err)
	assert.Equal(t, 1, client.downloadCalls)
	assert.True(t, strings.HasPrefix(result.Filename, "glenn_glenn_som_cowboy_"))
	assert.Equal(t, "https://delivery.test/image.jpg", result.OriginalURL)
	assert.Equal(t, storage.PublicURL(result.Filename), result.PublicURL)
}

func TestDownloadAndStore_MissingParams(t *testing.T) {
	client := &fakeFlux{}
	service := services.NewService(newTestBackend(client), newFakeStorage(), client, zerolog.Nop())

	_, err := service.DownloadAndStore(context.Background(), "", "glenn som cowboy")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = service.DownloadAndStore(context.Background(), "https://delivery.test/image.jpg", "  ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, client.downloadCalls)
}

func TestListPhotos_FiltersNonImages(t *testing.T) {
	client := &fakeFlux{}
	storage := newFakeStorage()
	storage.listing = []supabase.ObjectInfo{
		{ID: "1", Name: "glenn_pirat_2025-06-01T12-00-00-000Z.jpg", Size: 1024},
		{ID: "", Name: "glenn-reference"},
		{ID: "2", Name: "notes.txt"},
		{ID: "3", Name: "glenn_kock_2025-06-01T13-00-00-000Z.png", Size: 2048},
	}
	service := services.NewService(newTestBackend(client), storage, client, zerolog.Nop())

	photos, err := service.ListPhotos(0)

	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "glenn_pirat_2025-06-01T12-00-00-000Z.jpg", photos[0].Name)
	assert.Equal(t, storage.PublicURL(photos[0].Name), photos[0].URL)
}

type fakeGemini struct {
	calls        int
	instructions []string
	refs         []gemini.ReferenceImage
}

func (g *fakeGemini) Generate(ctx context.Context, instruction string, ref gemini.ReferenceImage) (*gemini.GeneratedImage, error) {
	g.calls++
	g.instructions = append(g.instructions, instruction)
	g.refs = append(g.refs, ref)
	return &gemini.GeneratedImage{Data: []byte("generated"), MimeType: "image/png"}, nil
}

func TestReferenceBackend_EmptyFolderFailsBeforeGeneration(t *testing.T) {
	client := &fakeGemini{}
	storage := newFakeStorage()
	backend := services.NewReferenceBackend(client, storage, "glenn-reference", zerolog.Nop())

	_, err := backend.Generate(context.Background(), services.GenerationRequest{Prompt: "glenn som pirat"})

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, client.calls)
}

func TestReferenceBackend_MissingSubjectMarker(t *testing.T) {
	client := &fakeGemini{}
	storage := newFakeStorage()
	backend := services.NewReferenceBackend(client, storage, "glenn-reference", zerolog.Nop())

	_, err := backend.Generate(context.Background(), services.GenerationRequest{Prompt: "a cowboy in the desert"})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, client.calls)
}

func TestReferenceBackend_PicksReferenceAndWrapsPrompt(t *testing.T) {
	client := &fakeGemini{}
	storage := newFakeStorage()
	storage.listing = []supabase.ObjectInfo{
		{ID: "1", Name: "glenn_01.jpg"},
		{ID: "2", Name: "readme.md"},
		{ID: "3", Name: "glenn_02.png"},
	}
	storage.objects["glenn-reference/glenn_02.png"] = []byte("reference-bytes")
	backend := services.NewReferenceBackend(client, storage, "glenn-reference", zerolog.Nop())
	backend.Rand = func(n int) int { return n - 1 }

	img, err := backend.Generate(context.Background(), services.GenerationRequest{Prompt: "Glenn som kock"})

	require.NoError(t, err)
	assert.Equal(t, []byte("generated"), img.Data)
	assert.Equal(t, "image/png", img.MimeType)
	require.Equal(t, 1, client.calls)
	assert.Contains(t, client.instructions[0], "Glenn som kock")
	assert.Contains(t, client.instructions[0], "facial structure")
	assert.Equal(t, "glenn-reference/glenn_02.png", client.refs[0].Path)
	assert.Equal(t, "image/png", client.refs[0].MimeType)
	assert.Equal(t, []byte("reference-bytes"), client.refs[0].Data)
}

func TestReferenceBackend_FullPipelineStoresResult(t *testing.T) {
	client := &fakeGemini{}
	storage := newFakeStorage()
	storage.listing = []supabase.ObjectInfo{{ID: "1", Name: "glenn_01.jpg"}}
	storage.objects["glenn-reference/glenn_01.jpg"] = []byte("reference-bytes")
	backend := services.NewReferenceBackend(client, storage, "glenn-reference", zerolog.Nop())
	service := services.NewService(backend, storage, nil, zerolog.Nop())

	result, err := service.Generate(context.Background(), services.GenerationRequest{Prompt: "Glenn som trollkarl"})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Filename, "glenn_glenn_som_trollkarl_"))
	assert.True(t, strings.HasSuffix(result.Filename, ".png"))
	assert.Equal(t, []byte("generated"), storage.objects[result.Filename])
}
