package services

import (
	"context"
	"math/rand"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/gemini"
	"glenn-svanberg-backend/internal/prompt"
)

var imageFilePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

func isImageFile(name string) bool {
	return imageFilePattern.MatchString(name)
}

// GeminiAPI is the slice of the gemini client the reference backend uses.
type GeminiAPI interface {
	Generate(ctx context.Context, instruction string, ref gemini.ReferenceImage) (*gemini.GeneratedImage, error)
}

// ReferenceBackend implements the synchronous identity-preserving strategy:
// pick a random reference photo of the subject, wrap the prompt in the
// hidden instruction, and make a single multimodal generation call.
type ReferenceBackend struct {
	client  GeminiAPI
	storage Storage
	folder  string
	logger  zerolog.Logger

	// Rand picks the reference index; injectable for deterministic tests.
	Rand func(n int) int
}

func NewReferenceBackend(client GeminiAPI, storage Storage, folder string, logger zerolog.Logger) *ReferenceBackend {
	return &ReferenceBackend{
		client:  client,
		storage: storage,
		folder:  folder,
		logger:  logger,
		Rand:    rand.Intn,
	}
}

func (b *ReferenceBackend) Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error) {
	if !prompt.ContainsSubjectMarker(req.Prompt) {
		return nil, apperr.Validation("prompt must mention Glenn")
	}

	ref, err := b.pickReferenceImage()
	if err != nil {
		return nil, err
	}

	instruction := prompt.BuildHiddenInstruction(req.Prompt)

	img, err := b.client.Generate(ctx, instruction, *ref)
	if err != nil {
		return nil, err
	}

	return &GeneratedImage{Data: img.Data, MimeType: img.MimeType}, nil
}

// pickReferenceImage selects one photo uniformly at random from the
// reference folder and downloads its bytes.
func (b *ReferenceBackend) pickReferenceImage() (*gemini.ReferenceImage, error) {
	objects, err := b.storage.List(b.folder, 1000)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if isImageFile(obj.Name) {
			candidates = append(candidates, obj.Name)
		}
	}
	if len(candidates) == 0 {
		return nil, apperr.NotFound("no reference images found in %s", b.folder)
	}

	name := candidates[b.Rand(len(candidates))]
	key := path.Join(b.folder, name)

	data, err := b.storage.Download(key)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().Str("reference", key).Msg("selected reference image")

	return &gemini.ReferenceImage{
		Path:     key,
		Data:     data,
		MimeType: mimeForExtension(name),
	}, nil
}

func mimeForExtension(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
