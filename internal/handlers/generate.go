package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/config"
	"glenn-svanberg-backend/internal/flux"
	"glenn-svanberg-backend/internal/models"
	"glenn-svanberg-backend/internal/services"
)

// Submitter is the slice of the flux client the generate handler uses in
// polling mode.
type Submitter interface {
	Submit(ctx context.Context, userPrompt string, params flux.GenerationParams) (*flux.Job, error)
}

// Pipeline is the slice of the generation service the handlers use.
type Pipeline interface {
	Generate(ctx context.Context, req services.GenerationRequest) (*services.StoredResult, error)
	DownloadAndStore(ctx context.Context, imageURL, userPrompt string) (*services.StoredResult, error)
	ListPhotos(limit int) ([]services.Photo, error)
}

type GenerateHandler struct {
	mode    string
	flux    Submitter
	service Pipeline
}

func NewGenerateHandler(mode string, fluxClient Submitter, service Pipeline) *GenerateHandler {
	return &GenerateHandler{
		mode:    mode,
		flux:    fluxClient,
		service: service,
	}
}

// Generate handles POST /api/generate-image. In flux mode it submits the job
// and returns the handle for the client-driven poll loop; in gemini mode it
// runs the whole pipeline and returns the stored image's URL.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req models.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	if h.mode == config.BackendGemini {
		result, err := h.service.Generate(c.Request.Context(), services.GenerationRequest{Prompt: req.Prompt})
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, models.GenerateResponse{
			Success:     true,
			SupabaseURL: result.PublicURL,
			Filename:    result.Filename,
		})
		return
	}

	job, err := h.flux.Submit(c.Request.Context(), req.Prompt, flux.GenerationParams{
		FinetuneID:       req.FinetuneID,
		FinetuneStrength: req.FinetuneStrength,
		AspectRatio:      req.AspectRatio,
		Steps:            req.Steps,
		Guidance:         req.Guidance,
		SafetyTolerance:  req.SafetyTolerance,
		Seed:             req.Seed,
	})
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SubmitResponse{
		Success:    true,
		RequestID:  job.RequestID,
		PollingURL: job.PollingURL,
	})
}
