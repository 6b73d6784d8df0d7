package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/models"
)

type StoreHandler struct {
	service Pipeline
}

func NewStoreHandler(service Pipeline) *StoreHandler {
	return &StoreHandler{service: service}
}

// Store handles POST /api/download-and-store: the client hands over the
// provider-hosted image URL and the prompt; the server downloads the image
// and persists it under a prompt-derived filename.
func (h *StoreHandler) Store(c *gin.Context) {
	var req models.StoreImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.service.DownloadAndStore(c.Request.Context(), req.ImageURL, req.Prompt)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.StoreResponse{
		Success:     true,
		Filename:    result.Filename,
		SupabaseURL: result.PublicURL,
		OriginalURL: result.OriginalURL,
	})
}
