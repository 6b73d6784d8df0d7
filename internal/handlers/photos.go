package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/models"
)

type PhotosHandler struct {
	service Pipeline
}

func NewPhotosHandler(service Pipeline) *PhotosHandler {
	return &PhotosHandler{service: service}
}

// List handles GET /api/photos: the gallery listing, newest first.
func (h *PhotosHandler) List(c *gin.Context) {
	limit := 100
	if parsed, err := strconv.Atoi(c.Query("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	photos, err := h.service.ListPhotos(limit)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	resp := models.PhotosResponse{Photos: make([]models.PhotoResponse, 0, len(photos))}
	for _, photo := range photos {
		resp.Photos = append(resp.Photos, models.PhotoResponse{
			ID:        photo.ID,
			Name:      photo.Name,
			URL:       photo.URL,
			FullPath:  photo.Name,
			CreatedAt: photo.CreatedAt,
			UpdatedAt: photo.UpdatedAt,
			Size:      photo.Size,
			MimeType:  photo.MimeType,
		})
	}

	c.JSON(http.StatusOK, resp)
}
