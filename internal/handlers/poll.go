package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/flux"
	"glenn-svanberg-backend/internal/models"
	"glenn-svanberg-backend/internal/progress"
)

type Poller interface {
	Poll(ctx context.Context, requestID, pollingURL string) (*flux.PollResult, error)
}

type PollHandler struct {
	flux Poller
}

func NewPollHandler(fluxClient Poller) *PollHandler {
	return &PollHandler{flux: fluxClient}
}

// Poll handles GET /api/poll-image. The client passes the job handle from
// the submit step; an optional elapsedMs lets in-flight responses carry a
// simulated progress percentage for the UI.
func (h *PollHandler) Poll(c *gin.Context) {
	requestID := c.Query("requestId")
	pollingURL := c.Query("pollingUrl")
	if requestID == "" || pollingURL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "requestId and pollingUrl are required"})
		return
	}

	result, err := h.flux.Poll(c.Request.Context(), requestID, pollingURL)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	switch result.Status {
	case flux.StatusReady:
		c.JSON(http.StatusOK, models.PollResponse{Status: flux.StatusReady, ImageURL: result.ImageURL})
	case flux.StatusError:
		c.JSON(http.StatusInternalServerError, models.PollResponse{Status: flux.StatusError, Error: result.Error})
	default:
		resp := models.PollResponse{Status: result.Status}
		if elapsedMs, err := strconv.ParseInt(c.Query("elapsedMs"), 10, 64); err == nil && elapsedMs > 0 {
			percent := progress.Percent(time.Duration(elapsedMs) * time.Millisecond)
			resp.Progress = &percent
		}
		c.JSON(http.StatusOK, resp)
	}
}
