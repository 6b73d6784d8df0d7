package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"glenn-svanberg-backend/internal/models"
)

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
