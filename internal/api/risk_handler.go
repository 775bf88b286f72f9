package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ikanisa/dar-ingest/internal/database"
)

// RiskHandler serves the risk read endpoint.
type RiskHandler struct {
	risks RiskReader
}

// NewRiskHandler creates a risk handler.
func NewRiskHandler(risks RiskReader) *RiskHandler {
	return &RiskHandler{risks: risks}
}

// GetListingRisk handles GET /api/v1/listings/:id/risk
func (h *RiskHandler) GetListingRisk(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	score, err := h.risks.GetByListing(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrScoreNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing has no risk score"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve risk score"})
		return
	}

	c.JSON(http.StatusOK, score)
}
