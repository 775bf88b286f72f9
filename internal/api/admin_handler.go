package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/review"
)

// OverrideRequest is the body for POST /api/v1/admin/overrides.
type OverrideRequest struct {
	ListingID  string  `json:"listing_id"  binding:"required"`
	Decision   string  `json:"decision"    binding:"required"`
	ReviewedBy string  `json:"reviewed_by" binding:"required"`
	Notes      *string `json:"notes"`
}

// AdminHandler serves admin override requests.
type AdminHandler struct {
	overrides OverrideApplier
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(overrides OverrideApplier) *AdminHandler {
	return &AdminHandler{overrides: overrides}
}

// PostOverride handles POST /api/v1/admin/overrides
func (h *AdminHandler) PostOverride(c *gin.Context) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	score, err := h.overrides.Apply(c.Request.Context(), review.Override{
		ListingID:  req.ListingID,
		Decision:   req.Decision,
		ReviewedBy: req.ReviewedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "unknown override decision"):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, database.ErrListingNotFound), errors.Is(err, database.ErrScoreNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply override"})
		}
		return
	}

	c.JSON(http.StatusOK, score)
}
