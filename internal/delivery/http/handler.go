package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/pricetracker/backend/internal/infrastructure/feed"
	"github.com/pricetracker/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	aggregator *usecase.GroupAggregator
}

// NewHandler creates a new HTTP handler
func NewHandler(aggregator *usecase.GroupAggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// NormalizeRequest is the body of POST /api/v1/normalize
type NormalizeRequest struct {
	Category string `json:"category" binding:"required"`
	Title    string `json:"title" binding:"required"`
}

// CompareRequest is the body of POST /api/v1/compare
type CompareRequest struct {
	Category string `json:"category" binding:"required"`
	TitleA   string `json:"title_a" binding:"required"`
	TitleB   string `json:"title_b" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricetracker-grouper",
		"version": "1.0.0",
	})
}

// Ingest stores and groups a scraped batch posted in feed format.
// ?derive_ids=true fills missing ids from website and URL.
func (h *Handler) Ingest(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	records, err := feed.Decode(c.Request.Body, feed.Options{DeriveIDs: c.Query("derive_ids") == "true"})
	if err != nil {
		h.handleError(c, err)
		return
	}

	stats, err := h.aggregator.Ingest(c.Request.Context(), records)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Regroup re-runs grouping over stored products, optionally of one ?category=
func (h *Handler) Regroup(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	stats, err := h.aggregator.Regroup(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RecomputeAggregates refreshes starting prices and images of every group
func (h *Handler) RecomputeAggregates(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	stats, err := h.aggregator.RecomputeAggregates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Normalize returns the spec a title normalizes to
func (h *Handler) Normalize(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category and title are required"})
		return
	}

	spec, err := h.aggregator.Normalize(req.Category, req.Title)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, spec)
}

// Compare returns the grouping decision for two titles
func (h *Handler) Compare(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category, title_a and title_b are required"})
		return
	}

	decision, err := h.aggregator.Compare(req.Category, req.TitleA, req.TitleB)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.aggregator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "grouping service not configured"})
		return false
	}
	return true
}

// handleError maps domain errors to HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownCategory):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] Request %s failed: %v", GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
