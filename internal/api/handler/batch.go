package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"minerva/internal/services/tracker"
	"minerva/internal/services/view"
)

// BatchHandler serves the batch lifecycle and read view endpoints
type BatchHandler struct {
	tracker *tracker.Service
	views   *view.Service
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(tr *tracker.Service, views *view.Service) *BatchHandler {
	return &BatchHandler{
		tracker: tr,
		views:   views,
	}
}

type createBatchRequest struct {
	Ticker string `json:"ticker" binding:"required"`
}

// CreateBatch handles POST /api/v1/batches
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	b, err := h.tracker.Create(c.Request.Context(), req.Ticker)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         b.ID,
		"ticker":     b.Ticker,
		"status":     b.Status,
		"created_at": b.CreatedAt,
	})
}

// ListBatches handles GET /api/v1/batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	views, err := h.views.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batches": views,
		"count":   len(views),
	})
}

// GetBatch handles GET /api/v1/batches/:id. It returns the flattened view;
// absent sibling records come back as nulls, not as 404s.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	v, err := h.views.GetBatchView(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}
