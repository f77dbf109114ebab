package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"minerva/internal/domain/agentresult"
	"minerva/internal/domain/backtest"
	"minerva/internal/domain/patent"
	"minerva/internal/services/sink"
	"minerva/internal/services/tracker"
	"minerva/pkg/errors"
)

// ResultHandler accepts agent outputs over HTTP. Structured sibling records
// (backtest metrics, patent findings) ride along with the raw payload and
// land in their own tables.
type ResultHandler struct {
	tracker   *tracker.Service
	sink      *sink.Service
	backtests backtest.Repository
	patents   patent.Repository
}

// NewResultHandler creates a new result handler
func NewResultHandler(tr *tracker.Service, sk *sink.Service, backtests backtest.Repository, patents patent.Repository) *ResultHandler {
	return &ResultHandler{
		tracker:   tr,
		sink:      sk,
		backtests: backtests,
		patents:   patents,
	}
}

type submitResultRequest struct {
	AgentType string          `json:"agent_type" binding:"required"`
	Status    string          `json:"status" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`

	// Optional structured records, honored for the matching agent type
	Backtest *backtestRecordRequest `json:"backtest"`
	Patent   *patentInsightRequest  `json:"patent"`
}

type backtestRecordRequest struct {
	Alpha       decimal.Decimal `json:"alpha"`
	BetaMarket  decimal.Decimal `json:"beta_market"`
	BetaSize    decimal.Decimal `json:"beta_size"`
	BetaValue   decimal.Decimal `json:"beta_value"`
	SharpeRatio decimal.Decimal `json:"sharpe_ratio"`
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`
	Chart       json.RawMessage `json:"chart"`
}

type patentInsightRequest struct {
	Summary     json.RawMessage `json:"summary"`
	PatentCount int             `json:"patent_count"`
}

// SubmitResult handles POST /api/v1/batches/:id/results
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	h.submit(c, false)
}

// CorrectResult handles PATCH /api/v1/batches/:id/results/:agent_type, the
// explicit overwrite path for finalized results.
func (h *ResultHandler) CorrectResult(c *gin.Context) {
	h.submit(c, true)
}

func (h *ResultHandler) submit(c *gin.Context, force bool) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_type and status are required"})
		return
	}
	if force {
		// The correction route carries the agent type in the path
		req.AgentType = c.Param("agent_type")
	}

	ctx := c.Request.Context()

	// Resolve the batch up front so unknown ids read as 404 rather than as a
	// foreign key violation, and so sibling records get the ticker.
	b, err := h.tracker.Get(ctx, batchID)
	if err != nil {
		respondError(c, err)
		return
	}

	params := sink.SubmitParams{
		BatchID:   batchID,
		AgentType: agentresult.AgentType(req.AgentType),
		Status:    agentresult.Status(req.Status),
		Payload:   req.Payload,
		Error:     req.Error,
	}

	var r *agentresult.Result
	if force {
		r, err = h.sink.Resubmit(ctx, params)
	} else {
		r, err = h.sink.Submit(ctx, params)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.storeSidecars(c, b.Ticker, &req, r); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id":   r.BatchID,
		"agent_type": r.AgentType,
		"status":     r.Status,
	})
}

// storeSidecars persists the structured records that accompany certain
// agent submissions. Duplicate inserts are tolerated: the raw result row is
// already the idempotency anchor.
func (h *ResultHandler) storeSidecars(c *gin.Context, ticker string, req *submitResultRequest, r *agentresult.Result) error {
	ctx := c.Request.Context()

	if req.Backtest != nil && r.AgentType == agentresult.AgentBacktest && r.Status == agentresult.StatusFinished {
		rec := &backtest.Record{
			ID:          uuid.New(),
			BatchID:     r.BatchID,
			Ticker:      ticker,
			Alpha:       req.Backtest.Alpha,
			BetaMarket:  req.Backtest.BetaMarket,
			BetaSize:    req.Backtest.BetaSize,
			BetaValue:   req.Backtest.BetaValue,
			SharpeRatio: req.Backtest.SharpeRatio,
			MaxDrawdown: req.Backtest.MaxDrawdown,
			Chart:       req.Backtest.Chart,
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.backtests.Create(ctx, rec); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return err
		}
	}

	if req.Patent != nil && r.AgentType == agentresult.AgentPatent && r.Status == agentresult.StatusFinished {
		ins := &patent.Insight{
			ID:          uuid.New(),
			BatchID:     r.BatchID,
			Ticker:      ticker,
			Summary:     req.Patent.Summary,
			PatentCount: req.Patent.PatentCount,
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.patents.Create(ctx, ins); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return err
		}
	}

	return nil
}

type putAnalysisRequest struct {
	Analysis json.RawMessage `json:"analysis" binding:"required"`
}

// PutBacktestAnalysis handles PUT /api/v1/batches/:id/backtest/analysis.
// The qualitative writer reports independently of the quantitative insert;
// until it does, ai_analysis stays null.
func (h *ResultHandler) PutBacktestAnalysis(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req putAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "analysis is required"})
		return
	}

	if err := h.backtests.SetAnalysis(c.Request.Context(), batchID, req.Analysis); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "analyzed": true})
}
