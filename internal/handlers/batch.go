package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/givestack/donorid/pkg/matching"
	"github.com/givestack/donorid/pkg/utils"
)

// BatchHandler triggers batch resolution runs
type BatchHandler struct {
	resolver *matching.BatchResolver
	logger   ectologger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(resolver *matching.BatchResolver, logger ectologger.Logger) *BatchHandler {
	return &BatchHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterRoutes registers the batch routes
func (h *BatchHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/resolve", h.Resolve)
}

// BatchResolveRequest runs the matcher over every unattributed donation in
// the given batches
type BatchResolveRequest struct {
	BatchIDs []int64 `json:"batchIds" validate:"required,min=1,dive,gt=0"`
}

// Resolve runs a batch resolution pass
// POST /api/v1/batches/resolve
func (h *BatchHandler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	var req BatchResolveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := utils.Validate(req); err != nil {
		return BadRequest(err.Error())
	}

	summary, err := h.resolver.ResolveBatches(ctx, req.BatchIDs)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}
