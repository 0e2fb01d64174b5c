package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/givestack/donorid/pkg/dedup"
	"github.com/givestack/donorid/pkg/utils"
)

// DedupHandler serves duplicate scanning and merging
type DedupHandler struct {
	scanner *dedup.Scanner
	merger  *dedup.Merger
	logger  ectologger.Logger
}

// NewDedupHandler creates a new dedup handler
func NewDedupHandler(scanner *dedup.Scanner, merger *dedup.Merger, logger ectologger.Logger) *DedupHandler {
	return &DedupHandler{
		scanner: scanner,
		merger:  merger,
		logger:  logger,
	}
}

// RegisterRoutes registers the dedup routes
func (h *DedupHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/scan", h.Scan)
	g.POST("/merge", h.Merge)
}

// MergeRequest folds secondary donors into a primary
type MergeRequest struct {
	PrimaryDonorID    int64   `json:"primaryDonorId" validate:"required,gt=0"`
	SecondaryDonorIDs []int64 `json:"secondaryDonorIds" validate:"dive,gt=0"`
}

// MergeResponse reports how many donors were merged
type MergeResponse struct {
	PrimaryDonorID int64 `json:"primaryDonorId"`
	Merged         int   `json:"merged"`
}

// Scan returns groups of donors that look like duplicates
// GET /api/v1/deduplicate/scan
func (h *DedupHandler) Scan(c echo.Context) error {
	ctx := c.Request().Context()

	groups, err := h.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, groups)
}

// Merge folds the secondary donors into the primary
// POST /api/v1/deduplicate/merge
func (h *DedupHandler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := utils.Validate(req); err != nil {
		return BadRequest(err.Error())
	}

	if err := h.merger.Merge(ctx, req.PrimaryDonorID, req.SecondaryDonorIDs); err != nil {
		return err
	}

	return SuccessResponse(c, MergeResponse{
		PrimaryDonorID: req.PrimaryDonorID,
		Merged:         len(req.SecondaryDonorIDs),
	})
}
