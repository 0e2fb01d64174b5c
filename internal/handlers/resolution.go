package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/givestack/donorid/pkg/resolution"
	"github.com/givestack/donorid/pkg/utils"
)

// ResolutionHandler serves the human review queue
type ResolutionHandler struct {
	queue    *resolution.Queue
	resolver *resolution.Resolver
	logger   ectologger.Logger
}

// NewResolutionHandler creates a new resolution handler
func NewResolutionHandler(queue *resolution.Queue, resolver *resolution.Resolver, logger ectologger.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		queue:    queue,
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterRoutes registers the resolution queue routes
func (h *ResolutionHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("/resolve", h.Resolve)
}

// ResolveRequest is a reviewer decision on a pending donation
type ResolveRequest struct {
	DonationID  int64  `json:"donationId" validate:"required,gt=0"`
	Action      string `json:"action" validate:"required"`
	CandidateID *int64 `json:"candidateId"`
}

// ResolveResponse reports the donor the donation was attributed to
type ResolveResponse struct {
	DonationID int64 `json:"donationId"`
	DonorID    int64 `json:"donorId"`
}

// List returns the resolution queue
// GET /api/v1/resolution-queue
func (h *ResolutionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	entries, err := h.queue.ListPending(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entries)
}

// Resolve applies a reviewer decision
// POST /api/v1/resolution-queue/resolve
func (h *ResolutionHandler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := utils.Validate(req); err != nil {
		return BadRequest(err.Error())
	}

	donorID, err := h.resolver.Resolve(ctx, req.DonationID, resolution.Action(req.Action), req.CandidateID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ResolveResponse{
		DonationID: req.DonationID,
		DonorID:    donorID,
	})
}
