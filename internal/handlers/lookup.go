package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/givestack/donorid/pkg/dedup"
	"github.com/givestack/donorid/pkg/utils"
)

// LookupHandler serves ad-hoc duplicate checks before a donor save
type LookupHandler struct {
	lookup *dedup.Lookup
	logger ectologger.Logger
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(lookup *dedup.Lookup, logger ectologger.Logger) *LookupHandler {
	return &LookupHandler{
		lookup: lookup,
		logger: logger,
	}
}

// RegisterRoutes registers the lookup routes
func (h *LookupHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/duplicates", h.Duplicates)
}

// DuplicateLookupRequest ranks existing donors against these fields
type DuplicateLookupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Limit     int    `json:"limit" validate:"gte=0,lte=100"`
}

// Duplicates returns ranked potential duplicates for the submitted fields
// POST /api/v1/lookup/duplicates
func (h *LookupHandler) Duplicates(c echo.Context) error {
	ctx := c.Request().Context()

	var req DuplicateLookupRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := utils.Validate(req); err != nil {
		return BadRequest(err.Error())
	}
	if req.FirstName == "" && req.LastName == "" && req.Email == "" && req.Address == "" {
		return BadRequest("at least one of firstName, lastName, email, address is required")
	}

	matches, err := h.lookup.FindDuplicates(ctx, dedup.LookupQuery{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Address:   req.Address,
		Limit:     req.Limit,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, matches)
}
