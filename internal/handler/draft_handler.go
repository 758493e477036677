package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hatid-express/client-core/internal/application"
	"github.com/hatid-express/client-core/internal/response"
	"github.com/hatid-express/client-core/internal/store"
)

// DraftHandler exposes the delivery draft and the pickup/dropoff selections.
type DraftHandler struct {
	delivery   *store.DeliveryStore
	selections *store.SelectionStore
	routes     *application.RouteService
	quotes     *application.QuoteService
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(
	delivery *store.DeliveryStore,
	selections *store.SelectionStore,
	routes *application.RouteService,
	quotes *application.QuoteService,
) *DraftHandler {
	return &DraftHandler{
		delivery:   delivery,
		selections: selections,
		routes:     routes,
		quotes:     quotes,
	}
}

// RegisterRoutes registers draft routes on the given router group.
func (h *DraftHandler) RegisterRoutes(r *gin.RouterGroup) {
	draft := r.Group("/api/v1/draft")
	{
		draft.GET("", h.GetDraft)
		draft.PATCH("", h.PatchDraft)
		draft.GET("/quote", h.GetQuote)
		draft.GET("/route", h.GetRoute)
		draft.POST("/route", h.RequestRoute)
		draft.POST("/pickup", h.SetPickup)
		draft.POST("/dropoff", h.SetDropoff)
	}
}

// GetDraft handles GET /api/v1/draft.
func (h *DraftHandler) GetDraft(c *gin.Context) {
	response.OK(c, h.delivery.Snapshot())
}

// draftPatchRequest wraps the store patch. The outer ParcelAmount shadows
// the embedded one so the amount can arrive as a form string; an
// unparseable value becomes 0 rather than a request error.
type draftPatchRequest struct {
	store.Patch
	ParcelAmount *string `json:"parcel_amount"`
}

// PatchDraft handles PATCH /api/v1/draft. Tip and compensation changes go
// through the debounced repricing path; coordinate changes schedule a route
// lookup once both endpoints are set.
func (h *DraftHandler) PatchDraft(c *gin.Context) {
	var req draftPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req.ParcelAmount != nil {
		amount, err := strconv.ParseFloat(*req.ParcelAmount, 64)
		if err != nil {
			amount = 0
		}
		req.Patch.ParcelAmount = &amount
	}

	draft := h.delivery.Apply(req.Patch)

	if req.Tip != nil || req.AdditionalCompensation != nil {
		h.quotes.Recompute()
	}
	if coordsChanged(req.Patch) {
		h.maybeRequestRoute(draft)
	}

	response.OK(c, draft)
}

// GetQuote handles GET /api/v1/draft/quote.
func (h *DraftHandler) GetQuote(c *gin.Context) {
	response.OK(c, h.quotes.RecomputeNow())
}

// GetRoute handles GET /api/v1/draft/route.
func (h *DraftHandler) GetRoute(c *gin.Context) {
	response.OK(c, h.routes.Status())
}

// RequestRoute handles POST /api/v1/draft/route. Uses the draft's current
// endpoints.
func (h *DraftHandler) RequestRoute(c *gin.Context) {
	draft := h.delivery.Snapshot()
	if draft.PickupLat == nil || draft.PickupLong == nil || draft.DropoffLat == nil || draft.DropoffLong == nil {
		response.BadRequest(c, "both pickup and dropoff coordinates are required")
		return
	}
	status := h.routes.RequestRoute(application.RouteKey{
		PickupLat:  *draft.PickupLat,
		PickupLon:  *draft.PickupLong,
		DropoffLat: *draft.DropoffLat,
		DropoffLon: *draft.DropoffLong,
	})
	response.OK(c, status)
}

// SetPickup handles POST /api/v1/draft/pickup.
func (h *DraftHandler) SetPickup(c *gin.Context) {
	h.setSelection(c, true)
}

// SetDropoff handles POST /api/v1/draft/dropoff.
func (h *DraftHandler) SetDropoff(c *gin.Context) {
	h.setSelection(c, false)
}

func (h *DraftHandler) setSelection(c *gin.Context, pickup bool) {
	var req store.SelectionPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var sel store.Selection
	patch := store.Patch{}
	if pickup {
		sel = h.selections.SetPickup(req)
		patch.PickupAddress = &sel.Address
		patch.PickupCity = &sel.City
		patch.PickupLat = &sel.Lat
		patch.PickupLong = &sel.Lon
	} else {
		sel = h.selections.SetDropoff(req)
		patch.DropoffAddress = &sel.Address
		patch.DropoffCity = &sel.City
		patch.DropoffLat = &sel.Lat
		patch.DropoffLong = &sel.Lon
	}

	draft := h.delivery.Apply(patch)
	h.maybeRequestRoute(draft)

	response.OK(c, sel)
}

func (h *DraftHandler) maybeRequestRoute(draft store.Draft) {
	if draft.PickupLat == nil || draft.PickupLong == nil || draft.DropoffLat == nil || draft.DropoffLong == nil {
		return
	}
	h.routes.RequestRoute(application.RouteKey{
		PickupLat:  *draft.PickupLat,
		PickupLon:  *draft.PickupLong,
		DropoffLat: *draft.DropoffLat,
		DropoffLon: *draft.DropoffLong,
	})
}

func coordsChanged(p store.Patch) bool {
	return p.PickupLat != nil || p.PickupLong != nil || p.DropoffLat != nil || p.DropoffLong != nil
}
