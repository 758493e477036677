package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hatid-express/client-core/internal/location"
	"github.com/hatid-express/client-core/internal/repository"
	"github.com/hatid-express/client-core/internal/response"
)

// LocationHandler exposes the location cache service over HTTP.
type LocationHandler struct {
	service *location.Service
	records *repository.LocationRecordStore

	// baseCtx outlives individual requests; lifecycle transitions spawn
	// refresh goroutines that must not die with the request.
	baseCtx context.Context
}

// NewLocationHandler creates a new LocationHandler. records may be nil when
// no history endpoint is wanted.
func NewLocationHandler(baseCtx context.Context, service *location.Service, records *repository.LocationRecordStore) *LocationHandler {
	return &LocationHandler{service: service, records: records, baseCtx: baseCtx}
}

// RegisterRoutes registers location routes on the given router group.
func (h *LocationHandler) RegisterRoutes(r *gin.RouterGroup) {
	loc := r.Group("/api/v1/location")
	{
		loc.GET("", h.GetLocation)
		loc.GET("/status", h.GetStatus)
		loc.POST("/refresh", h.Refresh)
		loc.DELETE("", h.ClearCache)
		loc.PATCH("/config", h.UpdateConfig)
		loc.GET("/history", h.GetHistory)
	}
	r.POST("/api/v1/lifecycle", h.Lifecycle)
}

// GetLocation handles GET /api/v1/location. Resolves through the full
// fallback chain, so it always returns a coordinate.
func (h *LocationHandler) GetLocation(c *gin.Context) {
	loc := h.service.GetLocation(c.Request.Context())
	response.OK(c, loc)
}

// locationStatus describes the cache without triggering acquisition.
type locationStatus struct {
	Cached   bool                     `json:"cached"`
	Stale    bool                     `json:"stale"`
	AgeMs    *int64                   `json:"age_ms,omitempty"`
	Location *location.CachedLocation `json:"location,omitempty"`
}

// GetStatus handles GET /api/v1/location/status.
func (h *LocationHandler) GetStatus(c *gin.Context) {
	status := locationStatus{Stale: h.service.IsStale()}
	if loc, ok := h.service.Current(); ok {
		status.Cached = true
		status.Location = &loc
	}
	if age, ok := h.service.Age(); ok {
		ms := age.Milliseconds()
		status.AgeMs = &ms
	}
	response.OK(c, status)
}

// Refresh handles POST /api/v1/location/refresh. This is the user-initiated
// path and the only one that may prompt for permission.
func (h *LocationHandler) Refresh(c *gin.Context) {
	loc, acquired, err := h.service.RefreshWithPrompt(c.Request.Context())
	if err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "location permission denied"})
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"acquired": acquired, "location": loc})
}

// ClearCache handles DELETE /api/v1/location.
func (h *LocationHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// configRequest carries durations in milliseconds, matching the cache
// policy's external representation.
type configRequest struct {
	StaleThresholdMs  *int64   `json:"staleThresholdMs"`
	MaxAgeMs          *int64   `json:"maxAgeMs"`
	UpdateIntervalMs  *int64   `json:"updateIntervalMs"`
	MinAccuracyMeters *float64 `json:"minAccuracyMeters"`
}

type configResponse struct {
	StaleThresholdMs  int64   `json:"staleThresholdMs"`
	MaxAgeMs          int64   `json:"maxAgeMs"`
	UpdateIntervalMs  int64   `json:"updateIntervalMs"`
	MinAccuracyMeters float64 `json:"minAccuracyMeters"`
}

// UpdateConfig handles PATCH /api/v1/location/config.
func (h *LocationHandler) UpdateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	patch := location.ConfigPatch{MinAccuracyMeters: req.MinAccuracyMeters}
	if req.StaleThresholdMs != nil {
		d := time.Duration(*req.StaleThresholdMs) * time.Millisecond
		patch.StaleThreshold = &d
	}
	if req.MaxAgeMs != nil {
		d := time.Duration(*req.MaxAgeMs) * time.Millisecond
		patch.MaxAge = &d
	}
	if req.UpdateIntervalMs != nil {
		d := time.Duration(*req.UpdateIntervalMs) * time.Millisecond
		patch.UpdateInterval = &d
	}

	cfg := h.service.UpdateConfig(patch)
	response.OK(c, configResponse{
		StaleThresholdMs:  cfg.StaleThreshold.Milliseconds(),
		MaxAgeMs:          cfg.MaxAge.Milliseconds(),
		UpdateIntervalMs:  cfg.UpdateInterval.Milliseconds(),
		MinAccuracyMeters: cfg.MinAccuracyMeters,
	})
}

// GetHistory handles GET /api/v1/location/history.
func (h *LocationHandler) GetHistory(c *gin.Context) {
	if h.records == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history not available"})
		return
	}
	history, err := h.records.History(c.Request.Context(), 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}

// lifecycleRequest is a foreground/background transition from the shell.
type lifecycleRequest struct {
	State string `json:"state" binding:"required"`
}

// Lifecycle handles POST /api/v1/lifecycle.
func (h *LocationHandler) Lifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	switch location.AppState(req.State) {
	case location.StateForeground, location.StateBackground:
		h.service.HandleAppState(h.baseCtx, location.AppState(req.State))
		c.Status(http.StatusAccepted)
	default:
		response.BadRequest(c, "state must be foreground or background")
	}
}
