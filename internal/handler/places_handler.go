package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hatid-express/client-core/internal/backend"
	"github.com/hatid-express/client-core/internal/response"
)

// PlacesHandler proxies geocoding and place search to the backend, degrading
// gracefully when the backend is unreachable.
type PlacesHandler struct {
	backend backend.Client
	logger  *zap.Logger
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(client backend.Client, logger *zap.Logger) *PlacesHandler {
	return &PlacesHandler{backend: client, logger: logger}
}

// RegisterRoutes registers places routes on the given router group.
func (h *PlacesHandler) RegisterRoutes(r *gin.RouterGroup) {
	places := r.Group("/api/v1/places")
	{
		places.GET("/reverse-geocode", h.ReverseGeocode)
		places.GET("/search", h.Search)
	}
}

// ReverseGeocode handles GET /api/v1/places/reverse-geocode. A backend
// failure degrades to a failed-address label instead of an error response so
// the picker keeps working.
func (h *PlacesHandler) ReverseGeocode(c *gin.Context) {
	lat, lon, ok := parseCoords(c)
	if !ok {
		return
	}

	addr, err := h.backend.ReverseGeocode(c.Request.Context(), lat, lon)
	if err != nil {
		h.logger.Warn("reverse geocode failed", zap.Error(err))
		response.OK(c, backend.Address{Label: "Failed to get address"})
		return
	}
	response.OK(c, addr)
}

// Search handles GET /api/v1/places/search. Failures clear the result list
// rather than erroring.
func (h *PlacesHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "q is required")
		return
	}
	lat, lon, ok := parseCoords(c)
	if !ok {
		return
	}

	places, err := h.backend.SearchLocation(c.Request.Context(), query, lat, lon)
	if err != nil {
		h.logger.Warn("location search failed", zap.Error(err))
		response.OK(c, []backend.Place{})
		return
	}
	if places == nil {
		places = []backend.Place{}
	}
	response.OK(c, places)
}

func parseCoords(c *gin.Context) (float64, float64, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "lat must be a number")
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		response.BadRequest(c, "lon must be a number")
		return 0, 0, false
	}
	return lat, lon, true
}
