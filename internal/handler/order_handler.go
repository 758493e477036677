package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hatid-express/client-core/internal/application"
	"github.com/hatid-express/client-core/internal/response"
)

// OrderHandler handles order submission and retrieval.
type OrderHandler struct {
	orders  *application.OrderService
	session *application.SessionService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *application.OrderService, session *application.SessionService) *OrderHandler {
	return &OrderHandler{orders: orders, session: session}
}

// RegisterRoutes registers order routes on the given router group.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/api/v1/orders")
	{
		orders.POST("", h.SubmitOrder)
		orders.GET("", h.ListOrders)
		orders.POST("/:id/cancel", h.CancelOrder)
	}
}

// SubmitOrder handles POST /api/v1/orders. The draft is validated here, not
// in the order service; an in-flight submission is rejected rather than
// queued.
func (h *OrderHandler) SubmitOrder(c *gin.Context) {
	if h.orders.Loading() {
		c.JSON(http.StatusConflict, gin.H{"error": "a submission is already in progress"})
		return
	}
	if err := h.orders.ValidateDraft(); err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.orders.Submit(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListOrders handles GET /api/v1/orders for the stored session's user.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, err := h.session.UserID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no stored session"})
		return
	}

	deliveries, err := h.orders.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, deliveries)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid delivery ID")
		return
	}

	updated, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}
