package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aminsb/tradedesk/internal/model"
	"github.com/aminsb/tradedesk/internal/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler maps HTTP requests onto the engine operations. It stays thin:
// binding, user extraction, error-to-status translation.
type OrderHandler struct {
	orders   *service.OrderService
	holdings *service.HoldingsService
}

func NewOrderHandler(orders *service.OrderService, holdings *service.HoldingsService) *OrderHandler {
	return &OrderHandler{orders: orders, holdings: holdings}
}

// userID reads the authenticated user set by the auth middleware.
func userID(c *gin.Context) uint {
	return c.GetUint("userID")
}

func respondError(c *gin.Context, err error) {
	var ve *model.ValidationError
	var ee *model.ExecutionError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
	case errors.Is(err, model.ErrOrderNotFound), errors.Is(err, model.ErrConnectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &ee):
		c.JSON(http.StatusBadGateway, gin.H{"error": ee.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func bindOrderRequest(c *gin.Context) (*model.OrderRequest, bool) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &req, true
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), req, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) PlaceManualOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}
	order, err := h.orders.PlaceManualOrder(c.Request.Context(), req, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) PreviewOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}
	preview, err := h.orders.PreviewOrder(c.Request.Context(), req, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *OrderHandler) PreviewManualOrder(c *gin.Context) {
	req, ok := bindOrderRequest(c)
	if !ok {
		return
	}
	preview, err := h.orders.PreviewManualOrder(c.Request.Context(), req, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, cancelErr := h.orders.CancelOrder(c.Request.Context(), uint(orderID), userID(c))
	if cancelErr != nil {
		respondError(c, cancelErr)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters model.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orders, err := h.orders.GetOrders(c.Request.Context(), userID(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, getErr := h.orders.GetOrder(c.Request.Context(), userID(c), uint(orderID))
	if getErr != nil {
		respondError(c, getErr)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetHoldingsByCoin(c *gin.Context) {
	coinID, err := strconv.ParseUint(c.Param("coinId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coin id"})
		return
	}
	snapshot, holdErr := h.holdings.GetHoldingsByCoin(c.Request.Context(), userID(c), uint(coinID))
	if holdErr != nil {
		respondError(c, holdErr)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
