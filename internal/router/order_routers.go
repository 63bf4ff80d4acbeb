package router

import (
	"github.com/aminsb/tradedesk/internal/handler"
	"github.com/gin-gonic/gin"
)

func registerOrderRoutes(router *gin.RouterGroup, orderHandler *handler.OrderHandler) {
	orders := router.Group("/orders")
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.POST("/preview", orderHandler.PreviewOrder)
		orders.POST("/manual", orderHandler.PlaceManualOrder)
		orders.POST("/manual/preview", orderHandler.PreviewManualOrder)
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.DELETE("/:id", orderHandler.CancelOrder)
	}

	holdings := router.Group("/holdings")
	{
		holdings.GET("/coins/:coinId", orderHandler.GetHoldingsByCoin)
	}
}
