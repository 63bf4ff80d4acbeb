package router

import (
	"net/http"
	"strconv"

	"github.com/aminsb/tradedesk/internal/handler"
	"github.com/gin-gonic/gin"
)

type Config struct {
	OrderHandler *handler.OrderHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")
	api.Use(requireUser())
	registerOrderRoutes(api, cfg.OrderHandler)

	return router
}

// requireUser extracts the acting user from the X-User-ID header set by the
// upstream auth layer. Session management itself lives outside this service.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
			return
		}
		c.Set("userID", uint(id))
		c.Next()
	}
}
