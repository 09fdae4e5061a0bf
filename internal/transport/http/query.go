package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richardliu001/ecommerce-analytics/internal/service"
)

// NewQueryRouter builds the analytics read API. View reads never 404: an
// absent key means no activity yet and returns zeroed stats.
func NewQueryRouter(svc *service.QueryService, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	api := r.Group("/api/analytics")
	{
		api.GET("/products/:id", productSalesHandler(svc, log))
		api.GET("/categories/:category", categoryRevenueHandler(svc, log))
		api.GET("/customers/:id", customerLTVHandler(svc, log))
		api.GET("/sync-status", syncStatusHandler(svc, log))
	}
	return r
}

func productSalesHandler(svc *service.QueryService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		stats, err := svc.ProductSales(c, id)
		if err != nil {
			log.Errorf("product sales %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func categoryRevenueHandler(svc *service.QueryService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Param("category")
		stats, err := svc.CategoryRevenue(c, category)
		if err != nil {
			log.Errorf("category revenue %s: %v", category, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func customerLTVHandler(svc *service.QueryService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
			return
		}
		stats, err := svc.CustomerLTV(c, id)
		if err != nil {
			log.Errorf("customer ltv %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func syncStatusHandler(svc *service.QueryService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.SyncStatus(c)
		if err != nil {
			log.Errorf("sync status: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
