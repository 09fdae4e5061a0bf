package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/service"
)

// NewCommandRouter builds the write-side API.
func NewCommandRouter(svc *service.CommandService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	api := r.Group("/api")
	{
		api.POST("/products", createProductHandler(svc, log))
		api.POST("/orders", createOrderHandler(svc, log))
	}
	return r
}

type createProductReq struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Stock    int64  `json:"stock"`
}

func createProductHandler(svc *service.CommandService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		id, err := svc.CreateProduct(c, req.Name, req.Category, price, req.Stock)
		if err != nil {
			log.Errorf("create product: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"productId": id})
	}
}

type orderItemReq struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
	Price     string `json:"price" binding:"required"`
}

type createOrderReq struct {
	CustomerID uint64         `json:"customerId" binding:"required"`
	Items      []orderItemReq `json:"items" binding:"required"`
}

func createOrderHandler(svc *service.CommandService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		items := make([]service.OrderItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			price, err := decimal.NewFromString(it.Price)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item price"})
				return
			}
			items = append(items, service.OrderItemInput{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     price,
			})
		}
		id, err := svc.CreateOrder(c, req.CustomerID, items)
		if err == service.ErrNoItems || err == service.ErrInvalidItem {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			log.Errorf("create order: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"orderId": id})
	}
}
