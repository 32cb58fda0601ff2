package controllers

import (
	"net/http"

	"github.com/Dayvhiid/Simple-E-commerce-API/middleware"
	"github.com/Dayvhiid/Simple-E-commerce-API/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity"`
}

type UpdateCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CartController struct {
	svc    services.CartService
	logger *zap.Logger
}

func NewCartController(svc services.CartService, logger *zap.Logger) *CartController {
	return &CartController{svc: svc, logger: logger}
}

func (cc *CartController) GetCart(c *gin.Context) {
	cart, err := cc.svc.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (cc *CartController) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "product_id is required")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := cc.svc.AddItem(c.Request.Context(), middleware.UserID(c), req.ProductID, quantity); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item added to cart successfully"})
}

func (cc *CartController) UpdateCartItem(c *gin.Context) {
	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "product_id is required")
		return
	}

	if err := cc.svc.UpdateItem(c.Request.Context(), middleware.UserID(c), req.ProductID, req.Quantity); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart item updated successfully"})
}

func (cc *CartController) RemoveFromCart(c *gin.Context) {
	if err := cc.svc.RemoveItem(c.Request.Context(), middleware.UserID(c), c.Param("productId")); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart successfully"})
}

func (cc *CartController) ClearCart(c *gin.Context) {
	if err := cc.svc.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared successfully"})
}
