package controllers

import (
	"io"
	"net/http"

	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/middleware"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookSignatureHeader carries the shared secret configured on the Flutterwave dashboard.
const WebhookSignatureHeader = "verif-hash"

const maxWebhookBody = 1 << 20

type InitiatePaymentRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	Phone           string                 `json:"phone" binding:"required"`
}

type PaymentController struct {
	svc    services.CheckoutService
	logger *zap.Logger
}

func NewPaymentController(svc services.CheckoutService, logger *zap.Logger) *PaymentController {
	return &PaymentController{svc: svc, logger: logger}
}

// InitiatePayment turns the caller's cart into a pending order and returns the hosted payment link.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A complete shipping address and phone number are required")
		return
	}

	result, err := pc.svc.Initiate(c.Request.Context(), middleware.UserID(c), services.InitiateInput{
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
	})
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Payment initialized successfully",
		"payment_url": result.PaymentURL,
		"reference":   result.Reference,
		"order_id":    result.OrderID,
	})
}

func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	order, err := pc.svc.Verify(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment verified successfully", "order": order})
}

func (pc *PaymentController) GetUserOrders(c *gin.Context) {
	orders, err := pc.svc.ListOrders(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (pc *PaymentController) GetOrder(c *gin.Context) {
	order, err := pc.svc.GetOrder(c.Request.Context(), middleware.UserID(c), c.Param("orderId"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// FlutterwaveWebhook receives charge notifications. Deliveries that pass the signature check
// are acknowledged with 200 unless the order is unknown, so the gateway stops retrying.
// An unreadable or oversized body is handed on empty: the signature still decides
// between 401 and an acknowledgement.
func (pc *PaymentController) FlutterwaveWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.WithRequest(c, pc.logger).Warn("Webhook body could not be read", zap.Error(err))
		body = nil
	}

	ack, err := pc.svc.HandleWebhook(c.Request.Context(), c.GetHeader(WebhookSignatureHeader), body)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}

	logger.WithRequest(c, pc.logger).Info("Webhook acknowledged",
		zap.Bool("processed", ack.Processed),
		zap.String("reason", ack.Reason),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
