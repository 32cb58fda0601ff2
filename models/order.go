package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	// PaymentCancelled is accepted when reading stored orders; nothing sets it.
	PaymentCancelled PaymentStatus = "cancelled"
)

// OrderItem snapshots a cart line at checkout time, price included.
type OrderItem struct {
	ProductID primitive.ObjectID `json:"product_id" bson:"product_id"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	Price     float64            `json:"price" bson:"price"`
}

type ShippingAddress struct {
	Street  string `json:"street" bson:"street" binding:"required"`
	City    string `json:"city" bson:"city" binding:"required"`
	State   string `json:"state" bson:"state" binding:"required"`
	Country string `json:"country" bson:"country" binding:"required"`
	ZipCode string `json:"zip_code" bson:"zip_code"`
}

type Order struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           primitive.ObjectID `json:"user_id" bson:"user_id"`
	Items            []OrderItem        `json:"items" bson:"items"`
	TotalAmount      float64            `json:"total_amount" bson:"total_amount"`
	PaymentStatus    PaymentStatus      `json:"payment_status" bson:"payment_status"`
	PaymentReference string             `json:"payment_reference" bson:"payment_reference"`
	GatewayRef       string             `json:"gateway_ref,omitempty" bson:"gateway_ref,omitempty"`
	CustomerEmail    string             `json:"customer_email" bson:"customer_email"`
	CustomerPhone    string             `json:"customer_phone" bson:"customer_phone"`
	ShippingAddress  ShippingAddress    `json:"shipping_address" bson:"shipping_address"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
	PaidAt           *time.Time         `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

// OrderItemView is an order line with the product name resolved.
type OrderItemView struct {
	OrderItem
	ProductName string `json:"product_name"`
}

type OrderView struct {
	Order
	Items []OrderItemView `json:"items"`
}

// CheckoutResult is returned by payment initiation.
type CheckoutResult struct {
	PaymentURL string `json:"payment_url"`
	Reference  string `json:"reference"`
	OrderID    string `json:"order_id"`
}
