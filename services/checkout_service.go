package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	aws_pkg "github.com/Dayvhiid/Simple-E-commerce-API/pkg/aws"
	"github.com/Dayvhiid/Simple-E-commerce-API/providers"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	sourceVerify  = "verify"
	sourceWebhook = "webhook"

	// followUpTimeout bounds writes that must still happen after the request
	// context is cancelled or past its deadline.
	followUpTimeout = 10 * time.Second
)

// MetricsRecorder counts business events. *aws.MetricsClient satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

type nopMetrics struct{}

func (nopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }

// CheckoutConfig is the part of the service configuration the checkout flow reads.
type CheckoutConfig struct {
	Currency      string
	FrontendURL   string
	WebhookSecret string
	Title         string
	Description   string
}

// CheckoutDeps groups the collaborators of the checkout service. Events, Metrics
// and Cache may be nil.
type CheckoutDeps struct {
	Carts    repository.CartRepo
	Products repository.ProductRepo
	Orders   repository.OrderRepo
	Users    repository.UserRepo
	Provider providers.PaymentProvider
	Events   EventPublisher
	Metrics  MetricsRecorder
	Cache    ProductCache
	Logger   *zap.Logger
}

type InitiateInput struct {
	ShippingAddress models.ShippingAddress
	Phone           string
}

// WebhookAck is the outcome of a webhook delivery that must be acknowledged with 200.
type WebhookAck struct {
	Processed bool
	Reason    string
}

type CheckoutService interface {
	Initiate(ctx context.Context, userID string, in InitiateInput) (*models.CheckoutResult, error)
	Verify(ctx context.Context, reference string) (*models.Order, error)
	HandleWebhook(ctx context.Context, signature string, body []byte) (*WebhookAck, error)
	ListOrders(ctx context.Context, userID string) ([]models.OrderView, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.OrderView, error)
}

type checkoutServiceImpl struct {
	cfg      CheckoutConfig
	carts    repository.CartRepo
	products repository.ProductRepo
	orders   repository.OrderRepo
	users    repository.UserRepo
	provider providers.PaymentProvider
	events   EventPublisher
	metrics  MetricsRecorder
	cache    ProductCache
	logger   *zap.Logger

	now          func() time.Time
	newReference func(time.Time) string
}

func NewCheckoutService(cfg CheckoutConfig, deps CheckoutDeps) CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	if cfg.Title == "" {
		cfg.Title = "E-commerce Payment"
	}
	if cfg.Description == "" {
		cfg.Description = "Payment for order items"
	}
	s := &checkoutServiceImpl{
		cfg:          cfg,
		carts:        deps.Carts,
		products:     deps.Products,
		orders:       deps.Orders,
		users:        deps.Users,
		provider:     deps.Provider,
		events:       deps.Events,
		metrics:      deps.Metrics,
		cache:        deps.Cache,
		logger:       deps.Logger,
		now:          func() time.Time { return time.Now().UTC() },
		newReference: NewPaymentReference,
	}
	if s.events == nil {
		s.events = NopEventPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// NewPaymentReference returns PAY_<unix millis>_<first 8 chars of a UUIDv4>.
func NewPaymentReference(now time.Time) string {
	return "PAY_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}

func (s *checkoutServiceImpl) Initiate(ctx context.Context, userID string, in InitiateInput) (*models.CheckoutResult, error) {
	log := logger.WithRequest(ctx, s.logger)

	uid, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.FindByUser(ctx, uid)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("find cart: %w", err))
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, apperrors.Validation("Cart is empty")
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	total := decimal.Zero
	for _, line := range cart.Items {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("find product: %w", err))
		}
		if product.Quantity < line.Quantity {
			return nil, apperrors.Validation("Insufficient stock for " + product.Name)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
		total = total.Add(lineTotal(product.Price, line.Quantity))
	}

	user, err := s.users.FindByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find user: %w", err))
	}

	now := s.now()
	order := &models.Order{
		UserID:           uid,
		Items:            items,
		TotalAmount:      roundAmount(total),
		PaymentStatus:    models.PaymentPending,
		PaymentReference: s.newReference(now),
		CustomerEmail:    user.Email,
		CustomerPhone:    in.Phone,
		ShippingAddress:  in.ShippingAddress,
		CreatedAt:        now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create order: %w", err))
	}

	link, err := s.provider.CreatePayment(ctx, providers.PaymentRequest{
		Reference:      order.PaymentReference,
		Amount:         order.TotalAmount,
		Currency:       s.cfg.Currency,
		RedirectURL:    s.cfg.FrontendURL + "/payment/callback",
		PaymentOptions: "card,banktransfer,ussd",
		Customer: providers.Customer{
			Email:       user.Email,
			PhoneNumber: in.Phone,
			Name:        user.Name,
		},
		Customizations: providers.Customizations{
			Title:       s.cfg.Title,
			Description: s.cfg.Description,
		},
	})
	if err != nil {
		rollbackCtx, cancel := detached(ctx)
		defer cancel()
		if delErr := s.orders.Delete(rollbackCtx, order.ID); delErr != nil {
			log.Error("Failed to delete order after gateway failure",
				zap.String("order_id", order.ID.Hex()),
				zap.Error(delErr),
			)
		}
		s.count(rollbackCtx, aws_pkg.MetricGatewayErrors, "initiate")
		log.Warn("Payment initialization failed",
			zap.String("reference", order.PaymentReference),
			zap.Error(err),
		)
		return nil, apperrors.External(gatewayMessage(err, "Payment initialization failed"), err)
	}

	s.count(ctx, aws_pkg.MetricOrdersCreated, "initiate")
	log.Info("Payment initiated",
		zap.String("order_id", order.ID.Hex()),
		zap.String("reference", order.PaymentReference),
		zap.Float64("amount", order.TotalAmount),
	)
	return &models.CheckoutResult{
		PaymentURL: link.URL,
		Reference:  order.PaymentReference,
		OrderID:    order.ID.Hex(),
	}, nil
}

func (s *checkoutServiceImpl) Verify(ctx context.Context, reference string) (*models.Order, error) {
	order, err := s.orders.FindByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find order: %w", err))
	}
	if order.PaymentStatus == models.PaymentCompleted {
		return order, nil
	}

	verification, err := s.provider.VerifyByReference(ctx, reference)
	if err != nil {
		s.count(ctx, aws_pkg.MetricGatewayErrors, sourceVerify)
		return nil, apperrors.External("Payment verification failed", err)
	}

	if !verification.Successful() {
		if err := s.fail(ctx, order, sourceVerify); err != nil {
			return nil, err
		}
		return nil, apperrors.PaymentFailed("Payment verification failed")
	}

	won, err := s.complete(ctx, order, verification.GatewayRef, sourceVerify)
	if err != nil {
		return nil, err
	}
	if won {
		return order, nil
	}

	// Someone else reconciled the order first; report what they decided.
	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("reload order: %w", err))
	}
	if current.PaymentStatus != models.PaymentCompleted {
		return nil, apperrors.PaymentFailed("Payment verification failed")
	}
	return current, nil
}

func (s *checkoutServiceImpl) HandleWebhook(ctx context.Context, signature string, body []byte) (*WebhookAck, error) {
	log := logger.WithRequest(ctx, s.logger)

	if !s.validSignature(signature) {
		s.count(ctx, aws_pkg.MetricWebhooksRejected, sourceWebhook)
		log.Warn("Webhook rejected: invalid signature")
		return nil, apperrors.Unauthorized("Invalid webhook signature")
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("Webhook body could not be decoded", zap.Error(err))
		return &WebhookAck{Reason: "invalid payload"}, nil
	}
	if payload.Event != models.EventChargeCompleted {
		log.Info("Unhandled webhook event type", zap.String("event", payload.Event))
		return &WebhookAck{Reason: "event ignored"}, nil
	}

	order, err := s.orders.FindByReference(ctx, payload.Data.TxRef)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Order not found for webhook", zap.String("tx_ref", payload.Data.TxRef))
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find order: %w", err))
	}

	if order.PaymentStatus == models.PaymentCompleted {
		log.Info("Skipping duplicate webhook", zap.String("order_id", order.ID.Hex()))
		return &WebhookAck{Reason: "already processed"}, nil
	}

	if payload.Data.Status != "successful" || !amountsEqual(payload.Data.Amount, order.TotalAmount) {
		log.Warn("Webhook does not confirm payment",
			zap.String("order_id", order.ID.Hex()),
			zap.String("status", payload.Data.Status),
			zap.Float64("amount", payload.Data.Amount),
			zap.Float64("expected_amount", order.TotalAmount),
		)
		return &WebhookAck{Reason: "not confirmed"}, nil
	}

	won, err := s.complete(ctx, order, payload.Data.FlwRef, sourceWebhook)
	if err != nil {
		return nil, err
	}
	if !won {
		return &WebhookAck{Reason: "already processed"}, nil
	}
	return &WebhookAck{Processed: true}, nil
}

func (s *checkoutServiceImpl) ListOrders(ctx context.Context, userID string) ([]models.OrderView, error) {
	uid, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.FindByUser(ctx, uid)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list orders: %w", err))
	}
	return s.withProductNames(ctx, orders)
}

// GetOrder only returns orders owned by userID; any other order is reported as not found.
func (s *checkoutServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*models.OrderView, error) {
	oid, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && order.UserID.Hex() != userID) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find order: %w", err))
	}

	views, err := s.withProductNames(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// complete moves the order to completed. Only the caller that performs the transition
// applies the stock decrement and cart clear; it reports whether that was this call.
//
// The transition and the stock writes are separate documents. A crash in between
// leaves a completed order whose stock was not decremented; every shortfall is logged.
func (s *checkoutServiceImpl) complete(ctx context.Context, order *models.Order, gatewayRef, source string) (bool, error) {
	log := logger.WithRequest(ctx, s.logger).With(
		zap.String("order_id", order.ID.Hex()),
		zap.String("reference", order.PaymentReference),
		zap.String("source", source),
	)

	paidAt := s.now()
	won, err := s.orders.TransitionStatus(ctx, order.ID, models.PaymentPending, models.PaymentCompleted, repository.StatusChange{
		GatewayRef: gatewayRef,
		PaidAt:     &paidAt,
	})
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("complete order: %w", err))
	}
	if !won {
		log.Info("Order already reconciled")
		return false, nil
	}

	order.PaymentStatus = models.PaymentCompleted
	order.GatewayRef = gatewayRef
	order.PaidAt = &paidAt

	// The order is completed now; the follow-up writes must not die with the caller.
	ctx, cancel := detached(ctx)
	defer cancel()

	for _, item := range order.Items {
		applied, err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		switch {
		case err != nil:
			log.Error("Failed to decrement stock",
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		case !applied:
			s.count(ctx, aws_pkg.MetricStockShortfall, source)
			log.Warn("Stock shortfall on completed order",
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
			)
		}
		s.cache.InvalidateProduct(ctx, item.ProductID.Hex())
	}

	if err := s.carts.Clear(ctx, order.UserID); err != nil {
		log.Error("Failed to clear cart after payment", zap.Error(err))
	}

	s.count(ctx, aws_pkg.MetricOrdersCompleted, source)
	s.publish(ctx, models.PaymentSucceededEvent, order, source)
	log.Info("Payment completed")
	return true, nil
}

func (s *checkoutServiceImpl) fail(ctx context.Context, order *models.Order, source string) error {
	won, err := s.orders.TransitionStatus(ctx, order.ID, models.PaymentPending, models.PaymentFailed, repository.StatusChange{})
	if err != nil {
		return apperrors.Internal(fmt.Errorf("fail order: %w", err))
	}
	if won {
		ctx, cancel := detached(ctx)
		defer cancel()
		order.PaymentStatus = models.PaymentFailed
		s.count(ctx, aws_pkg.MetricOrdersFailed, source)
		s.publish(ctx, models.PaymentFailedEvent, order, source)
		logger.WithRequest(ctx, s.logger).Info("Payment failed",
			zap.String("order_id", order.ID.Hex()),
			zap.String("reference", order.PaymentReference),
		)
	}
	return nil
}

func (s *checkoutServiceImpl) validSignature(signature string) bool {
	if s.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(s.cfg.WebhookSecret)) == 1
}

func (s *checkoutServiceImpl) withProductNames(ctx context.Context, orders []models.Order) ([]models.OrderView, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, o := range orders {
		for _, item := range o.Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				ids = append(ids, item.ProductID)
			}
		}
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) > 0 {
		products, err := s.products.FindByIDs(ctx, ids)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("load order products: %w", err))
		}
		for _, p := range products {
			names[p.ID] = p.Name
		}
	}

	views := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		items := make([]models.OrderItemView, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, models.OrderItemView{OrderItem: item, ProductName: names[item.ProductID]})
		}
		views = append(views, models.OrderView{Order: o, Items: items})
	}
	return views, nil
}

// publish is best-effort: a failed publish is logged and never fails the request.
func (s *checkoutServiceImpl) publish(ctx context.Context, eventType string, order *models.Order, source string) {
	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   order.ID.Hex(),
		UserID:    order.UserID.Hex(),
		Reference: order.PaymentReference,
		Amount:    order.TotalAmount,
		Currency:  s.cfg.Currency,
		Source:    source,
		Timestamp: s.now(),
	}
	if err := s.events.PublishPaymentEvent(ctx, event); err != nil {
		logger.WithRequest(ctx, s.logger).Warn("Failed to publish payment event",
			zap.String("type", eventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func (s *checkoutServiceImpl) count(ctx context.Context, metric, source string) {
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Source": source}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

// detached keeps ctx's values (request id) but not its cancellation or deadline.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
}

// gatewayMessage prefers the message the gateway sent back.
func gatewayMessage(err error, fallback string) string {
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}
