package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	aws_pkg "github.com/Dayvhiid/Simple-E-commerce-API/pkg/aws"
	"github.com/Dayvhiid/Simple-E-commerce-API/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func requireAppError(t *testing.T, err error, code int) *apperrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func webhookBody(t *testing.T, event, txRef string, amount float64, status string) []byte {
	t.Helper()
	body, err := json.Marshal(models.WebhookPayload{
		Event: event,
		Data:  models.WebhookData{TxRef: txRef, Amount: amount, Status: status, FlwRef: "FLW-MOCK-WH"},
	})
	require.NoError(t, err)
	return body
}

// initiateOrder fills the buyer's cart with A (10.00 × 2) and B (5.00 × 1) and initiates checkout.
func (f *checkoutFixture) initiateOrder(t *testing.T) (*models.CheckoutResult, *models.Product, *models.Product) {
	t.Helper()
	ctx := context.Background()
	a := f.products.add("Product A", 10.00, 10, f.seller)
	b := f.products.add("Product B", 5.00, 10, f.seller)
	require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), a.ID.Hex(), 2))
	require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), b.ID.Hex(), 1))

	res, err := f.svc.Initiate(ctx, f.buyerID(), InitiateInput{ShippingAddress: testAddress(), Phone: "08012345678"})
	require.NoError(t, err)
	return res, a, b
}

func TestNewPaymentReference(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ref := NewPaymentReference(now)
	assert.Regexp(t, regexp.MustCompile(`^PAY_1700000000123_[0-9a-f]{8}$`), ref)
	assert.NotEqual(t, ref, NewPaymentReference(now))
}

func TestInitiate_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, f.buyerID(), InitiateInput{ShippingAddress: testAddress(), Phone: "080"})
	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, "Cart is empty", appErr.Message)

	// An emptied cart behaves the same.
	require.NoError(t, f.carts.Save(ctx, &models.Cart{UserID: f.buyer.ID, Items: []models.CartItem{}}))
	_, err = f.svc.Initiate(ctx, f.buyerID(), InitiateInput{ShippingAddress: testAddress(), Phone: "080"})
	requireAppError(t, err, http.StatusBadRequest)

	assert.Equal(t, 0, f.orders.count())
	assert.Empty(t, f.provider.createCalls)
}

func TestInitiate_CapturesPricesAndTotal(t *testing.T) {
	f := newCheckoutFixture()
	res, a, b := f.initiateOrder(t)

	assert.Regexp(t, `^PAY_\d{13}_[0-9a-f]{8}$`, res.Reference)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/"+res.Reference, res.PaymentURL)

	oid, err := primitive.ObjectIDFromHex(res.OrderID)
	require.NoError(t, err)
	order := f.orders.get(oid)
	require.NotNil(t, order)

	assert.Equal(t, 25.00, order.TotalAmount)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, "ada@example.com", order.CustomerEmail)
	assert.Equal(t, "08012345678", order.CustomerPhone)
	require.Len(t, order.Items, 2)
	assert.Equal(t, models.OrderItem{ProductID: a.ID, Quantity: 2, Price: 10.00}, order.Items[0])
	assert.Equal(t, models.OrderItem{ProductID: b.ID, Quantity: 1, Price: 5.00}, order.Items[1])

	require.Len(t, f.provider.createCalls, 1)
	call := f.provider.createCalls[0]
	assert.Equal(t, res.Reference, call.Reference)
	assert.Equal(t, 25.00, call.Amount)
	assert.Equal(t, "NGN", call.Currency)
	assert.Equal(t, "http://localhost:3000/payment/callback", call.RedirectURL)
	assert.Equal(t, providers.Customer{Email: "ada@example.com", PhoneNumber: "08012345678", Name: "Ada Lovelace"}, call.Customer)

	// Nothing is decremented or cleared until the payment is confirmed.
	assert.Equal(t, 10, f.products.stock(a.ID))
	assert.Len(t, f.carts.items(f.buyer.ID), 2)
	assert.Equal(t, 1, f.metrics.get(aws_pkg.MetricOrdersCreated))

	// Later catalog price changes do not touch the order.
	f.products.setPrice(a.ID, 99.99)
	order = f.orders.get(oid)
	assert.Equal(t, 25.00, order.TotalAmount)
	assert.Equal(t, 10.00, order.Items[0].Price)
}

func TestInitiate_DecimalTotal(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	p := f.products.add("Pen", 0.1, 10, f.seller)
	q := f.products.add("Ink", 0.2, 10, f.seller)
	require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), p.ID.Hex(), 3))
	require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), q.ID.Hex(), 1))

	res, err := f.svc.Initiate(ctx, f.buyerID(), InitiateInput{Phone: "080"})
	require.NoError(t, err)

	oid, _ := primitive.ObjectIDFromHex(res.OrderID)
	assert.Equal(t, 0.5, f.orders.get(oid).TotalAmount)
}

func TestInitiate_InsufficientStock(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	a := f.products.add("Widget", 10.00, 5, f.seller)
	require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), a.ID.Hex(), 4))

	// Stock drops after the item went into the cart.
	qty := 3
	_, err := f.products.Update(ctx, a.ID, models.ProductUpdate{Quantity: &qty})
	require.NoError(t, err)

	_, err = f.svc.Initiate(ctx, f.buyerID(), InitiateInput{Phone: "080"})
	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, "Insufficient stock for Widget", appErr.Message)
	assert.Equal(t, 0, f.orders.count())
}

func TestInitiate_GatewayFailureDeletesOrder(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"gateway rejection", &providers.GatewayError{StatusCode: http.StatusBadRequest, Message: "Invalid currency"}, "Invalid currency"},
		{"transport error", errors.New("dial tcp: i/o timeout"), "Payment initialization failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			ctx := context.Background()
			a := f.products.add("Product A", 10.00, 10, f.seller)
			require.NoError(t, f.cartSvc.AddItem(ctx, f.buyerID(), a.ID.Hex(), 1))
			f.provider.createErr = tt.err

			_, err := f.svc.Initiate(ctx, f.buyerID(), InitiateInput{Phone: "080"})
			appErr := requireAppError(t, err, http.StatusBadGateway)
			assert.Equal(t, tt.wantMsg, appErr.Message)

			require.Len(t, f.provider.createCalls, 1)
			_, lookupErr := f.orders.FindByReference(ctx, f.provider.createCalls[0].Reference)
			assert.Error(t, lookupErr)
			assert.Equal(t, 0, f.orders.count())
			assert.Equal(t, 1, f.metrics.get(aws_pkg.MetricGatewayErrors))
		})
	}
}

func TestInitiate_GatewayTimeoutStillDeletesOrder(t *testing.T) {
	f := newCheckoutFixture()
	a := f.products.add("Product A", 10.00, 10, f.seller)
	require.NoError(t, f.cartSvc.AddItem(context.Background(), f.buyerID(), a.ID.Hex(), 1))
	f.provider.hang = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.svc.Initiate(ctx, f.buyerID(), InitiateInput{ShippingAddress: testAddress(), Phone: "080"})
	appErr := requireAppError(t, err, http.StatusBadGateway)
	assert.Equal(t, "Payment initialization failed", appErr.Message)
	assert.Equal(t, 0, f.orders.count())
	assert.Equal(t, 1, f.metrics.get(aws_pkg.MetricGatewayErrors))
}

func TestVerify_CompletesOnce(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, a, b := f.initiateOrder(t)

	order, err := f.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, "FLW-MOCK-1", order.GatewayRef)
	assert.NotNil(t, order.PaidAt)

	again, err := f.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, again.PaymentStatus)

	assert.Equal(t, 8, f.products.stock(a.ID))
	assert.Equal(t, 9, f.products.stock(b.ID))
	assert.Equal(t, 2, f.products.decrements)
	assert.Equal(t, 1, f.carts.clears)
	assert.Empty(t, f.carts.items(f.buyer.ID))
	assert.Equal(t, 1, f.provider.verifyCalls)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.PaymentSucceededEvent, f.events.events[0].Type)
	assert.Equal(t, "verify", f.events.events[0].Source)
}

func TestVerify_ConcurrentWithWebhook(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, a, _ := f.initiateOrder(t)
	body := webhookBody(t, models.EventChargeCompleted, res.Reference, 25.00, "successful")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Verify(ctx, res.Reference)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.HandleWebhook(ctx, testWebhookSecret, body)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, f.products.stock(a.ID))
	assert.Equal(t, 2, f.products.decrements)
	assert.Equal(t, 1, f.carts.clears)
	assert.Equal(t, 1, f.metrics.get(aws_pkg.MetricOrdersCompleted))
}

func TestCompletion_SurvivesCallerCancellation(t *testing.T) {
	f := newCheckoutFixture()
	res, a, b := f.initiateOrder(t)

	// The client goes away right after the order flips to completed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orders.afterTransition = cancel

	order, err := f.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)

	assert.Equal(t, 8, f.products.stock(a.ID))
	assert.Equal(t, 9, f.products.stock(b.ID))
	assert.Equal(t, 1, f.carts.clears)
	assert.Empty(t, f.carts.items(f.buyer.ID))
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.PaymentSucceededEvent, f.events.events[0].Type)
}

func TestVerify_Unsuccessful(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, a, _ := f.initiateOrder(t)
	f.provider.verification = &providers.Verification{Status: "success", TxStatus: "failed"}

	_, err := f.svc.Verify(ctx, res.Reference)
	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, "Payment verification failed", appErr.Message)

	oid, _ := primitive.ObjectIDFromHex(res.OrderID)
	assert.Equal(t, models.PaymentFailed, f.orders.get(oid).PaymentStatus)
	assert.Equal(t, 10, f.products.stock(a.ID))
	assert.Equal(t, 0, f.carts.clears)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.PaymentFailedEvent, f.events.events[0].Type)

	// A later success report cannot revive a failed order.
	f.provider.verification = &providers.Verification{Status: "success", TxStatus: "successful"}
	_, err = f.svc.Verify(ctx, res.Reference)
	requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, 10, f.products.stock(a.ID))
}

func TestVerify_GatewayUnreachable(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, _, _ := f.initiateOrder(t)
	f.provider.verifyErr = errors.New("context deadline exceeded")

	_, err := f.svc.Verify(ctx, res.Reference)
	requireAppError(t, err, http.StatusBadGateway)

	oid, _ := primitive.ObjectIDFromHex(res.OrderID)
	assert.Equal(t, models.PaymentPending, f.orders.get(oid).PaymentStatus)
}

func TestVerify_UnknownReference(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.Verify(context.Background(), "PAY_0_deadbeef")
	requireAppError(t, err, http.StatusNotFound)
	assert.Equal(t, 0, f.provider.verifyCalls)
}

func TestWebhook_RejectsBadSignatureBeforeLookup(t *testing.T) {
	f := newCheckoutFixture()
	res, _, _ := f.initiateOrder(t)
	body := webhookBody(t, models.EventChargeCompleted, res.Reference, 25.00, "successful")

	for _, sig := range []string{"", "wrong-hash", testWebhookSecret + "x"} {
		_, err := f.svc.HandleWebhook(context.Background(), sig, body)
		requireAppError(t, err, http.StatusUnauthorized)
	}

	assert.Equal(t, 0, f.orders.lookups)
	assert.Equal(t, 3, f.metrics.get(aws_pkg.MetricWebhooksRejected))
}

func TestWebhook_EmptyConfiguredSecretRejectsAll(t *testing.T) {
	f := newCheckoutFixture()
	svc := NewCheckoutService(CheckoutConfig{}, CheckoutDeps{
		Carts: f.carts, Products: f.products, Orders: f.orders, Users: f.users, Provider: f.provider,
	})

	_, err := svc.HandleWebhook(context.Background(), "", []byte(`{}`))
	requireAppError(t, err, http.StatusUnauthorized)
	assert.Equal(t, 0, f.orders.lookups)
}

func TestWebhook_EmptyOrUndecodableBody(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	for _, body := range [][]byte{nil, []byte("{not json")} {
		ack, err := f.svc.HandleWebhook(ctx, testWebhookSecret, body)
		require.NoError(t, err)
		assert.False(t, ack.Processed)

		_, err = f.svc.HandleWebhook(ctx, "forged", body)
		requireAppError(t, err, http.StatusUnauthorized)
	}
	assert.Equal(t, 0, f.orders.lookups)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, a, b := f.initiateOrder(t)
	body := webhookBody(t, models.EventChargeCompleted, res.Reference, 25.00, "successful")

	ack, err := f.svc.HandleWebhook(ctx, testWebhookSecret, body)
	require.NoError(t, err)
	assert.True(t, ack.Processed)

	ack, err = f.svc.HandleWebhook(ctx, testWebhookSecret, body)
	require.NoError(t, err)
	assert.False(t, ack.Processed)
	assert.Equal(t, "already processed", ack.Reason)

	assert.Equal(t, 8, f.products.stock(a.ID))
	assert.Equal(t, 9, f.products.stock(b.ID))
	assert.Equal(t, 1, f.carts.clears)

	oid, _ := primitive.ObjectIDFromHex(res.OrderID)
	order := f.orders.get(oid)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, "FLW-MOCK-WH", order.GatewayRef)
}

func TestWebhook_AcknowledgesWithoutMutation(t *testing.T) {
	tests := []struct {
		name string
		body func(ref string) []byte
	}{
		{"amount mismatch", func(ref string) []byte { return webhookBody(t, models.EventChargeCompleted, ref, 24.99, "successful") }},
		{"not successful", func(ref string) []byte { return webhookBody(t, models.EventChargeCompleted, ref, 25.00, "failed") }},
		{"other event", func(ref string) []byte { return webhookBody(t, "transfer.completed", ref, 25.00, "successful") }},
		{"undecodable body", func(string) []byte { return []byte(`{"event":`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			res, a, _ := f.initiateOrder(t)

			ack, err := f.svc.HandleWebhook(context.Background(), testWebhookSecret, tt.body(res.Reference))
			require.NoError(t, err)
			assert.False(t, ack.Processed)

			oid, _ := primitive.ObjectIDFromHex(res.OrderID)
			assert.Equal(t, models.PaymentPending, f.orders.get(oid).PaymentStatus)
			assert.Equal(t, 10, f.products.stock(a.ID))
			assert.Equal(t, 0, f.carts.clears)
		})
	}
}

func TestWebhook_AmountComparedAtTwoDecimals(t *testing.T) {
	f := newCheckoutFixture()
	res, _, _ := f.initiateOrder(t)

	ack, err := f.svc.HandleWebhook(context.Background(), testWebhookSecret,
		webhookBody(t, models.EventChargeCompleted, res.Reference, 25.001, "successful"))
	require.NoError(t, err)
	assert.True(t, ack.Processed)
}

func TestWebhook_UnknownOrder(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.HandleWebhook(context.Background(), testWebhookSecret,
		webhookBody(t, models.EventChargeCompleted, "PAY_0_missing", 10, "successful"))
	requireAppError(t, err, http.StatusNotFound)
	assert.Equal(t, 0, f.carts.clears)
}

func TestOrders_ListAndGet(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, _, _ := f.initiateOrder(t)

	views, err := f.svc.ListOrders(ctx, f.buyerID())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Items, 2)
	assert.Equal(t, "Product A", views[0].Items[0].ProductName)
	assert.Equal(t, "Product B", views[0].Items[1].ProductName)

	view, err := f.svc.GetOrder(ctx, f.buyerID(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, view.PaymentReference)

	_, err = f.svc.GetOrder(ctx, primitive.NewObjectID().Hex(), res.OrderID)
	requireAppError(t, err, http.StatusNotFound)

	_, err = f.svc.GetOrder(ctx, f.buyerID(), "not-an-id")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestPublishFailureDoesNotFailVerify(t *testing.T) {
	f := newCheckoutFixture()
	res, _, _ := f.initiateOrder(t)
	f.events.err = errors.New("sns unavailable")

	order, err := f.svc.Verify(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
}

func TestCompletionWithStockShortfall(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	res, a, _ := f.initiateOrder(t)

	zero := 0
	_, err := f.products.Update(ctx, a.ID, models.ProductUpdate{Quantity: &zero})
	require.NoError(t, err)

	order, err := f.svc.Verify(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, 0, f.products.stock(a.ID))
	assert.Equal(t, 1, f.metrics.get(aws_pkg.MetricStockShortfall))
}
