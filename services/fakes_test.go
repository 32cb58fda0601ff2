package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/providers"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- In-memory repositories ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]*models.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateKey
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeProductRepo struct {
	mu         sync.Mutex
	products   map[primitive.ObjectID]*models.Product
	decrements int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[primitive.ObjectID]*models.Product{}}
}

func (r *fakeProductRepo) add(name string, price float64, quantity int, owner primitive.ObjectID) *models.Product {
	p := &models.Product{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: name + " description",
		Price:       price,
		Quantity:    quantity,
		UserID:      owner,
		CreatedAt:   time.Now().UTC(),
	}
	r.mu.Lock()
	r.products[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *fakeProductRepo) stock(id primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Quantity
}

func (r *fakeProductRepo) setPrice(id primitive.ObjectID, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id].Price = price
}

func (r *fakeProductRepo) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product.ID = primitive.NewObjectID()
	cp := *product
	r.products[product.ID] = &cp
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) List(_ context.Context, filter repository.ProductFilter, skip, limit int64) ([]models.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Product
	for _, p := range r.products {
		if filter.UserID != nil && p.UserID != *filter.UserID {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := int64(len(all))
	if skip >= total {
		return []models.Product{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (r *fakeProductRepo) Update(_ context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Price != nil {
		p.Price = *update.Price
	}
	if update.Quantity != nil {
		p.Quantity = *update.Quantity
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, n int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.Quantity < n {
		return false, nil
	}
	p.Quantity -= n
	r.decrements++
	return true, nil
}

type fakeCartRepo struct {
	mu     sync.Mutex
	carts  map[primitive.ObjectID]*models.Cart
	clears int
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[primitive.ObjectID]*models.Cart{}}
}

func (r *fakeCartRepo) items(userID primitive.ObjectID) []models.CartItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil
	}
	return append([]models.CartItem(nil), c.Items...)
}

func (r *fakeCartRepo) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp, nil
}

func (r *fakeCartRepo) Save(_ context.Context, cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cart
	cp.Items = append([]models.CartItem{}, cart.Items...)
	r.carts[cart.UserID] = &cp
	return nil
}

func (r *fakeCartRepo) Clear(ctx context.Context, userID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	if c, ok := r.carts[userID]; ok {
		c.Items = []models.CartItem{}
	}
	return nil
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[primitive.ObjectID]*models.Order
	lookups int

	// afterTransition runs once a transition has been applied.
	afterTransition func()
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[primitive.ObjectID]*models.Order{}}
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeOrderRepo) get(id primitive.ObjectID) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (r *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = primitive.NewObjectID()
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if o := r.get(id); o != nil {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrderRepo) FindByReference(_ context.Context, reference string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, o := range r.orders {
		if o.PaymentReference == reference {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrderRepo) FindByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.PaymentStatus, change repository.StatusChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	o, ok := r.orders[id]
	if !ok || o.PaymentStatus != from {
		r.mu.Unlock()
		return false, nil
	}
	o.PaymentStatus = to
	if change.GatewayRef != "" {
		o.GatewayRef = change.GatewayRef
	}
	if change.PaidAt != nil {
		t := *change.PaidAt
		o.PaidAt = &t
	}
	hook := r.afterTransition
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true, nil
}

// --- Gateway, events, metrics ---

type fakeProvider struct {
	mu           sync.Mutex
	createErr    error
	verification *providers.Verification
	verifyErr    error
	createCalls  []providers.PaymentRequest
	verifyCalls  int

	// hang makes CreatePayment wait for the caller's context to end, like a gateway
	// that never answers.
	hang bool
}

func (p *fakeProvider) CreatePayment(ctx context.Context, req providers.PaymentRequest) (*providers.PaymentLink, error) {
	p.mu.Lock()
	p.createCalls = append(p.createCalls, req)
	hang := p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &providers.PaymentLink{URL: "https://checkout.flutterwave.com/pay/" + req.Reference}, nil
}

func (p *fakeProvider) VerifyByReference(_ context.Context, reference string) (*providers.Verification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	v := *p.verification
	v.Reference = reference
	return &v, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
	err    error
}

func (p *recordingPublisher) PublishPaymentEvent(_ context.Context, event models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *recordingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
	return nil
}

func (m *recordingMetrics) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// --- Fixture ---

const testWebhookSecret = "whsec-test-hash"

type checkoutFixture struct {
	users    *fakeUserRepo
	products *fakeProductRepo
	carts    *fakeCartRepo
	orders   *fakeOrderRepo
	provider *fakeProvider
	events   *recordingPublisher
	metrics  *recordingMetrics
	svc      CheckoutService
	cartSvc  CartService

	buyer  *models.User
	seller primitive.ObjectID
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		users:    newFakeUserRepo(),
		products: newFakeProductRepo(),
		carts:    newFakeCartRepo(),
		orders:   newFakeOrderRepo(),
		provider: &fakeProvider{verification: &providers.Verification{Status: "success", TxStatus: "successful", GatewayRef: "FLW-MOCK-1"}},
		events:   &recordingPublisher{},
		metrics:  &recordingMetrics{},
		seller:   primitive.NewObjectID(),
	}

	f.buyer = &models.User{Name: "Ada Lovelace", Email: "ada@example.com"}
	_ = f.users.Create(context.Background(), f.buyer)

	logger := zap.NewNop()
	f.svc = NewCheckoutService(CheckoutConfig{
		Currency:      "NGN",
		FrontendURL:   "http://localhost:3000",
		WebhookSecret: testWebhookSecret,
	}, CheckoutDeps{
		Carts:    f.carts,
		Products: f.products,
		Orders:   f.orders,
		Users:    f.users,
		Provider: f.provider,
		Events:   f.events,
		Metrics:  f.metrics,
		Logger:   logger,
	})
	f.cartSvc = NewCartService(f.carts, f.products, logger)
	return f
}

func (f *checkoutFixture) buyerID() string {
	return f.buyer.ID.Hex()
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{Street: "1 Marina Rd", City: "Lagos", State: "Lagos", Country: "NG", ZipCode: "101001"}
}
