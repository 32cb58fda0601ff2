package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CartService interface {
	Get(ctx context.Context, userID string) (*models.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateItem(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	carts    repository.CartRepo
	products repository.ProductRepo
	logger   *zap.Logger
}

func NewCartService(carts repository.CartRepo, products repository.ProductRepo, logger *zap.Logger) CartService {
	return &cartServiceImpl{carts: carts, products: products, logger: logger}
}

// Get prices every line at the current catalog price. Lines whose product is gone are left out.
func (s *cartServiceImpl) Get(ctx context.Context, userID string) (*models.CartView, error) {
	uid, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}

	view := &models.CartView{Items: []models.CartLine{}}
	cart, err := s.carts.FindByUser(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("find cart: %w", err))
	}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("load cart products: %w", err))
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		subtotal := lineTotal(product.Price, item.Quantity)
		total = total.Add(subtotal)
		view.Items = append(view.Items, models.CartLine{
			ProductID: product.ID.Hex(),
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Subtotal:  roundAmount(subtotal),
			InStock:   product.Quantity,
		})
	}
	view.Total = roundAmount(total)
	return view, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return apperrors.Validation("Quantity must be at least 1")
	}
	uid, product, err := s.loadUserAndProduct(ctx, userID, productID)
	if err != nil {
		return err
	}

	cart, err := s.carts.FindByUser(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		cart = &models.Cart{UserID: uid}
	} else if err != nil {
		return apperrors.Internal(fmt.Errorf("find cart: %w", err))
	}

	idx := cart.Find(product.ID)
	desired := quantity
	if idx >= 0 {
		desired += cart.Items[idx].Quantity
	}
	if desired > product.Quantity {
		return apperrors.Validation("Insufficient stock")
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = desired
	} else {
		cart.Items = append(cart.Items, models.CartItem{ProductID: product.ID, Quantity: desired})
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return apperrors.Internal(fmt.Errorf("save cart: %w", err))
	}

	logger.WithRequest(ctx, s.logger).Debug("Cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", desired),
	)
	return nil
}

func (s *cartServiceImpl) UpdateItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return apperrors.Validation("Quantity must be at least 1")
	}
	uid, product, err := s.loadUserAndProduct(ctx, userID, productID)
	if err != nil {
		return err
	}
	if quantity > product.Quantity {
		return apperrors.Validation("Insufficient stock")
	}

	cart, err := s.carts.FindByUser(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Cart not found")
	}
	if err != nil {
		return apperrors.Internal(fmt.Errorf("find cart: %w", err))
	}

	idx := cart.Find(product.ID)
	if idx < 0 {
		return apperrors.NotFound("Item not found in cart")
	}
	cart.Items[idx].Quantity = quantity
	if err := s.carts.Save(ctx, cart); err != nil {
		return apperrors.Internal(fmt.Errorf("save cart: %w", err))
	}
	return nil
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID string) error {
	uid, err := parseID(userID, "user")
	if err != nil {
		return err
	}
	pid, err := parseID(productID, "product")
	if err != nil {
		return err
	}

	cart, err := s.carts.FindByUser(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Cart not found")
	}
	if err != nil {
		return apperrors.Internal(fmt.Errorf("find cart: %w", err))
	}

	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.ProductID != pid {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	if err := s.carts.Save(ctx, cart); err != nil {
		return apperrors.Internal(fmt.Errorf("save cart: %w", err))
	}
	return nil
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) error {
	uid, err := parseID(userID, "user")
	if err != nil {
		return err
	}
	if err := s.carts.Clear(ctx, uid); err != nil {
		return apperrors.Internal(fmt.Errorf("clear cart: %w", err))
	}
	return nil
}

func (s *cartServiceImpl) loadUserAndProduct(ctx context.Context, userID, productID string) (primitive.ObjectID, *models.Product, error) {
	uid, err := parseID(userID, "user")
	if err != nil {
		return primitive.NilObjectID, nil, err
	}
	pid, err := parseID(productID, "product")
	if err != nil {
		return primitive.NilObjectID, nil, err
	}
	product, err := s.products.FindByID(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, nil, apperrors.NotFound("Product not found")
	}
	if err != nil {
		return primitive.NilObjectID, nil, apperrors.Internal(fmt.Errorf("find product: %w", err))
	}
	return uid, product, nil
}
