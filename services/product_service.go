package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/cache"
	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"
	"github.com/Dayvhiid/Simple-E-commerce-API/common/logger"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	"github.com/Dayvhiid/Simple-E-commerce-API/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// ProductCache is the read-through cache in front of the catalog.
type ProductCache interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, bool)
	SetProductAsync(product models.Product)
	GetPage(ctx context.Context, key cache.PageKey) (*models.ProductPage, bool)
	SetPageAsync(key cache.PageKey, page models.ProductPage)
	InvalidateProduct(ctx context.Context, productID string)
}

type nopCache struct{}

func (nopCache) GetProduct(context.Context, string) (*models.Product, bool) { return nil, false }
func (nopCache) SetProductAsync(models.Product) {}
func (nopCache) GetPage(context.Context, cache.PageKey) (*models.ProductPage, bool) { return nil, false }
func (nopCache) SetPageAsync(cache.PageKey, models.ProductPage) {}
func (nopCache) InvalidateProduct(context.Context, string) {}

type ProductService interface {
	List(ctx context.Context, page, perPage int) (*models.ProductPage, error)
	ListByOwner(ctx context.Context, userID string, page, perPage int) (*models.ProductPage, error)
	Get(ctx context.Context, productID string) (*models.Product, error)
	Create(ctx context.Context, userID string, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, userID, productID string, in models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, userID, productID string) error
}

type productServiceImpl struct {
	products repository.ProductRepo
	cache    ProductCache
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProductService builds the catalog service. productCache may be nil.
func NewProductService(products repository.ProductRepo, productCache ProductCache, logger *zap.Logger) ProductService {
	if productCache == nil {
		productCache = nopCache{}
	}
	return &productServiceImpl{
		products: products,
		cache:    productCache,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *productServiceImpl) List(ctx context.Context, page, perPage int) (*models.ProductPage, error) {
	return s.list(ctx, repository.ProductFilter{}, "", page, perPage)
}

func (s *productServiceImpl) ListByOwner(ctx context.Context, userID string, page, perPage int) (*models.ProductPage, error) {
	owner, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.ProductFilter{UserID: &owner}, userID, page, perPage)
}

func (s *productServiceImpl) list(ctx context.Context, filter repository.ProductFilter, ownerKey string, page, perPage int) (*models.ProductPage, error) {
	page, perPage = normalizePage(page, perPage)
	key := cache.PageKey{Owner: ownerKey, Page: page, PerPage: perPage}
	if cached, ok := s.cache.GetPage(ctx, key); ok {
		return cached, nil
	}

	products, total, err := s.products.List(ctx, filter, int64((page-1)*perPage), int64(perPage))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("list products: %w", err))
	}

	result := models.ProductPage{
		Products: products,
		Meta: models.PageMeta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
		},
	}
	s.cache.SetPageAsync(key, result)
	return &result, nil
}

func (s *productServiceImpl) Get(ctx context.Context, productID string) (*models.Product, error) {
	id, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.GetProduct(ctx, productID); ok {
		return cached, nil
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Internal(fmt.Errorf("find product: %w", err))
	}
	s.cache.SetProductAsync(*product)
	return product, nil
}

func (s *productServiceImpl) Create(ctx context.Context, userID string, in models.ProductInput) (*models.Product, error) {
	owner, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.Validation(validationMessage(err))
	}

	now := time.Now().UTC()
	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		UserID:      owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create product: %w", err))
	}

	s.cache.InvalidateProduct(ctx, product.ID.Hex())
	logger.WithRequest(ctx, s.logger).Info("Product created",
		zap.String("product_id", product.ID.Hex()),
		zap.String("user_id", userID),
	)
	return product, nil
}

func (s *productServiceImpl) Update(ctx context.Context, userID, productID string, in models.ProductUpdate) (*models.Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.Validation(validationMessage(err))
	}
	existing, err := s.ownedProduct(ctx, userID, productID, "update")
	if err != nil {
		return nil, err
	}
	if in.IsEmpty() {
		return existing, nil
	}

	updated, err := s.products.Update(ctx, existing.ID, in)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Internal(fmt.Errorf("update product: %w", err))
	}

	s.cache.InvalidateProduct(ctx, productID)
	return updated, nil
}

func (s *productServiceImpl) Delete(ctx context.Context, userID, productID string) error {
	existing, err := s.ownedProduct(ctx, userID, productID, "delete")
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, existing.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Product not found")
		}
		return apperrors.Internal(fmt.Errorf("delete product: %w", err))
	}

	s.cache.InvalidateProduct(ctx, productID)
	logger.WithRequest(ctx, s.logger).Info("Product deleted", zap.String("product_id", productID))
	return nil
}

// ownedProduct loads the product straight from the store and checks the caller owns it.
func (s *productServiceImpl) ownedProduct(ctx context.Context, userID, productID, action string) (*models.Product, error) {
	id, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Internal(fmt.Errorf("find product: %w", err))
	}
	if product.UserID.Hex() != userID {
		return nil, apperrors.Forbidden("You are not authorized to " + action + " this product")
	}
	return product, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// validationMessage turns the first validator failure into a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}
	fe := verrs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "Name":
		return "name"
	case "Description":
		return "description"
	case "Price":
		return "price"
	case "Quantity":
		return "quantity"
	default:
		return field
	}
}
