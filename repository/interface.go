package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

type UserRepo interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// ProductFilter narrows a product listing. The zero value lists everything.
type ProductFilter struct {
	UserID *primitive.ObjectID
}

type ProductRepo interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, filter ProductFilter, skip, limit int64) ([]models.Product, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock subtracts n from the product's quantity only if at least n
	// is available. It reports whether the decrement was applied.
	DecrementStock(ctx context.Context, id primitive.ObjectID, n int) (bool, error)
}

type CartRepo interface {
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	// Save upserts the user's cart with the given items.
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, userID primitive.ObjectID) error
}

// StatusChange carries the fields recorded alongside a status transition.
type StatusChange struct {
	GatewayRef string
	PaidAt     *time.Time
}

type OrderRepo interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// TransitionStatus moves the order from one status to another and reports
	// whether this call performed the change. It returns false when the order
	// was no longer in the from status.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.PaymentStatus, change StatusChange) (bool, error)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateKey
	default:
		return err
	}
}
