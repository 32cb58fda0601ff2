package repository

import (
	"context"
	"time"

	"github.com/Dayvhiid/Simple-E-commerce-API/database"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(database.CartsCollection)}
}

func (r *CartRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		return nil, mapError(err)
	}
	return &cart, nil
}

func (r *CartRepository) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": cart.UserID},
		cartSaveUpdate(cart),
		options.Update().SetUpsert(true),
	)
	return mapError(err)
}

// Clear empties the user's cart. A user without a cart is not an error.
func (r *CartRepository) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"items": []models.CartItem{}, "updated_at": time.Now().UTC()}},
	)
	return err
}

func cartSaveUpdate(cart *models.Cart) bson.M {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return bson.M{
		"$set":         bson.M{"items": items, "updated_at": cart.UpdatedAt},
		"$setOnInsert": bson.M{"user_id": cart.UserID},
	}
}
