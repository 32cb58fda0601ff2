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

type ProductRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{collection: db.Collection(database.ProductsCollection)}
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	res, err := r.collection.InsertOne(ctx, product)
	if err != nil {
		return mapError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = id
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

// FindByIDs returns the products that still exist; missing ids are skipped.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) List(ctx context.Context, filter ProductFilter, skip, limit int64) ([]models.Product, int64, error) {
	query := listFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update applies the non-nil fields of update and returns the stored document.
func (r *ProductRepository) Update(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product models.Product
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, productUpdateDoc(update, time.Now().UTC()), opts).Decode(&product)
	if err != nil {
		return nil, mapError(err)
	}
	return &product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id primitive.ObjectID, n int) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, decrementFilter(id, n), decrementUpdate(n, time.Now().UTC()))
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func listFilter(filter ProductFilter) bson.M {
	query := bson.M{}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	return query
}

func productUpdateDoc(update models.ProductUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	return bson.M{"$set": set}
}

// decrementFilter only matches while enough stock remains, so quantity never
// goes negative.
func decrementFilter(id primitive.ObjectID, n int) bson.M {
	return bson.M{"_id": id, "quantity": bson.M{"$gte": n}}
}

func decrementUpdate(n int, now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{"quantity": -n},
		"$set": bson.M{"updated_at": now},
	}
}
