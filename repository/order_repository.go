package repository

import (
	"context"

	"github.com/Dayvhiid/Simple-E-commerce-API/database"
	"github.com/Dayvhiid/Simple-E-commerce-API/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{collection: db.Collection(database.OrdersCollection)}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	res, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return mapError(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"payment_reference": reference})
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, mapError(err)
	}
	return &order, nil
}

// FindByUser returns the user's orders, newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *OrderRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.PaymentStatus, change StatusChange) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, transitionFilter(id, from), transitionUpdate(to, change))
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// transitionFilter matches only while the order is still in the from status;
// of two concurrent callers exactly one sees ModifiedCount == 1.
func transitionFilter(id primitive.ObjectID, from models.PaymentStatus) bson.M {
	return bson.M{"_id": id, "payment_status": from}
}

func transitionUpdate(to models.PaymentStatus, change StatusChange) bson.M {
	set := bson.M{"payment_status": to}
	if change.GatewayRef != "" {
		set["gateway_ref"] = change.GatewayRef
	}
	if change.PaidAt != nil {
		set["paid_at"] = *change.PaidAt
	}
	return bson.M{"$set": set}
}
