package services

import (
	apperrors "github.com/Dayvhiid/Simple-E-commerce-API/common/errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func parseID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("Invalid " + what + " id")
	}
	return id, nil
}
