package ownerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawbook/database"
	"pawbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrOwnerNotFound = errors.New("owner not found")

// MongoOwnerRepo holds owner contact and billing identifiers.
type MongoOwnerRepo struct {
	coll *mongo.Collection
}

func NewMongoOwnerRepo() *MongoOwnerRepo {
	repo := &MongoOwnerRepo{coll: database.Collection("owners")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := repo.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		fmt.Printf("failed to create owner indexes: %v\n", err)
	}
	return repo
}

// GetOwner retrieves an owner by id.
func (r *MongoOwnerRepo) GetOwner(ctx context.Context, ownerID string) (*models.Owner, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var owner models.Owner
	if err := r.coll.FindOne(ctx, bson.M{"id": ownerID}).Decode(&owner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, ownerID)
		}
		return nil, fmt.Errorf("failed to fetch owner with id %s: %w", ownerID, err)
	}
	return &owner, nil
}

// SetStripeCustomerID links the owner to their Stripe customer.
func (r *MongoOwnerRepo) SetStripeCustomerID(ctx context.Context, ownerID, customerID string) error {
	return r.set(ctx, ownerID, bson.M{"stripe_customer_id": customerID})
}

// SetDefaultPaymentMethod stores the card used for web captures.
func (r *MongoOwnerRepo) SetDefaultPaymentMethod(ctx context.Context, ownerID, paymentMethodID string) error {
	return r.set(ctx, ownerID, bson.M{"default_payment_method_id": paymentMethodID})
}

// UpdateFCMToken stores the owner's current device token.
func (r *MongoOwnerRepo) UpdateFCMToken(ctx context.Context, ownerID, token string) error {
	return r.set(ctx, ownerID, bson.M{"fcm_token": token})
}

func (r *MongoOwnerRepo) set(ctx context.Context, ownerID string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["updated_at"] = time.Now().UTC()
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": ownerID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update owner with id %s: %w", ownerID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrOwnerNotFound, ownerID)
	}
	return nil
}
