package caregiverRepo

import (
	"context"
	"fmt"
	"time"

	"pawbook/database"
	"pawbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCaregiverRepo reads caregiver directory entries.
type MongoCaregiverRepo struct {
	coll *mongo.Collection
}

func NewMongoCaregiverRepo() *MongoCaregiverRepo {
	repo := &MongoCaregiverRepo{coll: database.Collection("caregivers")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create caregiver indexes: %v\n", err)
	}
	return repo
}

func (r *MongoCaregiverRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "service_types", Value: 1}, {Key: "rating", Value: -1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	return err
}

// ListCaregiverOptionsForServiceType returns caregivers offering serviceType, best rated first.
func (r *MongoCaregiverRepo) ListCaregiverOptionsForServiceType(ctx context.Context, serviceType models.ServiceType) ([]models.CaregiverOption, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}})
	return r.find(ctx, bson.M{"service_types": serviceType}, opts)
}

// GetCaregivers loads caregivers by id. Missing ids are simply absent from the result.
func (r *MongoCaregiverRepo) GetCaregivers(ctx context.Context, ids []string) ([]models.CaregiverOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"id": bson.M{"$in": ids}}, options.Find())
}

func (r *MongoCaregiverRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.CaregiverOption, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve caregivers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.CaregiverOption
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode caregivers: %w", err)
	}
	return out, nil
}

// UpdateFCMToken stores the caregiver's current device token.
func (r *MongoCaregiverRepo) UpdateFCMToken(ctx context.Context, caregiverID, token string) error {
	return r.set(ctx, caregiverID, bson.M{"fcm_token": token})
}

// SetAvailable toggles whether the caregiver is offered new bookings.
func (r *MongoCaregiverRepo) SetAvailable(ctx context.Context, caregiverID string, available bool) error {
	return r.set(ctx, caregiverID, bson.M{"available": available})
}

func (r *MongoCaregiverRepo) set(ctx context.Context, caregiverID string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"id": caregiverID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update caregiver with id %s: %w", caregiverID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("caregiver with id %s not found", caregiverID)
	}
	return nil
}
