package petRepo

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

// MongoPetRepo reads the pet directory.
type MongoPetRepo struct {
	coll *mongo.Collection
}

func NewMongoPetRepo() *MongoPetRepo {
	repo := &MongoPetRepo{coll: database.Collection("pets")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		fmt.Printf("failed to create pet indexes: %v\n", err)
	}
	return repo
}

// ListPetsForOwner returns the owner's pets ordered by name.
func (r *MongoPetRepo) ListPetsForOwner(ctx context.Context, ownerID string) ([]models.Pet, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve pets for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	pets := []models.Pet{}
	if err := cursor.All(ctx, &pets); err != nil {
		return nil, fmt.Errorf("failed to decode pets: %w", err)
	}
	return pets, nil
}
