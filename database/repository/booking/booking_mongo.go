package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pawbook/database"
	"pawbook/models"
	"pawbook/services/matching"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingRepo implements matching.BookingRepository using MongoDB.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo creates the repository over the "bookings" collection.
func NewMongoBookingRepo() *MongoBookingRepo {
	repo := &MongoBookingRepo{coll: database.Collection("bookings")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create booking indexes: %v\n", err)
	}
	return repo
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

func (r *MongoBookingRepo) ensureIndexes() error {
	ctx, cancel := withTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "caregiver_queue.caregiver_id", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new booking document.
func (r *MongoBookingRepo) Create(ctx context.Context, req *models.BookingRequest) error {
	ctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its unique ID.
func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.BookingRequest, error) {
	ctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	var req models.BookingRequest
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", matching.ErrBookingNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch booking with id %s: %w", id, err)
	}
	return &req, nil
}

// Replace swaps the stored document for req when its version still equals expectedVersion.
func (r *MongoBookingRepo) Replace(ctx context.Context, req *models.BookingRequest, expectedVersion int) error {
	ctx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": req.ID, "version": expectedVersion}
	result, err := r.coll.ReplaceOne(ctx, filter, req)
	if err != nil {
		return fmt.Errorf("failed to update booking with id %s: %w", req.ID, err)
	}
	if result.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"id": req.ID})
		if err == nil && n == 0 {
			return fmt.Errorf("%w: %s", matching.ErrBookingNotFound, req.ID)
		}
		return matching.ErrVersionConflict
	}
	return nil
}

// ListByStatus returns every booking in one of statuses.
func (r *MongoBookingRepo) ListByStatus(ctx context.Context, statuses []models.BookingStatus) ([]models.BookingRequest, error) {
	return r.find(ctx, bson.M{"status": bson.M{"$in": statuses}}, options.Find())
}

// ListByOwner returns an owner's bookings, newest first.
func (r *MongoBookingRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.BookingRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100)
	return r.find(ctx, bson.M{"owner_id": ownerID}, opts)
}

// ListForCaregiver returns bookings that queued the caregiver, newest first.
func (r *MongoBookingRepo) ListForCaregiver(ctx context.Context, caregiverID string) ([]models.BookingRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100)
	return r.find(ctx, bson.M{"caregiver_queue.caregiver_id": caregiverID}, opts)
}

func (r *MongoBookingRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.BookingRequest, error) {
	ctx, cancel := withTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.BookingRequest
	for cursor.Next(ctx) {
		var req models.BookingRequest
		if err := cursor.Decode(&req); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		out = append(out, req)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("booking cursor: %w", err)
	}
	return out, nil
}
