package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pawbook/models"

	"github.com/go-redis/redis/v8"
)

const wizardKeyPrefix = "wizard:"

// WizardStore persists wizard snapshots between requests.
type WizardStore interface {
	Save(ctx context.Context, snap models.WizardSnapshot, ttl time.Duration) error
	// Load returns ErrSessionNotFound when nothing is stored under id.
	Load(ctx context.Context, id string) (*models.WizardSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// RedisWizardStore keeps snapshots as JSON with a sliding TTL.
type RedisWizardStore struct {
	client *redis.Client
}

func NewRedisWizardStore(client *redis.Client) *RedisWizardStore {
	return &RedisWizardStore{client: client}
}

func (s *RedisWizardStore) Save(ctx context.Context, snap models.WizardSnapshot, ttl time.Duration) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal wizard %s: %w", snap.ID, err)
	}
	if err := s.client.Set(ctx, wizardKeyPrefix+snap.ID, b, ttl).Err(); err != nil {
		return fmt.Errorf("save wizard %s: %w", snap.ID, err)
	}
	return nil
}

func (s *RedisWizardStore) Load(ctx context.Context, id string) (*models.WizardSnapshot, error) {
	b, err := s.client.Get(ctx, wizardKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard %s: %w", id, err)
	}
	var snap models.WizardSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode wizard %s: %w", id, err)
	}
	return &snap, nil
}

func (s *RedisWizardStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, wizardKeyPrefix+id).Err()
}
