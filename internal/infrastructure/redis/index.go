package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/estate-hub/estate-hub/internal/domain/notification"
	"github.com/estate-hub/estate-hub/internal/domain/property"
)

const defaultKey = "estate:properties:active"

// SearchIndex keeps the ids of buyer-visible properties in a sorted set scored
// by the time they became active. It follows property transition events, so
// it may briefly lag the database; readers re-check status on load.
type SearchIndex struct {
	client goredis.Cmdable
	key    string
}

func NewClient(addr, password string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: 0})
}

func NewSearchIndex(client goredis.Cmdable) *SearchIndex {
	return &SearchIndex{client: client, key: defaultKey}
}

func (s *SearchIndex) ActiveIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := s.client.ZRevRange(ctx, s.key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read search index: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Publish adds a property on its way into ACTIVE and removes it on any other
// property transition. Events for other entities are ignored.
func (s *SearchIndex) Publish(ctx context.Context, e notification.Event) error {
	if e.Kind != notification.KindTransition || e.Entity != property.EntityType {
		return nil
	}
	if e.To == string(property.StatusActive) {
		return s.client.ZAdd(ctx, s.key, goredis.Z{
			Score:  float64(e.OccurredAt.Unix()),
			Member: e.EntityID.String(),
		}).Err()
	}
	return s.client.ZRem(ctx, s.key, e.EntityID.String()).Err()
}

// Rebuild replaces the index with the given active properties.
func (s *SearchIndex) Rebuild(ctx context.Context, active []*property.Property) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	for _, p := range active {
		pipe.ZAdd(ctx, s.key, goredis.Z{Score: float64(p.UpdatedAt.Unix()), Member: p.ID.String()})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	return nil
}
