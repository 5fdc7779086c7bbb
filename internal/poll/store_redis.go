package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pollwatch/pollwatch/internal/domain"
)

const (
	pollKeyPrefix = "poll:"
	scanBatchSize = 100
)

// RedisStore persists each poll as a JSON blob under "poll:<id>".
// A single SET per Save gives the required per-record atomicity for free.
type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, p *domain.Poll) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode poll %s: %w", p.ID, err)
	}
	if err := s.client.Set(ctx, pollKeyPrefix+p.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("save poll %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*domain.Poll, error) {
	data, err := s.client.Get(ctx, pollKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load poll %s: %w", id, err)
	}

	var p domain.Poll
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode poll %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[string]*domain.Poll, error) {
	polls := make(map[string]*domain.Poll)

	iter := s.client.Scan(ctx, 0, pollKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), pollKeyPrefix)
		p, err := s.Load(ctx, id)
		if errors.Is(err, domain.ErrPollNotFound) {
			// Deleted between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, err
		}
		polls[id] = p
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan polls: %w", err)
	}
	return polls, nil
}
