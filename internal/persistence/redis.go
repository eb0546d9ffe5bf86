// Package persistence stores trained model snapshots and user feedback
// outside the process.
package persistence

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/models"
	"plant-advisor/internal/recommend"
)

// DefaultSnapshotKey is where RedisStore keeps the latest snapshot.
const DefaultSnapshotKey = "plant-advisor:model:snapshot"

// RedisStore keeps the latest snapshot as one JSON value and feedback as a
// list under "<key>:feedback".
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) feedbackKey() string {
	return s.key + ":feedback"
}

func (s *RedisStore) Save(ctx context.Context, state *recommend.SnapshotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.NewPersistenceFailedError("encode", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.NewPersistenceFailedError("save", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*recommend.SnapshotState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, recommend.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.NewPersistenceFailedError("load", err)
	}

	var state recommend.SnapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewPersistenceFailedError("decode", err)
	}
	return &state, nil
}

func (s *RedisStore) AppendFeedback(ctx context.Context, record models.FeedbackRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewPersistenceFailedError("encode feedback", err)
	}
	if err := s.client.RPush(ctx, s.feedbackKey(), data).Err(); err != nil {
		return errors.NewPersistenceFailedError("append feedback", err)
	}
	return nil
}

// ListFeedback returns up to limit of the most recent records for task,
// newest first. A limit of zero or less returns all of them.
func (s *RedisStore) ListFeedback(ctx context.Context, task models.Task, limit int) ([]models.FeedbackRecord, error) {
	items, err := s.client.LRange(ctx, s.feedbackKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.NewPersistenceFailedError("list feedback", err)
	}

	var out []models.FeedbackRecord
	for i := len(items) - 1; i >= 0; i-- {
		var record models.FeedbackRecord
		if err := json.Unmarshal([]byte(items[i]), &record); err != nil {
			return nil, errors.NewPersistenceFailedError("decode feedback", err)
		}
		if record.Task != task {
			continue
		}
		out = append(out, record)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) CountFeedback(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.feedbackKey()).Result()
	if err != nil {
		return 0, errors.NewPersistenceFailedError("count feedback", err)
	}
	return int(n), nil
}
