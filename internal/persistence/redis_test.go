package persistence

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/models"
	"plant-advisor/internal/recommend"
)

// ==========================
// Test Helper Functions
// ==========================

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleState() *recommend.SnapshotState {
	return &recommend.SnapshotState{
		Version:       "v1",
		TrainedAt:     created,
		FeedbackCount: 3,
		Corpus: models.Corpus{
			models.TaskCareSuccess: {{
				ID:          "c1",
				Task:        models.TaskCareSuccess,
				Features:    map[string]string{"plant_type": "Pothos", "environment": "indoor"},
				SuccessRate: 0.8,
				Source:      models.SourceSeed,
				CreatedAt:   created,
			}},
			models.TaskFertilizer: {{
				ID:        "f1",
				Task:      models.TaskFertilizer,
				Features:  map[string]string{"plant_type": "Succulent", "season": "winter"},
				Label:     "none",
				Source:    models.SourceFeedback,
				CreatedAt: created,
			}},
		},
		Encoder: recommend.EncoderState{"plant_type": {"Pothos", "Succulent"}},
	}
}

func feedback(id string, task models.Task) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:        id,
		UserID:    "u1",
		Task:      task,
		Features:  map[string]string{"plant_type": "Monstera"},
		Label:     "balanced_20_20_20",
		CreatedAt: created,
	}
}

// ==========================
// Snapshots
// ==========================

func TestRedisStore_EmptyLoad(t *testing.T) {
	_, client := setupRedis(t)
	store := NewRedisStore(client, "")

	_, err := store.Load(context.Background())
	assert.True(t, stderrors.Is(err, recommend.ErrNoSnapshot))
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState()))
	assert.True(t, mr.Exists(DefaultSnapshotKey))
	assert.Zero(t, mr.TTL(DefaultSnapshotKey))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
}

func TestRedisStore_CorruptSnapshot(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("custom:key", "{not json"))

	_, err := NewRedisStore(client, "custom:key").Load(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))
}

func TestRedisStore_Failures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "")
	ctx := context.Background()

	mock.ExpectGet(DefaultSnapshotKey).SetErr(fmt.Errorf("connection reset"))
	_, err := store.Load(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))

	mock.ExpectLLen(DefaultSnapshotKey + ":feedback").SetErr(fmt.Errorf("connection reset"))
	_, err = store.CountFeedback(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// The engine trains on first start, saves, and a second engine restores
// the same models from the store.
func TestRedisStore_EngineRestart(t *testing.T) {
	_, client := setupRedis(t)
	store := NewRedisStore(client, "")
	cfg := config.RecommendConfig{Trees: 15, MinSamplesSplit: 2, Seed: 3, RetrainEvery: 10}
	ctx := context.Background()

	first := recommend.New(cfg, logger.NewTestLogger(t), recommend.WithPersistence(store))
	require.NoError(t, first.Initialize(ctx))

	second := recommend.New(cfg, logger.NewTestLogger(t), recommend.WithPersistence(store))
	require.NoError(t, second.Initialize(ctx))
	assert.Equal(t, first.Stats().Version, second.Stats().Version)

	features := map[string]string{"plant_type": "Pothos", "environment": "indoor"}
	want, err := first.PredictCareSuccess(ctx, features)
	require.NoError(t, err)
	got, err := second.PredictCareSuccess(ctx, features)
	require.NoError(t, err)
	assert.InDelta(t, want.SuccessProbability, got.SuccessProbability, 1e-9)
}

// ==========================
// Feedback
// ==========================

func TestRedisStore_Feedback(t *testing.T) {
	_, client := setupRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.AppendFeedback(ctx, feedback("a", models.TaskFertilizer)))
	require.NoError(t, store.AppendFeedback(ctx, feedback("b", models.TaskDiagnosis)))
	require.NoError(t, store.AppendFeedback(ctx, feedback("c", models.TaskFertilizer)))

	n, err := store.CountFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := store.ListFeedback(ctx, models.TaskFertilizer, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[1].ID)

	latest, err := store.ListFeedback(ctx, models.TaskFertilizer, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "c", latest[0].ID)
	assert.Equal(t, "Monstera", latest[0].Features["plant_type"])
}
