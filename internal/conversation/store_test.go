package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "plant-advisor/internal/common/errors"
)

func sampleState(userID string) *State {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return &State{
		UserID:          userID,
		Stage:           StageAwaitingAnswer,
		Category:        CategoryDisease,
		Answers:         []AnsweredQuestion{{Index: 0, Question: "What plant type?", Answer: "Pothos"}},
		CurrentQuestion: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ==========================
// MemoryStore
// ==========================

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	st := sampleState("u1")
	require.NoError(t, store.Save(ctx, st))
	st.Answers[0].Answer = "mutated after save"

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Pothos", loaded.Answers[0].Answer)

	loaded.Answers = append(loaded.Answers, AnsweredQuestion{Index: 1})
	again, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, again.Answers, 1)
}

func TestMemoryStore_NotFoundAndDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx, "ghost")
	assert.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, store.Save(ctx, sampleState("u1")))
	require.NoError(t, store.Delete(ctx, "u1"))
	_, err = store.Load(ctx, "u1")
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.NoError(t, store.Delete(ctx, "u1"))
}

func TestMemoryStore_TTLAndSweep(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("old")))
	now = now.Add(20 * time.Minute)
	require.NoError(t, store.Save(ctx, sampleState("fresh")))

	now = now.Add(15 * time.Minute)
	_, err := store.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrStateNotFound)
	_, err = store.Load(ctx, "fresh")
	assert.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 1, store.Sweep(now))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Save(context.Background(), sampleState("u1")))
	assert.Equal(t, 0, store.Sweep(time.Now().Add(24*365*time.Hour)))
}

func TestMemoryStore_JanitorStopsWithContext(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	require.NoError(t, store.Save(context.Background(), sampleState("u1")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, 5*time.Millisecond, newTestLog(t))
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

// ==========================
// RedisStore
// ==========================

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "plant-advisor:conversation:", time.Hour)
	ctx := context.Background()

	want := sampleState("u1")
	require.NoError(t, store.Save(ctx, want))

	assert.True(t, mr.Exists("plant-advisor:conversation:u1"))
	assert.Equal(t, time.Hour, mr.TTL("plant-advisor:conversation:u1"))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, "u1"))
	_, err = store.Load(ctx, "u1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "conv:", time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("u1")))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "u1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "conv:", 0)

	require.NoError(t, mr.Set("conv:u1", "{not json"))
	_, err := store.Load(context.Background(), "u1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))
}

func TestRedisStore_BackendErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "conv:", time.Minute)
	ctx := context.Background()

	mock.ExpectGet("conv:u1").SetErr(errors.New("connection reset"))
	_, err := store.Load(ctx, "u1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))

	mock.ExpectDel("conv:u1").SetErr(errors.New("connection reset"))
	err = store.Delete(ctx, "u1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Revision checks
// ==========================

func TestStores_RejectStaleRevision(t *testing.T) {
	_, client := setupRedis(t)
	stores := map[string]StateStore{
		"memory": NewMemoryStore(time.Hour),
		"redis":  NewRedisStore(client, "conv:", time.Hour),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := sampleState("u1")
			require.NoError(t, store.Save(ctx, first))
			assert.Equal(t, int64(1), first.Revision)

			a, err := store.Load(ctx, "u1")
			require.NoError(t, err)
			b, err := store.Load(ctx, "u1")
			require.NoError(t, err)

			a.Answers = append(a.Answers, AnsweredQuestion{Index: 1, Answer: "Yellow leaves"})
			require.NoError(t, store.Save(ctx, a))
			assert.Equal(t, int64(2), a.Revision)

			b.Answers = append(b.Answers, AnsweredQuestion{Index: 1, Answer: "Wilting"})
			err = store.Save(ctx, b)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))
			assert.Equal(t, "state was modified concurrently", apperrors.AsStandard(err).Details)
			assert.Equal(t, int64(1), b.Revision)

			stored, err := store.Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "Yellow leaves", stored.Answers[1].Answer)

			// a brand-new state may not replace an existing one
			assert.Error(t, store.Save(ctx, sampleState("u1")))

			require.NoError(t, store.Delete(ctx, "u1"))
			assert.NoError(t, store.Save(ctx, sampleState("u1")))
		})
	}
}
