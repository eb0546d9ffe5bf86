package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"plant-advisor/internal/common/camunda"
	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/database"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/conversation"
	"plant-advisor/internal/knowledge"
	"plant-advisor/internal/models"
	"plant-advisor/internal/persistence"
	"plant-advisor/internal/recommend"
)

const backendAttempts = 5

// backends holds whichever external stores could be reached. A nil field
// means the component using it runs in memory.
type backends struct {
	redis    *redis.Client
	postgres *sql.DB
	es       *elasticsearch.Client
}

func (b *backends) close(log logger.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("Error closing Redis", map[string]interface{}{"error": err.Error()})
		}
	}
	if b.postgres != nil {
		if err := b.postgres.Close(); err != nil {
			log.Warn("Error closing PostgreSQL", map[string]interface{}{"error": err.Error()})
		}
	}
}

func connectBackends(ctx context.Context, cfg *config.Config, health *database.Health, log logger.Logger) *backends {
	b := &backends{}

	if cfg.Conversation.Store == "redis" || cfg.Recommend.Persistence == "redis" {
		client := database.NewRedis(cfg.Database.Redis)
		ping := database.PingRedis(client)
		if err := camunda.RetryWithBackoff(ctx, ping, backendAttempts, time.Second, log, "Redis connection"); err != nil {
			log.Warn("Redis unavailable, falling back to memory", map[string]interface{}{"error": err.Error()})
			_ = client.Close()
		} else {
			b.redis = client
			health.Register("redis", ping)
			log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
		}
	}

	if cfg.Recommend.Persistence == "postgres" {
		db, err := database.NewPostgres(cfg.Database.Postgres)
		if err == nil {
			ping := database.PingPostgres(db)
			if err = camunda.RetryWithBackoff(ctx, ping, backendAttempts, time.Second, log, "PostgreSQL connection"); err == nil {
				b.postgres = db
				health.Register("postgres", ping)
				log.Info("PostgreSQL connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})
			} else {
				_ = db.Close()
			}
		}
		if err != nil {
			log.Warn("PostgreSQL unavailable, models will not be persisted", map[string]interface{}{"error": err.Error()})
		}
	}

	if cfg.Knowledge.Backend == "elasticsearch" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			ping := database.PingElasticsearch(es)
			if err = camunda.RetryWithBackoff(ctx, ping, backendAttempts, time.Second, log, "Elasticsearch connection"); err == nil {
				b.es = es
				health.Register("elasticsearch", ping)
				log.Info("Elasticsearch connected", nil)
			}
		}
		if err != nil {
			log.Warn("Elasticsearch unavailable, using embedded knowledge base", map[string]interface{}{"error": err.Error()})
		}
	}

	return b
}

// modelStore picks the snapshot store and feedback repository for the
// configured persistence backend.
func modelStore(ctx context.Context, cfg *config.Config, b *backends, log logger.Logger) (recommend.Persistence, models.FeedbackRepository) {
	switch {
	case cfg.Recommend.Persistence == "postgres" && b.postgres != nil:
		store := persistence.NewPostgresStore(b.postgres, log)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Warn("Schema setup failed, models will not be persisted", map[string]interface{}{"error": err.Error()})
			return nil, nil
		}
		return store, store
	case cfg.Recommend.Persistence == "redis" && b.redis != nil:
		store := persistence.NewRedisStore(b.redis, cfg.Recommend.SnapshotKey)
		return store, store
	}
	return nil, nil
}

func stateStore(ctx context.Context, cfg *config.Config, b *backends, log logger.Logger) conversation.StateStore {
	if cfg.Conversation.Store == "redis" && b.redis != nil {
		return conversation.NewRedisStore(b.redis, cfg.Conversation.KeyPrefix, cfg.Conversation.TTL())
	}
	store := conversation.NewMemoryStore(cfg.Conversation.TTL())
	go store.RunJanitor(ctx, config.GetDuration(cfg.Conversation.SweepInterval), log)
	return store
}

func knowledgeProvider(cfg *config.Config, b *backends, log logger.Logger) (knowledge.Provider, error) {
	static, err := knowledge.NewStaticProvider()
	if err != nil {
		return nil, err
	}
	if b.es == nil {
		return static, nil
	}
	return knowledge.NewElasticsearchProvider(b.es, cfg.Knowledge, static, log), nil
}
