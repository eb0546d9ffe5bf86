// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Conversation ConversationConfig      `mapstructure:"conversation"`
	Recommend    RecommendConfig         `mapstructure:"recommend"`
	Knowledge    KnowledgeConfig         `mapstructure:"knowledge"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Server       ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Configured reports whether enough of the section is set to attempt a connection.
func (p PostgresConfig) Configured() bool {
	return p.Host != "" && p.Database != "" && p.User != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetAddresses merges the single URL field into the address list.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ConversationConfig controls where per-user conversation state lives.
type ConversationConfig struct {
	Store         string `mapstructure:"store"`          // memory | redis
	SessionTTL    int    `mapstructure:"session_ttl"`    // milliseconds, 0 disables eviction
	SweepInterval int    `mapstructure:"sweep_interval"` // milliseconds
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// RecommendConfig holds the tree-ensemble hyperparameters and retraining policy.
type RecommendConfig struct {
	Trees           int    `mapstructure:"trees"`
	MaxDepth        int    `mapstructure:"max_depth"`
	MinSamplesSplit int    `mapstructure:"min_samples_split"`
	Seed            uint64 `mapstructure:"seed"`
	RetrainEvery    int    `mapstructure:"retrain_every"`
	Persistence     string `mapstructure:"persistence"` // none | redis | postgres
	SnapshotKey     string `mapstructure:"snapshot_key"`
}

type KnowledgeConfig struct {
	Backend string `mapstructure:"backend"` // static | elasticsearch
	Index   string `mapstructure:"index"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Default returns a configuration that runs fully in-memory, used by the CLI
// and tests when no config file is present.
func Default() *Config {
	cfg := &Config{
		App:     AppConfig{Name: "plant-advisor", Version: "dev", Environment: "development"},
		Workers: map[string]WorkerConfig{},
	}
	applyDefaults(cfg)
	return cfg
}

// TTL returns the conversation TTL as a duration.
func (c ConversationConfig) TTL() time.Duration {
	return GetDuration(c.SessionTTL)
}
