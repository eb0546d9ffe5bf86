package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/models"
	"plant-advisor/internal/recommend"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_examples (
	id           TEXT PRIMARY KEY,
	task         TEXT NOT NULL,
	features     JSONB NOT NULL,
	symptoms     TEXT NOT NULL DEFAULT '',
	label        TEXT NOT NULL DEFAULT '',
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	source       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS model_snapshots (
	version        TEXT PRIMARY KEY,
	trained_at     TIMESTAMPTZ NOT NULL,
	feedback_count INTEGER NOT NULL,
	payload        JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS feedback (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL DEFAULT '',
	task         TEXT NOT NULL,
	features     JSONB NOT NULL,
	symptoms     TEXT NOT NULL DEFAULT '',
	label        TEXT NOT NULL DEFAULT '',
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	comment      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);`

const (
	insertExampleSQL  = `INSERT INTO training_examples (id, task, features, symptoms, label, success_rate, source, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertSnapshotSQL = `INSERT INTO model_snapshots (version, trained_at, feedback_count, payload) VALUES ($1, $2, $3, $4) ON CONFLICT (version) DO UPDATE SET payload = EXCLUDED.payload, feedback_count = EXCLUDED.feedback_count`
	latestSnapshotSQL = `SELECT payload FROM model_snapshots ORDER BY trained_at DESC LIMIT 1`
	selectExamplesSQL = `SELECT id, task, features, symptoms, label, success_rate, source, created_at FROM training_examples ORDER BY created_at, id`
	insertFeedbackSQL = `INSERT INTO feedback (id, user_id, task, features, symptoms, label, success_rate, comment, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	listFeedbackSQL   = `SELECT id, user_id, task, features, symptoms, label, success_rate, comment, created_at FROM feedback WHERE task = $1 ORDER BY created_at DESC LIMIT $2`
	countFeedbackSQL  = `SELECT COUNT(*) FROM feedback`
)

// PostgresStore keeps the corpus row by row in training_examples and each
// trained snapshot, without its corpus, in model_snapshots.
type PostgresStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.WithFields(map[string]interface{}{"component": "postgres_store"})}
}

// EnsureSchema creates the tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewPersistenceFailedError("migrate", err)
	}
	return nil
}

// Save replaces the stored corpus and records the snapshot in one
// transaction.
func (s *PostgresStore) Save(ctx context.Context, state *recommend.SnapshotState) (err error) {
	stripped := *state
	stripped.Corpus = nil
	payload, err := json.Marshal(&stripped)
	if err != nil {
		return errors.NewPersistenceFailedError("encode", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewPersistenceFailedError("begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Warn("Rollback failed", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM training_examples`); err != nil {
		return errors.NewPersistenceFailedError("clear corpus", err)
	}

	rows := 0
	for _, task := range models.AllTasks() {
		for _, ex := range state.Corpus[task] {
			features, mErr := json.Marshal(ex.Features)
			if mErr != nil {
				return errors.NewPersistenceFailedError("encode example", mErr)
			}
			if _, err = tx.ExecContext(ctx, insertExampleSQL,
				ex.ID, string(ex.Task), features, ex.Symptoms, ex.Label, ex.SuccessRate, ex.Source, ex.CreatedAt,
			); err != nil {
				return errors.NewPersistenceFailedError("insert example", err)
			}
			rows++
		}
	}

	if _, err = tx.ExecContext(ctx, insertSnapshotSQL, state.Version, state.TrainedAt, state.FeedbackCount, payload); err != nil {
		return errors.NewPersistenceFailedError("insert snapshot", err)
	}
	if err = tx.Commit(); err != nil {
		return errors.NewPersistenceFailedError("commit", err)
	}

	s.log.Info("Model snapshot saved", map[string]interface{}{
		"version":  state.Version,
		"examples": rows,
	})
	return nil
}

// Load returns the most recent snapshot with the stored corpus attached.
func (s *PostgresStore) Load(ctx context.Context) (*recommend.SnapshotState, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, latestSnapshotSQL).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, recommend.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.NewPersistenceFailedError("load snapshot", err)
	}

	var state recommend.SnapshotState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.NewPersistenceFailedError("decode snapshot", err)
	}

	corpus, err := s.loadCorpus(ctx)
	if err != nil {
		return nil, err
	}
	state.Corpus = corpus
	return &state, nil
}

func (s *PostgresStore) loadCorpus(ctx context.Context) (models.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, selectExamplesSQL)
	if err != nil {
		return nil, errors.NewPersistenceFailedError("load corpus", err)
	}
	defer rows.Close()

	corpus := make(models.Corpus)
	for rows.Next() {
		var (
			ex       models.TrainingExample
			task     string
			features []byte
		)
		if err := rows.Scan(&ex.ID, &task, &features, &ex.Symptoms, &ex.Label, &ex.SuccessRate, &ex.Source, &ex.CreatedAt); err != nil {
			return nil, errors.NewPersistenceFailedError("scan example", err)
		}
		if err := json.Unmarshal(features, &ex.Features); err != nil {
			return nil, errors.NewPersistenceFailedError("decode example", fmt.Errorf("example %s: %w", ex.ID, err))
		}
		ex.Task = models.Task(task)
		corpus[ex.Task] = append(corpus[ex.Task], ex)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceFailedError("load corpus", err)
	}
	return corpus, nil
}

func (s *PostgresStore) AppendFeedback(ctx context.Context, record models.FeedbackRecord) error {
	features, err := json.Marshal(record.Features)
	if err != nil {
		return errors.NewPersistenceFailedError("encode feedback", err)
	}
	if _, err := s.db.ExecContext(ctx, insertFeedbackSQL,
		record.ID, record.UserID, string(record.Task), features, record.Symptoms,
		record.Label, record.SuccessRate, record.Comment, record.CreatedAt,
	); err != nil {
		return errors.NewPersistenceFailedError("append feedback", err)
	}
	return nil
}

// ListFeedback returns the newest records for task. A limit of zero or less
// defaults to 100.
func (s *PostgresStore) ListFeedback(ctx context.Context, task models.Task, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, listFeedbackSQL, string(task), limit)
	if err != nil {
		return nil, errors.NewPersistenceFailedError("list feedback", err)
	}
	defer rows.Close()

	var out []models.FeedbackRecord
	for rows.Next() {
		var (
			r        models.FeedbackRecord
			taskName string
			features []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &taskName, &features, &r.Symptoms, &r.Label, &r.SuccessRate, &r.Comment, &r.CreatedAt); err != nil {
			return nil, errors.NewPersistenceFailedError("scan feedback", err)
		}
		if err := json.Unmarshal(features, &r.Features); err != nil {
			return nil, errors.NewPersistenceFailedError("decode feedback", err)
		}
		r.Task = models.Task(taskName)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceFailedError("list feedback", err)
	}
	return out, nil
}

func (s *PostgresStore) CountFeedback(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countFeedbackSQL).Scan(&n); err != nil {
		return 0, errors.NewPersistenceFailedError("count feedback", err)
	}
	return n, nil
}
