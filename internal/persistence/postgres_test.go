package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/models"
	"plant-advisor/internal/recommend"
)

func setupPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, logger.NewTestLogger(t)), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

// ==========================
// Snapshots
// ==========================

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := setupPostgres(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS training_examples").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupPostgres(t)
	state := sampleState()

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM training_examples")).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(q(insertExampleSQL)).
		WithArgs("c1", "care_success", sqlmock.AnyArg(), "", "", 0.8, models.SourceSeed, created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(insertExampleSQL)).
		WithArgs("f1", "fertilizer", sqlmock.AnyArg(), "", "none", 0.0, models.SourceFeedback, created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(insertSnapshotSQL)).
		WithArgs("v1", created, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, state.Corpus, 2, "caller's corpus is left intact")
}

func TestPostgresStore_SaveRollsBack(t *testing.T) {
	store, mock := setupPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM training_examples")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(insertExampleSQL)).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), sampleState())
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	store, mock := setupPostgres(t)

	stripped := *sampleState()
	stripped.Corpus = nil
	payload, err := json.Marshal(&stripped)
	require.NoError(t, err)

	mock.ExpectQuery(q(latestSnapshotSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectQuery(q(selectExamplesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task", "features", "symptoms", "label", "success_rate", "source", "created_at"}).
			AddRow("c1", "care_success", []byte(`{"plant_type":"Pothos","environment":"indoor"}`), "", "", 0.8, "seed", created).
			AddRow("f1", "fertilizer", []byte(`{"plant_type":"Succulent","season":"winter"}`), "", "none", 0.0, "feedback", created))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleState(), loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadEmpty(t *testing.T) {
	store, mock := setupPostgres(t)
	mock.ExpectQuery(q(latestSnapshotSQL)).WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err := store.Load(context.Background())
	assert.True(t, stderrors.Is(err, recommend.ErrNoSnapshot))
}

func TestPostgresStore_LoadFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "query error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q(latestSnapshotSQL)).WillReturnError(sql.ErrConnDone)
			},
		},
		{
			name: "corrupt payload",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q(latestSnapshotSQL)).
					WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{")))
			},
		},
		{
			name: "corrupt example features",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q(latestSnapshotSQL)).
					WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"version":"v1"}`)))
				mock.ExpectQuery(q(selectExamplesSQL)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "task", "features", "symptoms", "label", "success_rate", "source", "created_at"}).
						AddRow("c1", "care_success", []byte(`[1,2]`), "", "", 0.5, "seed", created))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupPostgres(t)
			tt.setup(mock)

			_, err := store.Load(context.Background())
			assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Feedback
// ==========================

func TestPostgresStore_AppendFeedback(t *testing.T) {
	store, mock := setupPostgres(t)
	record := feedback("fb-1", models.TaskFertilizer)

	mock.ExpectExec(q(insertFeedbackSQL)).
		WithArgs("fb-1", "u1", "fertilizer", []byte(`{"plant_type":"Monstera"}`), "", "balanced_20_20_20", 0.0, "", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendFeedback(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFeedback(t *testing.T) {
	store, mock := setupPostgres(t)

	mock.ExpectQuery(q(listFeedbackSQL)).
		WithArgs("diagnosis", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "task", "features", "symptoms", "label", "success_rate", "comment", "created_at"}).
			AddRow("fb-2", "u2", "diagnosis", []byte(`{"plant_type":"Pothos"}`), "yellow leaves", "overwatering", 0.0, "helped", created))

	records, err := store.ListFeedback(context.Background(), models.TaskDiagnosis, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TaskDiagnosis, records[0].Task)
	assert.Equal(t, "Pothos", records[0].Features["plant_type"])
	assert.Equal(t, "helped", records[0].Comment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountFeedback(t *testing.T) {
	store, mock := setupPostgres(t)
	mock.ExpectQuery(q(countFeedbackSQL)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := store.CountFeedback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	mock.ExpectQuery(q(countFeedbackSQL)).WillReturnError(fmt.Errorf("timeout"))
	_, err = store.CountFeedback(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))
}
