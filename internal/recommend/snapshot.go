package recommend

import (
	"context"
	stderrors "errors"
	"time"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/models"
)

// ErrNoSnapshot is returned by a Persistence that has nothing stored yet.
var ErrNoSnapshot = stderrors.New("no model snapshot stored")

// Persistence saves and restores trained models together with the corpus
// they were trained on.
type Persistence interface {
	Save(ctx context.Context, state *SnapshotState) error
	Load(ctx context.Context) (*SnapshotState, error)
}

// SnapshotState is the serialisable form of the engine.
type SnapshotState struct {
	Version       string        `json:"version"`
	TrainedAt     time.Time     `json:"trainedAt"`
	FeedbackCount int           `json:"feedbackCount"`
	Corpus        models.Corpus `json:"corpus"`
	Encoder       EncoderState  `json:"encoder"`
	Vectorizer    *Vectorizer   `json:"vectorizer,omitempty"`
	Care          *Forest       `json:"care,omitempty"`
	Disease       *Forest       `json:"disease,omitempty"`
	Fertilizer    *Forest       `json:"fertilizer,omitempty"`
}

// snapshot is an immutable set of trained predictors. A nil forest means
// that task could not be trained.
type snapshot struct {
	version   string
	trainedAt time.Time
	corpus    models.Corpus

	encoder    *Encoder
	vectorizer *Vectorizer
	care       *Forest
	disease    *Forest
	fertilizer *Forest
}

func (s *snapshot) forest(task models.Task) *Forest {
	switch task {
	case models.TaskCareSuccess:
		return s.care
	case models.TaskDiagnosis:
		return s.disease
	case models.TaskFertilizer:
		return s.fertilizer
	}
	return nil
}

func (s *snapshot) state(corpus models.Corpus, feedbackCount int) *SnapshotState {
	return &SnapshotState{
		Version:       s.version,
		TrainedAt:     s.trainedAt,
		FeedbackCount: feedbackCount,
		Corpus:        corpus,
		Encoder:       s.encoder.State(),
		Vectorizer:    s.vectorizer,
		Care:          s.care,
		Disease:       s.disease,
		Fertilizer:    s.fertilizer,
	}
}

// restoreSnapshot checks that every stored forest matches the width its
// inputs will have before installing it.
func restoreSnapshot(state *SnapshotState, log logger.Logger) (*snapshot, error) {
	if state.Care == nil && state.Disease == nil && state.Fertilizer == nil {
		return nil, errors.NewModelNotTrainedError("snapshot")
	}
	if state.Care != nil && state.Care.Width != len(careFeatures) {
		return nil, errors.NewDimensionMismatchError(string(models.TaskCareSuccess), len(careFeatures), state.Care.Width)
	}
	if state.Disease != nil {
		if state.Vectorizer == nil {
			return nil, errors.NewDimensionMismatchError(string(models.TaskDiagnosis), state.Disease.Width, 0)
		}
		if want := state.Vectorizer.Dim() + len(diseaseFeatures); state.Disease.Width != want {
			return nil, errors.NewDimensionMismatchError(string(models.TaskDiagnosis), want, state.Disease.Width)
		}
	}
	if state.Fertilizer != nil && state.Fertilizer.Width != len(fertilizerFeatures) {
		return nil, errors.NewDimensionMismatchError(string(models.TaskFertilizer), len(fertilizerFeatures), state.Fertilizer.Width)
	}

	corpus := state.Corpus.Clone()
	encoder := RestoreEncoder(corpus, state.Encoder, log)
	encoder.Freeze(modelFeatures()...)
	return &snapshot{
		version:    state.Version,
		trainedAt:  state.TrainedAt,
		corpus:     corpus,
		encoder:    encoder,
		vectorizer: state.Vectorizer,
		care:       state.Care,
		disease:    state.Disease,
		fertilizer: state.Fertilizer,
	}, nil
}
