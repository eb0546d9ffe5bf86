// Package recommend trains and serves the care-success, diagnosis and
// fertilizer predictors.
//
// Trained predictors live in an immutable snapshot behind an atomic pointer.
// Predictions never lock. Retraining builds a complete new snapshot while
// predictions keep using the previous one, then swaps it in.
package recommend

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
	"plant-advisor/internal/common/observability"
	"plant-advisor/internal/models"
)

// Engine owns the training corpus and the current snapshot.
type Engine struct {
	cfg         config.RecommendConfig
	log         logger.Logger
	persistence Persistence
	feedback    models.FeedbackRepository
	obs         *observability.Observability
	seed        func() models.Corpus
	now         func() time.Time

	trainMu       sync.Mutex
	corpus        models.Corpus
	feedbackCount int

	current atomic.Pointer[snapshot]
}

type Option func(*Engine)

// WithPersistence stores snapshots after every retrain and loads one on Initialize.
func WithPersistence(p Persistence) Option {
	return func(e *Engine) { e.persistence = p }
}

// WithFeedbackRepository records raw feedback as it arrives.
func WithFeedbackRepository(r models.FeedbackRepository) Option {
	return func(e *Engine) { e.feedback = r }
}

// WithSeedCorpus replaces the built-in training data.
func WithSeedCorpus(seed func() models.Corpus) Option {
	return func(e *Engine) { e.seed = seed }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(e *Engine) { e.obs = obs }
}

func New(cfg config.RecommendConfig, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:  cfg,
		log:  log.WithFields(map[string]interface{}{"component": "recommend"}),
		seed: SeedCorpus,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.RetrainEvery <= 0 {
		e.cfg.RetrainEvery = 10
	}
	return e
}

func (e *Engine) forestConfig() ForestConfig {
	return ForestConfig{
		Trees:           e.cfg.Trees,
		MaxDepth:        e.cfg.MaxDepth,
		MinSamplesSplit: e.cfg.MinSamplesSplit,
		Seed:            e.cfg.Seed,
	}
}

// Initialize loads the last snapshot from persistence or, when there is none
// or it cannot be used, trains on the seed corpus. Persistence problems are
// logged and never returned.
func (e *Engine) Initialize(ctx context.Context) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if state := e.load(ctx); state != nil {
		e.corpus = state.Corpus.Clone()
		e.feedbackCount = state.FeedbackCount

		snap, err := restoreSnapshot(state, e.log)
		if err == nil {
			e.current.Store(snap)
			e.log.Info("Restored model snapshot", map[string]interface{}{
				"version":  snap.version,
				"examples": e.corpus.Counts(),
			})
			return nil
		}
		e.log.Warn("Stored snapshot unusable, retraining from stored corpus", map[string]interface{}{"error": err.Error()})
	} else {
		e.corpus = e.seed()
		e.feedbackCount = 0
	}

	return e.retrainLocked(ctx)
}

func (e *Engine) load(ctx context.Context) *SnapshotState {
	if e.persistence == nil {
		return nil
	}
	state, err := e.persistence.Load(ctx)
	switch {
	case stderrors.Is(err, ErrNoSnapshot):
		e.log.Info("No stored snapshot, using seed corpus", nil)
		return nil
	case err != nil:
		e.log.Warn("Snapshot load failed, using seed corpus", map[string]interface{}{"error": err.Error()})
		return nil
	case state == nil || len(state.Corpus) == 0:
		e.log.Warn("Stored snapshot has no corpus, using seed corpus", nil)
		return nil
	}
	return state
}

// EnsureTrained trains on the seed corpus only if nothing is installed yet.
func (e *Engine) EnsureTrained(ctx context.Context) error {
	if e.Trained() {
		return nil
	}
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	if e.current.Load() != nil {
		return nil
	}
	if e.corpus == nil {
		e.corpus = e.seed()
	}
	return e.retrainLocked(ctx)
}

// Trained reports whether a snapshot is installed.
func (e *Engine) Trained() bool {
	return e.current.Load() != nil
}

// Retrain rebuilds every predictor from the current corpus and saves the result.
func (e *Engine) Retrain(ctx context.Context) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	if e.corpus == nil {
		e.corpus = e.seed()
	}
	return e.retrainLocked(ctx)
}

func (e *Engine) retrainLocked(ctx context.Context) error {
	start := time.Now()
	snap, err := e.train(e.corpus.Clone())
	if err != nil {
		metrics.Retrains.WithLabelValues("failed").Inc()
		e.log.Error("Training failed, keeping previous models", map[string]interface{}{"error": err.Error()})
		return err
	}

	e.current.Store(snap)
	metrics.Retrains.WithLabelValues("ok").Inc()

	fields := map[string]interface{}{
		"version":    snap.version,
		"examples":   snap.corpus.Counts(),
		"durationMs": time.Since(start).Milliseconds(),
	}
	for _, task := range models.AllTasks() {
		if f := snap.forest(task); f != nil {
			fields["oob_"+string(task)] = f.OOBScore
		}
	}
	e.log.Info("Models trained", fields)

	if err := e.saveLocked(ctx); err != nil {
		e.log.Warn("Snapshot save failed, continuing in memory", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// train builds a snapshot over corpus. A task with fewer than two examples,
// or a classification task with a single label, is left untrained. Dimension
// mismatches abort the whole run.
func (e *Engine) train(corpus models.Corpus) (*snapshot, error) {
	cfg := e.forestConfig()
	snap := &snapshot{
		version:   uuid.NewString(),
		trainedAt: e.now(),
		corpus:    corpus,
		encoder:   NewEncoder(corpus, e.log),
	}
	snap.encoder.Freeze(modelFeatures()...)
	snap.vectorizer = fitSymptomVectorizer(corpus[models.TaskDiagnosis])

	var err error
	if snap.care, err = e.trainTask(models.TaskCareSuccess, corpus, func(rows []models.TrainingExample) (*Forest, error) {
		return trainCare(snap.encoder, rows, cfg)
	}); err != nil {
		return nil, err
	}
	if snap.disease, err = e.trainTask(models.TaskDiagnosis, corpus, func(rows []models.TrainingExample) (*Forest, error) {
		return trainDisease(snap.encoder, snap.vectorizer, rows, cfg)
	}); err != nil {
		return nil, err
	}
	if snap.fertilizer, err = e.trainTask(models.TaskFertilizer, corpus, func(rows []models.TrainingExample) (*Forest, error) {
		return trainFertilizer(snap.encoder, rows, cfg)
	}); err != nil {
		return nil, err
	}

	if snap.care == nil && snap.disease == nil && snap.fertilizer == nil {
		return nil, errors.NewInsufficientTrainingDataError("all", 0)
	}
	return snap, nil
}

func (e *Engine) trainTask(task models.Task, corpus models.Corpus, fit func([]models.TrainingExample) (*Forest, error)) (*Forest, error) {
	rows := corpus[task]
	if len(rows) < 2 {
		e.log.Warn("Insufficient data, task left untrained", map[string]interface{}{
			"task":     string(task),
			"examples": len(rows),
		})
		return nil, nil
	}
	f, err := fit(rows)
	if errors.HasCode(err, errors.ErrCodeInsufficientTrainingData) {
		e.log.Warn("Insufficient data, task left untrained", map[string]interface{}{
			"task":     string(task),
			"examples": len(rows),
			"error":    err.Error(),
		})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", task, err)
	}
	return f, nil
}

// Save writes the current snapshot and corpus to persistence.
func (e *Engine) Save(ctx context.Context) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	return e.saveLocked(ctx)
}

func (e *Engine) saveLocked(ctx context.Context) error {
	if e.persistence == nil {
		return nil
	}
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	if err := e.persistence.Save(ctx, snap.state(e.corpus.Clone(), e.feedbackCount)); err != nil {
		return errors.NewPersistenceFailedError("save", err)
	}
	return nil
}

// PredictCareSuccess estimates how likely the described care setup succeeds.
func (e *Engine) PredictCareSuccess(ctx context.Context, features map[string]string) (*CareSuccessResult, error) {
	var out *CareSuccessResult
	err := e.predict(ctx, models.TaskCareSuccess, func(s *snapshot) (err error) {
		out, err = s.careSuccess(features)
		return err
	})
	return out, err
}

// Diagnose classifies free-text symptoms in the context of features.
func (e *Engine) Diagnose(ctx context.Context, symptoms string, features map[string]string) (*DiagnosisResult, error) {
	var out *DiagnosisResult
	err := e.predict(ctx, models.TaskDiagnosis, func(s *snapshot) (err error) {
		out, err = s.diagnose(symptoms, features)
		return err
	})
	return out, err
}

// RecommendFertilizer picks a fertilizer type for the described plant.
func (e *Engine) RecommendFertilizer(ctx context.Context, features map[string]string) (*FertilizerResult, error) {
	var out *FertilizerResult
	err := e.predict(ctx, models.TaskFertilizer, func(s *snapshot) (err error) {
		out, err = s.recommendFertilizer(features)
		return err
	})
	return out, err
}

func (e *Engine) predict(ctx context.Context, task models.Task, run func(*snapshot) error) error {
	start := time.Now()
	var err error
	if snap := e.current.Load(); snap == nil {
		err = errors.NewModelNotTrainedError(string(task))
	} else {
		err = run(snap)
	}
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.HasCode(err, errors.ErrCodeModelNotTrained):
		outcome = "not_trained"
	case err != nil:
		outcome = "error"
	}
	metrics.Predictions.WithLabelValues(string(task), outcome).Inc()
	metrics.PredictionDuration.WithLabelValues(string(task)).Observe(elapsed.Seconds())
	e.obs.RecordPrediction(ctx, string(task), elapsed, err == nil)
	return err
}

// FeedbackReceipt acknowledges an accepted feedback record.
type FeedbackReceipt struct {
	FeedbackID    string `json:"feedbackId"`
	FeedbackCount int    `json:"feedbackCount"`
	Retrained     bool   `json:"retrained"`
	ModelVersion  string `json:"modelVersion"`
}

// AddFeedback appends record to its task corpus. Every RetrainEvery records
// all predictors are retrained and swapped in together. A failed retrain keeps
// the record and the previous models: the receipt is returned with
// Retrained unset alongside the error.
func (e *Engine) AddFeedback(ctx context.Context, record models.FeedbackRecord) (*FeedbackReceipt, error) {
	if err := validateFeedback(record); err != nil {
		return nil, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = e.now()
	}

	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if e.corpus == nil {
		e.corpus = e.seed()
	}
	e.corpus[record.Task] = append(e.corpus[record.Task], record.ToExample())
	e.feedbackCount++
	metrics.FeedbackReceived.WithLabelValues(string(record.Task)).Inc()

	if e.feedback != nil {
		if err := e.feedback.AppendFeedback(ctx, record); err != nil {
			e.log.Warn("Feedback not recorded in repository", map[string]interface{}{
				"feedbackId": record.ID,
				"error":      err.Error(),
			})
		}
	}

	receipt := &FeedbackReceipt{FeedbackID: record.ID, FeedbackCount: e.feedbackCount}
	var err error
	if e.feedbackCount%e.cfg.RetrainEvery == 0 {
		e.log.Info("Retraining models with new user feedback", map[string]interface{}{"feedbackCount": e.feedbackCount})
		err = e.retrainLocked(ctx)
		receipt.Retrained = err == nil
	}
	if snap := e.current.Load(); snap != nil {
		receipt.ModelVersion = snap.version
	}
	return receipt, err
}

func validateFeedback(record models.FeedbackRecord) error {
	if !record.Task.Valid() {
		return errors.NewFeedbackInvalidError(fmt.Sprintf("unknown task %q", record.Task))
	}
	if strings.TrimSpace(record.UserID) == "" {
		return errors.NewFeedbackInvalidError("userId is required")
	}
	switch record.Task {
	case models.TaskCareSuccess:
		if record.SuccessRate < 0 || record.SuccessRate > 1 {
			return errors.NewFeedbackInvalidError("successRate must be within [0,1]")
		}
	case models.TaskDiagnosis:
		if strings.TrimSpace(record.Symptoms) == "" {
			return errors.NewFeedbackInvalidError("symptoms are required for diagnosis feedback")
		}
		fallthrough
	case models.TaskFertilizer:
		if strings.TrimSpace(record.Label) == "" {
			return errors.NewFeedbackInvalidError("label is required")
		}
	}
	return nil
}

// Corpus returns a copy of the training data.
func (e *Engine) Corpus() models.Corpus {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	return e.corpus.Clone()
}

// Stats describes the installed snapshot.
type Stats struct {
	Trained       bool                    `json:"trained"`
	Version       string                  `json:"version,omitempty"`
	TrainedAt     time.Time               `json:"trainedAt"`
	Examples      map[models.Task]int     `json:"examples"`
	FeedbackCount int                     `json:"feedbackCount"`
	OOBScores     map[models.Task]float64 `json:"oobScores,omitempty"`
}

func (e *Engine) Stats() Stats {
	e.trainMu.Lock()
	stats := Stats{Examples: e.corpus.Counts(), FeedbackCount: e.feedbackCount}
	e.trainMu.Unlock()

	snap := e.current.Load()
	if snap == nil {
		return stats
	}
	stats.Trained = true
	stats.Version = snap.version
	stats.TrainedAt = snap.trainedAt
	stats.OOBScores = make(map[models.Task]float64)
	for _, task := range models.AllTasks() {
		if f := snap.forest(task); f != nil {
			stats.OOBScores[task] = f.OOBScore
		}
	}
	return stats
}

// Vocabulary exposes the installed encoder's vocabulary for a feature.
func (e *Engine) Vocabulary(feature string) []string {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	return snap.encoder.Vocabulary(feature)
}
