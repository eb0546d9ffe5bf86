package recommend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/models"
)

// ==========================
// Mocks
// ==========================

type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Save(ctx context.Context, state *SnapshotState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockPersistence) Load(ctx context.Context) (*SnapshotState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SnapshotState), args.Error(1)
}

// jsonPersistence keeps the last snapshot as JSON so restores go through
// the same decoding a real store would.
type jsonPersistence struct {
	mu   sync.Mutex
	data []byte
}

func (p *jsonPersistence) Save(_ context.Context, state *SnapshotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
	return nil
}

func (p *jsonPersistence) Load(_ context.Context) (*SnapshotState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, ErrNoSnapshot
	}
	var state SnapshotState
	if err := json.Unmarshal(p.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) AppendFeedback(ctx context.Context, record models.FeedbackRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockFeedbackRepository) ListFeedback(ctx context.Context, task models.Task, limit int) ([]models.FeedbackRecord, error) {
	args := m.Called(ctx, task, limit)
	return args.Get(0).([]models.FeedbackRecord), args.Error(1)
}

func (m *MockFeedbackRepository) CountFeedback(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// ==========================
// Helpers
// ==========================

func testConfig() config.RecommendConfig {
	return config.RecommendConfig{Trees: 25, MinSamplesSplit: 2, Seed: 42, RetrainEvery: 10}
}

func newTrainedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(testConfig(), logger.NewTestLogger(t), opts...)
	require.NoError(t, e.Initialize(context.Background()))
	require.True(t, e.Trained())
	return e
}

func fertilizerFeedback(i int) models.FeedbackRecord {
	return models.FeedbackRecord{
		UserID: fmt.Sprintf("user-%d", i),
		Task:   models.TaskFertilizer,
		Features: map[string]string{
			FeaturePlantType: "Pothos",
			FeatureSeason:    "summer",
			FeatureSoilType:  "well_draining",
		},
		Label: "balanced_20_20_20",
	}
}

// ==========================
// Training state
// ==========================

func TestEngine_NotTrainedBeforeInitialize(t *testing.T) {
	e := New(testConfig(), logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := e.PredictCareSuccess(ctx, map[string]string{FeaturePlantType: "Monstera"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelNotTrained))
	assert.Equal(t, "model not trained", errors.AsStandard(err).Message)

	_, err = e.Diagnose(ctx, "yellow leaves", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelNotTrained))

	_, err = e.RecommendFertilizer(ctx, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelNotTrained))

	assert.False(t, e.Stats().Trained)
	assert.Nil(t, e.Vocabulary(FeaturePlantType))
}

func TestEngine_EnsureTrainedIsIdempotent(t *testing.T) {
	e := New(testConfig(), logger.NewTestLogger(t))
	require.NoError(t, e.EnsureTrained(context.Background()))
	version := e.Stats().Version

	require.NoError(t, e.EnsureTrained(context.Background()))
	assert.Equal(t, version, e.Stats().Version)
}

func TestEngine_InstalledEncoderIsFrozen(t *testing.T) {
	e := newTrainedEngine(t)
	enc := e.current.Load().encoder

	assert.True(t, enc.frozen.Load())
	state := enc.State()
	for _, feature := range modelFeatures() {
		assert.NotEmpty(t, state[feature], feature)
	}
}

func TestEngine_SingleExampleTaskStaysUntrained(t *testing.T) {
	seed := func() models.Corpus {
		c := SeedCorpus()
		c[models.TaskFertilizer] = c[models.TaskFertilizer][:1]
		return c
	}
	e := newTrainedEngine(t, WithSeedCorpus(seed))

	_, err := e.RecommendFertilizer(context.Background(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelNotTrained))

	_, err = e.PredictCareSuccess(context.Background(), nil)
	assert.NoError(t, err)
}

// ==========================
// Predictions
// ==========================

func TestEngine_PredictCareSuccess(t *testing.T) {
	e := newTrainedEngine(t)

	res, err := e.PredictCareSuccess(context.Background(), map[string]string{
		FeaturePlantType:   "Monstera",
		FeatureEnvironment: "indoor",
		FeatureLightLevel:  "bright_indirect",
		FeatureSoilType:    "well_draining",
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.SuccessProbability, 0.0)
	assert.LessOrEqual(t, res.SuccessProbability, 1.0)
	assert.Equal(t, ConfidenceLabel(res.SuccessProbability), res.Confidence)
	assert.Equal(t, CareRecommendations(res.SuccessProbability), res.Recommendations)
	assert.Equal(t, models.TaskCareSuccess, res.Task())
}

func TestEngine_UnseenValuesDoNotFail(t *testing.T) {
	e := newTrainedEngine(t)

	res, err := e.PredictCareSuccess(context.Background(), map[string]string{
		FeaturePlantType:   "Alien Orchid",
		FeatureEnvironment: "greenhouse on mars",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.SuccessProbability, 0.0)
	assert.LessOrEqual(t, res.SuccessProbability, 1.0)
}

func TestEngine_DiagnoseNovelSymptoms(t *testing.T) {
	e := newTrainedEngine(t)

	res, err := e.Diagnose(context.Background(), "zorblax quimfle", map[string]string{FeaturePlantType: "Pothos"})
	require.NoError(t, err)

	assert.Contains(t, e.Corpus().Labels(models.TaskDiagnosis), res.Diagnosis)
	assert.Greater(t, res.Confidence, 0.0)
	assert.Less(t, res.Confidence, 1.0)
	assert.Equal(t, TreatmentFor(res.Diagnosis), res.Treatment)
	assert.LessOrEqual(t, len(res.AlternativeDiagnoses), 3)
	for _, alt := range res.AlternativeDiagnoses {
		assert.NotEqual(t, res.Diagnosis, alt.Diagnosis)
		assert.LessOrEqual(t, alt.Probability, res.Confidence)
	}
}

func TestEngine_RecommendFertilizer(t *testing.T) {
	e := newTrainedEngine(t)

	res, err := e.RecommendFertilizer(context.Background(), map[string]string{
		FeaturePlantType: "Succulent",
		FeatureSeason:    "winter",
	})
	require.NoError(t, err)

	assert.Contains(t, []string{"balanced_20_20_20", "cactus_fertilizer", "none"}, res.FertilizerType)
	assert.Equal(t, DetailsFor(res.FertilizerType), res.ApplicationDetails)
	assert.Equal(t, SeasonalAdjustments("winter"), res.SeasonalAdjustments)
	assert.Greater(t, res.Confidence, 0.0)
	assert.Less(t, res.Confidence, 1.0)
}

// ==========================
// Feedback
// ==========================

func TestEngine_AddFeedbackValidation(t *testing.T) {
	e := newTrainedEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		record models.FeedbackRecord
	}{
		{"unknown task", models.FeedbackRecord{UserID: "u1", Task: "watering"}},
		{"missing user", models.FeedbackRecord{Task: models.TaskFertilizer, Label: "none"}},
		{"success rate out of range", models.FeedbackRecord{UserID: "u1", Task: models.TaskCareSuccess, SuccessRate: 1.5}},
		{"diagnosis without symptoms", models.FeedbackRecord{UserID: "u1", Task: models.TaskDiagnosis, Label: "root_rot"}},
		{"diagnosis without label", models.FeedbackRecord{UserID: "u1", Task: models.TaskDiagnosis, Symptoms: "wilting"}},
		{"fertilizer without label", models.FeedbackRecord{UserID: "u1", Task: models.TaskFertilizer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AddFeedback(ctx, tt.record)
			assert.True(t, errors.HasCode(err, errors.ErrCodeFeedbackInvalid))
		})
	}
	assert.Equal(t, 0, e.Stats().FeedbackCount)
}

func TestEngine_RetrainsEveryTenFeedbackRecords(t *testing.T) {
	repo := new(MockFeedbackRepository)
	repo.On("AppendFeedback", mock.Anything, mock.AnythingOfType("models.FeedbackRecord")).Return(nil)

	e := newTrainedEngine(t, WithFeedbackRepository(repo))
	ctx := context.Background()
	initial := e.Stats().Version

	for i := 1; i <= 9; i++ {
		receipt, err := e.AddFeedback(ctx, fertilizerFeedback(i))
		require.NoError(t, err)
		assert.False(t, receipt.Retrained)
		assert.Equal(t, i, receipt.FeedbackCount)
		assert.Equal(t, initial, receipt.ModelVersion)
		assert.NotEmpty(t, receipt.FeedbackID)
	}

	receipt, err := e.AddFeedback(ctx, fertilizerFeedback(10))
	require.NoError(t, err)
	assert.True(t, receipt.Retrained)
	assert.NotEqual(t, initial, receipt.ModelVersion)

	stats := e.Stats()
	assert.Equal(t, 10, stats.FeedbackCount)
	assert.Equal(t, 13, stats.Examples[models.TaskFertilizer])
	repo.AssertNumberOfCalls(t, "AppendFeedback", 10)
}

func TestEngine_FailedRetrainKeepsRecordAndReturnsReceipt(t *testing.T) {
	cfg := testConfig()
	cfg.RetrainEvery = 1
	e := New(cfg, logger.NewTestLogger(t), WithSeedCorpus(func() models.Corpus { return models.Corpus{} }))
	ctx := context.Background()

	receipt, err := e.AddFeedback(ctx, fertilizerFeedback(1))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientTrainingData))
	require.NotNil(t, receipt)
	assert.False(t, receipt.Retrained)
	assert.Equal(t, 1, receipt.FeedbackCount)
	assert.NotEmpty(t, receipt.FeedbackID)
	assert.Empty(t, receipt.ModelVersion)
	assert.Len(t, e.Corpus()[models.TaskFertilizer], 1)
	assert.False(t, e.Trained())

	second := fertilizerFeedback(2)
	second.Label = "none"
	receipt, err = e.AddFeedback(ctx, second)
	require.NoError(t, err)
	assert.True(t, receipt.Retrained)
	assert.Equal(t, 2, receipt.FeedbackCount)
	assert.Equal(t, e.Stats().Version, receipt.ModelVersion)
}

func TestEngine_SingleLabelTaskStaysUntrained(t *testing.T) {
	seed := func() models.Corpus {
		c := SeedCorpus()
		rows := c[models.TaskDiagnosis]
		for i := range rows {
			rows[i].Label = "overwatering"
		}
		return c
	}
	e := newTrainedEngine(t, WithSeedCorpus(seed))

	_, err := e.Diagnose(context.Background(), "yellow leaves", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelNotTrained))

	_, err = e.RecommendFertilizer(context.Background(), nil)
	assert.NoError(t, err)
}

func TestEngine_FeedbackRepositoryFailureIsNotFatal(t *testing.T) {
	repo := new(MockFeedbackRepository)
	repo.On("AppendFeedback", mock.Anything, mock.Anything).Return(stderrors.New("connection reset"))

	e := newTrainedEngine(t, WithFeedbackRepository(repo))
	receipt, err := e.AddFeedback(context.Background(), fertilizerFeedback(1))
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.FeedbackCount)
}

func TestEngine_PredictionsDuringRetrain(t *testing.T) {
	e := newTrainedEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := e.Diagnose(ctx, "yellow leaves", nil); err != nil {
					errs <- err
				}
				if _, err := e.PredictCareSuccess(ctx, nil); err != nil {
					errs <- err
				}
			}
		}()
	}

	for i := 1; i <= 20; i++ {
		_, err := e.AddFeedback(ctx, fertilizerFeedback(i))
		require.NoError(t, err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("prediction failed during retrain: %v", err)
	}
}

// ==========================
// Persistence
// ==========================

func TestEngine_LoadFailureFallsBackToSeed(t *testing.T) {
	p := new(MockPersistence)
	p.On("Load", mock.Anything).Return(nil, stderrors.New("dial tcp: connection refused"))
	p.On("Save", mock.Anything, mock.AnythingOfType("*recommend.SnapshotState")).Return(stderrors.New("read-only"))

	e := newTrainedEngine(t, WithPersistence(p))

	assert.Equal(t, SeedCorpus().Counts(), e.Stats().Examples)
	p.AssertExpectations(t)

	err := e.Save(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodePersistenceFailed))
}

func TestEngine_NoSnapshotTrainsAndSaves(t *testing.T) {
	p := new(MockPersistence)
	p.On("Load", mock.Anything).Return(nil, ErrNoSnapshot)
	p.On("Save", mock.Anything, mock.MatchedBy(func(s *SnapshotState) bool {
		return s.Care != nil && s.Disease != nil && s.Fertilizer != nil && s.Vectorizer != nil
	})).Return(nil).Once()

	newTrainedEngine(t, WithPersistence(p))
	p.AssertExpectations(t)
}

func TestEngine_RestoresSavedSnapshot(t *testing.T) {
	store := &jsonPersistence{}
	ctx := context.Background()

	first := newTrainedEngine(t, WithPersistence(store))
	for i := 1; i <= 3; i++ {
		_, err := first.AddFeedback(ctx, fertilizerFeedback(i))
		require.NoError(t, err)
	}
	require.NoError(t, first.Save(ctx))

	second := newTrainedEngine(t, WithPersistence(store))
	assert.Equal(t, first.Stats().Version, second.Stats().Version)
	assert.Equal(t, 3, second.Stats().FeedbackCount)
	assert.Equal(t, first.Stats().Examples, second.Stats().Examples)

	features := map[string]string{FeaturePlantType: "Snake Plant", FeatureLightLevel: "low"}
	a, err := first.PredictCareSuccess(ctx, features)
	require.NoError(t, err)
	b, err := second.PredictCareSuccess(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, a.SuccessProbability, b.SuccessProbability)

	da, err := first.Diagnose(ctx, "brown spots and leaf drop", nil)
	require.NoError(t, err)
	db, err := second.Diagnose(ctx, "brown spots and leaf drop", nil)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

// ==========================
// Tables
// ==========================

func TestCareRecommendationTiers(t *testing.T) {
	assert.Len(t, CareRecommendations(0.3), 4)
	assert.Equal(t, "Slight adjustments to care routine", CareRecommendations(0.6)[0])
	assert.Equal(t, "Continue current care routine", CareRecommendations(0.9)[0])

	assert.Equal(t, "low", ConfidenceLabel(0.6))
	assert.Equal(t, "medium", ConfidenceLabel(0.7))
	assert.Equal(t, "high", ConfidenceLabel(0.81))
}

func TestTreatmentAndSeasonFallbacks(t *testing.T) {
	assert.Equal(t, DefaultTreatment, TreatmentFor("mystery"))
	assert.Equal(t, []string{"Follow regular schedule"}, SeasonalAdjustments("monsoon"))
	assert.Equal(t, ApplicationDetails{}, DetailsFor("fish_emulsion"))
}
