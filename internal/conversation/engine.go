// Package conversation runs the guided question-and-answer flow that ends in
// a composite recommendation.
//
// Every operation returns (*Response, error). The error is reserved for
// state store failures; problems with the caller's input come back as a
// Response of TypeError carrying a coded ResponseError and a re-prompt.
package conversation

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
	"plant-advisor/internal/common/observability"
	"plant-advisor/internal/knowledge"
	"plant-advisor/internal/recommend"
)

// Recommender is the part of recommend.Engine the conversation needs.
type Recommender interface {
	PredictCareSuccess(ctx context.Context, features map[string]string) (*recommend.CareSuccessResult, error)
	Diagnose(ctx context.Context, symptoms string, features map[string]string) (*recommend.DiagnosisResult, error)
	RecommendFertilizer(ctx context.Context, features map[string]string) (*recommend.FertilizerResult, error)
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
}

type Engine struct {
	catalog     *Catalog
	store       StateStore
	recommender Recommender
	knowledge   knowledge.Provider
	log         logger.Logger
	obs         *observability.Observability
	now         func() time.Time

	locks sync.Map // user id -> *sync.Mutex
}

type Option func(*Engine)

func WithCatalog(c *Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(e *Engine) { e.obs = obs }
}

func NewEngine(store StateStore, rec Recommender, kb knowledge.Provider, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog:     DefaultCatalog(),
		store:       store,
		recommender: rec,
		knowledge:   kb,
		log:         log.WithFields(map[string]interface{}{"component": "conversation"}),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog exposes the categories the engine serves.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// lock serializes operations for one user within this process. Writers in
// other processes are caught by the store's revision check.
func (e *Engine) lock(userID string) func() {
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) load(ctx context.Context, userID string) (*State, error) {
	st, err := e.store.Load(ctx, userID)
	if stderrors.Is(err, ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) save(ctx context.Context, st *State) error {
	st.UpdatedAt = e.now()
	return e.store.Save(ctx, st)
}

func (e *Engine) finish(ctx context.Context, operation string, resp *Response) *Response {
	if resp.Error != nil {
		metrics.ConversationErrors.WithLabelValues(string(resp.Error.Code)).Inc()
	}
	e.obs.RecordTurn(ctx, operation, string(resp.Type))
	return resp
}

// Start creates or overwrites the user's state and returns the menu.
func (e *Engine) Start(ctx context.Context, userID string) (*Response, error) {
	defer e.lock(userID)()
	return e.start(ctx, userID, welcomeMessage, TypeMenu)
}

// start overwrites whatever state the user has, so it takes over the stored
// revision instead of failing the store's revision check.
func (e *Engine) start(ctx context.Context, userID, message string, typ ResponseType) (*Response, error) {
	st := newState(userID, e.now())
	current, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		st.Revision = current.Revision
	}
	if err := e.save(ctx, st); err != nil {
		return nil, err
	}
	return e.finish(ctx, "start", e.menu(typ, message)), nil
}

func (e *Engine) menu(typ ResponseType, message string) *Response {
	return &Response{Type: typ, Message: message, Options: e.catalog.Menu()}
}

// SelectCategory moves the user to the first question of a category. The
// state is created if the user never called Start.
func (e *Engine) SelectCategory(ctx context.Context, userID, categoryID string) (*Response, error) {
	defer e.lock(userID)()

	id, ok := ParseCategory(categoryID)
	if !ok {
		resp := e.menu(TypeError, invalidCategoryText)
		resp.Error = responseError(errors.NewInvalidCategoryError(categoryID))
		return e.finish(ctx, "select_category", resp), nil
	}
	return e.selectCategory(ctx, userID, id)
}

func (e *Engine) selectCategory(ctx context.Context, userID string, id Category) (*Response, error) {
	info, _ := e.catalog.Get(id)

	st, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = newState(userID, e.now())
	}
	st.Category = id
	st.Stage = StageAwaitingAnswer
	st.CurrentQuestion = 0
	st.Answers = []AnsweredQuestion{}
	if err := e.save(ctx, st); err != nil {
		return nil, err
	}

	metrics.ConversationsStarted.WithLabelValues(string(id)).Inc()
	e.log.Info("Category selected", map[string]interface{}{"userId": userID, "category": string(id)})

	resp := e.question(TypeQuestion, info, 0)
	resp.Message = "Great choice! " + info.Title + "\n\n" + resp.CurrentQuestion
	return e.finish(ctx, "select_category", resp), nil
}

func (e *Engine) question(typ ResponseType, info *CategoryInfo, index int) *Response {
	q, _ := info.Question(index)
	return &Response{
		Type:            typ,
		Message:         q.Prompt,
		Category:        info.ID,
		QuestionNumber:  index + 1,
		TotalQuestions:  len(info.Questions),
		CurrentQuestion: q.Prompt,
		Choices:         append([]string(nil), q.Options...),
	}
}

// Answer records text as the answer to the current question. The last
// answer completes the conversation and returns the detailed answer.
func (e *Engine) Answer(ctx context.Context, userID, text string) (*Response, error) {
	defer e.lock(userID)()

	st, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if st == nil || st.Stage == StageAwaitingCategory {
		resp := e.menu(TypeError, noCategoryMessage)
		resp.Error = responseError(errors.NewNoActiveCategoryError(userID))
		return e.finish(ctx, "answer", resp), nil
	}

	info, ok := e.catalog.Get(st.Category)
	if !ok {
		return nil, errors.NewInternalError(stderrors.New("state references unknown category " + string(st.Category)))
	}

	if st.Stage == StageCompleted {
		resp := &Response{
			Type:        TypeError,
			Message:     completedMessage,
			Category:    st.Category,
			Suggestions: append([]string(nil), info.Suggestions...),
			Error:       responseError(errors.NewConversationCompletedError(userID)),
		}
		return e.finish(ctx, "answer", resp), nil
	}

	index := st.CurrentQuestion
	if strings.TrimSpace(text) == "" {
		resp := e.question(TypeError, info, index)
		resp.Message = emptyAnswerMessage + "\n\nCurrent question: " + resp.CurrentQuestion
		resp.Error = responseError(errors.NewEmptyAnswerError(index))
		return e.finish(ctx, "answer", resp), nil
	}

	q, _ := info.Question(index)
	st.Answers = append(st.Answers, AnsweredQuestion{Index: index, Question: q.Prompt, Answer: text})

	if index+1 < len(info.Questions) {
		st.CurrentQuestion = index + 1
		if err := e.save(ctx, st); err != nil {
			return nil, err
		}
		resp := e.question(TypeQuestion, info, st.CurrentQuestion)
		resp.Message = "Thanks! Next question:\n\n" + resp.CurrentQuestion
		return e.finish(ctx, "answer", resp), nil
	}

	st.Stage = StageCompleted
	if err := e.save(ctx, st); err != nil {
		return nil, err
	}
	metrics.ConversationsCompleted.WithLabelValues(string(st.Category)).Inc()

	resp, err := e.compose(ctx, info, st.Answers)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, "answer", resp), nil
}

// compose maps the answers, asks the recommender and merges the plant's care
// sheet into the final answer. A failed prediction is reported in the
// answer, not returned.
func (e *Engine) compose(ctx context.Context, info *CategoryInfo, answers []AnsweredQuestion) (*Response, error) {
	raw := RawAnswers(info.ID, answers)
	mapped := MapAnswers(info.ID, answers)
	plant := mapped[recommend.FeaturePlantType]

	resp := &Response{
		Type:        TypeDetailedAnswer,
		Category:    info.ID,
		PlantType:   strings.TrimSpace(raw[recommend.FeaturePlantType]),
		Suggestions: append([]string(nil), info.Suggestions...),
	}

	var err error
	switch info.ID {
	case CategoryPlantCare:
		resp.CareSuccess, err = e.recommender.PredictCareSuccess(ctx, map[string]string{
			recommend.FeaturePlantType:   plant,
			recommend.FeatureEnvironment: mapped[recommend.FeatureEnvironment],
		})
	case CategoryFertilizer:
		resp.Fertilizer, err = e.recommender.RecommendFertilizer(ctx, map[string]string{
			recommend.FeaturePlantType: plant,
			recommend.FeatureSoilType:  mapped[recommend.FeatureSoilType],
			recommend.FeatureSeason:    mapped[recommend.FeatureSeason],
		})
	case CategoryDisease:
		resp.Diagnosis, err = e.recommender.Diagnose(ctx, mapped[KeySymptoms], map[string]string{
			recommend.FeaturePlantType:   plant,
			recommend.FeatureEnvironment: "indoor",
			recommend.FeatureCareHistory: mapped[recommend.FeatureCareHistory],
		})
	}
	if err != nil {
		resp.PredictionError = responseError(err)
		e.log.Warn("Prediction unavailable for completed conversation", map[string]interface{}{
			"category":  string(info.ID),
			"errorCode": resp.PredictionError.Code,
		})
	}

	sheet := e.knowledge.GetPlantInfo(ctx, plant)
	if sheet.Found() {
		resp.PlantInfo = &sheet
	}

	resp.Message, err = renderAnswer(info.ID, answerView{
		PlantType:       resp.PlantType,
		Raw:             raw,
		Care:            resp.CareSuccess,
		Diagnosis:       resp.Diagnosis,
		Fertilizer:      resp.Fertilizer,
		PredictionError: resp.PredictionError,
		Plant:           sheet,
	})
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return resp, nil
}

// Reset discards the user's state and starts over.
func (e *Engine) Reset(ctx context.Context, userID string) (*Response, error) {
	defer e.lock(userID)()

	if err := e.store.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return e.start(ctx, userID, welcomeMessage, TypeMenu)
}

// Status returns a read-only view of the user's conversation.
func (e *Engine) Status(ctx context.Context, userID string) (*StatusSnapshot, error) {
	defer e.lock(userID)()

	st, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.NewNoActiveSessionError(userID)
	}
	return st.snapshot(), nil
}

// HandleFreeText answers messages the transport could not classify. It never
// advances past a question: while a question is open it is shown again.
func (e *Engine) HandleFreeText(ctx context.Context, userID, text string) (*Response, error) {
	defer e.lock(userID)()

	st, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return e.start(ctx, userID, welcomeMessage, TypeMenu)
	}

	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(text), "!.?"))

	switch st.Stage {
	case StageAwaitingCategory:
		if _, ok := greetings[normalized]; ok {
			return e.finish(ctx, "message", e.menu(TypeGreeting, greetingMessage)), nil
		}
		resp := e.menu(TypeError, chooseMessage)
		resp.Error = responseError(errors.NewUnrecognizedMessageError(text))
		return e.finish(ctx, "message", resp), nil

	case StageAwaitingAnswer:
		info, ok := e.catalog.Get(st.Category)
		if !ok {
			return nil, errors.NewInternalError(stderrors.New("state references unknown category " + string(st.Category)))
		}
		resp := e.question(TypeError, info, st.CurrentQuestion)
		resp.Message = redirectMessage + "\n\n" + resp.CurrentQuestion
		resp.Error = responseError(errors.NewUnrecognizedMessageError(text))
		return e.finish(ctx, "message", resp), nil
	}

	return e.start(ctx, userID, welcomeMessage, TypeMenu)
}
