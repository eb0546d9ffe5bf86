package guidedconversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/conversation"
	"plant-advisor/internal/knowledge"
)

// ==========================
// Mock Conversation Engine
// ==========================

type MockConversation struct {
	mock.Mock
}

func (m *MockConversation) response(args mock.Arguments) (*conversation.Response, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.Response), args.Error(1)
}

func (m *MockConversation) Start(ctx context.Context, userID string) (*conversation.Response, error) {
	return m.response(m.Called(ctx, userID))
}

func (m *MockConversation) SelectCategory(ctx context.Context, userID, categoryID string) (*conversation.Response, error) {
	return m.response(m.Called(ctx, userID, categoryID))
}

func (m *MockConversation) Answer(ctx context.Context, userID, text string) (*conversation.Response, error) {
	return m.response(m.Called(ctx, userID, text))
}

func (m *MockConversation) Reset(ctx context.Context, userID string) (*conversation.Response, error) {
	return m.response(m.Called(ctx, userID))
}

func (m *MockConversation) HandleFreeText(ctx context.Context, userID, text string) (*conversation.Response, error) {
	return m.response(m.Called(ctx, userID, text))
}

func (m *MockConversation) Status(ctx context.Context, userID string) (*conversation.StatusSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.StatusSnapshot), args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "plant-advisor",
		ElementId:          "Activity_GuidedConversation",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newHandler(t *testing.T, engine Conversation) *Handler {
	t.Helper()
	h, err := NewHandler(DefaultConfig(), engine, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

// ==========================
// Configuration Tests
// ==========================

func TestConfigFromWorker(t *testing.T) {
	cfg := ConfigFromWorker(config.WorkerConfig{Enabled: true, MaxJobsActive: 7, Timeout: 2500})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)

	defaults := ConfigFromWorker(config.WorkerConfig{})
	assert.False(t, defaults.Enabled)
	assert.Equal(t, 20, defaults.MaxJobsActive)
	assert.Equal(t, 10*time.Second, defaults.Timeout)
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{MaxJobsActive: 1}, new(MockConversation), logger.NewNoOpLogger())
	assert.ErrorContains(t, err, "timeout must be positive")
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		want      *Input
	}{
		{
			name:      "start",
			variables: map[string]interface{}{"userId": "u1", "action": "start"},
			want:      &Input{UserID: "u1", Action: ActionStart},
		},
		{
			name:      "answer with message",
			variables: map[string]interface{}{"userId": "u1", "action": "answer", "message": "Monstera"},
			want:      &Input{UserID: "u1", Action: ActionAnswer, Message: "Monstera"},
		},
		{
			name:      "select category",
			variables: map[string]interface{}{"userId": "u1", "action": "select_category", "categoryId": "disease"},
			want:      &Input{UserID: "u1", Action: ActionSelectCategory, CategoryID: "disease"},
		},
		{
			name:      "select category without id",
			variables: map[string]interface{}{"userId": "u1", "action": "select_category"},
			wantErr:   true,
		},
		{
			name:      "missing user",
			variables: map[string]interface{}{"action": "start"},
			wantErr:   true,
		},
		{
			name:      "unknown action",
			variables: map[string]interface{}{"userId": "u1", "action": "dance"},
			wantErr:   true,
		},
	}

	h := newHandler(t, new(MockConversation))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.ParseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute_Dispatch(t *testing.T) {
	menu := &conversation.Response{Type: conversation.TypeMenu}
	question := &conversation.Response{Type: conversation.TypeQuestion}

	tests := []struct {
		name  string
		input *Input
		setup func(m *MockConversation)
		want  *conversation.Response
	}{
		{
			name:  "start",
			input: &Input{UserID: "u1", Action: ActionStart},
			setup: func(m *MockConversation) { m.On("Start", mock.Anything, "u1").Return(menu, nil) },
			want:  menu,
		},
		{
			name:  "select category",
			input: &Input{UserID: "u1", Action: ActionSelectCategory, CategoryID: "fertilizer"},
			setup: func(m *MockConversation) {
				m.On("SelectCategory", mock.Anything, "u1", "fertilizer").Return(question, nil)
			},
			want: question,
		},
		{
			name:  "answer",
			input: &Input{UserID: "u1", Action: ActionAnswer, Message: "Pothos"},
			setup: func(m *MockConversation) { m.On("Answer", mock.Anything, "u1", "Pothos").Return(question, nil) },
			want:  question,
		},
		{
			name:  "reset",
			input: &Input{UserID: "u1", Action: ActionReset},
			setup: func(m *MockConversation) { m.On("Reset", mock.Anything, "u1").Return(menu, nil) },
			want:  menu,
		},
		{
			name:  "free text",
			input: &Input{UserID: "u1", Action: ActionMessage, Message: "hello"},
			setup: func(m *MockConversation) { m.On("HandleFreeText", mock.Anything, "u1", "hello").Return(menu, nil) },
			want:  menu,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockConversation)
			tt.setup(engine)

			output, err := newHandler(t, engine).Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Same(t, tt.want, output.Response)
			assert.Nil(t, output.Status)
			engine.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_Status(t *testing.T) {
	engine := new(MockConversation)
	snapshot := &conversation.StatusSnapshot{UserID: "u1", Stage: conversation.StageAwaitingAnswer}
	engine.On("Status", mock.Anything, "u1").Return(snapshot, nil).Once()
	engine.On("Status", mock.Anything, "u2").Return(nil, errors.NewNoActiveSessionError("u2")).Once()
	h := newHandler(t, engine)

	output, err := h.Execute(context.Background(), &Input{UserID: "u1", Action: ActionStatus})
	require.NoError(t, err)
	assert.Same(t, snapshot, output.Status)
	assert.Nil(t, output.Response)

	_, err = h.Execute(context.Background(), &Input{UserID: "u2", Action: ActionStatus})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoActiveSession))
}

func TestHandler_Execute_StoreFailure(t *testing.T) {
	engine := new(MockConversation)
	engine.On("Answer", mock.Anything, "u1", "x").Return(nil, errors.NewSessionStoreFailedError("load", nil))

	_, err := newHandler(t, engine).Execute(context.Background(), &Input{UserID: "u1", Action: ActionAnswer, Message: "x"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionStoreFailed))
	assert.True(t, errors.AsStandard(err).Retryable)
}

func TestHandler_Execute_UnknownAction(t *testing.T) {
	_, err := newHandler(t, new(MockConversation)).Execute(context.Background(), &Input{UserID: "u1", Action: "dance"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
}

func TestHandler_Execute_MessageMatchesCategory(t *testing.T) {
	question := &conversation.Response{Type: conversation.TypeQuestion}
	reprompt := &conversation.Response{Type: conversation.TypeError}

	tests := []struct {
		name  string
		text  string
		setup func(m *MockConversation)
		want  *conversation.Response
	}{
		{
			name: "label while choosing",
			text: "Plant Care!",
			setup: func(m *MockConversation) {
				m.On("Status", mock.Anything, "u1").Return(&conversation.StatusSnapshot{Stage: conversation.StageAwaitingCategory}, nil)
				m.On("SelectCategory", mock.Anything, "u1", "plant_care").Return(question, nil)
			},
			want: question,
		},
		{
			name: "label without a session",
			text: "fertilizer",
			setup: func(m *MockConversation) {
				m.On("Status", mock.Anything, "u1").Return(nil, errors.NewNoActiveSessionError("u1"))
				m.On("SelectCategory", mock.Anything, "u1", "fertilizer").Return(question, nil)
			},
			want: question,
		},
		{
			name: "label during a question",
			text: "fertilizer",
			setup: func(m *MockConversation) {
				m.On("Status", mock.Anything, "u1").Return(&conversation.StatusSnapshot{Stage: conversation.StageAwaitingAnswer}, nil)
				m.On("HandleFreeText", mock.Anything, "u1", "fertilizer").Return(reprompt, nil)
			},
			want: reprompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockConversation)
			tt.setup(engine)

			output, err := newHandler(t, engine).Execute(context.Background(), &Input{UserID: "u1", Action: ActionMessage, Message: tt.text})
			require.NoError(t, err)
			assert.Same(t, tt.want, output.Response)
			engine.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_MessageStatusFailure(t *testing.T) {
	engine := new(MockConversation)
	engine.On("Status", mock.Anything, "u1").Return(nil, errors.NewSessionStoreFailedError("load", nil))

	_, err := newHandler(t, engine).Execute(context.Background(), &Input{UserID: "u1", Action: ActionMessage, Message: "repotting"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionStoreFailed))
	engine.AssertNotCalled(t, "SelectCategory", mock.Anything, mock.Anything, mock.Anything)
}

// ==========================
// Integration Tests
// ==========================

func TestHandler_RepottingConversation(t *testing.T) {
	kb, err := knowledge.NewStaticProvider()
	require.NoError(t, err)
	engine := conversation.NewEngine(conversation.NewMemoryStore(time.Hour), nil, kb, logger.NewTestLogger(t))
	h := newHandler(t, engine)
	ctx := context.Background()

	turns := []map[string]interface{}{
		{"userId": "u9", "action": "start"},
		{"userId": "u9", "action": "select_category", "categoryId": "repotting"},
		{"userId": "u9", "action": "answer", "message": "Monstera"},
		{"userId": "u9", "action": "answer", "message": "More than 3 years"},
		{"userId": "u9", "action": "answer", "message": "Yes, many roots"},
	}
	for i, vars := range turns {
		input, err := h.ParseInput(createMockJob(int64(i+1), vars))
		require.NoError(t, err)
		_, err = h.Execute(ctx, input)
		require.NoError(t, err)
	}

	input, err := h.ParseInput(createMockJob(10, map[string]interface{}{"userId": "u9", "action": "answer", "message": "Yes, no growth"}))
	require.NoError(t, err)
	output, err := h.Execute(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, conversation.TypeDetailedAnswer, output.Response.Type)
	assert.Equal(t, "Monstera", output.Response.PlantType)
	require.NotNil(t, output.Response.PlantInfo)

	vars, err := json.Marshal(output)
	require.NoError(t, err)
	assert.Contains(t, string(vars), `"type":"detailed_answer"`)
}

func TestHandler_TypedCategoryStartsQuestions(t *testing.T) {
	kb, err := knowledge.NewStaticProvider()
	require.NoError(t, err)
	engine := conversation.NewEngine(conversation.NewMemoryStore(time.Hour), nil, kb, logger.NewTestLogger(t))
	h := newHandler(t, engine)
	ctx := context.Background()

	_, err = h.Execute(ctx, &Input{UserID: "u7", Action: ActionStart})
	require.NoError(t, err)

	output, err := h.Execute(ctx, &Input{UserID: "u7", Action: ActionMessage, Message: "Plant care"})
	require.NoError(t, err)
	assert.Equal(t, conversation.TypeQuestion, output.Response.Type)
	assert.Equal(t, conversation.CategoryPlantCare, output.Response.Category)
	assert.Equal(t, 1, output.Response.QuestionNumber)
}
