package guidedconversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
	"plant-advisor/internal/common/validation"
	"plant-advisor/internal/conversation"
)

const TaskType = "guided-conversation"

// Conversation is the part of conversation.Engine the worker drives.
type Conversation interface {
	Start(ctx context.Context, userID string) (*conversation.Response, error)
	SelectCategory(ctx context.Context, userID, categoryID string) (*conversation.Response, error)
	Answer(ctx context.Context, userID, text string) (*conversation.Response, error)
	Reset(ctx context.Context, userID string) (*conversation.Response, error)
	Status(ctx context.Context, userID string) (*conversation.StatusSnapshot, error)
	HandleFreeText(ctx context.Context, userID, text string) (*conversation.Response, error)
}

type Handler struct {
	config       *Config
	engine       Conversation
	catalog      *conversation.Catalog
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, engine Conversation, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		engine:       engine,
		catalog:      conversation.DefaultCatalog(),
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Debug("Processing conversation job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.ParseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// ParseInput validates the job variables against the conversation job schema.
func (h *Handler) ParseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationFailedError(fmt.Sprintf("job variables are not an object: %v", err))
	}

	result, err := validation.ConversationJobSchema.Validate(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInputValidationFailedError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		resp *conversation.Response
		err  error
	)

	switch input.Action {
	case ActionStart:
		resp, err = h.engine.Start(ctx, input.UserID)
	case ActionSelectCategory:
		resp, err = h.engine.SelectCategory(ctx, input.UserID, input.CategoryID)
	case ActionAnswer:
		resp, err = h.engine.Answer(ctx, input.UserID, input.Message)
	case ActionReset:
		resp, err = h.engine.Reset(ctx, input.UserID)
	case ActionMessage:
		resp, err = h.message(ctx, input)
	case ActionStatus:
		status, err := h.engine.Status(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		return &Output{Status: status}, nil
	default:
		return nil, errors.NewInputValidationFailedError("unknown action " + input.Action)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("Conversation turn handled", map[string]interface{}{
		"userId":       input.UserID,
		"action":       input.Action,
		"responseType": string(resp.Type),
	})
	return &Output{Response: resp}, nil
}

// message turns a typed menu label into a category selection while the user
// is choosing one. Everything else is the engine's free text.
func (h *Handler) message(ctx context.Context, input *Input) (*conversation.Response, error) {
	id, ok := h.catalog.Match(strings.Trim(strings.TrimSpace(input.Message), "!.?"))
	if !ok {
		return h.engine.HandleFreeText(ctx, input.UserID, input.Message)
	}

	status, err := h.engine.Status(ctx, input.UserID)
	switch {
	case errors.HasCode(err, errors.ErrCodeNoActiveSession):
	case err != nil:
		return nil, err
	case status.Stage != conversation.StageAwaitingCategory:
		return h.engine.HandleFreeText(ctx, input.UserID, input.Message)
	}
	return h.engine.SelectCategory(ctx, input.UserID, string(id))
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.failJob(ctx, client, job, errors.NewInternalError(err))
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
