package submitfeedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
	"plant-advisor/internal/common/validation"
	"plant-advisor/internal/models"
	"plant-advisor/internal/recommend"
)

const TaskType = "submit-feedback"

// FeedbackSink accepts feedback for retraining.
type FeedbackSink interface {
	AddFeedback(ctx context.Context, record models.FeedbackRecord) (*recommend.FeedbackReceipt, error)
}

type Handler struct {
	config       *Config
	sink         FeedbackSink
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, sink FeedbackSink, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		sink:         sink,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

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

// ParseInput rejects records that do not match the feedback schema. A
// mismatch is FEEDBACK_INVALID, which is never retried.
func (h *Handler) ParseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewFeedbackInvalidError(fmt.Sprintf("job variables are not an object: %v", err))
	}

	result, err := validation.FeedbackSchema.Validate(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewFeedbackInvalidError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewFeedbackInvalidError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	receipt, err := h.sink.AddFeedback(ctx, input.Record())
	if receipt == nil {
		return nil, err
	}
	// the record is kept even when the retrain fails; retrying would add it twice
	if err != nil {
		h.logger.Warn("Feedback recorded but retrain failed, previous models kept", map[string]interface{}{
			"feedbackId": receipt.FeedbackID,
			"error":      err.Error(),
		})
	}

	h.logger.Info("Feedback recorded", map[string]interface{}{
		"feedbackId":    receipt.FeedbackID,
		"task":          input.Task,
		"feedbackCount": receipt.FeedbackCount,
		"retrained":     receipt.Retrained,
	})

	return &Output{
		FeedbackID:    receipt.FeedbackID,
		FeedbackCount: receipt.FeedbackCount,
		Retrained:     receipt.Retrained,
		ModelVersion:  receipt.ModelVersion,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
