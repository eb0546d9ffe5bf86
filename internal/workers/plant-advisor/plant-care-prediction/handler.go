package plantcareprediction

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

const TaskType = "plant-care-prediction"

type Predictor interface {
	PredictCareSuccess(ctx context.Context, features map[string]string) (*recommend.CareSuccessResult, error)
	Diagnose(ctx context.Context, symptoms string, features map[string]string) (*recommend.DiagnosisResult, error)
	RecommendFertilizer(ctx context.Context, features map[string]string) (*recommend.FertilizerResult, error)
}

type Handler struct {
	config       *Config
	predictor    Predictor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, predictor Predictor, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		predictor:    predictor,
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

func (h *Handler) ParseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationFailedError(fmt.Sprintf("job variables are not an object: %v", err))
	}

	result, err := validation.PredictionJobSchema.Validate(variables)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		if result.HasErrors("task") {
			task, _ := variables["task"].(string)
			return nil, errors.NewUnknownTaskError(task)
		}
		return nil, errors.NewInputValidationFailedError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	features := input.Features
	if features == nil {
		features = map[string]string{}
	}

	out := &Output{Task: input.Task}
	var err error
	switch models.Task(input.Task) {
	case models.TaskCareSuccess:
		out.CareSuccess, err = h.predictor.PredictCareSuccess(ctx, features)
	case models.TaskDiagnosis:
		out.Diagnosis, err = h.predictor.Diagnose(ctx, input.Symptoms, features)
	case models.TaskFertilizer:
		out.Fertilizer, err = h.predictor.RecommendFertilizer(ctx, features)
	default:
		return nil, errors.NewUnknownTaskError(input.Task)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Debug("Prediction served", map[string]interface{}{"task": input.Task})
	return out, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
