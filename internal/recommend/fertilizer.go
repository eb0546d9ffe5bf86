package recommend

import (
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/models"
)

func trainFertilizer(enc *Encoder, rows []models.TrainingExample, cfg ForestConfig) (*Forest, error) {
	x := make([][]float64, len(rows))
	labels := make([]string, len(rows))
	for i, ex := range rows {
		x[i] = encodeRow(enc, fertilizerFeatures, ex.Features, nil)
		labels[i] = ex.Label
	}
	f, err := TrainClassifier(x, labels, cfg)
	if err != nil {
		return nil, err
	}
	if f.Width != len(fertilizerFeatures) {
		return nil, errors.NewDimensionMismatchError(string(models.TaskFertilizer), len(fertilizerFeatures), f.Width)
	}
	return f, nil
}

func (s *snapshot) recommendFertilizer(features map[string]string) (*FertilizerResult, error) {
	if s.fertilizer == nil {
		return nil, errors.NewModelNotTrainedError(string(models.TaskFertilizer))
	}

	probs, err := s.fertilizer.PredictProba(encodeRow(s.encoder, fertilizerFeatures, features, nil))
	if err != nil {
		return nil, err
	}
	best := rankClasses(s.fertilizer.Classes, probs)[0]

	return &FertilizerResult{
		FertilizerType:      best.label,
		Confidence:          best.p,
		ApplicationDetails:  DetailsFor(best.label),
		SeasonalAdjustments: SeasonalAdjustments(valueOr(features, FeatureSeason, "spring")),
	}, nil
}
