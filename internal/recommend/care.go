package recommend

import (
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/models"
)

func trainCare(enc *Encoder, rows []models.TrainingExample, cfg ForestConfig) (*Forest, error) {
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, ex := range rows {
		x[i] = encodeRow(enc, careFeatures, ex.Features, nil)
		y[i] = ex.SuccessRate
	}
	f, err := TrainRegressor(x, y, cfg)
	if err != nil {
		return nil, err
	}
	if f.Width != len(careFeatures) {
		return nil, errors.NewDimensionMismatchError(string(models.TaskCareSuccess), len(careFeatures), f.Width)
	}
	return f, nil
}

func (s *snapshot) careSuccess(features map[string]string) (*CareSuccessResult, error) {
	if s.care == nil {
		return nil, errors.NewModelNotTrainedError(string(models.TaskCareSuccess))
	}

	p, err := s.care.Predict(encodeRow(s.encoder, careFeatures, features, nil))
	if err != nil {
		return nil, err
	}
	p = clamp01(p)

	return &CareSuccessResult{
		SuccessProbability: p,
		Confidence:         ConfidenceLabel(p),
		Recommendations:    CareRecommendations(p),
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
