package plantcareprediction

import "plant-advisor/internal/recommend"

type Input struct {
	Task     string            `json:"task"`
	Features map[string]string `json:"features,omitempty"`
	Symptoms string            `json:"symptoms,omitempty"`
}

// Output holds exactly one of the task results.
type Output struct {
	Task        string                       `json:"task"`
	CareSuccess *recommend.CareSuccessResult `json:"careSuccess,omitempty"`
	Diagnosis   *recommend.DiagnosisResult   `json:"diagnosis,omitempty"`
	Fertilizer  *recommend.FertilizerResult  `json:"fertilizer,omitempty"`
}
