package recommend

import "plant-advisor/internal/models"

// Prediction is the part every task result has in common.
type Prediction interface {
	Task() models.Task
	// Score is the probability the confidence is derived from, in [0,1].
	Score() float64
}

type CareSuccessResult struct {
	SuccessProbability float64  `json:"success_probability"`
	Confidence         string   `json:"confidence"`
	Recommendations    []string `json:"recommendations"`
}

func (r *CareSuccessResult) Task() models.Task { return models.TaskCareSuccess }
func (r *CareSuccessResult) Score() float64    { return r.SuccessProbability }

type Alternative struct {
	Diagnosis   string  `json:"diagnosis"`
	Probability float64 `json:"probability"`
}

type DiagnosisResult struct {
	Diagnosis            string        `json:"diagnosis"`
	Confidence           float64       `json:"confidence"`
	Treatment            string        `json:"treatment"`
	AlternativeDiagnoses []Alternative `json:"alternative_diagnoses"`
}

func (r *DiagnosisResult) Task() models.Task { return models.TaskDiagnosis }
func (r *DiagnosisResult) Score() float64    { return r.Confidence }

type ApplicationDetails struct {
	Dilution    string `json:"dilution,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	Application string `json:"application,omitempty"`
}

type FertilizerResult struct {
	FertilizerType      string             `json:"fertilizer_type"`
	Confidence          float64            `json:"confidence"`
	ApplicationDetails  ApplicationDetails `json:"application_details"`
	SeasonalAdjustments []string           `json:"seasonal_adjustments"`
}

func (r *FertilizerResult) Task() models.Task { return models.TaskFertilizer }
func (r *FertilizerResult) Score() float64    { return r.Confidence }
