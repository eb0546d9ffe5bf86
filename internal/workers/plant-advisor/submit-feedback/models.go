package submitfeedback

import "plant-advisor/internal/models"

type Input struct {
	UserID      string            `json:"userId"`
	Task        string            `json:"task"`
	Features    map[string]string `json:"features,omitempty"`
	Symptoms    string            `json:"symptoms,omitempty"`
	Label       string            `json:"label,omitempty"`
	SuccessRate float64           `json:"successRate,omitempty"`
	Comment     string            `json:"comment,omitempty"`
}

func (i *Input) Record() models.FeedbackRecord {
	return models.FeedbackRecord{
		UserID:      i.UserID,
		Task:        models.Task(i.Task),
		Features:    i.Features,
		Symptoms:    i.Symptoms,
		Label:       i.Label,
		SuccessRate: i.SuccessRate,
		Comment:     i.Comment,
	}
}

type Output struct {
	FeedbackID    string `json:"feedbackId"`
	FeedbackCount int    `json:"feedbackCount"`
	Retrained     bool   `json:"retrained"`
	ModelVersion  string `json:"modelVersion,omitempty"`
}
