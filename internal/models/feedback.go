// internal/models/feedback.go
package models

import (
	"context"
	"time"
)

// FeedbackRecord is what a user reports after following a recommendation.
type FeedbackRecord struct {
	ID          string            `json:"id" db:"id"`
	UserID      string            `json:"userId" db:"user_id"`
	Task        Task              `json:"task" db:"task"`
	Features    map[string]string `json:"features,omitempty" db:"features"`
	Symptoms    string            `json:"symptoms,omitempty" db:"symptoms"`
	Label       string            `json:"label,omitempty" db:"label"`
	SuccessRate float64           `json:"successRate,omitempty" db:"success_rate"`
	Comment     string            `json:"comment,omitempty" db:"comment"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
}

// ToExample converts the record into a training row for its task.
func (f FeedbackRecord) ToExample() TrainingExample {
	features := make(map[string]string, len(f.Features))
	for k, v := range f.Features {
		features[k] = v
	}
	return TrainingExample{
		ID:          f.ID,
		Task:        f.Task,
		Features:    features,
		Symptoms:    f.Symptoms,
		Label:       f.Label,
		SuccessRate: f.SuccessRate,
		Source:      SourceFeedback,
		CreatedAt:   f.CreatedAt,
	}
}

// FeedbackRepository stores raw feedback alongside the training corpus.
type FeedbackRepository interface {
	AppendFeedback(ctx context.Context, record FeedbackRecord) error
	ListFeedback(ctx context.Context, task Task, limit int) ([]FeedbackRecord, error)
	CountFeedback(ctx context.Context) (int, error)
}
