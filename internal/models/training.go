// internal/models/training.go
package models

import (
	"sort"
	"time"
)

const (
	SourceSeed     = "seed"
	SourceFeedback = "feedback"
)

// TrainingExample is one labelled row of a task corpus. Rows are appended and
// never edited.
type TrainingExample struct {
	ID          string            `json:"id" db:"id"`
	Task        Task              `json:"task" db:"task"`
	Features    map[string]string `json:"features" db:"features"`
	Symptoms    string            `json:"symptoms,omitempty" db:"symptoms"`
	Label       string            `json:"label,omitempty" db:"label"`
	SuccessRate float64           `json:"successRate,omitempty" db:"success_rate"`
	Source      string            `json:"source" db:"source"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
}

// Feature returns the named categorical value, or "" when absent.
func (e TrainingExample) Feature(name string) string {
	if e.Features == nil {
		return ""
	}
	return e.Features[name]
}

// Corpus is the training data of every task.
type Corpus map[Task][]TrainingExample

// Clone copies the slices so the result can be appended to independently.
// Examples themselves are shared; they are never mutated.
func (c Corpus) Clone() Corpus {
	out := make(Corpus, len(c))
	for task, rows := range c {
		out[task] = append([]TrainingExample(nil), rows...)
	}
	return out
}

// Counts returns the number of examples per task.
func (c Corpus) Counts() map[Task]int {
	out := make(map[Task]int, len(c))
	for _, task := range AllTasks() {
		out[task] = len(c[task])
	}
	return out
}

// Labels returns the distinct labels of a classification task, sorted.
func (c Corpus) Labels(task Task) []string {
	seen := make(map[string]struct{})
	for _, ex := range c[task] {
		if ex.Label != "" {
			seen[ex.Label] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
