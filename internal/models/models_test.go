package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTask_Valid(t *testing.T) {
	for _, task := range AllTasks() {
		assert.True(t, task.Valid(), task)
	}
	assert.False(t, Task("repotting").Valid())
	assert.True(t, TaskCareSuccess.Regression())
	assert.False(t, TaskDiagnosis.Regression())
}

func TestFeedbackRecord_ToExample(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := FeedbackRecord{
		ID:        "fb-1",
		UserID:    "u1",
		Task:      TaskDiagnosis,
		Features:  map[string]string{"plant_type": "Pothos"},
		Symptoms:  "wilting",
		Label:     "root_rot",
		Comment:   "worked",
		CreatedAt: now,
	}

	ex := record.ToExample()
	assert.Equal(t, SourceFeedback, ex.Source)
	assert.Equal(t, "Pothos", ex.Feature("plant_type"))
	assert.Equal(t, "root_rot", ex.Label)
	assert.Equal(t, now, ex.CreatedAt)

	record.Features["plant_type"] = "Monstera"
	assert.Equal(t, "Pothos", ex.Feature("plant_type"))
}

func TestCorpus_CloneIsIndependent(t *testing.T) {
	c := Corpus{TaskFertilizer: {{ID: "a"}}}
	clone := c.Clone()
	clone[TaskFertilizer] = append(clone[TaskFertilizer], TrainingExample{ID: "b"})

	assert.Len(t, c[TaskFertilizer], 1)
	assert.Equal(t, map[Task]int{TaskCareSuccess: 0, TaskDiagnosis: 0, TaskFertilizer: 2}, clone.Counts())
	assert.Equal(t, "", TrainingExample{}.Feature("x"))
}

func TestCorpus_Labels(t *testing.T) {
	c := Corpus{TaskDiagnosis: {{Label: "root_rot"}, {Label: "dehydration"}, {Label: "root_rot"}, {}}}
	assert.Equal(t, []string{"dehydration", "root_rot"}, c.Labels(TaskDiagnosis))
	assert.Empty(t, c.Labels(TaskFertilizer))
}
