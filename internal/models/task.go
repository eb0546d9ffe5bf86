// internal/models/task.go
package models

// Task names one of the three prediction problems.
type Task string

const (
	TaskCareSuccess Task = "care_success"
	TaskDiagnosis   Task = "diagnosis"
	TaskFertilizer  Task = "fertilizer"
)

func AllTasks() []Task {
	return []Task{TaskCareSuccess, TaskDiagnosis, TaskFertilizer}
}

func (t Task) Valid() bool {
	switch t {
	case TaskCareSuccess, TaskDiagnosis, TaskFertilizer:
		return true
	}
	return false
}

// Regression reports whether the task predicts a number rather than a label.
func (t Task) Regression() bool {
	return t == TaskCareSuccess
}

func (t Task) String() string {
	return string(t)
}
