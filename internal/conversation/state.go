package conversation

import "time"

// Stage is the position of a conversation in the guided flow.
type Stage string

const (
	StageAwaitingCategory Stage = "awaiting_category"
	StageAwaitingAnswer   Stage = "awaiting_answer"
	StageCompleted        Stage = "completed"
)

type AnsweredQuestion struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// State is the per-user conversation record. Answers holds one entry per
// answered question, in order; CurrentQuestion is the index awaiting an
// answer while Stage is StageAwaitingAnswer. Revision counts successful
// saves and is checked by every store before writing.
type State struct {
	UserID          string             `json:"userId"`
	Stage           Stage              `json:"stage"`
	Category        Category           `json:"category,omitempty"`
	Answers         []AnsweredQuestion `json:"answers"`
	CurrentQuestion int                `json:"currentQuestion"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Revision        int64              `json:"revision"`
}

func newState(userID string, now time.Time) *State {
	return &State{
		UserID:    userID,
		Stage:     StageAwaitingCategory,
		Answers:   []AnsweredQuestion{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *State) clone() *State {
	c := *s
	c.Answers = append([]AnsweredQuestion{}, s.Answers...)
	return &c
}

// StatusSnapshot is the read-only view returned by Engine.Status.
type StatusSnapshot struct {
	UserID         string             `json:"userId"`
	Stage          Stage              `json:"stage"`
	Category       Category           `json:"category,omitempty"`
	QuestionNumber int                `json:"questionNumber"`
	TotalQuestions int                `json:"totalQuestions"`
	Answers        []AnsweredQuestion `json:"answers"`
	StartedAt      time.Time          `json:"startedAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (s *State) snapshot() *StatusSnapshot {
	out := &StatusSnapshot{
		UserID:    s.UserID,
		Stage:     s.Stage,
		Category:  s.Category,
		Answers:   append([]AnsweredQuestion{}, s.Answers...),
		StartedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Category != "" {
		out.TotalQuestions = QuestionsPerCategory
	}
	if s.Stage == StageAwaitingAnswer {
		out.QuestionNumber = s.CurrentQuestion + 1
	}
	return out
}
