package guidedconversation

import "plant-advisor/internal/conversation"

// Actions a process can drive the conversation with.
const (
	ActionStart          = "start"
	ActionSelectCategory = "select_category"
	ActionAnswer         = "answer"
	ActionReset          = "reset"
	ActionStatus         = "status"
	ActionMessage        = "message"
)

type Input struct {
	UserID     string `json:"userId"`
	Action     string `json:"action"`
	CategoryID string `json:"categoryId,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Output carries Status for the status action and Response otherwise.
type Output struct {
	Response *conversation.Response       `json:"response,omitempty"`
	Status   *conversation.StatusSnapshot `json:"status,omitempty"`
}
