package validation

// FeedbackSchema describes a feedback record submitted for retraining.
// Care-success feedback needs a success rate; the other tasks need a label.
var FeedbackSchema = MustCompile("feedback", `{
  "type": "object",
  "required": ["userId", "task"],
  "properties": {
    "userId":      {"type": "string", "minLength": 1},
    "task":        {"type": "string", "enum": ["care_success", "diagnosis", "fertilizer"]},
    "features":    {"type": "object", "additionalProperties": {"type": "string"}},
    "symptoms":    {"type": "string"},
    "label":       {"type": "string"},
    "successRate": {"type": "number", "minimum": 0, "maximum": 1},
    "comment":     {"type": "string", "maxLength": 2000}
  },
  "allOf": [
    {
      "if":   {"properties": {"task": {"const": "care_success"}}},
      "then": {"required": ["successRate"]}
    },
    {
      "if":   {"properties": {"task": {"enum": ["diagnosis", "fertilizer"]}}},
      "then": {"required": ["label"], "properties": {"label": {"minLength": 1}}}
    },
    {
      "if":   {"properties": {"task": {"const": "diagnosis"}}},
      "then": {"required": ["symptoms"], "properties": {"symptoms": {"minLength": 1}}}
    }
  ]
}`)

// ConversationJobSchema describes the guided-conversation job variables.
var ConversationJobSchema = MustCompile("conversation-job", `{
  "type": "object",
  "required": ["userId", "action"],
  "properties": {
    "userId":     {"type": "string", "minLength": 1},
    "action":     {"type": "string", "enum": ["start", "select_category", "answer", "reset", "status", "message"]},
    "categoryId": {"type": "string"},
    "message":    {"type": "string"}
  },
  "allOf": [
    {
      "if":   {"properties": {"action": {"const": "select_category"}}},
      "then": {"required": ["categoryId"]}
    }
  ]
}`)

// PredictionJobSchema describes the direct prediction job variables.
var PredictionJobSchema = MustCompile("prediction-job", `{
  "type": "object",
  "required": ["task"],
  "properties": {
    "task":     {"type": "string", "enum": ["care_success", "diagnosis", "fertilizer"]},
    "features": {"type": "object", "additionalProperties": {"type": "string"}},
    "symptoms": {"type": "string"}
  }
}`)
