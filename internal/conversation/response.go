package conversation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/knowledge"
	"plant-advisor/internal/recommend"
)

// ResponseType tells the caller how to render a Response.
type ResponseType string

const (
	TypeMenu           ResponseType = "main_categories"
	TypeGreeting       ResponseType = "greeting"
	TypeQuestion       ResponseType = "question"
	TypeDetailedAnswer ResponseType = "detailed_answer"
	TypeError          ResponseType = "error"
)

// ResponseError explains a recoverable problem with the caller's input, or
// why a prediction is missing from a detailed answer.
type ResponseError struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func responseError(err error) *ResponseError {
	std := errors.AsStandard(err)
	return &ResponseError{Code: std.Code, Message: std.Message}
}

// Response is the result of every conversation operation. Which fields are
// set depends on Type.
type Response struct {
	Type    ResponseType `json:"type"`
	Message string       `json:"message"`

	Options []MenuOption `json:"options,omitempty"`

	Category        Category `json:"category,omitempty"`
	QuestionNumber  int      `json:"question_number,omitempty"`
	TotalQuestions  int      `json:"total_questions,omitempty"`
	CurrentQuestion string   `json:"current_question,omitempty"`
	Choices         []string `json:"choices,omitempty"`

	Error *ResponseError `json:"error,omitempty"`

	PlantType       string                       `json:"plant_type,omitempty"`
	CareSuccess     *recommend.CareSuccessResult `json:"care_success,omitempty"`
	Diagnosis       *recommend.DiagnosisResult   `json:"diagnosis,omitempty"`
	Fertilizer      *recommend.FertilizerResult  `json:"fertilizer,omitempty"`
	PredictionError *ResponseError               `json:"prediction_error,omitempty"`
	PlantInfo       *knowledge.PlantInfo         `json:"plant_info,omitempty"`
	Suggestions     []string                     `json:"suggestions,omitempty"`
}

// Prediction returns whichever prediction the answer carries, or nil.
func (r *Response) Prediction() recommend.Prediction {
	switch {
	case r.CareSuccess != nil:
		return r.CareSuccess
	case r.Diagnosis != nil:
		return r.Diagnosis
	case r.Fertilizer != nil:
		return r.Fertilizer
	}
	return nil
}

const (
	welcomeMessage      = "Hi! I'm your plant care assistant. What would you like to learn about today?"
	greetingMessage     = "Hello there, nice to meet you! I'm your plant care assistant. What would you like to learn about today?"
	chooseMessage       = "I'd love to help with your plants! Please choose one of the topics below to get started."
	noCategoryMessage   = "Please choose a topic before answering questions."
	emptyAnswerMessage  = "Please select one of the available options."
	redirectMessage     = "I'm here to help with your plant! Please answer the current question, or reset to start over."
	completedMessage    = "This conversation is complete. Start a new conversation to ask about something else."
	invalidCategoryText = "That topic isn't available. Please choose one of the topics below."
)

var funcs = template.FuncMap{
	"pct": func(p float64) string { return fmt.Sprintf("%.0f%%", p*100) },
	"default": func(fallback, v string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	},
	"label": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
}

var answerTemplates = template.Must(template.New("answers").Funcs(funcs).Parse(`
{{- define "prediction_error" -}}
{{- if .PredictionError}}
Prediction unavailable: {{.PredictionError.Message}}
{{end -}}
{{- end -}}

{{- define "plant_care" -}}
Plant care guide for {{.PlantType}}

Your situation:
- Plant: {{.PlantType}}
- Environment: {{index .Raw "environment"}}
- Issue: {{index .Raw "care_issue"}}
- Owned for: {{index .Raw "ownership_time"}}
{{template "prediction_error" .}}
{{- with .Care}}
Care success prediction:
- Success probability: {{pct .SuccessProbability}}
- Confidence: {{.Confidence}}
{{range .Recommendations}}- {{.}}
{{end}}{{end}}
Care basics:
{{default "Water when the soil feels dry." .Plant.Care.Watering}}
{{default "Provide bright indirect light." .Plant.Care.Light}}
{{default "Keep it between 65 and 75°F." .Plant.Care.Temperature}}
{{default "Moderate humidity suits most houseplants." .Plant.Care.Humidity}}

Next steps: follow this routine for two weeks, watch how the plant responds and adjust.
{{- end -}}

{{- define "fertilizer" -}}
Fertilizer guide for {{.PlantType}}

Your setup:
- Plant: {{.PlantType}}
- Soil: {{index .Raw "soil_type"}}
- Season: {{index .Raw "season"}}
- Current frequency: {{index .Raw "frequency"}}
{{template "prediction_error" .}}
{{- with .Fertilizer}}
Recommended fertilizer: {{label .FertilizerType}} ({{pct .Confidence}} confidence)
{{with .ApplicationDetails}}- Dilution: {{.Dilution}}
- Frequency: {{.Frequency}}
- Application: {{.Application}}
{{end}}
Seasonal adjustments:
{{range .SeasonalAdjustments}}- {{.}}
{{end}}{{end}}
For this plant:
{{default "Use a balanced fertilizer." .Plant.Fertilizer.Type}}
{{default "Apply monthly during the growing season." .Plant.Fertilizer.Frequency}}
{{default "Follow general guidelines." .Plant.Fertilizer.SpecialNotes}}

Always dilute, apply to moist soil and skip feeding newly repotted plants.
{{- end -}}

{{- define "disease" -}}
Health check for {{.PlantType}}

Symptoms:
- Plant: {{.PlantType}}
- Issues: {{index .Raw "symptoms"}}
- Started: {{index .Raw "timeline"}}
- Recent changes: {{index .Raw "care_history"}}
{{template "prediction_error" .}}
{{- with .Diagnosis}}
Likely diagnosis: {{label .Diagnosis}} ({{pct .Confidence}} confidence)
Treatment: {{.Treatment}}
{{if .AlternativeDiagnoses}}Also possible:
{{range .AlternativeDiagnoses}}- {{label .Diagnosis}} ({{pct .Probability}})
{{end}}{{end}}{{end}}
For this plant:
{{.Plant.Problem "yellow_leaves" "Monitor for common issues."}}
{{.Plant.Problem "brown_spots" "Check for environmental stress."}}
{{.Plant.Problem "wilting" "Review your watering routine."}}

Keep care consistent, inspect for pests and seek help if several symptoms appear at once.
{{- end -}}

{{- define "repotting" -}}
Repotting guide for {{.PlantType}}

Current situation:
- Plant: {{.PlantType}}
- Time in pot: {{index .Raw "pot_time"}}
- Roots: {{index .Raw "root_condition"}}
- Growth: {{index .Raw "growth"}}

When to repot: {{default "Repot when roots fill the pot or growth slows down." .Plant.Repotting.Frequency}}
Best time: {{default "Spring or early summer." .Plant.Repotting.BestTime}}
Signs to watch: {{default "Roots out of the drainage holes, soil drying quickly, stunted growth." .Plant.Repotting.Signs}}
Soil mix: {{default "Well-draining potting mix with added perlite." .Plant.Repotting.SoilMix}}

Use a pot one or two inches wider, water a day before and hold off fertilizing for four to six weeks afterwards.
{{- end -}}
`))

type answerView struct {
	PlantType       string
	Raw             map[string]string
	Care            *recommend.CareSuccessResult
	Diagnosis       *recommend.DiagnosisResult
	Fertilizer      *recommend.FertilizerResult
	PredictionError *ResponseError
	Plant           knowledge.PlantInfo
}

func renderAnswer(category Category, view answerView) (string, error) {
	var buf bytes.Buffer
	if err := answerTemplates.ExecuteTemplate(&buf, string(category), view); err != nil {
		return "", fmt.Errorf("render %s answer: %w", category, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
