package conversation

import (
	"strings"

	"plant-advisor/internal/recommend"
)

// Answer keys that are not predictor inputs.
const (
	KeyCareIssue     = "care_issue"
	KeyOwnershipTime = "ownership_time"
	KeyFrequency     = "frequency"
	KeySymptoms      = "symptoms"
	KeyTimeline      = "timeline"
	KeyPotTime       = "pot_time"
	KeyRootCondition = "root_condition"
	KeyGrowth        = "growth"
)

// answerKeys maps each question position to the key its answer is stored under.
var answerKeys = map[Category][QuestionsPerCategory]string{
	CategoryPlantCare:  {recommend.FeatureEnvironment, recommend.FeaturePlantType, KeyCareIssue, KeyOwnershipTime},
	CategoryFertilizer: {recommend.FeaturePlantType, recommend.FeatureSoilType, recommend.FeatureSeason, KeyFrequency},
	CategoryDisease:    {recommend.FeaturePlantType, KeySymptoms, KeyTimeline, recommend.FeatureCareHistory},
	CategoryRepotting:  {recommend.FeaturePlantType, KeyPotTime, KeyRootCondition, KeyGrowth},
}

// normalizer is a case-insensitive lookup table with a default for
// unmatched input.
type normalizer struct {
	table    map[string]string
	fallback string
}

func (n normalizer) apply(raw string) string {
	if v, ok := n.table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	return n.fallback
}

var normalizers = map[string]normalizer{
	recommend.FeatureSoilType: {
		table: map[string]string{
			"well-draining soil": "well_draining",
			"well-draining":      "well_draining",
			"well-draining mix":  "well_draining",
			"potting soil":       "well_draining",
			"garden soil":        "well_draining",
			"cactus soil":        "cactus_mix",
			"cactus":             "cactus_mix",
			"i'm not sure":       "well_draining",
		},
		fallback: "well_draining",
	},
	recommend.FeatureEnvironment: {
		table: map[string]string{
			"indoor":       "indoor",
			"outdoor":      "outdoor",
			"both":         "indoor",
			"i'm not sure": "indoor",
		},
		fallback: "indoor",
	},
	recommend.FeatureSeason: {
		table: map[string]string{
			"spring": "spring",
			"summer": "summer",
			"fall":   "fall",
			"autumn": "fall",
			"winter": "winter",
		},
		fallback: "spring",
	},
	KeyFrequency: {
		table: map[string]string{
			"never":            "none",
			"monthly":          "monthly",
			"every 2-3 months": "quarterly",
			"seasonally":       "monthly",
			"i'm not sure":     "monthly",
		},
		fallback: "monthly",
	},
	recommend.FeatureCareHistory: {
		table: map[string]string{
			"no changes":         "normal",
			"no":                 "normal",
			"other":              "normal",
			"repotting":          "repotting",
			"moving location":    "moving_location",
			"change in watering": "watering_change",
			"new fertilizer":     "fertilizer_change",
		},
		fallback: "normal",
	},
}

var canonicalPlants = map[string]string{
	"monstera":        "Monstera",
	"snake plant":     "Snake Plant",
	"pothos":          "Pothos",
	"succulent":       "Succulent",
	"fiddle leaf fig": "Fiddle Leaf Fig",
}

// NormalizePlant returns the canonical spelling of a known plant, or the
// trimmed input.
func NormalizePlant(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if name, ok := canonicalPlants[strings.ToLower(trimmed)]; ok {
		return name
	}
	return trimmed
}

// NormalizeAnswer maps a raw answer to the vocabulary of key. Keys without a
// table pass through trimmed.
func NormalizeAnswer(key, raw string) string {
	if key == recommend.FeaturePlantType {
		return NormalizePlant(raw)
	}
	if n, ok := normalizers[key]; ok {
		return n.apply(raw)
	}
	return strings.TrimSpace(raw)
}

// RawAnswers returns the answers of a category keyed by answer key, as typed.
func RawAnswers(category Category, answers []AnsweredQuestion) map[string]string {
	keys, ok := answerKeys[category]
	out := make(map[string]string, len(answers))
	if !ok {
		return out
	}
	for _, a := range answers {
		if a.Index >= 0 && a.Index < len(keys) {
			out[keys[a.Index]] = a.Answer
		}
	}
	return out
}

// MapAnswers returns the normalized answers of a category keyed by answer key.
func MapAnswers(category Category, answers []AnsweredQuestion) map[string]string {
	out := RawAnswers(category, answers)
	for key, raw := range out {
		out[key] = NormalizeAnswer(key, raw)
	}
	return out
}
