package recommend

// DefaultTreatment is used for diagnoses without a treatment plan.
const DefaultTreatment = "Monitor plant and adjust care routine"

var treatmentPlans = map[string]string{
	"root_rot":            "Remove from pot, trim damaged roots, repot in fresh soil, reduce watering",
	"dehydration":         "Water thoroughly, check soil moisture regularly, consider repotting",
	"light_deficiency":    "Move to brighter location, avoid direct sun, monitor growth",
	"overwatering":        "Let soil dry between waterings, improve drainage, check roots",
	"nutrient_deficiency": "Apply balanced fertilizer, check soil quality, consider repotting",
	"transplant_shock":    "Keep care consistent, avoid fertilizing for a month, keep out of direct sun",
}

// TreatmentFor returns the treatment plan of a diagnosis label.
func TreatmentFor(diagnosis string) string {
	if plan, ok := treatmentPlans[diagnosis]; ok {
		return plan
	}
	return DefaultTreatment
}

var fertilizerDetails = map[string]ApplicationDetails{
	"balanced_20_20_20": {
		Dilution:    "Half strength for most plants",
		Frequency:   "Monthly during growing season",
		Application: "Apply to moist soil, water thoroughly after",
	},
	"cactus_fertilizer": {
		Dilution:    "Quarter strength",
		Frequency:   "Every 2-3 months",
		Application: "Apply sparingly, avoid over-fertilization",
	},
	"none": {
		Dilution:    "N/A",
		Frequency:   "None during dormancy",
		Application: "Resume fertilizing in spring",
	},
}

// DetailsFor returns the application details of a fertilizer type; unknown
// types get the zero value.
func DetailsFor(fertilizerType string) ApplicationDetails {
	return fertilizerDetails[fertilizerType]
}

var seasonalAdjustments = map[string][]string{
	"spring": {"Resume fertilizing", "Increase frequency", "Use full strength"},
	"summer": {"Continue regular schedule", "Monitor plant response", "Adjust if needed"},
	"fall":   {"Reduce frequency", "Use half strength", "Prepare for dormancy"},
	"winter": {"Stop fertilizing", "Focus on light", "Minimize watering"},
}

// SeasonalAdjustments returns the advice list for a season.
func SeasonalAdjustments(season string) []string {
	if adj, ok := seasonalAdjustments[season]; ok {
		return append([]string(nil), adj...)
	}
	return []string{"Follow regular schedule"}
}

// CareRecommendations picks the advice tier for a success probability.
func CareRecommendations(p float64) []string {
	switch {
	case p < 0.5:
		return []string{
			"Consider adjusting light conditions",
			"Check soil drainage",
			"Monitor watering frequency",
			"Consider repotting with fresh soil",
		}
	case p < 0.8:
		return []string{
			"Slight adjustments to care routine",
			"Monitor plant response",
			"Consider seasonal changes",
		}
	default:
		return []string{
			"Continue current care routine",
			"Monitor for any changes",
			"Maintain consistent environment",
		}
	}
}

// ConfidenceLabel buckets a success probability.
func ConfidenceLabel(p float64) string {
	switch {
	case p > 0.8:
		return "high"
	case p > 0.6:
		return "medium"
	default:
		return "low"
	}
}
