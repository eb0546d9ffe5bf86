package recommend

import (
	"fmt"

	"plant-advisor/internal/models"
)

type careSeed struct {
	plant, environment, light, humidity, temperature, soil, watering, fertilizing string
	successRate                                                                   float64
}

type diseaseSeed struct {
	symptoms, plant, careHistory, diagnosis string
}

type fertilizerSeed struct {
	plant, season, soil, age, growth, fertilizer string
}

var careSeeds = []careSeed{
	{"Monstera", "indoor", "bright_indirect", "high", "warm", "well_draining", "weekly", "monthly", 0.95},
	{"Monstera", "indoor", "low", "low", "cool", "heavy", "weekly", "monthly", 0.45},
	{"Snake Plant", "indoor", "low", "low", "cool", "well_draining", "monthly", "quarterly", 0.90},
	{"Snake Plant", "indoor", "bright_direct", "high", "warm", "heavy", "weekly", "monthly", 0.60},
	{"Pothos", "indoor", "bright_indirect", "moderate", "warm", "well_draining", "weekly", "monthly", 0.92},
	{"Pothos", "indoor", "low", "low", "cool", "heavy", "biweekly", "quarterly", 0.70},
	{"Succulent", "outdoor", "bright_direct", "low", "warm", "cactus_mix", "monthly", "quarterly", 0.88},
	{"Succulent", "indoor", "low", "high", "cool", "heavy", "weekly", "monthly", 0.35},
}

var diseaseSeeds = []diseaseSeed{
	{"yellow_leaves, wilting, soft_stem", "Monstera", "overwatering", "root_rot"},
	{"brown_tips, crispy_leaves, slow_growth", "Snake Plant", "underwatering", "dehydration"},
	{"brown_spots, leaf_drop, no_growth", "Fiddle Leaf Fig", "insufficient_light", "light_deficiency"},
	{"yellow_leaves, stunted_growth, pale_color", "Monstera", "normal", "nutrient_deficiency"},
	{"leaf_drop, wilting, brown_edges", "Pothos", "repotting", "transplant_shock"},
	{"yellow_leaves, slow_growth, no_new_leaves", "Snake Plant", "normal", "light_deficiency"},
}

var fertilizerSeeds = []fertilizerSeed{
	{"Monstera", "spring", "well_draining", "mature", "active", "balanced_20_20_20"},
	{"Snake Plant", "summer", "cactus_mix", "mature", "slow", "cactus_fertilizer"},
	{"Succulent", "winter", "cactus_mix", "young", "dormant", "none"},
}

// SeedCorpus returns the built-in training data used when nothing could be
// loaded from persistence.
func SeedCorpus() models.Corpus {
	corpus := make(models.Corpus, 3)

	for i, s := range careSeeds {
		corpus[models.TaskCareSuccess] = append(corpus[models.TaskCareSuccess], models.TrainingExample{
			ID:   fmt.Sprintf("seed-care-%d", i+1),
			Task: models.TaskCareSuccess,
			Features: map[string]string{
				FeaturePlantType:           s.plant,
				FeatureEnvironment:         s.environment,
				FeatureLightLevel:          s.light,
				FeatureHumidity:            s.humidity,
				FeatureTemperature:         s.temperature,
				FeatureSoilType:            s.soil,
				FeatureWateringFrequency:   s.watering,
				FeatureFertilizerFrequency: s.fertilizing,
			},
			SuccessRate: s.successRate,
			Source:      models.SourceSeed,
		})
	}

	for i, s := range diseaseSeeds {
		corpus[models.TaskDiagnosis] = append(corpus[models.TaskDiagnosis], models.TrainingExample{
			ID:   fmt.Sprintf("seed-diagnosis-%d", i+1),
			Task: models.TaskDiagnosis,
			Features: map[string]string{
				FeaturePlantType:   s.plant,
				FeatureEnvironment: "indoor",
				FeatureCareHistory: s.careHistory,
			},
			Symptoms: s.symptoms,
			Label:    s.diagnosis,
			Source:   models.SourceSeed,
		})
	}

	for i, s := range fertilizerSeeds {
		corpus[models.TaskFertilizer] = append(corpus[models.TaskFertilizer], models.TrainingExample{
			ID:   fmt.Sprintf("seed-fertilizer-%d", i+1),
			Task: models.TaskFertilizer,
			Features: map[string]string{
				FeaturePlantType:  s.plant,
				FeatureSeason:     s.season,
				FeatureSoilType:   s.soil,
				FeaturePlantAge:   s.age,
				FeatureGrowthRate: s.growth,
			},
			Label:  s.fertilizer,
			Source: models.SourceSeed,
		})
	}

	return corpus
}
