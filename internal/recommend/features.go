package recommend

// Feature names shared by the training corpus, the predictors and the
// conversation answer mapping.
const (
	FeaturePlantType           = "plant_type"
	FeatureEnvironment         = "environment"
	FeatureLightLevel          = "light_level"
	FeatureHumidity            = "humidity"
	FeatureTemperature         = "temperature"
	FeatureSoilType            = "soil_type"
	FeatureWateringFrequency   = "watering_frequency"
	FeatureFertilizerFrequency = "fertilizer_frequency"
	FeatureCareHistory         = "care_history"
	FeatureSeason              = "season"
	FeaturePlantAge            = "plant_age"
	FeatureGrowthRate          = "growth_rate"
)

// featureSpec is one input column with the value used when it is missing.
type featureSpec struct {
	name     string
	fallback string
}

var careFeatures = []featureSpec{
	{FeaturePlantType, "Unknown"},
	{FeatureEnvironment, "indoor"},
	{FeatureLightLevel, "bright_indirect"},
	{FeatureHumidity, "moderate"},
	{FeatureTemperature, "warm"},
	{FeatureSoilType, "well_draining"},
	{FeatureWateringFrequency, "weekly"},
	{FeatureFertilizerFrequency, "monthly"},
}

var diseaseFeatures = []featureSpec{
	{FeaturePlantType, "Unknown"},
	{FeatureEnvironment, "indoor"},
	{FeatureCareHistory, "normal"},
}

var fertilizerFeatures = []featureSpec{
	{FeaturePlantType, "Unknown"},
	{FeatureSeason, "spring"},
	{FeatureSoilType, "well_draining"},
	{FeaturePlantAge, "mature"},
	{FeatureGrowthRate, "active"},
}

// modelFeatures lists every categorical input of the three predictors once.
func modelFeatures() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, specs := range [][]featureSpec{careFeatures, diseaseFeatures, fertilizerFeatures} {
		for _, spec := range specs {
			if _, ok := seen[spec.name]; ok {
				continue
			}
			seen[spec.name] = struct{}{}
			out = append(out, spec.name)
		}
	}
	return out
}

func encodeRow(enc *Encoder, specs []featureSpec, values map[string]string, prefix []float64) []float64 {
	row := make([]float64, 0, len(prefix)+len(specs))
	row = append(row, prefix...)
	for _, spec := range specs {
		v, ok := values[spec.name]
		if !ok || v == "" {
			v = spec.fallback
		}
		row = append(row, float64(enc.Encode(spec.name, v)))
	}
	return row
}

func valueOr(values map[string]string, name, fallback string) string {
	if v, ok := values[name]; ok && v != "" {
		return v
	}
	return fallback
}
