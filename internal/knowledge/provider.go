// Package knowledge serves curated plant care text: per-plant care sheets
// plus general fertilizer, disease, repotting and seasonal guides.
package knowledge

import "context"

// Provider looks up care information for a plant. Unknown plants yield the
// zero PlantInfo, never an error.
type Provider interface {
	GetPlantInfo(ctx context.Context, plantType string) PlantInfo
}

type CareInfo struct {
	Watering    string `yaml:"watering" json:"watering"`
	Light       string `yaml:"light" json:"light"`
	Temperature string `yaml:"temperature" json:"temperature"`
	Humidity    string `yaml:"humidity" json:"humidity"`
	Soil        string `yaml:"soil" json:"soil"`
}

type FertilizerInfo struct {
	Type         string `yaml:"type" json:"type"`
	Frequency    string `yaml:"frequency" json:"frequency"`
	Application  string `yaml:"application" json:"application"`
	SpecialNotes string `yaml:"special_notes" json:"special_notes"`
}

type RepottingInfo struct {
	Frequency string `yaml:"frequency" json:"frequency"`
	BestTime  string `yaml:"best_time" json:"best_time"`
	Signs     string `yaml:"signs" json:"signs"`
	SoilMix   string `yaml:"soil_mix" json:"soil_mix"`
}

// PlantInfo is the care sheet of one plant.
type PlantInfo struct {
	Name           string            `yaml:"name" json:"name"`
	CommonNames    []string          `yaml:"common_names" json:"common_names"`
	Care           CareInfo          `yaml:"care" json:"care"`
	Fertilizer     FertilizerInfo    `yaml:"fertilizer" json:"fertilizer"`
	Repotting      RepottingInfo     `yaml:"repotting" json:"repotting"`
	CommonProblems map[string]string `yaml:"common_problems" json:"common_problems"`
}

// Found reports whether the lookup matched a plant.
func (p PlantInfo) Found() bool {
	return p.Name != ""
}

// Problem returns the advice for a common problem key such as
// "yellow_leaves", or fallback when the plant has none.
func (p PlantInfo) Problem(key, fallback string) string {
	if v, ok := p.CommonProblems[key]; ok && v != "" {
		return v
	}
	return fallback
}

type FertilizerProduct struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	BestFor     []string `yaml:"best_for" json:"best_for"`
	Application string   `yaml:"application" json:"application"`
	Frequency   string   `yaml:"frequency" json:"frequency"`
}

type SymptomGuide struct {
	Causes    []string          `yaml:"causes" json:"causes"`
	Solutions map[string]string `yaml:"solutions" json:"solutions"`
}

type PotSelection struct {
	Size     string `yaml:"size" json:"size"`
	Material string `yaml:"material" json:"material"`
	Drainage string `yaml:"drainage" json:"drainage"`
}

type RepottingGuide struct {
	SignsToRepot []string          `yaml:"signs_to_repot" json:"signs_to_repot"`
	BestTime     string            `yaml:"best_time" json:"best_time"`
	AvoidTiming  string            `yaml:"avoid_timing" json:"avoid_timing"`
	PotSelection PotSelection      `yaml:"pot_selection" json:"pot_selection"`
	SoilMixes    map[string]string `yaml:"soil_mixes" json:"soil_mixes"`
}

type SeasonalCare struct {
	Watering    string `yaml:"watering" json:"watering"`
	Fertilizing string `yaml:"fertilizing" json:"fertilizing"`
	Repotting   string `yaml:"repotting" json:"repotting"`
	Pruning     string `yaml:"pruning" json:"pruning"`
	Light       string `yaml:"light" json:"light"`
}
