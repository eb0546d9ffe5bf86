package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plants.yaml
var plantsYAML []byte

type document struct {
	Plants          []PlantInfo                  `yaml:"plants"`
	FertilizerGuide map[string]FertilizerProduct `yaml:"fertilizer_guide"`
	DiseaseGuide    map[string]SymptomGuide      `yaml:"disease_guide"`
	RepottingGuide  RepottingGuide               `yaml:"repotting_guide"`
	SeasonalCare    map[string]SeasonalCare      `yaml:"seasonal_care"`
}

// StaticProvider answers from the knowledge document compiled into the binary.
// It is read-only and safe for concurrent use.
type StaticProvider struct {
	doc    document
	byName map[string]int
}

// NewStaticProvider parses the embedded knowledge document.
func NewStaticProvider() (*StaticProvider, error) {
	return ParseStatic(plantsYAML)
}

// ParseStatic builds a provider from a YAML knowledge document.
func ParseStatic(data []byte) (*StaticProvider, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge document: %w", err)
	}

	p := &StaticProvider{doc: doc, byName: make(map[string]int)}
	for i, plant := range doc.Plants {
		if plant.Name == "" {
			return nil, fmt.Errorf("plant %d has no name", i)
		}
		p.byName[strings.ToLower(plant.Name)] = i
		for _, alias := range plant.CommonNames {
			key := strings.ToLower(alias)
			if _, taken := p.byName[key]; !taken {
				p.byName[key] = i
			}
		}
	}
	return p, nil
}

// GetPlantInfo matches the plant name or one of its common names,
// case-insensitively.
func (p *StaticProvider) GetPlantInfo(_ context.Context, plantType string) PlantInfo {
	return p.lookup(plantType)
}

func (p *StaticProvider) lookup(plantType string) PlantInfo {
	i, ok := p.byName[strings.ToLower(strings.TrimSpace(plantType))]
	if !ok {
		return PlantInfo{}
	}
	return p.doc.Plants[i]
}

func (p *StaticProvider) Plants() []PlantInfo {
	return append([]PlantInfo(nil), p.doc.Plants...)
}

// PlantNames lists the canonical plant names in document order.
func (p *StaticProvider) PlantNames() []string {
	names := make([]string, len(p.doc.Plants))
	for i, plant := range p.doc.Plants {
		names[i] = plant.Name
	}
	return names
}

// SearchPlants returns the plants whose name, common names or care text
// contain query.
func (p *StaticProvider) SearchPlants(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []string
	for _, plant := range p.doc.Plants {
		if matches(plant, q) {
			out = append(out, plant.Name)
		}
	}
	return out
}

func matches(plant PlantInfo, q string) bool {
	if strings.Contains(strings.ToLower(plant.Name), q) {
		return true
	}
	for _, alias := range plant.CommonNames {
		if strings.Contains(strings.ToLower(alias), q) {
			return true
		}
	}
	care := []string{plant.Care.Watering, plant.Care.Light, plant.Care.Temperature, plant.Care.Humidity, plant.Care.Soil}
	for _, text := range care {
		if strings.Contains(strings.ToLower(text), q) {
			return true
		}
	}
	return false
}

func (p *StaticProvider) FertilizerGuide(fertilizerType string) (FertilizerProduct, bool) {
	f, ok := p.doc.FertilizerGuide[fertilizerType]
	return f, ok
}

// DiseaseGuide returns causes and solutions for a symptom key such as "wilting".
func (p *StaticProvider) DiseaseGuide(symptom string) (SymptomGuide, bool) {
	g, ok := p.doc.DiseaseGuide[symptom]
	return g, ok
}

// Symptoms lists the keys DiseaseGuide knows, sorted.
func (p *StaticProvider) Symptoms() []string {
	keys := make([]string, 0, len(p.doc.DiseaseGuide))
	for k := range p.doc.DiseaseGuide {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *StaticProvider) RepottingGuide() RepottingGuide {
	return p.doc.RepottingGuide
}

func (p *StaticProvider) SeasonalCare(season string) (SeasonalCare, bool) {
	s, ok := p.doc.SeasonalCare[strings.ToLower(season)]
	return s, ok
}
