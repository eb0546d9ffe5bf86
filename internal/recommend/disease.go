package recommend

import (
	"sort"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/models"
)

const maxAlternatives = 3

func fitSymptomVectorizer(rows []models.TrainingExample) *Vectorizer {
	docs := make([]string, 0, len(rows)+len(CommonSymptoms))
	for _, ex := range rows {
		docs = append(docs, ex.Symptoms)
	}
	return FitVectorizer(append(docs, CommonSymptoms...))
}

func trainDisease(enc *Encoder, vec *Vectorizer, rows []models.TrainingExample, cfg ForestConfig) (*Forest, error) {
	x := make([][]float64, len(rows))
	labels := make([]string, len(rows))
	for i, ex := range rows {
		x[i] = encodeRow(enc, diseaseFeatures, ex.Features, vec.Transform(ex.Symptoms))
		labels[i] = ex.Label
	}
	f, err := TrainClassifier(x, labels, cfg)
	if err != nil {
		return nil, err
	}
	if want := vec.Dim() + len(diseaseFeatures); f.Width != want {
		return nil, errors.NewDimensionMismatchError(string(models.TaskDiagnosis), want, f.Width)
	}
	return f, nil
}

func (s *snapshot) diagnose(symptoms string, features map[string]string) (*DiagnosisResult, error) {
	if s.disease == nil || s.vectorizer == nil {
		return nil, errors.NewModelNotTrainedError(string(models.TaskDiagnosis))
	}

	row := encodeRow(s.encoder, diseaseFeatures, features, s.vectorizer.Transform(symptoms))
	probs, err := s.disease.PredictProba(row)
	if err != nil {
		return nil, err
	}

	ranked := rankClasses(s.disease.Classes, probs)
	top := ranked[0]

	alternatives := make([]Alternative, 0, maxAlternatives)
	for _, alt := range ranked[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, Alternative{Diagnosis: alt.label, Probability: alt.p})
	}

	return &DiagnosisResult{
		Diagnosis:            top.label,
		Confidence:           top.p,
		Treatment:            TreatmentFor(top.label),
		AlternativeDiagnoses: alternatives,
	}, nil
}

type scoredLabel struct {
	label string
	p     float64
}

// rankClasses orders labels by descending probability, ties alphabetically.
func rankClasses(classes []string, probs []float64) []scoredLabel {
	out := make([]scoredLabel, len(classes))
	for i, c := range classes {
		out[i] = scoredLabel{label: c, p: probs[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].p != out[j].p {
			return out[i].p > out[j].p
		}
		return out[i].label < out[j].label
	})
	return out
}
