package recommend

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// MaxVocabulary caps the number of terms kept by FitVectorizer.
const MaxVocabulary = 1000

// CommonSymptoms is added to every vectorizer fit so that typical phrasing
// is in vocabulary even when the training corpus never used it.
var CommonSymptoms = []string{
	"yellow leaves", "brown spots", "wilting", "leaf drop", "stunted growth",
	"root rot", "dehydration", "light deficiency", "overwatering", "underwatering",
	"nutrient deficiency", "pest damage", "fungal infection", "sunburn",
}

// Vectorizer turns symptom text into L2-normalised TF-IDF weights over a
// fixed vocabulary. It is immutable once fitted.
type Vectorizer struct {
	Vocabulary []string  `json:"vocabulary"`
	IDF        []float64 `json:"idf"`

	index map[string]int
}

// FitVectorizer learns the vocabulary and smoothed inverse document
// frequencies of docs.
func FitVectorizer(docs []string) *Vectorizer {
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(doc) {
			tf[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	if len(terms) > MaxVocabulary {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:MaxVocabulary]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	v := &Vectorizer{Vocabulary: terms, IDF: idf}
	v.reindex()
	return v
}

func (v *Vectorizer) reindex() {
	v.index = make(map[string]int, len(v.Vocabulary))
	for i, t := range v.Vocabulary {
		v.index[t] = i
	}
}

// UnmarshalJSON restores a persisted vectorizer including its term index.
func (v *Vectorizer) UnmarshalJSON(data []byte) error {
	type plain Vectorizer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if len(p.IDF) != len(p.Vocabulary) {
		return fmt.Errorf("vectorizer has %d terms but %d weights", len(p.Vocabulary), len(p.IDF))
	}
	*v = Vectorizer(p)
	v.reindex()
	return nil
}

// Dim is the length of every vector Transform returns.
func (v *Vectorizer) Dim() int {
	return len(v.Vocabulary)
}

// Transform weights the in-vocabulary terms of text. Text with no known
// terms maps to the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	out := make([]float64, len(v.Vocabulary))
	for _, tok := range tokenize(text) {
		if i, ok := v.index[tok]; ok {
			out[i]++
		}
	}

	var norm float64
	for i := range out {
		out[i] *= v.IDF[i]
		norm += out[i] * out[i]
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit. Single-character tokens are dropped. Underscores separate tokens so
// that "yellow_leaves" and "Yellow leaves" share terms.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
