package recommend

import (
	"sort"
	"sync"
	"sync/atomic"

	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
	"plant-advisor/internal/models"
)

// DefaultCode is returned for values missing from a feature's vocabulary.
const DefaultCode = 0

// EncoderState is the persisted form of an encoder: every vocabulary built so
// far, each in code order.
type EncoderState map[string][]string

// Encoder assigns stable integer codes to categorical values. A feature's
// vocabulary is built from every example of every task in the corpus it was
// created with, and never changes afterwards. Until Freeze is called
// vocabularies are built on first use.
type Encoder struct {
	corpus models.Corpus
	log    logger.Logger

	mu     sync.Mutex
	frozen atomic.Bool
	codes  map[string]map[string]int
	values map[string][]string
}

// NewEncoder builds an encoder over corpus. The corpus must not be mutated
// afterwards.
func NewEncoder(corpus models.Corpus, log logger.Logger) *Encoder {
	return &Encoder{
		corpus: corpus,
		log:    log,
		codes:  make(map[string]map[string]int),
		values: make(map[string][]string),
	}
}

// RestoreEncoder recreates an encoder with previously built vocabularies.
// Features absent from state are built from corpus on first use or by Freeze.
func RestoreEncoder(corpus models.Corpus, state EncoderState, log logger.Logger) *Encoder {
	e := NewEncoder(corpus, log)
	for feature, values := range state {
		e.install(feature, append([]string(nil), values...))
	}
	return e
}

// Freeze builds the vocabulary of every named feature and makes the encoder
// read-only. Lookups on a frozen encoder take no lock, and features it was not
// frozen with have an empty vocabulary.
func (e *Encoder) Freeze(features ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, feature := range features {
		if _, ok := e.codes[feature]; !ok {
			e.build(feature)
		}
	}
	e.frozen.Store(true)
}

// Encode returns the code of value for feature, or DefaultCode with a
// warning when the value was not in the corpus.
func (e *Encoder) Encode(feature, value string) int {
	if code, ok := e.Lookup(feature, value); ok {
		return code
	}

	metrics.EncodingMisses.WithLabelValues(feature).Inc()
	e.log.Warn("Unknown categorical value, using default encoding", map[string]interface{}{
		"feature": feature,
		"value":   value,
		"code":    DefaultCode,
	})
	return DefaultCode
}

// Lookup is Encode without the fallback.
func (e *Encoder) Lookup(feature, value string) (int, bool) {
	if e.frozen.Load() {
		code, ok := e.codes[feature][value]
		return code, ok
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	codes, ok := e.codes[feature]
	if !ok {
		codes = e.build(feature)
	}
	code, ok := codes[value]
	return code, ok
}

// Vocabulary returns the values of feature in code order.
func (e *Encoder) Vocabulary(feature string) []string {
	if e.frozen.Load() {
		return append([]string(nil), e.values[feature]...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.codes[feature]; !ok {
		e.build(feature)
	}
	return append([]string(nil), e.values[feature]...)
}

// State exports every vocabulary built so far.
func (e *Encoder) State() EncoderState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(EncoderState, len(e.values))
	for feature, values := range e.values {
		out[feature] = append([]string(nil), values...)
	}
	return out
}

// build must be called with mu held.
func (e *Encoder) build(feature string) map[string]int {
	seen := make(map[string]struct{})
	for _, task := range models.AllTasks() {
		for _, ex := range e.corpus[task] {
			if v, ok := ex.Features[feature]; ok {
				seen[v] = struct{}{}
			}
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	return e.install(feature, values)
}

func (e *Encoder) install(feature string, values []string) map[string]int {
	codes := make(map[string]int, len(values))
	for i, v := range values {
		codes[v] = i
	}
	e.codes[feature] = codes
	e.values[feature] = values
	return codes
}
