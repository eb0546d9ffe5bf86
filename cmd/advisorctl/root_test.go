package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-advisor/internal/recommend"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestChatCompletesPlantCare(t *testing.T) {
	out := run(t, "1\n1\n2\n1\n5\n/quit\n", "chat", "--trees", "5", "--seed", "3")

	assert.Contains(t, out, "I'm your plant care assistant")
	assert.Contains(t, out, "What type of plant do you have?")
	assert.Contains(t, out, "Plant care guide for Snake Plant")
	assert.Contains(t, out, "What next:")
}

func TestChatStatusAndReset(t *testing.T) {
	out := run(t, "2\n/status\n/reset\n/quit\n", "chat", "--trees", "5", "--user", "alice")

	assert.Contains(t, out, `"userId": "alice"`)
	assert.Contains(t, out, `"stage": "awaiting_answer"`)
	assert.Contains(t, out, `"category": "fertilizer"`)
	assert.Equal(t, 2, strings.Count(out, "Hi! I'm your plant care assistant"))
}

func TestChatFreeTextSelectsCategory(t *testing.T) {
	out := run(t, "repotting\n/quit\n", "chat", "--trees", "5")
	assert.Contains(t, out, "Great choice! Repotting & Transplanting")
}

func TestPredictCare(t *testing.T) {
	out := run(t, "", "predict", "care", "--plant", "Monstera", "--trees", "5")

	var res recommend.CareSuccessResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.GreaterOrEqual(t, res.SuccessProbability, 0.0)
	assert.LessOrEqual(t, res.SuccessProbability, 1.0)
	assert.NotEmpty(t, res.Recommendations)
}

func TestTrainPrintsStats(t *testing.T) {
	out := run(t, "", "train", "--trees", "5")

	var stats recommend.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.True(t, stats.Trained)
	assert.NotEmpty(t, stats.Version)
}

func TestCatalogListsCategories(t *testing.T) {
	out := run(t, "", "catalog")
	for _, id := range []string{"plant_care", "fertilizer", "disease", "repotting"} {
		assert.Contains(t, out, `"id": "`+id+`"`)
	}
}

func TestKnowledgeShow(t *testing.T) {
	out := run(t, "", "knowledge", "show", "Snake Plant")
	assert.Contains(t, out, "Snake Plant")
}

func TestKnowledgeGuides(t *testing.T) {
	out := run(t, "", "knowledge", "guide", "disease")
	var symptoms []string
	require.NoError(t, json.Unmarshal([]byte(out), &symptoms))
	assert.Contains(t, symptoms, "wilting")

	out = run(t, "", "knowledge", "search", "snake")
	assert.Contains(t, out, "Snake Plant")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"knowledge", "guide", "season", "monsoon"})
	assert.Error(t, cmd.Execute())
}
