package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"plant-advisor/internal/common/logger"
)

func TestObservability_RecordersAreSafe(t *testing.T) {
	o := New("plant-advisor-test", logger.NewTestLogger(t))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		o.RecordTurn(ctx, "answer", "detailed_answer")
		o.RecordPrediction(ctx, "care_success", 3*time.Millisecond, true)
		o.RecordJobProcessed(ctx, "plant-advisor.guided-conversation", "completed")
		o.RecordJobDuration(ctx, "plant-advisor.guided-conversation", time.Second)
	})
	assert.NoError(t, o.Shutdown(ctx))
}

func TestObservability_NilReceiver(t *testing.T) {
	var o *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		o.RecordTurn(ctx, "start", "menu")
		o.RecordPrediction(ctx, "diagnosis", time.Millisecond, false)
	})
	assert.NoError(t, o.Shutdown(ctx))
}
