package reachout

import (
	"testing"

	"github.com/checkfox/go_reachout/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		connected int
		tier      models.Priority
		closure   bool
	}{
		{"ratio 1", 3, 3, models.PriorityHigh, false},
		{"ratio 2", 4, 2, models.PriorityHigh, false},
		{"ratio 2.5", 5, 2, models.PriorityMid, false},
		{"ratio 3", 6, 2, models.PriorityMid, false},
		{"ratio 4", 8, 2, models.PriorityLower, false},
		{"ratio 5", 10, 2, models.PriorityLow, false},
		{"ratio 5.5", 11, 2, models.PriorityLow, false},
		{"ratio 6", 12, 2, models.PriorityLow, true},
		{"ratio 9", 9, 1, models.PriorityLow, true},
		{"zero connects, 6 attempts", 6, 0, models.PriorityLow, true},
		{"zero connects, 2 attempts", 2, 0, models.PriorityLow, false},
		{"connected above attempts is clamped", 2, 5, models.PriorityHigh, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Classify(tt.attempts, tt.connected)
			assert.True(t, ok)
			assert.Equal(t, tt.tier, c.Tier)
			assert.Equal(t, tt.closure, c.SuggestClosure)
		})
	}
}

func TestClassify_NoAttemptsIsNoOp(t *testing.T) {
	_, ok := Classify(0, 0)
	assert.False(t, ok)

	_, ok = Classify(-1, 0)
	assert.False(t, ok)

	_, ok = ClassifyLedger(nil)
	assert.False(t, ok)
}
