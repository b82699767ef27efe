package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresRetry(t *testing.T) {
	tests := []struct {
		name       string
		accuracy   float64
		scorable   int
		proficient bool
		want       bool
	}{
		{"below threshold", 79.9, 10, false, true},
		{"zero accuracy", 0, 5, false, true},
		{"at threshold", 80, 10, false, false},
		{"perfect", 100, 3, false, false},
		{"mastered and proficient", 90, 10, true, false},
		{"below threshold but proficient", 40, 10, true, false},
		{"no scorable questions", 100, 0, true, true},
		{"no scorable questions not proficient", 0, 0, false, true},
		{"negative scorable count", 100, -1, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiresRetry(tt.accuracy, tt.scorable, tt.proficient))
		})
	}
}

func TestRequiresRetryBelowThresholdSweep(t *testing.T) {
	for acc := 0.0; acc < 80; acc += 0.5 {
		assert.True(t, RequiresRetry(acc, 7, false), "accuracy %v", acc)
	}
	for acc := 80.0; acc <= 100; acc += 0.5 {
		assert.False(t, RequiresRetry(acc, 7, false), "accuracy %v", acc)
		assert.False(t, RequiresRetry(acc, 7, true), "accuracy %v", acc)
	}
}
