package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/querydesk/backend/internal/models"
)

func TestEstimatePriority(t *testing.T) {
	tests := []struct {
		text string
		want models.Priority
	}{
		{"this is urgent, asap!!", models.PriorityUrgent},
		{"refund please, payment failed", models.PriorityHigh},
		{"I have a question about my order", models.PriorityMedium},
		{"just saying hi", models.PriorityLow},
		{"CRITICAL: site is down", models.PriorityUrgent},
		{"I am locked out of my account", models.PriorityHigh},
		{"the export has a bug", models.PriorityMedium},
		{"Love the new app!", models.PriorityHigh},
		{"", models.PriorityLow},
		{"nowhere to be found", models.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimatePriority(tt.text))
		})
	}
}

func TestEstimatePriorityLongExclamationIsLow(t *testing.T) {
	text := "We wanted to let you know that the new dashboard layout looks really great today!"
	assert.Equal(t, models.PriorityLow, EstimatePriority(text))
}
