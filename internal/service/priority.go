package service

import (
	"regexp"
	"strings"

	"github.com/querydesk/backend/internal/models"
)

const shortExclamationLimit = 60

var (
	urgentPattern  = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|critical|emergency|now)\b`)
	highPattern    = regexp.MustCompile(`(?i)\b(refunds?|chargebacks?|payment fail(ed|ure|s)?|payment declined|account (locked|suspended|blocked)|locked out|data loss|lost (my )?data|(can'?t|cannot|unable to) (access|log ?in|login)|outage|down|not working)\b`)
	supportPattern = regexp.MustCompile(`(?i)\b(help|support|issues?|problems?|bugs?|errors?|questions?)\b`)
)

// EstimatePriority maps free text onto a priority level. Rules are checked in order and the first
// match wins.
func EstimatePriority(text string) models.Priority {
	switch {
	case urgentPattern.MatchString(text):
		return models.PriorityUrgent
	case highPattern.MatchString(text):
		return models.PriorityHigh
	case supportPattern.MatchString(text):
		return models.PriorityMedium
	}
	t := strings.TrimSpace(text)
	if len([]rune(t)) < shortExclamationLimit && strings.HasSuffix(t, "!") {
		return models.PriorityHigh
	}
	return models.PriorityLow
}
