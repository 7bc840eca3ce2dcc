package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/querydesk/backend/internal/models"
)

const (
	skillWeight      = 100.0
	onlineWeight     = 20.0
	experienceWeight = 2.0
	loadPenalty      = 5.0

	defaultExperience = 1.0
)

type AgentStore interface {
	ListActiveAgents(ctx context.Context) ([]models.User, error)
	IncrementAssignedCount(ctx context.Context, id string) error
}

// Selector picks one agent for an enriched query.
type Selector struct {
	Agents AgentStore
	Logger zerolog.Logger
}

// Select returns nil when no active agent exists. A failed load-counter update is logged and the
// chosen agent is still returned.
func (s *Selector) Select(ctx context.Context, category string, priority models.Priority) (*string, error) {
	agents, err := s.Agents.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	agent, ok := PickAgent(agents, category)
	if !ok {
		s.Logger.Info().Str("category", category).Msg("no active agents, leaving query unassigned")
		return nil, nil
	}

	if err := s.Agents.IncrementAssignedCount(ctx, agent.ID); err != nil {
		s.Logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("failed to increment assigned count")
	}
	s.Logger.Debug().
		Str("agent_id", agent.ID).
		Str("category", category).
		Str("priority", string(priority)).
		Float64("score", ScoreAgent(agent, category)).
		Msg("agent selected")

	id := agent.ID
	return &id, nil
}

// PickAgent returns the highest scoring agent. Only a strictly greater score replaces the current
// best, so ties go to the agent that appears first in the pool.
func PickAgent(agents []models.User, category string) (models.User, bool) {
	if len(agents) == 0 {
		return models.User{}, false
	}
	best := 0
	bestScore := ScoreAgent(agents[0], category)
	for i := 1; i < len(agents); i++ {
		if score := ScoreAgent(agents[i], category); score > bestScore {
			best, bestScore = i, score
		}
	}
	return agents[best], true
}

func ScoreAgent(a models.User, category string) float64 {
	experience := defaultExperience
	if a.Experience != nil {
		experience = *a.Experience
	}
	assigned := 0
	if a.AssignedCount != nil {
		assigned = *a.AssignedCount
	}

	score := experienceWeight*experience - loadPenalty*float64(assigned)
	if hasSkill(a.Skills, category) {
		score += skillWeight
	}
	if a.IsOnline != nil && *a.IsOnline {
		score += onlineWeight
	}
	return score
}

func hasSkill(skills []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}
	for _, s := range skills {
		if strings.EqualFold(strings.TrimSpace(s), target) {
			return true
		}
	}
	return false
}
