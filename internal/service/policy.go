package service

import "github.com/querydesk/backend/internal/models"

type Action string

const (
	ActionQueryCreate  Action = "query:create"
	ActionQueryRead    Action = "query:read"
	ActionQueryListAll Action = "query:list_all"
	ActionQueryUpdate  Action = "query:update"
	ActionQueryDelete  Action = "query:delete"
	ActionNoteCreate   Action = "note:create"
	ActionNoteListAll  Action = "note:list_all"
	ActionUserManage   Action = "user:manage"
	ActionAIGenerate   Action = "ai:generate"
)

type Actor struct {
	ID       string
	Role     models.Role
	IsActive bool
}

func ActorFromUser(u models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}

// Resource is the record an action targets. A zero Resource means the action has no single target.
type Resource struct {
	ID      string
	OwnerID string
}

var userActions = map[Action]bool{
	ActionQueryCreate: true,
	ActionQueryRead:   true,
	ActionNoteCreate:  true,
	ActionAIGenerate:  true,
}

// ownedActions need the user to own the targeted record.
var ownedActions = map[Action]bool{
	ActionQueryRead:   true,
	ActionQueryUpdate: true,
}

// Authorize reports whether actor may perform action on res.
func Authorize(actor Actor, action Action, res Resource) bool {
	if !actor.IsActive || actor.ID == "" {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAgent:
		return action != ActionQueryDelete && action != ActionUserManage
	case models.RoleUser:
		if ownedActions[action] && res.ID != "" {
			return res.OwnerID == actor.ID
		}
		return userActions[action]
	}
	return false
}
