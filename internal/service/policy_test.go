package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/querydesk/backend/internal/models"
)

func TestAuthorize(t *testing.T) {
	admin := Actor{ID: "u1", Role: models.RoleAdmin, IsActive: true}
	agent := Actor{ID: "u2", Role: models.RoleAgent, IsActive: true}
	user := ActorFromUser(models.User{ID: "u3", Role: models.RoleUser, IsActive: true})
	inactive := Actor{ID: "u4", Role: models.RoleAdmin}

	own := Resource{ID: "q1", OwnerID: "u3"}
	foreign := Resource{ID: "q2", OwnerID: "u2"}
	unowned := Resource{ID: "q3"}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{"admin deletes", admin, ActionQueryDelete, unowned, true},
		{"admin manages users", admin, ActionUserManage, Resource{}, true},
		{"agent updates any query", agent, ActionQueryUpdate, own, true},
		{"agent lists everything", agent, ActionQueryListAll, Resource{}, true},
		{"agent cannot delete", agent, ActionQueryDelete, own, false},
		{"agent cannot manage users", agent, ActionUserManage, Resource{}, false},
		{"user creates", user, ActionQueryCreate, Resource{}, true},
		{"user lists own", user, ActionQueryRead, Resource{}, true},
		{"user cannot list all", user, ActionQueryListAll, Resource{}, false},
		{"user reads own query", user, ActionQueryRead, own, true},
		{"user reads foreign query", user, ActionQueryRead, foreign, false},
		{"user updates own query", user, ActionQueryUpdate, own, true},
		{"user updates foreign query", user, ActionQueryUpdate, foreign, false},
		{"user updates unowned query", user, ActionQueryUpdate, unowned, false},
		{"user cannot delete own", user, ActionQueryDelete, own, false},
		{"user lists all notes", user, ActionNoteListAll, Resource{}, false},
		{"agent lists all notes", agent, ActionNoteListAll, Resource{}, true},
		{"inactive admin", inactive, ActionQueryRead, Resource{}, false},
		{"unknown role", Actor{ID: "x", Role: "guest", IsActive: true}, ActionQueryRead, Resource{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.actor, tt.action, tt.res))
		})
	}
}
