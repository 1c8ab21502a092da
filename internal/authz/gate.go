// Package authz decides whether an actor may mutate an entity. Decisions are made from the
// actor's relations to the entity (owner, forum creator, admin, role) against an embedded
// casbin policy.
package authz

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"studyhub/internal/logging"
	"studyhub/internal/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

type Action string

const (
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionApprove     Action = "approve"
	ActionViewPending Action = "view_pending"
	ActionUpload      Action = "upload"
	ActionMarkAnswer  Action = "mark_answer"
	ActionChangeRole  Action = "change_role"
	ActionViewStats   Action = "view_stats"
	ActionMarkRead    Action = "mark_read"
)

const (
	relOwner        = "owner"
	relAdmin        = "admin"
	relForumCreator = "forum_creator"
	relRolePrefix   = "role:"
)

type Actor struct {
	ID   string
	Role model.Role
}

// Entity is the part of a record that authorization looks at.
type Entity struct {
	Kind         string
	OwnerID      string
	ForumCreator string
}

func ResourceEntity(r model.Resource) Entity {
	return Entity{Kind: "resource", OwnerID: r.UploadedBy}
}

func ForumEntity(f model.Forum) Entity {
	return Entity{Kind: "forum", OwnerID: f.CreatedBy}
}

func PostEntity(p model.Post, forum model.Forum) Entity {
	return Entity{Kind: "post", OwnerID: p.AuthorID, ForumCreator: forum.CreatedBy}
}

func NotificationEntity(n model.Notification) Entity {
	return Entity{Kind: "notification", OwnerID: n.RecipientID}
}

func AccountEntity(a model.Account) Entity {
	return Entity{Kind: "account", OwnerID: a.ID}
}

// Platform is the target of platform-wide admin actions such as statistics.
var Platform = Entity{Kind: "platform"}

// NewUpload is the target of resource uploads, which only depend on the actor's role.
var NewUpload = Entity{Kind: "resource"}

type Gate struct {
	enforcer *casbin.SyncedEnforcer
}

func NewGate() (*Gate, error) {
	m, err := casbinmodel.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(embeddedPolicy))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	return &Gate{enforcer: enforcer}, nil
}

func relations(actor Actor, entity Entity) []string {
	if actor.ID == "" {
		return nil
	}
	rels := []string{relRolePrefix + string(actor.Role)}
	if actor.Role == model.RoleAdmin {
		rels = append(rels, relAdmin)
	}
	if entity.OwnerID != "" && entity.OwnerID == actor.ID {
		rels = append(rels, relOwner)
	}
	if entity.ForumCreator != "" && entity.ForumCreator == actor.ID {
		rels = append(rels, relForumCreator)
	}
	return rels
}

// CanMutate reports whether actor may perform action on entity.
func (g *Gate) CanMutate(actor Actor, entity Entity, action Action) bool {
	for _, rel := range relations(actor, entity) {
		ok, err := g.enforcer.Enforce(rel, entity.Kind, string(action))
		if err != nil {
			logging.Error().Err(err).Str("entity", entity.Kind).Str("action", string(action)).Msg("authz enforce failed")
			return false
		}
		if ok {
			return true
		}
	}
	return false
}
