// Package authz is the permission engine: pure decision functions over
// (principal, document, action). It never touches storage and has no side
// effects; callers fetch the document once and pass the same snapshot to
// every predicate and to the mutation that follows.
package authz

import (
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
)

type Action string

const (
	ActionCreate         Action = "create"
	ActionView           Action = "view"
	ActionEdit           Action = "edit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionDelete         Action = "delete"
)

// Principal is the single authenticated-caller abstraction. Identity users
// carry a user id and role tags. Auditor tokens resolve to a synthetic
// read-only principal with an empty role set; the engine does not know which
// authentication path produced the value.
type Principal struct {
	UserID   uint
	Name     string
	Roles    []models.Role
	ReadOnly bool
}

// HasAny reports whether the principal carries at least one of the given
// role tags.
func (p Principal) HasAny(roles ...models.Role) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Elevated roles bypass ownership checks and, for view, status checks.
func (p Principal) Elevated() bool {
	return p.HasAny(models.RoleSuperuser, models.RoleAdmin, models.RoleManager)
}

func (p Principal) isOwner(doc *models.Document) bool {
	if p.UserID == 0 {
		return false
	}
	return doc.OwnerID == p.UserID || doc.CreatedBy == p.UserID
}

// CanCreate gates document creation on the creator role set.
func CanCreate(p Principal) bool {
	if p.ReadOnly {
		return false
	}
	return p.HasAny(models.RoleSuperuser, models.RoleAdmin, models.RoleManager, models.RoleQuality)
}

// CanView: elevated roles always; anyone once the document is approved
// (it is a published, citable artifact); otherwise owner/creator only.
func CanView(p Principal, doc *models.Document) bool {
	if p.Elevated() {
		return true
	}
	if doc.Status == models.StatusApproved {
		return true
	}
	return p.isOwner(doc)
}

// CanEdit: admin/superuser always; for everyone else approved and obsolete
// documents are frozen. Managers may edit any live document, owners only
// while it is still in draft or review.
func CanEdit(p Principal, doc *models.Document) bool {
	if p.ReadOnly {
		return false
	}
	if p.HasAny(models.RoleSuperuser, models.RoleAdmin) {
		return true
	}
	if !doc.Mutable() {
		return false
	}
	if p.HasAny(models.RoleManager) {
		return true
	}
	return p.isOwner(doc)
}

// reviewGate is shared by approve/reject/request-changes so the three
// workflow actions can never diverge: reviewer role and review status, both.
func reviewGate(p Principal, doc *models.Document) bool {
	if p.ReadOnly {
		return false
	}
	if doc.Status != models.StatusReview {
		return false
	}
	return p.HasAny(models.RoleSuperuser, models.RoleAdmin, models.RoleManager)
}

func CanApprove(p Principal, doc *models.Document) bool        { return reviewGate(p, doc) }
func CanReject(p Principal, doc *models.Document) bool         { return reviewGate(p, doc) }
func CanRequestChanges(p Principal, doc *models.Document) bool { return reviewGate(p, doc) }

// CanDelete is gated purely on a coarse role; document state is irrelevant.
func CanDelete(p Principal) bool {
	if p.ReadOnly {
		return false
	}
	return p.HasAny(models.RoleSuperuser, models.RoleAdmin)
}

// Can dispatches an action to its predicate. Unknown actions are denied.
func Can(p Principal, doc *models.Document, action Action) bool {
	switch action {
	case ActionCreate:
		return CanCreate(p)
	case ActionView:
		return CanView(p, doc)
	case ActionEdit:
		return CanEdit(p, doc)
	case ActionApprove:
		return CanApprove(p, doc)
	case ActionReject:
		return CanReject(p, doc)
	case ActionRequestChanges:
		return CanRequestChanges(p, doc)
	case ActionDelete:
		return CanDelete(p)
	default:
		return false
	}
}
