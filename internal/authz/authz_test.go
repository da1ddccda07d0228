package authz

import (
	"testing"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
)

func principal(userID uint, roles ...models.Role) Principal {
	return Principal{UserID: userID, Name: "test", Roles: roles}
}

func document(status models.DocumentStatus, ownerID uint) *models.Document {
	return &models.Document{ID: "doc-1", Title: "SOP-001", Status: status, OwnerID: ownerID, CreatedBy: ownerID}
}

func TestCanView(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		doc  *models.Document
		want bool
	}{
		{"owner sees own draft", principal(7, models.RoleEmployee), document(models.StatusDraft, 7), true},
		{"stranger denied on draft", principal(8, models.RoleEmployee), document(models.StatusDraft, 7), false},
		{"stranger sees approved", principal(8, models.RoleEmployee), document(models.StatusApproved, 7), true},
		{"roleless principal sees approved", Principal{UserID: 9}, document(models.StatusApproved, 7), true},
		{"manager sees any draft", principal(8, models.RoleManager), document(models.StatusDraft, 7), true},
		{"admin sees any draft", principal(8, models.RoleAdmin), document(models.StatusDraft, 7), true},
		{"superuser sees obsolete", principal(8, models.RoleSuperuser), document(models.StatusObsolete, 7), true},
		{"stranger denied on obsolete", principal(8, models.RoleEmployee), document(models.StatusObsolete, 7), false},
		{"auditor sees approved", Principal{Name: "auditor", ReadOnly: true}, document(models.StatusApproved, 7), true},
		{"auditor denied on draft", Principal{Name: "auditor", ReadOnly: true}, document(models.StatusDraft, 7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanView(tt.p, tt.doc); got != tt.want {
				t.Errorf("CanView() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanEdit(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		doc  *models.Document
		want bool
	}{
		{"owner edits own draft", principal(7, models.RoleEmployee), document(models.StatusDraft, 7), true},
		{"owner edits own review", principal(7, models.RoleEmployee), document(models.StatusReview, 7), true},
		{"owner denied on own approved", principal(7, models.RoleEmployee), document(models.StatusApproved, 7), false},
		{"owner denied on own obsolete", principal(7, models.RoleEmployee), document(models.StatusObsolete, 7), false},
		{"manager denied on approved", principal(8, models.RoleManager), document(models.StatusApproved, 7), false},
		{"manager edits any draft", principal(8, models.RoleManager), document(models.StatusDraft, 7), true},
		{"admin edits approved", principal(8, models.RoleAdmin), document(models.StatusApproved, 7), true},
		{"superuser edits obsolete", principal(8, models.RoleSuperuser), document(models.StatusObsolete, 7), true},
		{"stranger denied on draft", principal(8, models.RoleEmployee), document(models.StatusDraft, 7), false},
		{"auditor never edits", Principal{Name: "auditor", ReadOnly: true}, document(models.StatusDraft, 7), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.p, tt.doc); got != tt.want {
				t.Errorf("CanEdit() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The three workflow predicates share one gate; a document outside review is
// denied regardless of role.
func TestReviewGateActions(t *testing.T) {
	predicates := map[string]func(Principal, *models.Document) bool{
		"approve":         CanApprove,
		"reject":          CanReject,
		"request_changes": CanRequestChanges,
	}

	for name, predicate := range predicates {
		t.Run(name, func(t *testing.T) {
			manager := principal(8, models.RoleManager)

			if !predicate(manager, document(models.StatusReview, 7)) {
				t.Errorf("%s: manager denied on review document", name)
			}
			for _, status := range []models.DocumentStatus{models.StatusDraft, models.StatusApproved, models.StatusObsolete} {
				if predicate(manager, document(status, 7)) {
					t.Errorf("%s: allowed on %s document", name, status)
				}
				if predicate(principal(8, models.RoleSuperuser), document(status, 7)) {
					t.Errorf("%s: superuser allowed on %s document", name, status)
				}
			}
			if predicate(principal(7, models.RoleEmployee), document(models.StatusReview, 7)) {
				t.Errorf("%s: owner without reviewer role allowed", name)
			}
			if predicate(Principal{Name: "auditor", ReadOnly: true}, document(models.StatusReview, 7)) {
				t.Errorf("%s: auditor allowed", name)
			}
		})
	}
}

func TestCanDelete(t *testing.T) {
	if !CanDelete(principal(8, models.RoleAdmin)) {
		t.Error("admin should delete")
	}
	if !CanDelete(principal(8, models.RoleSuperuser)) {
		t.Error("superuser should delete")
	}
	if CanDelete(principal(8, models.RoleManager)) {
		t.Error("manager must not delete")
	}
	if CanDelete(principal(7, models.RoleEmployee)) {
		t.Error("owner role must not delete")
	}
	if CanDelete(Principal{Name: "auditor", ReadOnly: true}) {
		t.Error("auditor must not delete")
	}
}

func TestCanCreate(t *testing.T) {
	for _, role := range []models.Role{models.RoleQuality, models.RoleManager, models.RoleAdmin, models.RoleSuperuser} {
		if !CanCreate(principal(7, role)) {
			t.Errorf("%s should create documents", role)
		}
	}
	if CanCreate(principal(7, models.RoleEmployee)) {
		t.Error("employee must not create documents")
	}
	if CanCreate(Principal{Name: "auditor", ReadOnly: true}) {
		t.Error("auditor must not create documents")
	}
}

func TestCanDispatch(t *testing.T) {
	doc := document(models.StatusReview, 7)
	manager := principal(8, models.RoleManager)

	if !Can(manager, doc, ActionApprove) {
		t.Error("dispatch approve mismatch")
	}
	if Can(manager, doc, Action("publish")) {
		t.Error("unknown action must be denied")
	}
}
