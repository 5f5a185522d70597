// Package policy holds the authorization rules of the document portal. The
// functions are pure: callers load the records and pass them in.
package policy

import (
	"github.com/noah-isme/unidocs-api/internal/models"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
)

// Actor is the authenticated caller as seen by the rules.
type Actor struct {
	UserID string
	Role   models.UserRole
	BodyID *string
}

// ActorFromUser builds an actor from a freshly loaded user row. Nil yields nil.
func ActorFromUser(user *models.User) *Actor {
	if user == nil {
		return nil
	}
	return &Actor{
		UserID: user.ID,
		Role:   models.NormalizeRole(string(user.Role)),
		BodyID: nonEmpty(user.UniversityBodyID),
	}
}

func (a *Actor) isSuperAdmin() bool {
	return a != nil && a.Role == models.RoleSuperAdmin
}

func (a *Actor) bodyID() string {
	if a == nil || a.BodyID == nil {
		return ""
	}
	return *a.BodyID
}

// CanManageUsers reports whether the actor may administer user accounts.
func CanManageUsers(a *Actor) bool { return a.isSuperAdmin() }

// CanManageBodies reports whether the actor may create, edit or delete university bodies.
func CanManageBodies(a *Actor) bool { return a.isSuperAdmin() }

// DocumentScope derives the row visibility for list queries. With mineOnly the
// scope narrows to the actor's own uploads.
func DocumentScope(a *Actor, mineOnly bool) models.DocumentVisibility {
	if a == nil {
		return models.DocumentVisibility{PublicOnly: true}
	}
	if mineOnly {
		return models.DocumentVisibility{UploaderID: a.UserID}
	}
	switch a.Role {
	case models.RoleSuperAdmin:
		return models.DocumentVisibility{All: true}
	case models.RoleAdmin:
		return models.DocumentVisibility{BodyID: a.bodyID()}
	case models.RoleSubAdmin:
		return models.DocumentVisibility{UploaderID: a.UserID, BodyID: a.bodyID(), ApprovedInBodyOnly: true}
	}
	return models.DocumentVisibility{None: true}
}

// CanViewDocument applies the same rule as DocumentScope to a single document.
func CanViewDocument(a *Actor, doc *models.Document) bool {
	return DocumentScope(a, false).Matches(doc)
}

// CanModifyDocument allows the uploader, any super_admin, and admins of the
// owning body to edit or delete a document.
func CanModifyDocument(a *Actor, doc *models.Document) bool {
	if a == nil || doc == nil {
		return false
	}
	if a.isSuperAdmin() || doc.UploadedBy == a.UserID {
		return true
	}
	return a.Role == models.RoleAdmin && sameBody(a, doc)
}

// CanReview reports whether the role carries approval authority at all.
func CanReview(a *Actor) bool {
	return a != nil && a.Role.AdminLevel()
}

// CanReviewDocument reports whether the actor may approve or reject doc.
func CanReviewDocument(a *Actor, doc *models.Document) bool {
	if !CanReview(a) || doc == nil {
		return false
	}
	return a.isSuperAdmin() || sameBody(a, doc)
}

// ReviewScope is the visibility of the approval queue.
func ReviewScope(a *Actor) models.DocumentVisibility {
	if a.isSuperAdmin() {
		return models.DocumentVisibility{All: true}
	}
	if !CanReview(a) || a.bodyID() == "" {
		return models.DocumentVisibility{None: true}
	}
	return models.DocumentVisibility{BodyID: a.bodyID()}
}

// ResolveUploadBody picks the owning body for a new upload. Admins and
// sub_admins always upload into their own body; super_admins may choose any
// body or none. Existence of the returned id is checked by the caller.
func ResolveUploadBody(a *Actor, requested *string) (*string, error) {
	if a == nil {
		return nil, appErrors.ErrUnauthorized
	}
	requested = nonEmpty(requested)
	if a.isSuperAdmin() {
		return requested, nil
	}
	if a.bodyID() == "" {
		return nil, appErrors.Invalid("university_body_id", "You are not affiliated with any university body")
	}
	if requested != nil && *requested != a.bodyID() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only upload documents for your own university body")
	}
	own := a.bodyID()
	return &own, nil
}

// InitialStatus is approved for admin-level uploaders and pending otherwise.
func InitialStatus(a *Actor) models.ApprovalStatus {
	if a != nil && a.Role.AdminLevel() {
		return models.ApprovalApproved
	}
	return models.ApprovalPending
}

// EnsureNotSelf rejects an action an actor attempts on its own account.
func EnsureNotSelf(actorID, targetID, message string) error {
	if actorID != "" && actorID == targetID {
		return appErrors.Clone(appErrors.ErrValidation, message)
	}
	return nil
}

func sameBody(a *Actor, doc *models.Document) bool {
	return a.bodyID() != "" && doc.UniversityBodyID != nil && *doc.UniversityBodyID == a.bodyID()
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
