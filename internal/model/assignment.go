package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment records a teacher's access level on one class. At most one
// effective assignment exists per (teacher, class) pair; superseded rows are
// soft-deactivated, never deleted, so the history stays auditable.
type Assignment struct {
	ID          uuid.UUID   `json:"id"`
	TeacherID   string      `json:"teacher_id"`
	ClassCode   string      `json:"class_code"`
	AccessLevel AccessLevel `json:"access_level"`
	AssignedBy  string      `json:"assigned_by"`
	AssignedAt  time.Time   `json:"assigned_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	IsActive    bool        `json:"is_active"`
}

// Effective reports whether the assignment grants access at the given
// instant. Expiry is evaluated here, lazily: an active but expired row
// contributes nothing.
func (a *Assignment) Effective(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}
