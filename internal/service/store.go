package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/examaccess/internal/model"
)

// AssignmentStore is the single source of truth for who can touch which
// class. Every mutating method writes exactly one audit entry in the same
// transaction as the mutation; a failed audit write rolls the whole
// operation back.
type AssignmentStore interface {
	// GetEffectiveAccess returns AccessNone when no active, non-expired
	// assignment exists for the pair.
	GetEffectiveAccess(ctx context.Context, teacherID, classCode string, now time.Time) (model.AccessLevel, error)

	// CreateOrUpdate deactivates any prior effective assignment for the
	// pair and inserts the new one atomically, paired with one audit entry
	// of p.AuditAction.
	CreateOrUpdate(ctx context.Context, p CreateAssignmentParams) (*model.Assignment, error)

	// Revoke soft-deactivates an assignment. Returns model.ErrNotFound if
	// it does not exist or is already inactive; double-revoke is a caller
	// error, not an idempotent no-op.
	Revoke(ctx context.Context, assignmentID uuid.UUID, performedBy string) error

	// ListActive returns the teacher's effective assignments, filtering
	// expired rows at read time.
	ListActive(ctx context.Context, teacherID string, now time.Time) ([]model.Assignment, error)
}

// CreateAssignmentParams describes one assignment upsert.
type CreateAssignmentParams struct {
	TeacherID   string
	ClassCode   string
	AccessLevel model.AccessLevel
	AssignedBy  string
	ExpiresAt   *time.Time
	// AuditAction is DIRECT_ASSIGN for admin grants. The request store
	// writes APPROVE instead when it upserts inside an approval; exactly
	// one entry per call, never two.
	AuditAction model.AuditAction
}

// RequestStore persists access requests. Create and Decide each pair their
// mutation with exactly one audit entry in the same transaction.
type RequestStore interface {
	// Create inserts a PENDING request plus its REQUEST audit entry.
	// Returns model.ErrDuplicateRequest when a PENDING request already
	// exists for the (teacher, class) pair, including under concurrency.
	Create(ctx context.Context, req *model.AccessRequest) error

	Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error)

	HasPending(ctx context.Context, teacherID, classCode string) (bool, error)

	ListPending(ctx context.Context) ([]model.AccessRequest, error)

	ListByTeacher(ctx context.Context, teacherID string) ([]model.AccessRequest, error)

	// Decide re-reads the request inside its transaction and applies a
	// terminal transition. Returns model.ErrStaleRequestState when the
	// request is no longer PENDING at that point, so exactly one of two
	// racing reviewers succeeds. When p.Grant is set it also upserts the
	// assignment and links it via resulting_assignment_id, all atomically
	// with one audit entry.
	Decide(ctx context.Context, p DecideParams) (*model.AccessRequest, *model.Assignment, error)
}

// GrantParams is the assignment side of an approval.
type GrantParams struct {
	Level     model.AccessLevel
	ExpiresAt *time.Time
}

// DecideParams describes one terminal transition of a request.
type DecideParams struct {
	RequestID  uuid.UUID
	Status     model.RequestStatus
	ReviewedBy string
	AdminNotes string
	// Grant is non-nil only for approvals.
	Grant *GrantParams
}

// AuditStore reads the append-only ledger. Writes happen only inside the
// assignment and request stores' transactions.
type AuditStore interface {
	Query(ctx context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error)
}
