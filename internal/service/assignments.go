package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
)

// Assignments exposes direct assignment management to the admin UI and the
// self-service listing to teachers. Atomicity (deactivate-then-insert plus
// the audit entry) lives in the store.
type Assignments struct {
	store  AssignmentStore
	logger *zap.Logger
}

func NewAssignments(store AssignmentStore, logger *zap.Logger) *Assignments {
	return &Assignments{store: store, logger: logger}
}

// DirectAssign grants a teacher access to a class without a request. Admin
// only; writes a DIRECT_ASSIGN audit entry.
func (s *Assignments) DirectAssign(ctx context.Context, admin model.Viewer, teacherID, classCode string, level model.AccessLevel, expiresAt *time.Time) (*model.Assignment, error) {
	if !admin.IsAdmin {
		return nil, model.ErrPermissionDenied
	}
	if teacherID == "" || classCode == "" {
		return nil, fmt.Errorf("direct assign: teacher id and class code are required")
	}
	if !level.Valid() || level == model.AccessNone {
		return nil, fmt.Errorf("direct assign: cannot grant level %q", level)
	}
	if level == model.AccessSubstitute && expiresAt == nil {
		return nil, fmt.Errorf("direct assign: SUBSTITUTE grants require an expiry")
	}

	asg, err := s.store.CreateOrUpdate(ctx, CreateAssignmentParams{
		TeacherID:   teacherID,
		ClassCode:   classCode,
		AccessLevel: level,
		AssignedBy:  admin.ID,
		ExpiresAt:   expiresAt,
		AuditAction: model.AuditActionDirectAssign,
	})
	if err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	s.logger.Info("Access assigned directly",
		zap.String("assignment_id", asg.ID.String()),
		zap.String("teacher_id", teacherID),
		zap.String("class_code", classCode),
		zap.String("level", string(level)),
		zap.String("assigned_by", admin.ID),
	)

	return asg, nil
}

// Revoke deactivates an assignment. Admin only. Revoking a missing or
// already-inactive assignment is model.ErrNotFound, not a no-op.
func (s *Assignments) Revoke(ctx context.Context, admin model.Viewer, assignmentID uuid.UUID) error {
	if !admin.IsAdmin {
		return model.ErrPermissionDenied
	}

	if err := s.store.Revoke(ctx, assignmentID, admin.ID); err != nil {
		return err
	}

	s.logger.Info("Assignment revoked",
		zap.String("assignment_id", assignmentID.String()),
		zap.String("revoked_by", admin.ID),
	)

	return nil
}

// ListActive returns the teacher's currently effective assignments.
func (s *Assignments) ListActive(ctx context.Context, teacherID string) ([]model.Assignment, error) {
	return s.store.ListActive(ctx, teacherID, time.Now().UTC())
}

// EffectiveAccess answers "what is my access on class C right now".
func (s *Assignments) EffectiveAccess(ctx context.Context, teacherID, classCode string) (model.AccessLevel, error) {
	return s.store.GetEffectiveAccess(ctx, teacherID, classCode, time.Now().UTC())
}
