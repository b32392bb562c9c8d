package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
)

// Workflow runs the access-request state machine: a teacher submits or
// withdraws, an admin approves or denies. Approvals grant assignments
// atomically with their audit entry.
type Workflow struct {
	requests RequestStore
	logger   *zap.Logger
}

func NewWorkflow(requests RequestStore, logger *zap.Logger) *Workflow {
	return &Workflow{requests: requests, logger: logger}
}

// SubmitParams describes a new access request.
type SubmitParams struct {
	TeacherID     string
	ClassCode     string
	Reason        string
	RequestType   model.RequestType
	DurationStart *time.Time
	DurationEnd   *time.Time
}

// Submit creates a PENDING request for the teacher.
func (w *Workflow) Submit(ctx context.Context, p SubmitParams) (*model.AccessRequest, error) {
	if p.TeacherID == "" || p.ClassCode == "" {
		return nil, fmt.Errorf("submit: teacher id and class code are required")
	}
	if !p.RequestType.Valid() {
		return nil, fmt.Errorf("submit: unknown request type %q", p.RequestType)
	}
	if p.RequestType != model.RequestTypePermanent {
		if p.DurationEnd == nil {
			return nil, fmt.Errorf("submit: duration_end is required for %s requests", p.RequestType)
		}
		if p.DurationStart != nil && !p.DurationEnd.After(*p.DurationStart) {
			return nil, fmt.Errorf("submit: duration_end must be after duration_start")
		}
	}

	// The store enforces the pending uniqueness invariant too; this check
	// just gives the common case a cheap answer.
	pending, err := w.requests.HasPending(ctx, p.TeacherID, p.ClassCode)
	if err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	}
	if pending {
		return nil, model.ErrDuplicateRequest
	}

	req := &model.AccessRequest{
		ID:            uuid.New(),
		TeacherID:     p.TeacherID,
		ClassCode:     p.ClassCode,
		Reason:        p.Reason,
		RequestType:   p.RequestType,
		DurationStart: p.DurationStart,
		DurationEnd:   p.DurationEnd,
		Status:        model.RequestStatusPending,
		RequestedAt:   time.Now().UTC(),
	}

	if err := w.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	w.logger.Info("Access request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("teacher_id", p.TeacherID),
		zap.String("class_code", p.ClassCode),
		zap.String("request_type", string(p.RequestType)),
	)

	return req, nil
}

// Withdraw closes a PENDING request. Only the original requester may
// withdraw, and only while the request is still open.
func (w *Workflow) Withdraw(ctx context.Context, requestID uuid.UUID, actingTeacherID string) error {
	req, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req.TeacherID != actingTeacherID {
		return model.ErrPermissionDenied
	}
	if !req.IsPending() {
		return model.ErrInvalidStateTransition
	}

	_, _, err = w.requests.Decide(ctx, DecideParams{
		RequestID:  requestID,
		Status:     model.RequestStatusWithdrawn,
		ReviewedBy: actingTeacherID,
	})
	if err != nil {
		// A racing reviewer closed it first; for the requester that is the
		// same outcome as withdrawing a terminal request.
		if errors.Is(err, model.ErrStaleRequestState) {
			return model.ErrInvalidStateTransition
		}
		return fmt.Errorf("withdraw request: %w", err)
	}

	w.logger.Info("Access request withdrawn",
		zap.String("request_id", requestID.String()),
		zap.String("teacher_id", actingTeacherID),
	)

	return nil
}

// Approve grants the requested access at the given level. Admin only; the
// store re-reads the status inside its transaction so one of two racing
// approvals fails with model.ErrStaleRequestState.
func (w *Workflow) Approve(ctx context.Context, requestID uuid.UUID, admin model.Viewer, grantedLevel model.AccessLevel, adminNotes string) (*model.Assignment, error) {
	if !admin.IsAdmin {
		return nil, model.ErrPermissionDenied
	}
	if !grantedLevel.Valid() || grantedLevel == model.AccessNone {
		return nil, fmt.Errorf("approve: cannot grant level %q", grantedLevel)
	}

	req, err := w.requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	expiresAt := grantExpiry(req)
	if grantedLevel == model.AccessSubstitute && expiresAt == nil {
		return nil, fmt.Errorf("approve: SUBSTITUTE grants require an expiry")
	}

	_, asg, err := w.requests.Decide(ctx, DecideParams{
		RequestID:  requestID,
		Status:     model.RequestStatusApproved,
		ReviewedBy: admin.ID,
		AdminNotes: adminNotes,
		Grant: &GrantParams{
			Level:     grantedLevel,
			ExpiresAt: expiresAt,
		},
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("Access request approved",
		zap.String("request_id", requestID.String()),
		zap.String("teacher_id", req.TeacherID),
		zap.String("class_code", req.ClassCode),
		zap.String("granted_level", string(grantedLevel)),
		zap.String("approved_by", admin.ID),
	)

	return asg, nil
}

// Deny closes a PENDING request without touching any assignment.
func (w *Workflow) Deny(ctx context.Context, requestID uuid.UUID, admin model.Viewer, adminNotes string) error {
	if !admin.IsAdmin {
		return model.ErrPermissionDenied
	}

	req, _, err := w.requests.Decide(ctx, DecideParams{
		RequestID:  requestID,
		Status:     model.RequestStatusDenied,
		ReviewedBy: admin.ID,
		AdminNotes: adminNotes,
	})
	if err != nil {
		return err
	}

	w.logger.Info("Access request denied",
		zap.String("request_id", requestID.String()),
		zap.String("teacher_id", req.TeacherID),
		zap.String("denied_by", admin.ID),
	)

	return nil
}

// BulkApproveResult is the per-request outcome of a bulk approval.
type BulkApproveResult struct {
	RequestID  uuid.UUID         `json:"request_id"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
	Err        error             `json:"-"`
}

// BulkApprove approves each request in its own transaction; one failure
// never rolls back the others. Callers must inspect every result.
func (w *Workflow) BulkApprove(ctx context.Context, requestIDs []uuid.UUID, admin model.Viewer, grantedLevel model.AccessLevel) []BulkApproveResult {
	results := make([]BulkApproveResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		asg, err := w.Approve(ctx, id, admin, grantedLevel, "")
		results = append(results, BulkApproveResult{
			RequestID:  id,
			Assignment: asg,
			Err:        err,
		})
	}
	return results
}

// Get returns one request.
func (w *Workflow) Get(ctx context.Context, requestID uuid.UUID) (*model.AccessRequest, error) {
	return w.requests.Get(ctx, requestID)
}

// ListPending returns every open request, oldest first, for admin review.
func (w *Workflow) ListPending(ctx context.Context) ([]model.AccessRequest, error) {
	return w.requests.ListPending(ctx)
}

// ListByTeacher returns a teacher's own requests, newest first.
func (w *Workflow) ListByTeacher(ctx context.Context, teacherID string) ([]model.AccessRequest, error) {
	return w.requests.ListByTeacher(ctx, teacherID)
}

// grantExpiry derives the assignment expiry from the request: permanent
// requests grant open-ended access, everything else expires at duration_end.
func grantExpiry(req *model.AccessRequest) *time.Time {
	if req.RequestType == model.RequestTypePermanent {
		return nil
	}
	return req.DurationEnd
}
