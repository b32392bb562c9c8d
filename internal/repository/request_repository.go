package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/repository/base"
	"github.com/schooldesk/examaccess/internal/service"
)

const requestColumns = `
	id, teacher_id, class_code, reason, request_type,
	duration_start, duration_end, status, requested_at,
	reviewed_at, reviewed_by, admin_notes, resulting_assignment_id
`

// RequestRepository is the PostgreSQL RequestStore. A partial unique index
// on (teacher_id, class_code) WHERE status = 'PENDING' closes the race two
// concurrent submits would otherwise win together, and Decide locks the row
// with FOR UPDATE so only one of two racing reviewers succeeds.
type RequestRepository struct {
	*base.Repository
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{Repository: base.NewRepository(pool)}
}

// Create inserts a PENDING request and its REQUEST audit entry.
func (r *RequestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO access_requests (id, teacher_id, class_code, reason, request_type, duration_start, duration_end, status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		_, err := tx.Exec(ctx, query,
			req.ID,
			req.TeacherID,
			req.ClassCode,
			req.Reason,
			req.RequestType,
			req.DurationStart,
			req.DurationEnd,
			req.Status,
			req.RequestedAt,
		)
		if err != nil {
			if base.IsUniqueViolation(err) {
				return model.ErrDuplicateRequest
			}
			return fmt.Errorf("insert access request: %w", err)
		}

		details := fmt.Sprintf("%s access requested: %s", req.RequestType, req.Reason)
		return insertAuditEntry(ctx, tx, model.AuditActionRequest, req.TeacherID, req.ClassCode, req.TeacherID, details)
	})
}

// Get returns one request by id.
func (r *RequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	return scanRequest(r.Pool().QueryRow(ctx, query, id))
}

// HasPending checks for an open request on the pair.
func (r *RequestRepository) HasPending(ctx context.Context, teacherID, classCode string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM access_requests
			WHERE teacher_id = $1 AND class_code = $2 AND status = $3
		)
	`

	var exists bool
	err := r.Pool().QueryRow(ctx, query, teacherID, classCode, model.RequestStatusPending).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}

	return exists, nil
}

// ListPending returns all open requests, oldest first.
func (r *RequestRepository) ListPending(ctx context.Context) ([]model.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE status = $1
		ORDER BY requested_at ASC
	`
	return r.listRequests(ctx, query, model.RequestStatusPending)
}

// ListByTeacher returns the teacher's requests, newest first.
func (r *RequestRepository) ListByTeacher(ctx context.Context, teacherID string) ([]model.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE teacher_id = $1
		ORDER BY requested_at DESC
	`
	return r.listRequests(ctx, query, teacherID)
}

// Decide applies one terminal transition. The status is re-read under a row
// lock inside the transaction, so a request that was decided concurrently
// fails with model.ErrStaleRequestState instead of being overwritten.
func (r *RequestRepository) Decide(ctx context.Context, p service.DecideParams) (*model.AccessRequest, *model.Assignment, error) {
	now := time.Now().UTC()
	var (
		req *model.AccessRequest
		asg *model.Assignment
	)

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1 FOR UPDATE`
		var err error
		req, err = scanRequest(tx.QueryRow(ctx, lockQuery, p.RequestID))
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return model.ErrStaleRequestState
		}

		if p.Grant != nil {
			asg, err = upsertAssignment(ctx, tx, service.CreateAssignmentParams{
				TeacherID:   req.TeacherID,
				ClassCode:   req.ClassCode,
				AccessLevel: p.Grant.Level,
				AssignedBy:  p.ReviewedBy,
				ExpiresAt:   p.Grant.ExpiresAt,
				AuditAction: model.AuditActionApprove,
			})
			if err != nil {
				return err
			}
			req.ResultingAssignmentID = &asg.ID
		} else {
			action := model.AuditActionDeny
			if p.Status == model.RequestStatusWithdrawn {
				action = model.AuditActionWithdraw
			}
			if err := insertAuditEntry(ctx, tx, action, req.TeacherID, req.ClassCode, p.ReviewedBy, p.AdminNotes); err != nil {
				return err
			}
		}

		update := `
			UPDATE access_requests
			SET status = $1, reviewed_at = $2, reviewed_by = $3, admin_notes = $4, resulting_assignment_id = $5
			WHERE id = $6
		`
		_, err = tx.Exec(ctx, update,
			p.Status,
			now,
			p.ReviewedBy,
			p.AdminNotes,
			req.ResultingAssignmentID,
			req.ID,
		)
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	req.Status = p.Status
	req.ReviewedAt = &now
	req.ReviewedBy = &p.ReviewedBy
	req.AdminNotes = p.AdminNotes

	return req, asg, nil
}

func (r *RequestRepository) listRequests(ctx context.Context, query string, args ...any) ([]model.AccessRequest, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []model.AccessRequest
	for rows.Next() {
		var req model.AccessRequest
		err := rows.Scan(
			&req.ID,
			&req.TeacherID,
			&req.ClassCode,
			&req.Reason,
			&req.RequestType,
			&req.DurationStart,
			&req.DurationEnd,
			&req.Status,
			&req.RequestedAt,
			&req.ReviewedAt,
			&req.ReviewedBy,
			&req.AdminNotes,
			&req.ResultingAssignmentID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*model.AccessRequest, error) {
	var req model.AccessRequest
	err := row.Scan(
		&req.ID,
		&req.TeacherID,
		&req.ClassCode,
		&req.Reason,
		&req.RequestType,
		&req.DurationStart,
		&req.DurationEnd,
		&req.Status,
		&req.RequestedAt,
		&req.ReviewedAt,
		&req.ReviewedBy,
		&req.AdminNotes,
		&req.ResultingAssignmentID,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}
	return &req, nil
}
