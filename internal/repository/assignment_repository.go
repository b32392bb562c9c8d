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

// AssignmentRepository is the PostgreSQL AssignmentStore. A partial unique
// index on (teacher_id, class_code) WHERE is_active backs the uniqueness
// invariant; upserts deactivate the old row and insert the new one in a
// single transaction together with the audit entry.
type AssignmentRepository struct {
	*base.Repository
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{Repository: base.NewRepository(pool)}
}

// GetEffectiveAccess returns the stored level for the pair, or NONE when no
// active, non-expired assignment exists.
func (r *AssignmentRepository) GetEffectiveAccess(ctx context.Context, teacherID, classCode string, now time.Time) (model.AccessLevel, error) {
	return effectiveAccess(ctx, r.Pool(), teacherID, classCode, now)
}

// effectiveAccess runs on either the pool or a transaction so the request
// repository can read the before-level inside an approval.
func effectiveAccess(ctx context.Context, db base.DBTX, teacherID, classCode string, now time.Time) (model.AccessLevel, error) {
	query := `
		SELECT access_level
		FROM assignments
		WHERE teacher_id = $1 AND class_code = $2 AND is_active
		  AND (expires_at IS NULL OR expires_at > $3)
	`

	var level model.AccessLevel
	err := db.QueryRow(ctx, query, teacherID, classCode, now).Scan(&level)
	if err != nil {
		if base.IsNotFound(err) {
			return model.AccessNone, nil
		}
		return model.AccessNone, fmt.Errorf("get effective access: %w", err)
	}

	return level, nil
}

// CreateOrUpdate replaces the pair's effective assignment atomically.
func (r *AssignmentRepository) CreateOrUpdate(ctx context.Context, p service.CreateAssignmentParams) (*model.Assignment, error) {
	var asg *model.Assignment
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		asg, err = upsertAssignment(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return asg, nil
}

// upsertAssignment deactivates the prior effective assignment, inserts the
// new one and appends the audit entry, all on the caller's transaction.
func upsertAssignment(ctx context.Context, db base.DBTX, p service.CreateAssignmentParams) (*model.Assignment, error) {
	now := time.Now().UTC()

	before, err := effectiveAccess(ctx, db, p.TeacherID, p.ClassCode, now)
	if err != nil {
		return nil, err
	}

	deactivate := `
		UPDATE assignments
		SET is_active = FALSE
		WHERE teacher_id = $1 AND class_code = $2 AND is_active
	`
	if _, err := db.Exec(ctx, deactivate, p.TeacherID, p.ClassCode); err != nil {
		return nil, fmt.Errorf("deactivate prior assignment: %w", err)
	}

	asg := &model.Assignment{
		ID:          uuid.New(),
		TeacherID:   p.TeacherID,
		ClassCode:   p.ClassCode,
		AccessLevel: p.AccessLevel,
		AssignedBy:  p.AssignedBy,
		AssignedAt:  now,
		ExpiresAt:   p.ExpiresAt,
		IsActive:    true,
	}

	insert := `
		INSERT INTO assignments (id, teacher_id, class_code, access_level, assigned_by, assigned_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`
	_, err = db.Exec(ctx, insert,
		asg.ID,
		asg.TeacherID,
		asg.ClassCode,
		asg.AccessLevel,
		asg.AssignedBy,
		asg.AssignedAt,
		asg.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	details := fmt.Sprintf("access level: %s -> %s", before, p.AccessLevel)
	if err := insertAuditEntry(ctx, db, p.AuditAction, p.TeacherID, p.ClassCode, p.AssignedBy, details); err != nil {
		return nil, err
	}

	return asg, nil
}

// Revoke soft-deactivates an assignment and records REVOKE.
func (r *AssignmentRepository) Revoke(ctx context.Context, assignmentID uuid.UUID, performedBy string) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE assignments
			SET is_active = FALSE
			WHERE id = $1 AND is_active
			RETURNING teacher_id, class_code, access_level
		`

		var (
			teacherID string
			classCode string
			level     model.AccessLevel
		)
		err := tx.QueryRow(ctx, query, assignmentID).Scan(&teacherID, &classCode, &level)
		if err != nil {
			if base.IsNotFound(err) {
				return model.ErrNotFound
			}
			return fmt.Errorf("revoke assignment: %w", err)
		}

		details := fmt.Sprintf("access level: %s -> %s", level, model.AccessNone)
		return insertAuditEntry(ctx, tx, model.AuditActionRevoke, teacherID, classCode, performedBy, details)
	})
}

// ListActive returns the teacher's effective assignments, newest grant last.
func (r *AssignmentRepository) ListActive(ctx context.Context, teacherID string, now time.Time) ([]model.Assignment, error) {
	query := `
		SELECT id, teacher_id, class_code, access_level, assigned_by, assigned_at, expires_at, is_active
		FROM assignments
		WHERE teacher_id = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY class_code ASC, assigned_at ASC
	`

	rows, err := r.Pool().Query(ctx, query, teacherID, now)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		err := rows.Scan(
			&a.ID,
			&a.TeacherID,
			&a.ClassCode,
			&a.AccessLevel,
			&a.AssignedBy,
			&a.AssignedAt,
			&a.ExpiresAt,
			&a.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return assignments, nil
}
