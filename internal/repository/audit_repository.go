package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/repository/base"
)

// AuditRepository reads the append-only ledger. Writes go through
// insertAuditEntry, called only inside the other repositories' transactions
// so a mutation can never land without its audit row.
type AuditRepository struct {
	*base.Repository
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{Repository: base.NewRepository(pool)}
}

// insertAuditEntry appends one ledger row on the given transaction.
func insertAuditEntry(ctx context.Context, db base.DBTX, action model.AuditAction, teacherID, classCode, performedBy, details string) error {
	query := `
		INSERT INTO audit_log (id, action, teacher_id, class_code, performed_by, timestamp, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.Exec(ctx, query,
		uuid.New(),
		action,
		teacherID,
		classCode,
		performedBy,
		time.Now().UTC(),
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// Query returns entries matching the filter in timestamp order.
func (r *AuditRepository) Query(ctx context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.TeacherID != "" {
		add("teacher_id = $%d", f.TeacherID)
	}
	if f.ClassCode != "" {
		add("class_code = $%d", f.ClassCode)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp < $%d", *f.To)
	}

	query := `
		SELECT id, action, teacher_id, class_code, performed_by, timestamp, details
		FROM audit_log
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.TeacherID,
			&e.ClassCode,
			&e.PerformedBy,
			&e.Timestamp,
			&e.Details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
