package service

import (
	"context"
	"fmt"

	"github.com/schooldesk/examaccess/internal/model"
)

const defaultAuditLimit = 200

// Ledger is the read side of the audit log, exposed to the administration UI.
type Ledger struct {
	store AuditStore
}

func NewLedger(store AuditStore) *Ledger {
	return &Ledger{store: store}
}

// Query returns ledger entries matching the filter, oldest first. The limit
// is capped so a UI cannot pull the whole history in one call.
func (l *Ledger) Query(ctx context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error) {
	if f.Limit <= 0 || f.Limit > defaultAuditLimit {
		f.Limit = defaultAuditLimit
	}
	if f.Action != "" {
		switch f.Action {
		case model.AuditActionRequest, model.AuditActionApprove, model.AuditActionDeny,
			model.AuditActionWithdraw, model.AuditActionRevoke, model.AuditActionDirectAssign:
		default:
			return nil, fmt.Errorf("audit query: unknown action %q", f.Action)
		}
	}
	return l.store.Query(ctx, f)
}
