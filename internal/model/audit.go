package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names the mutation an audit entry records.
type AuditAction string

const (
	AuditActionRequest      AuditAction = "REQUEST"
	AuditActionApprove      AuditAction = "APPROVE"
	AuditActionDeny         AuditAction = "DENY"
	AuditActionWithdraw     AuditAction = "WITHDRAW"
	AuditActionRevoke       AuditAction = "REVOKE"
	AuditActionDirectAssign AuditAction = "DIRECT_ASSIGN"
)

// AuditLogEntry is one row of the append-only access-mutation ledger.
// Entries are written in the same transaction as the mutation they record
// and are never updated or deleted.
type AuditLogEntry struct {
	ID          uuid.UUID   `json:"id"`
	Action      AuditAction `json:"action"`
	TeacherID   string      `json:"teacher_id"`
	ClassCode   string      `json:"class_code"`
	PerformedBy string      `json:"performed_by"`
	Timestamp   time.Time   `json:"timestamp"`
	Details     string      `json:"details"`
}

// AuditFilter narrows a ledger query. Zero-valued fields match everything.
type AuditFilter struct {
	TeacherID string
	ClassCode string
	Action    AuditAction
	From      *time.Time
	To        *time.Time
	Limit     int
}
