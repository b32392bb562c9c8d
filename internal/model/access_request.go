package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessRequest is a teacher's petition for access to a class, reviewed by
// an admin. Once a request reaches a terminal state it is immutable.
type AccessRequest struct {
	ID                    uuid.UUID     `json:"id"`
	TeacherID             string        `json:"teacher_id"`
	ClassCode             string        `json:"class_code"`
	Reason                string        `json:"reason"`
	RequestType           RequestType   `json:"request_type"`
	DurationStart         *time.Time    `json:"duration_start,omitempty"`
	DurationEnd           *time.Time    `json:"duration_end,omitempty"`
	Status                RequestStatus `json:"status"`
	RequestedAt           time.Time     `json:"requested_at"`
	ReviewedAt            *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy            *string       `json:"reviewed_by,omitempty"`
	AdminNotes            string        `json:"admin_notes,omitempty"`
	ResultingAssignmentID *uuid.UUID    `json:"resulting_assignment_id,omitempty"`
}

// RequestStatus is the request state machine: PENDING is the only
// non-terminal state.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusDenied    RequestStatus = "DENIED"
	RequestStatusWithdrawn RequestStatus = "WITHDRAWN"
)

// RequestType distinguishes what kind of grant the teacher is asking for.
type RequestType string

const (
	RequestTypePermanent  RequestType = "PERMANENT"
	RequestTypeTemporary  RequestType = "TEMPORARY"
	RequestTypeSubstitute RequestType = "SUBSTITUTE"
)

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypePermanent, RequestTypeTemporary, RequestTypeSubstitute:
		return true
	}
	return false
}

// IsPending checks if the request can still be decided.
func (r *AccessRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsTerminal checks if the request has reached an immutable state.
func (r *AccessRequest) IsTerminal() bool {
	return r.Status == RequestStatusApproved ||
		r.Status == RequestStatusDenied ||
		r.Status == RequestStatusWithdrawn
}
