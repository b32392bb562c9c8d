// Package memory provides an in-memory implementation of the service store
// interfaces. Each mutating method runs under one lock, giving the same
// atomicity guarantees as the PostgreSQL repositories: a mutation and its
// audit entry land together or not at all.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/service"
)

type pairKey struct {
	teacherID string
	classCode string
}

var (
	_ service.AssignmentStore = (*Store)(nil)
	_ service.RequestStore    = (*Store)(nil)
	_ service.AuditStore      = (*Store)(nil)
)

// Store keeps assignments, requests and the audit ledger in process memory.
type Store struct {
	mu          sync.RWMutex
	assignments map[uuid.UUID]*model.Assignment
	activePair  map[pairKey]uuid.UUID
	requests    map[uuid.UUID]*model.AccessRequest
	audit       []model.AuditLogEntry
}

func NewStore() *Store {
	return &Store{
		assignments: make(map[uuid.UUID]*model.Assignment),
		activePair:  make(map[pairKey]uuid.UUID),
		requests:    make(map[uuid.UUID]*model.AccessRequest),
	}
}

// ---- AssignmentStore ----

func (s *Store) GetEffectiveAccess(_ context.Context, teacherID, classCode string, now time.Time) (model.AccessLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveLocked(teacherID, classCode, now), nil
}

func (s *Store) effectiveLocked(teacherID, classCode string, now time.Time) model.AccessLevel {
	id, ok := s.activePair[pairKey{teacherID, classCode}]
	if !ok {
		return model.AccessNone
	}
	a := s.assignments[id]
	if a == nil || !a.Effective(now) {
		return model.AccessNone
	}
	return a.AccessLevel
}

func (s *Store) CreateOrUpdate(_ context.Context, p service.CreateAssignmentParams) (*model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(p), nil
}

func (s *Store) upsertLocked(p service.CreateAssignmentParams) *model.Assignment {
	now := time.Now().UTC()
	key := pairKey{p.TeacherID, p.ClassCode}

	before := s.effectiveLocked(p.TeacherID, p.ClassCode, now)
	if prevID, ok := s.activePair[key]; ok {
		s.assignments[prevID].IsActive = false
	}

	a := &model.Assignment{
		ID:          uuid.New(),
		TeacherID:   p.TeacherID,
		ClassCode:   p.ClassCode,
		AccessLevel: p.AccessLevel,
		AssignedBy:  p.AssignedBy,
		AssignedAt:  now,
		ExpiresAt:   p.ExpiresAt,
		IsActive:    true,
	}
	s.assignments[a.ID] = a
	s.activePair[key] = a.ID

	s.appendAuditLocked(p.AuditAction, p.TeacherID, p.ClassCode, p.AssignedBy,
		fmt.Sprintf("access level: %s -> %s", before, p.AccessLevel))

	return a
}

func (s *Store) Revoke(_ context.Context, assignmentID uuid.UUID, performedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentID]
	if !ok || !a.IsActive {
		return model.ErrNotFound
	}

	a.IsActive = false
	delete(s.activePair, pairKey{a.TeacherID, a.ClassCode})

	s.appendAuditLocked(model.AuditActionRevoke, a.TeacherID, a.ClassCode, performedBy,
		fmt.Sprintf("access level: %s -> %s", a.AccessLevel, model.AccessNone))

	return nil
}

func (s *Store) ListActive(_ context.Context, teacherID string, now time.Time) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Assignment
	for _, id := range s.activePair {
		a := s.assignments[id]
		if a.TeacherID != teacherID || !a.Effective(now) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassCode < out[j].ClassCode })
	return out, nil
}

// ---- RequestStore ----

func (s *Store) Create(_ context.Context, req *model.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.TeacherID == req.TeacherID &&
			existing.ClassCode == req.ClassCode &&
			existing.IsPending() {
			return model.ErrDuplicateRequest
		}
	}

	clone := *req
	s.requests[req.ID] = &clone

	s.appendAuditLocked(model.AuditActionRequest, req.TeacherID, req.ClassCode, req.TeacherID,
		fmt.Sprintf("%s access requested: %s", req.RequestType, req.Reason))

	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *Store) HasPending(_ context.Context, teacherID, classCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.TeacherID == teacherID && req.ClassCode == classCode && req.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListPending(_ context.Context) ([]model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AccessRequest
	for _, req := range s.requests {
		if req.IsPending() {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) ListByTeacher(_ context.Context, teacherID string) ([]model.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AccessRequest
	for _, req := range s.requests {
		if req.TeacherID == teacherID {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) Decide(_ context.Context, p service.DecideParams) (*model.AccessRequest, *model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[p.RequestID]
	if !ok {
		return nil, nil, model.ErrNotFound
	}
	// Re-check under the lock: a racing reviewer may have won.
	if !req.IsPending() {
		return nil, nil, model.ErrStaleRequestState
	}

	now := time.Now().UTC()
	var asg *model.Assignment
	if p.Grant != nil {
		asg = s.upsertLocked(service.CreateAssignmentParams{
			TeacherID:   req.TeacherID,
			ClassCode:   req.ClassCode,
			AccessLevel: p.Grant.Level,
			AssignedBy:  p.ReviewedBy,
			ExpiresAt:   p.Grant.ExpiresAt,
			AuditAction: model.AuditActionApprove,
		})
		req.ResultingAssignmentID = &asg.ID
	} else {
		action := model.AuditActionDeny
		if p.Status == model.RequestStatusWithdrawn {
			action = model.AuditActionWithdraw
		}
		s.appendAuditLocked(action, req.TeacherID, req.ClassCode, p.ReviewedBy, p.AdminNotes)
	}

	req.Status = p.Status
	req.ReviewedAt = &now
	reviewedBy := p.ReviewedBy
	req.ReviewedBy = &reviewedBy
	req.AdminNotes = p.AdminNotes

	clone := *req
	return &clone, asg, nil
}

// ---- AuditStore ----

func (s *Store) appendAuditLocked(action model.AuditAction, teacherID, classCode, performedBy, details string) {
	s.audit = append(s.audit, model.AuditLogEntry{
		ID:          uuid.New(),
		Action:      action,
		TeacherID:   teacherID,
		ClassCode:   classCode,
		PerformedBy: performedBy,
		Timestamp:   time.Now().UTC(),
		Details:     details,
	})
}

func (s *Store) Query(_ context.Context, f model.AuditFilter) ([]model.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuditLogEntry
	for _, e := range s.audit {
		if f.TeacherID != "" && e.TeacherID != f.TeacherID {
			continue
		}
		if f.ClassCode != "" && e.ClassCode != f.ClassCode {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.Timestamp.Before(*f.To) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// AuditSize returns the total number of ledger entries, unfiltered.
func (s *Store) AuditSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}
