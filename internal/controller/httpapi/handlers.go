package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/service"
)

func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func requestID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// ---- Request workflow ----

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	req, err := s.workflow.Submit(r.Context(), service.SubmitParams{
		TeacherID:     viewer.ID,
		ClassCode:     body.ClassCode,
		Reason:        body.Reason,
		RequestType:   model.RequestType(body.RequestType),
		DurationStart: body.DurationStart,
		DurationEnd:   body.DurationEnd,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListMyRequests(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	requests, err := s.workflow.ListByTeacher(r.Context(), viewer.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *Server) handleListPendingRequests(w http.ResponseWriter, r *http.Request) {
	if !viewerFrom(r.Context()).IsAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	requests, err := s.workflow.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (s *Server) handleWithdrawRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	viewer := viewerFrom(r.Context())
	if err := s.workflow.Withdraw(r.Context(), id, viewer.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var body approveRequestBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := model.ParseAccessLevel(body.GrantedLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	asg, err := s.workflow.Approve(r.Context(), id, viewer, level, body.AdminNotes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusOK, asg)
}

func (s *Server) handleDenyRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var body denyRequestBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	if err := s.workflow.Deny(r.Context(), id, viewer, body.AdminNotes); err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var body bulkApproveBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := model.ParseAccessLevel(body.GrantedLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	results := s.workflow.BulkApprove(r.Context(), body.RequestIDs, viewer, level)

	out := make([]bulkApproveResultBody, 0, len(results))
	for _, res := range results {
		item := bulkApproveResultBody{
			RequestID:  res.RequestID,
			Assignment: res.Assignment,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out = append(out, item)
	}

	s.invalidateDecisions(r)
	// 207: some entries may have failed while others succeeded.
	writeJSON(w, http.StatusMultiStatus, out)
}

// ---- Assignments ----

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	teacherID := viewer.ID
	if q := r.URL.Query().Get("teacher_id"); q != "" && viewer.IsAdmin {
		teacherID = q
	}

	assignments, err := s.assignments.ListActive(r.Context(), teacherID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) handleEffectiveAccess(w http.ResponseWriter, r *http.Request) {
	classCode := r.URL.Query().Get("class_code")
	if classCode == "" {
		writeError(w, http.StatusBadRequest, "class_code is required")
		return
	}

	viewer := viewerFrom(r.Context())
	level, err := s.assignments.EffectiveAccess(r.Context(), viewer.ID, classCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"class_code":   classCode,
		"access_level": string(level),
	})
}

func (s *Server) handleDirectAssign(w http.ResponseWriter, r *http.Request) {
	var body directAssignBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := model.ParseAccessLevel(body.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	asg, err := s.assignments.DirectAssign(r.Context(), viewer, body.TeacherID, body.ClassCode, level, body.ExpiresAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusCreated, asg)
}

func (s *Server) handleRevokeAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	viewer := viewerFrom(r.Context())
	if err := s.assignments.Revoke(r.Context(), viewer, id); err != nil {
		writeServiceError(w, err)
		return
	}

	s.invalidateDecisions(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// ---- Audit ledger ----

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if !viewerFrom(r.Context()).IsAdmin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	q := r.URL.Query()
	filter := model.AuditFilter{
		TeacherID: q.Get("teacher_id"),
		ClassCode: q.Get("class_code"),
		Action:    model.AuditAction(q.Get("action")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.To = &t
	}

	entries, err := s.ledger.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ---- Decisions ----

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer := viewerFrom(r.Context())
	exam := body.Exam.toModel()

	if s.decisions != nil {
		if d, ok := s.decisions.Get(r.Context(), viewer.ID, exam.ID); ok {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}

	d, err := s.resolver.Resolve(r.Context(), viewer, &exam, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.decisions != nil {
		s.decisions.Set(r.Context(), viewer.ID, exam.ID, d)
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleOrganize(w http.ResponseWriter, r *http.Request) {
	var body organizeBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exams := make([]model.Exam, 0, len(body.Exams))
	for _, e := range body.Exams {
		exams = append(exams, e.toModel())
	}

	viewer := viewerFrom(r.Context())
	result, err := s.organizer.Organize(r.Context(), viewer, exams, body.EditableOnly, model.PeriodGrouping(body.Grouping), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
