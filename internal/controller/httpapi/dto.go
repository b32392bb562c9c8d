package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/examaccess/internal/model"
)

type submitRequestBody struct {
	ClassCode     string     `json:"class_code" validate:"required"`
	Reason        string     `json:"reason" validate:"required"`
	RequestType   string     `json:"request_type" validate:"required,oneof=PERMANENT TEMPORARY SUBSTITUTE"`
	DurationStart *time.Time `json:"duration_start"`
	DurationEnd   *time.Time `json:"duration_end"`
}

type approveRequestBody struct {
	GrantedLevel string `json:"granted_level" validate:"required"`
	AdminNotes   string `json:"admin_notes"`
}

type denyRequestBody struct {
	AdminNotes string `json:"admin_notes"`
}

type bulkApproveBody struct {
	RequestIDs   []uuid.UUID `json:"request_ids" validate:"required,min=1"`
	GrantedLevel string      `json:"granted_level" validate:"required"`
}

type directAssignBody struct {
	TeacherID string     `json:"teacher_id" validate:"required"`
	ClassCode string     `json:"class_code" validate:"required"`
	Level     string     `json:"level" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type examBody struct {
	ID                 string    `json:"id" validate:"required"`
	OwnerID            string    `json:"owner_id" validate:"required"`
	AssignedClassCodes []string  `json:"assigned_class_codes"`
	ExamDate           time.Time `json:"exam_date"`
}

func (b examBody) toModel() model.Exam {
	return model.Exam{
		ID:                 b.ID,
		OwnerID:            b.OwnerID,
		AssignedClassCodes: b.AssignedClassCodes,
		ExamDate:           b.ExamDate,
	}
}

type resolveBody struct {
	Exam examBody `json:"exam" validate:"required"`
}

type organizeBody struct {
	Exams        []examBody `json:"exams" validate:"required"`
	EditableOnly bool       `json:"editable_only"`
	Grouping     string     `json:"grouping" validate:"omitempty,oneof=month quarter"`
}

type bulkApproveResultBody struct {
	RequestID  uuid.UUID         `json:"request_id"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
	Error      string            `json:"error,omitempty"`
}
