package model

import "time"

// Exam is the protected resource. It is owned by the exam-storage subsystem
// and read-only here; this core only decides who may see or change it.
type Exam struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	AssignedClassCodes []string  `json:"assigned_class_codes"`
	ExamDate           time.Time `json:"exam_date"`
}

// HasAssignedClasses reports whether access to the exam is governed by class
// assignments. When false, ownership alone is decisive.
func (e *Exam) HasAssignedClasses() bool {
	return len(e.AssignedClassCodes) > 0
}
