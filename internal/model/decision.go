package model

// Decision is the resolver's verdict for one (viewer, exam) pair.
//
// Label is cosmetic: it is either the winning access level verbatim or
// LabelOwner, and exists only for badge display. Editable and Deletable are
// always derived from the winning rank, never from ownership.
type Decision struct {
	Label      string      `json:"label"`
	Rank       AccessLevel `json:"rank"`
	Editable   bool        `json:"editable"`
	Deletable  bool        `json:"deletable"`
	GrantClass string      `json:"grant_class,omitempty"`
}

// PeriodGrouping selects the time bucket used when organizing exams.
type PeriodGrouping string

const (
	GroupByMonth   PeriodGrouping = "month"
	GroupByQuarter PeriodGrouping = "quarter"
)

// OrganizedExam pairs an exam with its resolved decision for badge display.
type OrganizedExam struct {
	Exam     Exam     `json:"exam"`
	Decision Decision `json:"decision"`
}

// PeriodGroup holds the exams of one class falling in one time period.
type PeriodGroup struct {
	Period string          `json:"period"`
	Exams  []OrganizedExam `json:"exams"`
}

// ClassGroup holds one class's exams bucketed by period.
type ClassGroup struct {
	ClassCode string        `json:"class_code"`
	Periods   []PeriodGroup `json:"periods"`
}

// GroupedResult is the organizer's output, consumed by list/browse views.
type GroupedResult struct {
	Classes []ClassGroup `json:"classes"`
	Total   int          `json:"total"`
}
