package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schooldesk/examaccess/internal/model"
)

// The second pass must hold on its own: even if grouping ever reintroduces a
// non-editable exam, the sweep strips it before the result leaves the
// package.
func TestSweepNonEditableStripsLeakedExams(t *testing.T) {
	editable := model.OrganizedExam{
		Exam:     model.Exam{ID: "E-ok"},
		Decision: model.Decision{Label: string(model.AccessFull), Rank: model.AccessFull, Editable: true, Deletable: true},
	}
	leaked := model.OrganizedExam{
		Exam:     model.Exam{ID: "E-leak"},
		Decision: model.Decision{Label: string(model.AccessView), Rank: model.AccessView},
	}

	result := &model.GroupedResult{
		Classes: []model.ClassGroup{
			{
				ClassCode: "C1",
				Periods: []model.PeriodGroup{
					{Period: "2026-01", Exams: []model.OrganizedExam{editable, leaked}},
					{Period: "2026-02", Exams: []model.OrganizedExam{leaked}},
				},
			},
			{
				ClassCode: "C2",
				Periods: []model.PeriodGroup{
					{Period: "2026-01", Exams: []model.OrganizedExam{leaked}},
				},
			},
		},
		Total: 4,
	}

	sweepNonEditable(result)

	assert.Equal(t, 1, result.Total)
	assert.Len(t, result.Classes, 1)
	assert.Equal(t, "C1", result.Classes[0].ClassCode)
	assert.Len(t, result.Classes[0].Periods, 1)
	assert.Equal(t, "E-ok", result.Classes[0].Periods[0].Exams[0].Exam.ID)
}

func TestPeriodKey(t *testing.T) {
	d := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08", periodKey(d, model.GroupByMonth))
	assert.Equal(t, "2026-Q3", periodKey(d, model.GroupByQuarter))
	assert.Equal(t, "2026-Q1", periodKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), model.GroupByQuarter))
	assert.Equal(t, "2026-Q4", periodKey(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), model.GroupByQuarter))
}
