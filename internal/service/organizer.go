package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
)

// UnassignedGroup is the class bucket for exams with no assigned classes
// (which only their owner or an admin can see in the first place).
const UnassignedGroup = "UNASSIGNED"

// Organizer turns an exam collection into the grouped view consumed by the
// presentation layer. When editableOnly is set it guarantees, structurally,
// that no non-editable exam survives into the output.
type Organizer struct {
	resolver *Resolver
	logger   *zap.Logger
}

func NewOrganizer(resolver *Resolver, logger *zap.Logger) *Organizer {
	return &Organizer{resolver: resolver, logger: logger}
}

// Organize resolves every exam, filters when editableOnly is set, and groups
// by class code then time period. An exam assigned to several classes
// appears under each of them.
func (o *Organizer) Organize(ctx context.Context, viewer model.Viewer, exams []model.Exam, editableOnly bool, grouping model.PeriodGrouping, now time.Time) (*model.GroupedResult, error) {
	if grouping == "" {
		grouping = model.GroupByMonth
	}
	if grouping != model.GroupByMonth && grouping != model.GroupByQuarter {
		return nil, fmt.Errorf("organize: unknown grouping %q", grouping)
	}

	decisions, err := o.resolver.ResolveAll(ctx, viewer, exams, now)
	if err != nil {
		return nil, fmt.Errorf("resolve exams: %w", err)
	}

	// First filter pass, before any grouping happens.
	items := make([]model.OrganizedExam, 0, len(exams))
	for i, exam := range exams {
		d := decisions[i]
		if editableOnly && !d.Editable {
			continue
		}
		if d.Rank.Rank() == 0 {
			// No access at all: the exam is invisible to this viewer.
			continue
		}
		items = append(items, model.OrganizedExam{Exam: exam, Decision: d})
	}

	result := groupItems(items, grouping)

	// Second, deliberately redundant sweep. Presentation-layer grouping has
	// historically reintroduced excluded exams by walking raw class-code
	// lists, so the filter invariant is re-established on the grouped
	// structure itself before it leaves this package.
	if editableOnly {
		sweepNonEditable(result)
	}

	o.logger.Debug("Organized exams",
		zap.String("viewer_id", viewer.ID),
		zap.Int("input", len(exams)),
		zap.Int("output", result.Total),
		zap.Bool("editable_only", editableOnly),
	)

	return result, nil
}

func groupItems(items []model.OrganizedExam, grouping model.PeriodGrouping) *model.GroupedResult {
	type periodMap map[string][]model.OrganizedExam
	classes := make(map[string]periodMap)

	for _, item := range items {
		codes := item.Exam.AssignedClassCodes
		if len(codes) == 0 {
			codes = []string{UnassignedGroup}
		}
		period := periodKey(item.Exam.ExamDate, grouping)
		for _, code := range codes {
			if classes[code] == nil {
				classes[code] = make(periodMap)
			}
			classes[code][period] = append(classes[code][period], item)
		}
	}

	result := &model.GroupedResult{}
	classCodes := make([]string, 0, len(classes))
	for code := range classes {
		classCodes = append(classCodes, code)
	}
	sort.Strings(classCodes)

	for _, code := range classCodes {
		periods := classes[code]
		keys := make([]string, 0, len(periods))
		for k := range periods {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		group := model.ClassGroup{ClassCode: code}
		for _, k := range keys {
			exams := periods[k]
			sort.Slice(exams, func(i, j int) bool {
				if !exams[i].Exam.ExamDate.Equal(exams[j].Exam.ExamDate) {
					return exams[i].Exam.ExamDate.Before(exams[j].Exam.ExamDate)
				}
				return exams[i].Exam.ID < exams[j].Exam.ID
			})
			group.Periods = append(group.Periods, model.PeriodGroup{Period: k, Exams: exams})
			result.Total += len(exams)
		}
		result.Classes = append(result.Classes, group)
	}

	return result
}

// sweepNonEditable removes any non-editable exam from the grouped structure,
// dropping periods and classes that end up empty, and recounts the total.
func sweepNonEditable(result *model.GroupedResult) {
	total := 0
	classes := result.Classes[:0]
	for _, class := range result.Classes {
		periods := class.Periods[:0]
		for _, period := range class.Periods {
			exams := period.Exams[:0]
			for _, item := range period.Exams {
				if !item.Decision.Editable {
					continue
				}
				exams = append(exams, item)
			}
			if len(exams) == 0 {
				continue
			}
			period.Exams = exams
			periods = append(periods, period)
			total += len(exams)
		}
		if len(periods) == 0 {
			continue
		}
		class.Periods = periods
		classes = append(classes, class)
	}
	result.Classes = classes
	result.Total = total
}

// periodKey buckets a date: "2026-04" for months, "2026-Q2" for quarters.
func periodKey(t time.Time, grouping model.PeriodGrouping) string {
	if grouping == model.GroupByQuarter {
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
	}
	return t.Format("2006-01")
}
