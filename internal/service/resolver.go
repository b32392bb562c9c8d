package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
)

// AssignmentReader is the read-only slice of the assignment store the
// resolver needs.
type AssignmentReader interface {
	ListActive(ctx context.Context, teacherID string, now time.Time) ([]model.Assignment, error)
}

// Resolver decides, for a viewer and an exam, the effective access level and
// the derived editable/deletable flags. It never returns an error for an
// authorization outcome: NONE is a valid decision. The admin override lives
// here and nowhere else.
type Resolver struct {
	assignments AssignmentReader
	logger      *zap.Logger
}

func NewResolver(assignments AssignmentReader, logger *zap.Logger) *Resolver {
	return &Resolver{assignments: assignments, logger: logger}
}

// AccessIndex is a snapshot of a viewer's effective access keyed by class
// code. The uniqueness invariant guarantees at most one level per code.
type AccessIndex map[string]model.AccessLevel

// Snapshot loads the viewer's effective assignments in a single read, so a
// batch of resolutions observes one consistent state.
func (r *Resolver) Snapshot(ctx context.Context, teacherID string, now time.Time) (AccessIndex, error) {
	active, err := r.assignments.ListActive(ctx, teacherID, now)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}

	idx := make(AccessIndex, len(active))
	for _, a := range active {
		idx[a.ClassCode] = a.AccessLevel
	}
	return idx, nil
}

// Resolve answers a single per-exam query.
func (r *Resolver) Resolve(ctx context.Context, viewer model.Viewer, exam *model.Exam, now time.Time) (model.Decision, error) {
	if exam == nil {
		return model.Decision{}, fmt.Errorf("resolve: nil exam")
	}

	// Admins and unassigned exams never need the store.
	if d, done := resolveShortcut(viewer, exam); done {
		return d, nil
	}

	idx, err := r.Snapshot(ctx, viewer.ID, now)
	if err != nil {
		return model.Decision{}, err
	}
	return resolveWith(idx, viewer, exam), nil
}

// ResolveAll resolves a batch of exams against one snapshot.
func (r *Resolver) ResolveAll(ctx context.Context, viewer model.Viewer, exams []model.Exam, now time.Time) ([]model.Decision, error) {
	var idx AccessIndex
	if !viewer.IsAdmin {
		var err error
		idx, err = r.Snapshot(ctx, viewer.ID, now)
		if err != nil {
			return nil, err
		}
	}

	decisions := make([]model.Decision, len(exams))
	for i := range exams {
		exam := &exams[i]
		if d, done := resolveShortcut(viewer, exam); done {
			decisions[i] = d
			continue
		}
		decisions[i] = resolveWith(idx, viewer, exam)
	}

	r.logger.Debug("Resolved exam batch",
		zap.String("viewer_id", viewer.ID),
		zap.Int("exams", len(exams)),
	)

	return decisions, nil
}

// AuthorizeEdit gates an exam edit. On denial it returns an
// *model.AccessDeniedError carrying the message callers must surface.
func (r *Resolver) AuthorizeEdit(ctx context.Context, viewer model.Viewer, exam *model.Exam, now time.Time) error {
	d, err := r.Resolve(ctx, viewer, exam, now)
	if err != nil {
		return err
	}
	if d.Editable {
		return nil
	}
	return deniedError(model.AccessCoTeacher, d, exam)
}

// AuthorizeDelete gates an exam delete; only the FULL rank qualifies.
func (r *Resolver) AuthorizeDelete(ctx context.Context, viewer model.Viewer, exam *model.Exam, now time.Time) error {
	d, err := r.Resolve(ctx, viewer, exam, now)
	if err != nil {
		return err
	}
	if d.Deletable {
		return nil
	}
	return deniedError(model.AccessFull, d, exam)
}

// resolveShortcut handles the two store-free cases: the admin override and
// the unassigned-exam ownership rule.
func resolveShortcut(viewer model.Viewer, exam *model.Exam) (model.Decision, bool) {
	if viewer.IsAdmin {
		return model.Decision{
			Label:     string(model.AccessFull),
			Rank:      model.AccessFull,
			Editable:  true,
			Deletable: true,
		}, true
	}

	if !exam.HasAssignedClasses() {
		if viewer.ID == exam.OwnerID {
			return model.Decision{
				Label:     model.LabelOwner,
				Rank:      model.AccessFull,
				Editable:  true,
				Deletable: true,
			}, true
		}
		return noneDecision(), true
	}

	return model.Decision{}, false
}

// resolveWith evaluates an assigned exam against a snapshot. Ownership is
// deliberately ignored for access: only the viewer's effective assignments
// on the exam's classes count. A class code absent from the snapshot simply
// contributes no candidate.
func resolveWith(idx AccessIndex, viewer model.Viewer, exam *model.Exam) model.Decision {
	best := model.AccessNone
	grantClass := ""
	for _, code := range exam.AssignedClassCodes {
		level, ok := idx[code]
		if !ok || level.Rank() == 0 {
			continue
		}
		if level.Rank() > best.Rank() {
			best = level
			grantClass = code
		}
	}

	if best.Rank() == 0 {
		return noneDecision()
	}

	d := model.Decision{
		Label:      string(best),
		Rank:       best,
		Editable:   best.Editable(),
		Deletable:  best.Deletable(),
		GrantClass: grantClass,
	}
	// The OWNER label is cosmetic and only appears when the resolved rank
	// is itself editable; the flags above are already final.
	if viewer.ID == exam.OwnerID && d.Editable {
		d.Label = model.LabelOwner
	}
	return d
}

func noneDecision() model.Decision {
	return model.Decision{Label: string(model.AccessNone), Rank: model.AccessNone}
}

func deniedError(required model.AccessLevel, d model.Decision, exam *model.Exam) error {
	classCode := d.GrantClass
	if classCode == "" && len(exam.AssignedClassCodes) > 0 {
		classCode = exam.AssignedClassCodes[0]
	}
	return &model.AccessDeniedError{
		Required:  required,
		Actual:    d.Label,
		ClassCode: classCode,
	}
}
