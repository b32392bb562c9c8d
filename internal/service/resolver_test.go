package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/repository/memory"
	"github.com/schooldesk/examaccess/internal/service"
)

func newFixture(t *testing.T) (*memory.Store, *service.Resolver, *service.Assignments, *service.Workflow, *service.Organizer) {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	resolver := service.NewResolver(store, logger)
	return store,
		resolver,
		service.NewAssignments(store, logger),
		service.NewWorkflow(store, logger),
		service.NewOrganizer(resolver, logger)
}

var admin = model.Viewer{ID: "admin-1", IsAdmin: true}

func grant(t *testing.T, store *memory.Store, teacherID, classCode string, level model.AccessLevel, expiresAt *time.Time) {
	t.Helper()
	_, err := store.CreateOrUpdate(context.Background(), service.CreateAssignmentParams{
		TeacherID:   teacherID,
		ClassCode:   classCode,
		AccessLevel: level,
		AssignedBy:  admin.ID,
		ExpiresAt:   expiresAt,
		AuditAction: model.AuditActionDirectAssign,
	})
	require.NoError(t, err)
}

func TestResolveAdminOverride(t *testing.T) {
	_, resolver, _, _, _ := newFixture(t)

	exam := &model.Exam{ID: "E1", OwnerID: "someone-else", AssignedClassCodes: []string{"C1"}}
	d, err := resolver.Resolve(context.Background(), admin, exam, time.Now())
	require.NoError(t, err)

	assert.Equal(t, string(model.AccessFull), d.Label)
	assert.True(t, d.Editable)
	assert.True(t, d.Deletable)
}

func TestResolveUnassignedExamOwnerRule(t *testing.T) {
	_, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	// Scenario C: an exam with no assigned classes belongs to its owner alone.
	exam := &model.Exam{ID: "E3", OwnerID: "T2"}

	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T2"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, model.LabelOwner, d.Label)
	assert.True(t, d.Editable)
	assert.True(t, d.Deletable)

	d, err = resolver.Resolve(ctx, model.Viewer{ID: "T9"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessNone), d.Label)
	assert.False(t, d.Editable)
	assert.False(t, d.Deletable)
}

func TestResolveOwnershipDoesNotOverrideAssignedExams(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	// The owner has no assignment on the exam's class: NONE, despite owning it.
	exam := &model.Exam{ID: "E1", OwnerID: "T1", AssignedClassCodes: []string{"C5"}}
	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessNone), d.Label)
	assert.False(t, d.Editable)

	// Scenario A: VIEW on C5 resolves to a VIEW badge, never OWNER, and
	// stays non-editable.
	grant(t, store, "T1", "C5", model.AccessView, nil)
	d, err = resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessView), d.Label)
	assert.False(t, d.Editable)
	assert.False(t, d.Deletable)
}

func TestResolveOwnerLabelRequiresEditableRank(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	exam := &model.Exam{ID: "E1", OwnerID: "T1", AssignedClassCodes: []string{"C5"}}
	grant(t, store, "T1", "C5", model.AccessFull, nil)

	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, model.LabelOwner, d.Label)
	assert.True(t, d.Editable)
	assert.True(t, d.Deletable)

	// A non-owner with the same assignment sees the level verbatim.
	grant(t, store, "T2", "C5", model.AccessFull, nil)
	d, err = resolver.Resolve(ctx, model.Viewer{ID: "T2"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessFull), d.Label)
}

func TestResolvePicksBestCandidateAcrossClasses(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	grant(t, store, "T1", "C1", model.AccessView, nil)
	grant(t, store, "T1", "C2", model.AccessCoTeacher, nil)

	exam := &model.Exam{ID: "E1", OwnerID: "other", AssignedClassCodes: []string{"C1", "C2", "C3"}}
	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)

	assert.Equal(t, string(model.AccessCoTeacher), d.Label)
	assert.Equal(t, "C2", d.GrantClass)
	assert.True(t, d.Editable)
	assert.False(t, d.Deletable, "CO_TEACHER edits but never deletes")
}

func TestResolveExpiredAssignmentContributesNothing(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)

	grant(t, store, "T1", "C1", model.AccessFull, &past)

	exam := &model.Exam{ID: "E1", OwnerID: "other", AssignedClassCodes: []string{"C1"}}
	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessNone), d.Label)
	assert.False(t, d.Editable)
}

func TestResolveSubstituteGrantsFullRankUntilExpiry(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	future := now.Add(24 * time.Hour)

	grant(t, store, "T1", "C1", model.AccessSubstitute, &future)

	exam := &model.Exam{ID: "E1", OwnerID: "other", AssignedClassCodes: []string{"C1"}}
	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessSubstitute), d.Label)
	assert.True(t, d.Deletable)

	// After expiry the same assignment is invisible.
	d, err = resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, future.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessNone), d.Label)
}

func TestResolveUnknownClassCodeIsNotAnError(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	grant(t, store, "T1", "C1", model.AccessView, nil)

	// "C-GONE" has no assignments anywhere; it simply contributes no candidate.
	exam := &model.Exam{ID: "E1", OwnerID: "other", AssignedClassCodes: []string{"C-GONE", "C1"}}
	d, err := resolver.Resolve(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.NoError(t, err)
	assert.Equal(t, string(model.AccessView), d.Label)
}

func TestResolveNilExam(t *testing.T) {
	_, resolver, _, _, _ := newFixture(t)
	_, err := resolver.Resolve(context.Background(), admin, nil, time.Now())
	assert.Error(t, err)
}

func TestAuthorizeDeleteBuildsDenialMessage(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	grant(t, store, "T1", "C5", model.AccessView, nil)
	exam := &model.Exam{ID: "E1", OwnerID: "T1", AssignedClassCodes: []string{"C5"}}

	err := resolver.AuthorizeDelete(ctx, model.Viewer{ID: "T1"}, exam, now)
	require.Error(t, err)

	var denied *model.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Access Denied: required FULL access level, your access: VIEW on C5", denied.Error())
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestAuthorizeEditAllowsCoTeacher(t *testing.T) {
	store, resolver, _, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	grant(t, store, "T1", "C5", model.AccessCoTeacher, nil)
	exam := &model.Exam{ID: "E1", OwnerID: "other", AssignedClassCodes: []string{"C5"}}

	assert.NoError(t, resolver.AuthorizeEdit(ctx, model.Viewer{ID: "T1"}, exam, now))
	assert.Error(t, resolver.AuthorizeDelete(ctx, model.Viewer{ID: "T1"}, exam, now))
}
