package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/examaccess/internal/model"
)

func TestDirectAssignReplacesExistingGrant(t *testing.T) {
	store, _, assignments, _, _ := newFixture(t)
	ctx := context.Background()

	first, err := assignments.DirectAssign(ctx, admin, "T1", "C1", model.AccessView, nil)
	require.NoError(t, err)
	second, err := assignments.DirectAssign(ctx, admin, "T1", "C1", model.AccessFull, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// At most one effective assignment per pair.
	active, err := assignments.ListActive(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, model.AccessFull, active[0].AccessLevel)

	entries, err := store.Query(ctx, model.AuditFilter{Action: model.AuditActionDirectAssign})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Details, "NONE -> VIEW")
	assert.Contains(t, entries[1].Details, "VIEW -> FULL")
}

func TestDirectAssignValidation(t *testing.T) {
	_, _, assignments, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := assignments.DirectAssign(ctx, model.Viewer{ID: "T1"}, "T2", "C1", model.AccessFull, nil)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	_, err = assignments.DirectAssign(ctx, admin, "T2", "C1", model.AccessNone, nil)
	assert.Error(t, err)

	_, err = assignments.DirectAssign(ctx, admin, "T2", "C1", "OWNER", nil)
	assert.Error(t, err, "OWNER is a label, not a grantable level")

	_, err = assignments.DirectAssign(ctx, admin, "T2", "C1", model.AccessSubstitute, nil)
	assert.Error(t, err, "substitute grants need an expiry")
}

func TestRevokeDeactivatesAndAudits(t *testing.T) {
	store, _, assignments, _, _ := newFixture(t)
	ctx := context.Background()

	asg, err := assignments.DirectAssign(ctx, admin, "T1", "C1", model.AccessCoTeacher, nil)
	require.NoError(t, err)

	before := store.AuditSize()
	require.NoError(t, assignments.Revoke(ctx, admin, asg.ID))
	assert.Equal(t, before+1, store.AuditSize())

	level, err := assignments.EffectiveAccess(ctx, "T1", "C1")
	require.NoError(t, err)
	assert.Equal(t, model.AccessNone, level)

	active, err := assignments.ListActive(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Revoking twice is an error, not a silent no-op.
	err = assignments.Revoke(ctx, admin, asg.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = assignments.Revoke(ctx, model.Viewer{ID: "T1"}, asg.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestListActiveSkipsExpired(t *testing.T) {
	_, _, assignments, _, _ := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	_, err := assignments.DirectAssign(ctx, admin, "T1", "C1", model.AccessSubstitute, &past)
	require.NoError(t, err)
	_, err = assignments.DirectAssign(ctx, admin, "T1", "C2", model.AccessSubstitute, &future)
	require.NoError(t, err)

	active, err := assignments.ListActive(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "C2", active[0].ClassCode)

	level, err := assignments.EffectiveAccess(ctx, "T1", "C1")
	require.NoError(t, err)
	assert.Equal(t, model.AccessNone, level)
}
