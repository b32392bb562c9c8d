package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/controller/httpapi"
	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/repository/memory"
	"github.com/schooldesk/examaccess/internal/service"
)

var jwtSecret = []byte("test-secret")

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	resolver := service.NewResolver(store, logger)

	srv := httpapi.NewServer(
		service.NewWorkflow(store, logger),
		service.NewAssignments(store, logger),
		resolver,
		service.NewOrganizer(resolver, logger),
		service.NewLedger(store),
		nil,
		jwtSecret,
		logger,
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: store}
}

func signToken(t *testing.T, subject string, isAdmin bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      subject,
		"is_admin": isAdmin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthNeedsNoToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRejectsMissingAndForgedTokens(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "T1", "is_admin": true,
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	resp = env.do(t, http.MethodGet, "/api/requests", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	teacher := signToken(t, "T1", false)
	adminTok := signToken(t, "admin-1", true)

	resp := env.do(t, http.MethodPost, "/api/requests", teacher, map[string]any{
		"class_code":   "C9",
		"reason":       "covering the class",
		"request_type": "PERMANENT",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[model.AccessRequest](t, resp)
	assert.Equal(t, model.RequestStatusPending, created.Status)
	assert.Equal(t, "T1", created.TeacherID)

	// A second pending request for the same pair conflicts.
	resp = env.do(t, http.MethodPost, "/api/requests", teacher, map[string]any{
		"class_code":   "C9",
		"reason":       "again",
		"request_type": "PERMANENT",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Teachers cannot approve.
	approvePath := fmt.Sprintf("/api/requests/%s/approve", created.ID)
	resp = env.do(t, http.MethodPost, approvePath, teacher, map[string]any{
		"granted_level": "FULL",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, approvePath, adminTok, map[string]any{
		"granted_level": "FULL",
		"admin_notes":   "ok",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	asg := decodeBody[model.Assignment](t, resp)
	assert.Equal(t, model.AccessFull, asg.AccessLevel)

	// Approving the now-terminal request again conflicts.
	resp = env.do(t, http.MethodPost, approvePath, adminTok, map[string]any{
		"granted_level": "VIEW",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/assignments", teacher, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeBody[[]model.Assignment](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, "C9", active[0].ClassCode)
}

func TestSubmitValidatesBody(t *testing.T) {
	env := newTestEnv(t)
	teacher := signToken(t, "T1", false)

	resp := env.do(t, http.MethodPost, "/api/requests", teacher, map[string]any{
		"class_code":   "C9",
		"reason":       "no such type",
		"request_type": "FOREVER",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDirectAssignAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	teacher := signToken(t, "T1", false)
	adminTok := signToken(t, "admin-1", true)

	body := map[string]any{
		"teacher_id": "T2",
		"class_code": "C3",
		"level":      "VIEW",
	}
	resp := env.do(t, http.MethodPost, "/api/assignments", teacher, body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/assignments", adminTok, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	asg := decodeBody[model.Assignment](t, resp)

	resp = env.do(t, http.MethodDelete, "/api/assignments/"+asg.ID.String(), adminTok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/assignments/"+asg.ID.String(), adminTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveAndDeniedMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := signToken(t, "T1", false)

	_, err := env.store.CreateOrUpdate(ctx, service.CreateAssignmentParams{
		TeacherID:   "T1",
		ClassCode:   "C1",
		AccessLevel: model.AccessView,
		AssignedBy:  "admin-1",
		AuditAction: model.AuditActionDirectAssign,
	})
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/decisions/resolve", teacher, map[string]any{
		"exam": map[string]any{
			"id":                   "E1",
			"owner_id":             "T9",
			"assigned_class_codes": []string{"C1"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody[model.Decision](t, resp)
	assert.Equal(t, model.AccessView, d.Rank)
	assert.False(t, d.Editable)
}

func TestAuditEndpointIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	teacher := signToken(t, "T1", false)
	adminTok := signToken(t, "admin-1", true)

	resp := env.do(t, http.MethodGet, "/api/audit", teacher, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err := env.store.CreateOrUpdate(context.Background(), service.CreateAssignmentParams{
		TeacherID:   "T2",
		ClassCode:   "C2",
		AccessLevel: model.AccessFull,
		AssignedBy:  "admin-1",
		AuditAction: model.AuditActionDirectAssign,
	})
	require.NoError(t, err)

	resp = env.do(t, http.MethodGet, "/api/audit?action=DIRECT_ASSIGN", adminTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decodeBody[[]model.AuditLogEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "T2", entries[0].TeacherID)

	resp = env.do(t, http.MethodGet, "/api/audit?action=EXPORT", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrganizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	teacher := signToken(t, "T1", false)

	_, err := env.store.CreateOrUpdate(context.Background(), service.CreateAssignmentParams{
		TeacherID:   "T1",
		ClassCode:   "C1",
		AccessLevel: model.AccessCoTeacher,
		AssignedBy:  "admin-1",
		AuditAction: model.AuditActionDirectAssign,
	})
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/decisions/organize", teacher, map[string]any{
		"exams": []map[string]any{
			{
				"id":                   "E1",
				"owner_id":             "T9",
				"assigned_class_codes": []string{"C1"},
				"exam_date":            time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			},
			{
				"id":                   "E2",
				"owner_id":             "T9",
				"assigned_class_codes": []string{"C7"},
				"exam_date":            time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC),
			},
		},
		"editable_only": true,
		"grouping":      "month",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[model.GroupedResult](t, resp)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Classes, 1)
	assert.Equal(t, "C1", result.Classes[0].ClassCode)
}
