package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRepository returns canned results; the err fields make the matching call fail.
type stubRepository struct {
	total       int64
	departments []models.DepartmentCount
	recent      []models.SurveyResponse

	countErr  error
	deptErr   error
	recentErr error

	gotLimit int
}

func (s *stubRepository) EnsureSchema(context.Context) error { return nil }

func (s *stubRepository) Insert(context.Context, *models.SurveyResponse) (int64, error) {
	return 0, errors.New("read-only stub")
}

func (s *stubRepository) Count(context.Context) (int64, error) { return s.total, s.countErr }

func (s *stubRepository) CountByDepartment(context.Context) ([]models.DepartmentCount, error) {
	return s.departments, s.deptErr
}

func (s *stubRepository) Recent(_ context.Context, limit int) ([]models.SurveyResponse, error) {
	s.gotLimit = limit
	return s.recent, s.recentErr
}

func (s *stubRepository) All(context.Context) ([]models.SurveyResponse, error) {
	return s.recent, s.recentErr
}

func (s *stubRepository) Ping(context.Context) error { return nil }

func (s *stubRepository) Close() {}

func newTestRouter(t *testing.T, repo *stubRepository) *gin.Engine {
	t.Helper()
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	h := NewHandler(repo, 20, taipei, zap.NewNop())
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.GET("/admin", h.Summary)
	return r
}

func get(r http.Handler, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func populated() *stubRepository {
	return &stubRepository{
		total: 3,
		departments: []models.DepartmentCount{
			{Department: "Engineering", Count: 2},
			{Department: "Finance", Count: 1},
		},
		recent: []models.SurveyResponse{{
			ID:            3,
			Name:          "Amy",
			Department:    "Engineering",
			Age:           31,
			Obstacles:     []string{"Time", "Cost"},
			ObstaclesText: "Time,Cost",
			CreatedAt:     time.Date(2026, 3, 1, 1, 30, 0, 0, time.UTC),
		}},
	}
}

func TestSummary_JSON(t *testing.T) {
	repo := populated()
	w := get(newTestRouter(t, repo), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, repo.gotLimit)

	var body struct {
		Success bool    `json:"success"`
		Data    Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.EqualValues(t, 3, body.Data.Total)
	assert.Equal(t, repo.departments, body.Data.Departments)
	require.Len(t, body.Data.Recent, 1)
	assert.Equal(t, "Amy", body.Data.Recent[0].Name)
	assert.Equal(t, []string{"Time", "Cost"}, body.Data.Recent[0].Obstacles)
	_, offset := body.Data.Recent[0].CreatedAt.Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestSummary_EmptyStoreUsesEmptyLists(t *testing.T) {
	w := get(newTestRouter(t, &stubRepository{}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"total":0,"departments":[],"recent":[]}}`, w.Body.String())
}

func TestSummary_HTML(t *testing.T) {
	w := get(newTestRouter(t, populated()), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, "Total: <strong>3</strong>")
	assert.Contains(t, body, "<td>Engineering</td><td>2</td>")
	assert.Contains(t, body, "<td>Finance</td><td>1</td>")
	assert.Contains(t, body, "2026-03-01 09:30:00")
	assert.Contains(t, body, "Time, Cost")
	assert.Contains(t, body, "Asia/Taipei")
}

func TestSummary_HTMLEscapesStoredText(t *testing.T) {
	repo := populated()
	repo.recent[0].Name = "<script>alert(1)</script>"
	w := get(newTestRouter(t, repo), "text/html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

func TestSummary_StorageFailures(t *testing.T) {
	backendErr := errors.New(`pq: relation "survey_v2" does not exist`)
	tests := []struct {
		name string
		repo *stubRepository
	}{
		{"count", &stubRepository{countErr: backendErr}},
		{"departments", &stubRepository{deptErr: backendErr}},
		{"recent", &stubRepository{recentErr: backendErr}},
	}
	for _, tt := range tests {
		t.Run(tt.name+" json", func(t *testing.T) {
			w := get(newTestRouter(t, tt.repo), "application/json")
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, w.Body.String(), "failed to load survey summary")
			assert.NotContains(t, w.Body.String(), "survey_v2")
		})
		t.Run(tt.name+" html", func(t *testing.T) {
			w := get(newTestRouter(t, tt.repo), "text/html")
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.NotContains(t, w.Body.String(), "survey_v2")
		})
	}
}

func TestExport_Workbook(t *testing.T) {
	repo := populated()
	repo.recent = append(repo.recent, models.SurveyResponse{
		ID:         4,
		Name:       "Bo",
		Department: "Finance",
		Age:        45,
		Obstacles:  []string{"Cost, overhead", "Tooling"},
		CreatedAt:  time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC),
	})
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	h := NewHandler(repo, 20, taipei, zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.GET("/admin/export.xlsx", h.Export)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/export.xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MIMEXLSX, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="survey-responses-20260303-080000.xlsx"`, w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ResponsesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ResponsesHeader, rows[0])
	assert.Equal(t, []string{"3", "2026-03-01 09:30:00", "Amy", "Engineering", "31"}, rows[1][:5])
	assert.Equal(t, "Time; Cost", rows[1][7])
	assert.Equal(t, "2026-03-03 00:00:00", rows[2][1])
	assert.Equal(t, "Cost, overhead; Tooling", rows[2][7])

	depts, err := f.GetRows(DepartmentsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Department", "Responses"}, {"Engineering", "2"}, {"Finance", "1"}}, depts)
}

func TestExport_StorageFailure(t *testing.T) {
	repo := &stubRepository{recentErr: errors.New("disk I/O error")}
	h := NewHandler(repo, 20, time.UTC, zap.NewNop())
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.GET("/admin/export.xlsx", h.Export)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/export.xlsx", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk I/O")
}
