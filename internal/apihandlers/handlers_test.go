package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tributary/internal/models"
	"tributary/internal/services"
	"tributary/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobStore struct {
	jobs map[uuid.UUID]*models.Job
}

func (s *stubJobStore) CreateJob(ctx context.Context, job *models.Job) error {
	if s.jobs == nil {
		s.jobs = make(map[uuid.UUID]*models.Job)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *stubJobStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (s *stubJobStore) ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.Job, error) {
	var out []*models.Job
	for _, job := range s.jobs {
		if job.TenantID == tenantID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *stubJobStore) TransitionJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, update store.JobUpdate) error {
	return nil
}

func (s *stubJobStore) RecordTypeResult(ctx context.Context, id uuid.UUID, dataType string, processed, skipped int) error {
	return nil
}

func (s *stubJobStore) RecordTypeProgress(ctx context.Context, id uuid.UUID, dataType string, yielded int) error {
	return nil
}

type stubQueue struct{}

func (stubQueue) EnqueueIngestionJob(ctx context.Context, job *models.Job) error { return nil }
func (stubQueue) Close() error                                                   { return nil }

func setupRouter(t *testing.T) (*gin.Engine, *stubJobStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jobs := &stubJobStore{}
	handler := NewAPIHandler(services.NewJobService(jobs, stubQueue{}))

	router := gin.New()
	router.POST("/api/v1/jobs", handler.SubmitJobHandler)
	router.GET("/api/v1/jobs", handler.ListJobsHandler)
	router.GET("/api/v1/jobs/:id", handler.GetJobHandler)
	return router, jobs
}

func TestSubmitJobHandlerAccepts(t *testing.T) {
	router, jobs := setupRouter(t)

	body, _ := json.Marshal(SubmitJobRequest{
		TenantID:  "acme",
		StartDate: "2026-03-01",
		EndDate:   "2026-03-31",
		DataTypes: []string{"orders"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Data models.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.JobStatusQueued, resp.Data.Status)
	assert.Contains(t, jobs.jobs, resp.Data.ID)
}

func TestSubmitJobHandlerRejectsInvalidInput(t *testing.T) {
	router, jobs := setupRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `"hello`},
		{"missing tenant", `{"start_date":"2026-03-01","end_date":"2026-03-31","data_types":["orders"]}`},
		{"inverted range", `{"tenant_id":"acme","start_date":"2026-03-31","end_date":"2026-03-01","data_types":["orders"]}`},
		{"no types", `{"tenant_id":"acme","start_date":"2026-03-01","end_date":"2026-03-31","data_types":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "bad_request", resp.Error.Code)
		})
	}

	assert.Empty(t, jobs.jobs, "rejected submissions must not create job rows")
}

func TestGetJobHandler(t *testing.T) {
	router, jobs := setupRouter(t)

	r, err := models.NewDateRange("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	job := &models.Job{ID: uuid.New(), TenantID: "acme", DataTypes: []string{"orders"}, Range: r, Status: models.JobStatusProcessing}
	require.NoError(t, jobs.CreateJob(context.Background(), job))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.Data.ID)
	assert.Equal(t, models.JobStatusProcessing, resp.Data.Status)
}

func TestGetJobHandlerNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJobHandlerBadID(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsHandler(t *testing.T) {
	router, jobs := setupRouter(t)

	r, err := models.NewDateRange("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, jobs.CreateJob(context.Background(), &models.Job{
			ID: uuid.New(), TenantID: "acme", DataTypes: []string{"orders"}, Range: r, Status: models.JobStatusQueued,
		}))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?tenant_id=acme", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 3)
}

func TestListJobsHandlerRequiresTenant(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsHandlerEmptyIsArray(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?tenant_id=nobody", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}
