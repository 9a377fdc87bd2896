package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
)

// fakeRunner captures the request and returns a canned report.
type fakeRunner struct {
	got    service.IngestRequest
	report *domain.Report
}

func (f *fakeRunner) Run(_ context.Context, req service.IngestRequest) *domain.Report {
	f.got = req
	return f.report
}

func newTestRouter(runner PipelineRunner, jobs domain.JobLogRepository) http.Handler {
	h := NewHandler(runner, jobs, nil)
	r := chi.NewRouter()
	r.Route("/v1", h.Routes)
	return r
}

// multipartBody builds a multipart form with an archive file plus fields.
func multipartBody(t *testing.T, archive []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if archive != nil {
		fw, err := w.CreateFormFile("archive", "upload.zip")
		require.NoError(t, err)
		_, err = fw.Write(archive)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreateLayer_Success(t *testing.T) {
	t.Parallel()

	layerID := 0
	runner := &fakeRunner{report: &domain.Report{
		Success:      true,
		ItemID:       "item-1",
		ServiceURL:   "https://svc/item-1",
		LayerID:      &layerID,
		StrategyUsed: domain.StrategyDirect,
	}}
	router := newTestRouter(runner, nil)

	body, contentType := multipartBody(t, []byte("zip-bytes"), map[string]string{
		"title": "Parcels",
		"share": "org",
		"tags":  "gis, parcels",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/layers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.True(t, rep.Success)
	assert.Equal(t, "item-1", rep.ItemID)

	assert.Equal(t, "upload.zip", runner.got.Archive.Name)
	assert.Equal(t, []byte("zip-bytes"), runner.got.Archive.Bytes)
	assert.Equal(t, "Parcels", runner.got.Title)
	assert.Equal(t, domain.SharingOrganization, runner.got.Share)
	assert.Equal(t, []string{"gis", "parcels"}, runner.got.Tags)
	assert.Nil(t, runner.got.Target)
}

func TestCreateLayer_MissingArchive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeRunner{}, nil)
	body, contentType := multipartBody(t, nil, map[string]string{"title": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/layers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLayer_InvalidShare(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeRunner{}, nil)
	body, contentType := multipartBody(t, []byte("zip"), map[string]string{"share": "world"})
	req := httptest.NewRequest(http.MethodPost, "/v1/layers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLayer_FailureStatusByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindMissingComponent, http.StatusUnprocessableEntity},
		{domain.KindMissingCRS, http.StatusUnprocessableEntity},
		{domain.KindAuthorizationDenied, http.StatusForbidden},
		{domain.KindPartialUpdate, http.StatusConflict},
		{domain.KindPublicationFailed, http.StatusBadGateway},
		{domain.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{report: &domain.Report{Success: false, ErrorKind: tc.kind, Detail: "boom"}}
			router := newTestRouter(runner, nil)

			body, contentType := multipartBody(t, []byte("zip"), nil)
			req := httptest.NewRequest(http.MethodPost, "/v1/layers", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUpdateLayer_ScopedTarget(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{report: &domain.Report{Success: true, StrategyUsed: domain.StrategyTruncateAppend}}
	router := newTestRouter(runner, nil)

	body, contentType := multipartBody(t, []byte("zip"), map[string]string{
		"serviceUrl": "https://svc/item-9",
		"sublayer":   "2",
		"mapping":    `{"OLD":"new"}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/layers/item-9/update", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, runner.got.Target)
	assert.Equal(t, "item-9", runner.got.Target.ItemID)
	assert.Equal(t, "https://svc/item-9", runner.got.Target.ServiceURL)
	require.NotNil(t, runner.got.Target.Sublayer)
	assert.Equal(t, 2, *runner.got.Target.Sublayer)
	assert.Equal(t, map[string]string{"OLD": "new"}, runner.got.FieldMapping)
	assert.True(t, runner.got.Backup, "backup defaults on for updates")
}

func TestUpdateLayer_BackupFlag(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{report: &domain.Report{Success: true}}
	router := newTestRouter(runner, nil)

	post := func(backup string) int {
		fields := map[string]string{"serviceUrl": "https://svc/item-9"}
		if backup != "" {
			fields["backup"] = backup
		}
		body, contentType := multipartBody(t, []byte("zip"), fields)
		req := httptest.NewRequest(http.MethodPost, "/v1/layers/item-9/update", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, post("false"))
	assert.False(t, runner.got.Backup)

	require.Equal(t, http.StatusOK, post("true"))
	assert.True(t, runner.got.Backup)

	assert.Equal(t, http.StatusBadRequest, post("maybe"))
}

func TestUpdateLayer_RequiresServiceURL(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeRunner{}, nil)
	body, contentType := multipartBody(t, []byte("zip"), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/layers/item-9/update", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateLayer_InvalidSublayer(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeRunner{}, nil)
	body, contentType := multipartBody(t, []byte("zip"), map[string]string{
		"serviceUrl": "https://svc/item-9",
		"sublayer":   "-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/layers/item-9/update", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubJobs struct {
	recent []domain.JobEvent
	byJob  map[string][]domain.JobEvent
}

func (s *stubJobs) Insert(context.Context, *domain.JobEvent) error { return nil }
func (s *stubJobs) ListRecent(_ context.Context, _ int) ([]domain.JobEvent, error) {
	return s.recent, nil
}
func (s *stubJobs) ListForJob(_ context.Context, jobID string) ([]domain.JobEvent, error) {
	return s.byJob[jobID], nil
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	jobs := &stubJobs{
		recent: []domain.JobEvent{{JobID: "j2", Stage: "publish", Status: "ok"}},
		byJob: map[string][]domain.JobEvent{
			"j1": {{JobID: "j1", Stage: "validate", Status: "fail"}},
		},
	}
	router := newTestRouter(&fakeRunner{}, jobs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "j2")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs?job=j1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "validate")
}

func TestListJobs_DisabledWithoutRepository(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeRunner{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
