package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwatch/parkwatch/internal/api"
	"github.com/parkwatch/parkwatch/internal/api/models"
	"github.com/parkwatch/parkwatch/internal/auth"
	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
	"github.com/parkwatch/parkwatch/pkg/geojson"
)

const testCSV = "id,zone,operator\nprk-1,1,EasyPark\n"

// fakeSource serves a fixed monitoring dataset.
type fakeSource struct {
	err            error
	regions        []parkkihubi.Region
	stats          []parkkihubi.RegionStatistics
	parkings       []parkkihubi.ValidParking
	lastParkingsAt time.Time
}

func (f *fakeSource) BaseURL() string { return "http://parkkihubi.test" }

func (f *fakeSource) FetchRegions(_ context.Context, onPage func([]parkkihubi.Region)) error {
	if f.err != nil {
		return f.err
	}
	onPage(f.regions)
	return nil
}

func (f *fakeSource) FetchRegionStatistics(_ context.Context, _ time.Time, onPage func([]parkkihubi.RegionStatistics)) error {
	if f.err != nil {
		return f.err
	}
	onPage(f.stats)
	return nil
}

func (f *fakeSource) FetchValidParkings(_ context.Context, at time.Time, onPage func([]parkkihubi.ValidParking)) error {
	f.lastParkingsAt = at
	if f.err != nil {
		return f.err
	}
	onPage(f.parkings)
	return nil
}

// fakeDownloader serves a fixed export vocabulary and download outcome.
type fakeDownloader struct {
	filters  []parkkihubi.ExportFilters
	download *parkkihubi.ExportDownload
	err      error
}

func (f *fakeDownloader) FetchExportFilters(_ context.Context, onPage func([]parkkihubi.ExportFilters)) error {
	onPage(f.filters)
	return nil
}

func (f *fakeDownloader) DownloadCSV(_ context.Context, _ parkkihubi.ExportSelection) (*parkkihubi.ExportDownload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.download, nil
}

type testEnv struct {
	router     http.Handler
	monitor    *monitoring.Service
	source     *fakeSource
	downloader *fakeDownloader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "parkwatch",
		Audience:   "parkwatch-dashboard",
	})
	authService := auth.NewService(auth.ServiceConfig{
		JWTService:  jwtService,
		AccountRepo: auth.NewInMemoryAccountRepository(),
		RefreshRepo: auth.NewInMemoryRefreshTokenRepository(),
	})
	_, err := authService.CreateAccount(context.Background(), "monitor", "parkwatch-test-password", "Monitoring Operator")
	require.NoError(t, err)

	square := geojson.Geometry{
		Type: "MultiPolygon",
		Polygons: [][][]geojson.Point{
			{{{Lon: 24.92, Lat: 60.16}, {Lon: 24.94, Lat: 60.16}, {Lon: 24.94, Lat: 60.18}, {Lon: 24.92, Lat: 60.18}, {Lon: 24.92, Lat: 60.16}}},
		},
	}
	source := &fakeSource{
		regions: []parkkihubi.Region{
			{ID: "region-1", Name: "Kamppi", CapacityEstimate: 100, Geometry: square},
			{ID: "region-2", Name: "Kallio", CapacityEstimate: 40},
		},
		stats: []parkkihubi.RegionStatistics{
			{RegionID: "region-1", ParkingCount: 25},
		},
		parkings: []parkkihubi.ValidParking{
			{
				ID:           "prk-1",
				RegionID:     "region-1",
				ZoneCode:     "1",
				OperatorName: "EasyPark",
				TimeStart:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				Location:     geojson.Geometry{Type: "Point", Point: geojson.Point{Lon: 24.93, Lat: 60.17}},
			},
		},
	}
	monitor := monitoring.NewService(monitoring.ServiceConfig{Source: source, Logger: logger})

	csvPath := filepath.Join(t.TempDir(), "parkings.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o600))
	downloader := &fakeDownloader{
		filters: []parkkihubi.ExportFilters{{
			Operators:    []parkkihubi.Operator{{ID: "op-1", Name: "EasyPark"}},
			PaymentZones: []parkkihubi.PaymentZone{{Name: "Zone 1", Code: "1"}},
		}},
		download: &parkkihubi.ExportDownload{
			Filename: "parkings_20260301.csv",
			Path:     csvPath,
			Bytes:    int64(len(testCSV)),
		},
	}
	exports := export.NewService(export.ServiceConfig{
		Client:     downloader,
		Repository: export.NewInMemoryRepository(),
		Logger:     logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:           "test",
		BuildTime:         "2026-01-01T00:00:00Z",
		Logger:            logger,
		AuthService:       authService,
		MonitoringService: monitor,
		ExportService:     exports,
	})

	return &testEnv{router: router, monitor: monitor, source: source, downloader: downloader}
}

// login authenticates the fixture account and returns its access token.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	body := `{"username":"monitor","password":"parkwatch-test-password"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	var tokens auth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	return tokens.AccessToken
}

func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(t *testing.T, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_OpsAliases(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/ops/health", "/v1/ops/ready", "/v1/ops/version"} {
		w := env.get(t, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_ReadinessCheck_NoSnapshot(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/readyz", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Details, "snapshotCache")
}

func TestRouter_ReadinessCheck_AfterRefresh(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.monitor.Refresh(context.Background()))

	w := env.get(t, "/readyz", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_Version(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/version", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var info models.VersionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "test", info.Version)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.monitor.Refresh(context.Background()))
	token := env.login(t)

	w := env.get(t, "/v1/ops/status", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "snapshot-cache", status.Subsystems[0].Name)
	assert.Equal(t, models.HealthStatusOK, status.Subsystems[0].Status)
}

func TestRouter_SystemStatus_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/v1/ops/status", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_Login(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/v1/auth/login", "", `{"username":"monitor","password":"parkwatch-test-password"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var tokens auth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Positive(t, tokens.ExpiresIn)
}

func TestRouter_Login_WrongPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/v1/auth/login", "", `{"username":"monitor","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUnauthorized, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_RefreshToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/v1/auth/login", "", `{"username":"monitor","password":"parkwatch-test-password"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var tokens auth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	w = env.post(t, "/v1/auth/refresh", "", `{"refreshToken":"`+tokens.RefreshToken+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var refreshed auth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken, "refresh token rotates on use")
}

func TestRouter_Logout_RevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/v1/auth/login", "", `{"username":"monitor","password":"parkwatch-test-password"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var tokens auth.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	w = env.post(t, "/v1/auth/logout", "", `{"refreshToken":"`+tokens.RefreshToken+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.post(t, "/v1/auth/refresh", "", `{"refreshToken":"`+tokens.RefreshToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Me(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/auth/me", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var account auth.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, "monitor", account.Username)
	assert.Equal(t, "Monitoring Operator", account.DisplayName)
}

func TestRouter_ListRegions(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/regions", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.RegionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "http://parkkihubi.test", resp.Source)

	byID := make(map[string]models.Region, len(resp.Regions))
	for _, region := range resp.Regions {
		byID[region.RegionID] = region
	}
	kamppi := byID["region-1"]
	assert.Equal(t, "Kamppi", kamppi.Name)
	assert.Equal(t, 100, kamppi.Capacity)
	assert.Equal(t, 25, kamppi.ParkingCount)
	assert.Equal(t, 0.25, kamppi.Occupancy)
	assert.NotNil(t, kamppi.Centroid)
}

func TestRouter_ListRegions_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/v1/monitoring/regions", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUnauthorized, problem.Type)
}

func TestRouter_ListRegions_SourceDown(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.source.err = errors.New("connection refused")

	w := env.get(t, "/v1/monitoring/regions", token)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUpstream, problem.Type)
}

func TestRouter_GetRegion(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/regions/region-1", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var detail models.RegionDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "region-1", detail.RegionID)
	assert.Equal(t, "MultiPolygon", detail.Geometry.Type)
}

func TestRouter_GetRegion_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/regions/region-404", token)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
}

func TestRouter_ListParkings_AtInstant(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/parkings?time=2026-03-01T12:00:00Z", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ParkingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.NotNil(t, resp.Time, "queried instant echoes back")
	assert.Equal(t, "prk-1", resp.Parkings[0].ParkingID)
	assert.Equal(t, "1", resp.Parkings[0].ZoneCode)

	wantAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, env.source.lastParkingsAt.Equal(wantAt))
}

func TestRouter_ListParkings_Now(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/parkings", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ParkingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Time)
	assert.True(t, env.source.lastParkingsAt.IsZero(), "no instant means current state")
}

func TestRouter_ListParkings_InvalidTime(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/parkings?time=tomorrow", token)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "time", problem.Errors[0].Field)
}

func TestRouter_ListParkings_RegionFilter(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/parkings?region=region-2", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ParkingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.Empty(t, resp.Parkings)
}

func TestRouter_RefreshSnapshot(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.post(t, "/v1/monitoring/refresh", token, "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Regions)

	w = env.get(t, "/v1/monitoring/cache", token)
	assert.Equal(t, http.StatusOK, w.Code)

	var cache models.CacheStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cache))
	assert.True(t, cache.HasData)
	assert.Equal(t, 2, cache.RegionCount)
}

func TestRouter_RefreshSnapshot_SourceDown(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.source.err = errors.New("connection refused")

	w := env.post(t, "/v1/monitoring/refresh", token, "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRouter_CacheStatus_Cold(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/monitoring/cache", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var cache models.CacheStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cache))
	assert.False(t, cache.HasData)
	assert.Nil(t, cache.FetchedAt)
}

func TestRouter_ExportFilters(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/exports/filters", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var filters models.ExportFiltersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filters))
	require.Len(t, filters.Operators, 1)
	assert.Equal(t, "op-1", filters.Operators[0].OperatorID)
	require.Len(t, filters.PaymentZones, 1)
	assert.Equal(t, "1", filters.PaymentZones[0].Code)
}

func TestRouter_CreateExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body := `{
		"operators": ["op-1"],
		"paymentZones": ["1"],
		"timeStart": "2026-03-01T00:00:00Z",
		"timeEnd": "2026-03-02T00:00:00Z",
		"parkingCheck": true
	}`
	w := env.post(t, "/v1/exports", token, body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var record models.ExportRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "/v1/exports/"+record.ExportID, w.Header().Get("Location"))
	assert.Equal(t, "complete", record.Status)
	assert.Equal(t, "parkings_20260301.csv", record.Filename)
	assert.Equal(t, int64(len(testCSV)), record.Bytes)
	assert.True(t, strings.HasPrefix(record.RequestedBy, "acc_"))
	assert.True(t, record.Selection.ParkingCheck)
}

func TestRouter_CreateExport_MissingTimes(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.post(t, "/v1/exports", token, `{"operators":["op-1"]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Len(t, problem.Errors, 2)
}

func TestRouter_CreateExport_UnknownOperator(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body := `{
		"operators": ["op-999"],
		"timeStart": "2026-03-01T00:00:00Z",
		"timeEnd": "2026-03-02T00:00:00Z"
	}`
	w := env.post(t, "/v1/exports", token, body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeInvalidSelection, problem.Type)
	assert.Contains(t, problem.Detail, "op-999")
}

func TestRouter_CreateExport_DownloadFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.downloader.err = errors.New("status 500")

	body := `{"timeStart":"2026-03-01T00:00:00Z","timeEnd":"2026-03-02T00:00:00Z"}`
	w := env.post(t, "/v1/exports", token, body)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "failed")

	// The failed run still shows up in the export history.
	w = env.get(t, "/v1/exports", token)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ExportListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "failed", list.Exports[0].Status)
	assert.NotEmpty(t, list.Exports[0].Error)
}

func TestRouter_GetExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body := `{"timeStart":"2026-03-01T00:00:00Z","timeEnd":"2026-03-02T00:00:00Z"}`
	w := env.post(t, "/v1/exports", token, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.ExportRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.get(t, "/v1/exports/"+created.ExportID, token)

	assert.Equal(t, http.StatusOK, w.Code)

	var record models.ExportRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, created.ExportID, record.ExportID)
}

func TestRouter_GetExport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/exports/exp_missing", token)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DownloadExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body := `{"timeStart":"2026-03-01T00:00:00Z","timeEnd":"2026-03-02T00:00:00Z"}`
	w := env.post(t, "/v1/exports", token, body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.ExportRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.get(t, "/v1/exports/"+created.ExportID+"/file", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="parkings_20260301.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "parkings_20260301.csv", w.Header().Get("X-Suggested-Filename"))
	assert.Equal(t, testCSV, w.Body.String())
}

func TestRouter_DownloadExport_FailedRun(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.downloader.err = errors.New("status 500")

	body := `{"timeStart":"2026-03-01T00:00:00Z","timeEnd":"2026-03-02T00:00:00Z"}`
	w := env.post(t, "/v1/exports", token, body)
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = env.get(t, "/v1/exports", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ExportListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)

	w = env.get(t, "/v1/exports/"+list.Exports[0].ExportID+"/file", token)

	assert.Equal(t, http.StatusConflict, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeConflict, problem.Type)
}

func TestRouter_ListExports(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	body := `{"timeStart":"2026-03-01T00:00:00Z","timeEnd":"2026-03-02T00:00:00Z"}`
	for range 2 {
		w := env.post(t, "/v1/exports", token, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.get(t, "/v1/exports?limit=10", token)

	assert.Equal(t, http.StatusOK, w.Code)

	var list models.ExportListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
}

func TestRouter_ListExports_BadLimit(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	w := env.get(t, "/v1/exports?limit=lots", token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/healthz", "")

	requestID := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID)
	_, err := uuid.Parse(requestID)
	assert.NoError(t, err)
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/v1/nonexistent", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("username=monitor"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeUnsupportedMedia, problem.Type)
}
