package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	v1 "github.com/vigorlab/statistics-service/internal/api/v1"
	apperr "github.com/vigorlab/statistics-service/internal/core/errors"
	"github.com/vigorlab/statistics-service/internal/core/period"
)

func newTestRouter(stores map[v1.Domain]*fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	engines := make(map[v1.Domain]*Engine, len(Descriptors))
	for domain, desc := range Descriptors {
		store, ok := stores[domain]
		if !ok {
			store = newFakeStore()
		}
		e := NewEngine(desc, store, &fakeProvider{})
		e.nowFn = func() time.Time {
			return time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
		}
		engines[domain] = e
	}

	r := gin.New()
	NewHandler(engines).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Generate_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
	}{
		{
			name:           "valid entity generate returns 200",
			path:           "/v1/statistics/exercises/generate",
			body:           `{"entityId":1,"period":"DAILY","date":"2025-02-03"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing entity id returns 400",
			path:           "/v1/statistics/exercises/generate",
			body:           `{"period":"DAILY","date":"2025-02-03"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid period returns 400",
			path:           "/v1/statistics/exercises/generate",
			body:           `{"entityId":1,"period":"HOURLY","date":"2025-02-03"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid date returns 400",
			path:           "/v1/statistics/exercises/generate",
			body:           `{"entityId":1,"period":"DAILY","date":"03/02/2025"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body returns 400",
			path:           "/v1/statistics/exercises/generate",
			body:           `{"entityId":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "user generate needs no entity id",
			path:           "/v1/statistics/users/generate",
			body:           `{"period":"WEEKLY","date":"2025-02-03"}`,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(nil)
			w := doRequest(t, r, http.MethodPost, tc.path, tc.body)
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandler_Generate_ReturnsSnapshotBody(t *testing.T) {
	r := newTestRouter(nil)

	w := doRequest(t, r, http.MethodPost, "/v1/statistics/workouts/generate",
		`{"entityId":7,"period":"MONTHLY","date":"2025-02-15"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap v1.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	require.Equal(t, v1.DomainWorkout, snap.Domain)
	require.Equal(t, int64(7), *snap.EntityID)
	require.Equal(t, period.Monthly, snap.Period)
}

func TestHandler_Report_StatusMapping(t *testing.T) {
	withData := newFakeStore()
	withData.popular = []*v1.Snapshot{{ID: "p1"}}

	tests := []struct {
		name           string
		stores         map[v1.Domain]*fakeStore
		path           string
		expectedStatus int
	}{
		{
			name:           "bucket with data returns 200",
			stores:         map[v1.Domain]*fakeStore{v1.DomainEquipment: withData},
			path:           "/v1/statistics/equipment/report?period=DAILY&date=2025-02-03",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "empty bucket returns 404",
			path:           "/v1/statistics/equipment/report?period=DAILY&date=2025-02-03",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing period returns 400",
			path:           "/v1/statistics/equipment/report?date=2025-02-03",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing date returns 400",
			path:           "/v1/statistics/equipment/report?period=DAILY",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(tc.stores)
			w := doRequest(t, r, http.MethodGet, tc.path, "")
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandler_FindByID_NotFoundBody(t *testing.T) {
	r := newTestRouter(nil)

	w := doRequest(t, r, http.MethodGet, "/v1/statistics/training-plans/missing-id", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp apperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, apperr.TypeNotFound, resp.ErrorType)
	require.Equal(t, "Statistics with ID missing-id not found.", resp.Message)
}

func TestHandler_Delete(t *testing.T) {
	store := newFakeStore()
	store.byID["d1"] = &v1.Snapshot{ID: "d1", Domain: v1.DomainExercise}
	r := newTestRouter(map[v1.Domain]*fakeStore{v1.DomainExercise: store})

	w := doRequest(t, r, http.MethodDelete, "/v1/statistics/exercises/d1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result v1.DeleteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, "Statistics deleted successfully", result.Message)
	require.Equal(t, "d1", result.DeletedStats.ID)

	w = doRequest(t, r, http.MethodDelete, "/v1/statistics/exercises/d1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_List_QueryDefaults(t *testing.T) {
	store := newFakeStore()
	store.listing = []*v1.Snapshot{{ID: "s1"}}
	store.total = 11
	r := newTestRouter(map[v1.Domain]*fakeStore{v1.DomainExercise: store})

	tests := []struct {
		name     string
		query    string
		wantPage int
	}{
		{"defaults", "", 1},
		{"explicit page", "?page=2&limit=10", 2},
		{"garbage falls back", "?page=abc&limit=-5", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodGet, "/v1/statistics/exercises"+tc.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var page v1.SnapshotPage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			require.Equal(t, tc.wantPage, page.Meta.Page)
			require.Equal(t, int64(11), page.Meta.TotalStats)
			require.Equal(t, 2, page.Meta.LastPage)
		})
	}
}
