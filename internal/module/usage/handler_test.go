package usage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pictora/server/internal/utils/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsageRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(repo).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func seedRecords(repo *MockRepository, kind, value string, n int) {
	for i := 0; i < n; i++ {
		repo.records = append(repo.records, &Record{
			RequestID:     "r",
			IdentityKind:  kind,
			IdentityValue: value,
			Style:         "van_gogh",
			Success:       true,
			CreatedAt:     time.Now().UTC(),
		})
	}
}

func TestHistoryPaginates(t *testing.T) {
	repo := &MockRepository{}
	seedRecords(repo, "session", "s1", 25)
	router := newUsageRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage?page=2&page_size=10", nil)
	req.Header.Set("X-Session-ID", "s1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Records    []RecordResponse    `json:"records"`
		Pagination pagination.PageInfo `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 10)
	assert.Equal(t, int64(25), resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, 2, resp.Pagination.Page)
}

func TestHistoryScopedToIdentity(t *testing.T) {
	repo := &MockRepository{}
	seedRecords(repo, "session", "s1", 3)
	seedRecords(repo, "session", "s2", 5)
	router := newUsageRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	req.Header.Set("X-Session-ID", "s2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Records []RecordResponse `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 5)
}

func TestHistoryRejectsBadPagination(t *testing.T) {
	router := newUsageRouter(&MockRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage?page=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
