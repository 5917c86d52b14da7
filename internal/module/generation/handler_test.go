package generation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testPipeline) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	p := newTestPipeline(t)

	router := gin.New()
	NewHandler(p.orchestrator).RegisterRoutes(router.Group("/api/v1"))
	return router, p
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerStylize(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/stylize", gin.H{
		"image_data":  testImage(t, 8),
		"style":       "van_gogh",
		"customer_id": "c1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp StylizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "van_gogh", resp.Style)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 4, resp.QuotaRemaining)
	assert.Equal(t, 5, resp.QuotaLimit)
	assert.Contains(t, resp.ImageURL, "generated/customers/c1/")
}

func TestHandlerStylizeMissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/stylize", gin.H{"style": "van_gogh"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/v1/stylize", gin.H{"image_data": testImage(t, 8)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerStylizeUnknownStyle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/stylize", gin.H{
		"image_data":  testImage(t, 8),
		"style":       "crayon",
		"customer_id": "c1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestHandlerQuotaExceededResponse(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 5; i++ {
		w := postJSON(t, router, "/api/v1/stylize", gin.H{
			"image_data":  testImage(t, 8+i),
			"style":       "van_gogh",
			"customer_id": "c1",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, router, "/api/v1/stylize", gin.H{
		"image_data":  testImage(t, 20),
		"style":       "van_gogh",
		"customer_id": "c1",
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Quota QuotaStatusResponse `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
	assert.Equal(t, 0, resp.Quota.Remaining)
	assert.Equal(t, 5, resp.Quota.Limit)
	assert.Equal(t, 4, resp.Quota.WarningLevel)
	assert.NotEmpty(t, resp.Quota.ResetTime)
}

func TestHandlerBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/stylize/batch", gin.H{
		"image_data":  testImage(t, 8),
		"styles":      []string{"van_gogh", "crayon"},
		"customer_id": "c1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []BatchItemResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "van_gogh", resp.Results[0].Style)
	require.NotNil(t, resp.Results[0].Response)
	assert.Nil(t, resp.Results[0].Error)

	assert.Equal(t, "crayon", resp.Results[1].Style)
	assert.Nil(t, resp.Results[1].Response)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, "INVALID_INPUT", resp.Results[1].Error.Code)
}

func TestHandlerQuotaStatus(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set("X-Session-ID", "s1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QuotaStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)
	assert.Equal(t, 3, resp.Limit)
	assert.Equal(t, 3, resp.Remaining)
	assert.Equal(t, 1, resp.WarningLevel)
}

func TestHandlerListStyles(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/styles", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Styles []string `json:"styles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Styles, "van_gogh")
	assert.Contains(t, resp.Styles, StyleCustom)
}
