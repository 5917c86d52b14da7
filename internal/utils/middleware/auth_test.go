package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runAuth(t *testing.T, authorization string) string {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalAuth(testSecret, nil))

	var got string
	router.GET("/", func(c *gin.Context) {
		got = VerifiedCustomerID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(AuthorizationHeader, authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return got
}

func TestOptionalAuthValidToken(t *testing.T) {
	token := signedToken(t, testSecret, "c1")
	assert.Equal(t, "c1", runAuth(t, BearerPrefix+token))
}

func TestOptionalAuthAnonymousWithoutToken(t *testing.T) {
	assert.Empty(t, runAuth(t, ""))
}

func TestOptionalAuthIgnoresInvalidToken(t *testing.T) {
	// Wrong secret: request proceeds anonymously, not rejected
	token := signedToken(t, "other-secret", "c1")
	assert.Empty(t, runAuth(t, BearerPrefix+token))
}

func TestOptionalAuthIgnoresTokenWithoutSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Empty(t, runAuth(t, BearerPrefix+token))
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())

	var got string
	router.GET("/", func(c *gin.Context) {
		got = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, got)
	assert.Equal(t, got, w.Header().Get(RequestIDHeader))

	// A caller-supplied id is preserved
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", got)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}
