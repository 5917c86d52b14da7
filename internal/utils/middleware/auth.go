package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// CustomerIDKey is the context key for the verified customer ID.
	CustomerIDKey = "customer_id"
)

// OptionalAuth returns a middleware that extracts a verified customer ID
// from a bearer JWT when one is present. Requests without a token, or with
// an invalid one, proceed anonymously; a verified ID takes precedence over
// any customer_id supplied in the request body.
func OptionalAuth(secret string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		customerID, err := validateToken(token, secret)
		if err != nil {
			log.Debug("rejected bearer token", zap.Error(err))
			c.Next()
			return
		}

		c.Set(CustomerIDKey, customerID)
		c.Next()
	}
}

// VerifiedCustomerID returns the JWT-verified customer ID, or empty.
func VerifiedCustomerID(c *gin.Context) string {
	if id, exists := c.Get(CustomerIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader(AuthorizationHeader)
	if header == "" || !strings.HasPrefix(header, BearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(header, BearerPrefix)
}

func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("missing subject claim")
	}
	return sub, nil
}
