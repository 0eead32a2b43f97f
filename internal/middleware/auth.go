package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimsKey = "claims"
)

// JWTClaims are the custom claims embedded in every access token.
// IssuedAt (unix nanos) must match the user's stored token row.
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	IssuedAt int64  `json:"issued_at"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// SessionChecker confirms the token is still the user's active one.
type SessionChecker interface {
	CheckSession(ctx context.Context, userID, issuedAt int64) error
}

// JWTAuth validates the Bearer token on every protected route, then asks
// sessions whether it was revoked or replaced.
func JWTAuth(secret string, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid || claims.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		if err := sessions.CheckSession(c.Request.Context(), claims.UserID, claims.IssuedAt); err != nil {
			c.AbortWithStatusJSON(apierror.Status(err), apierror.New(apierror.Message(err)))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose user type is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Type] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, _ := c.Get(ClaimsKey)
	claims, _ := v.(*JWTClaims)
	return claims
}
