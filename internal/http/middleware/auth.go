package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/querydesk/backend/internal/models"
)

const userKey = "auth.user"

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// IssueToken signs an HS256 token carrying the user id as subject.
func IssueToken(secret string, u models.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth requires a valid bearer token for an existing, active user and stores that user on the context.
func Auth(secret string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}
		claims, err := ParseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}
		user, err := users.GetUserByID(c.Request.Context(), claims.Subject)
		if err != nil || user == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown user")
			return
		}
		if !user.IsActive {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Account is disabled")
			return
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

// SetUser is for handlers mounted without Auth, mainly tests.
func SetUser(c *gin.Context, u models.User) {
	c.Set(userKey, u)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
