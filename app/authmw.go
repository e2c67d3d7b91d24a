package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	UserIDKey = "userID"
	userKey   = "user"
)

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

type AuthOptions struct {
	Secret      string
	Issuer      string
	AdminEmails []string
}

// Claims are the identity provider's token claims; Subject is the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(opts AuthOptions, raw string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(opts.Secret), nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return claims, nil
}

// AuthRequired resolves the bearer token to a local user. The user is
// loaded once per request and stored in the context.
func AuthRequired(opts AuthOptions, users UserLookup, revoked RevocationChecker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		claims, err := ParseToken(opts, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid token"})
			return
		}
		var issuedAt time.Time
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}
		if isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.Subject, issuedAt); err != nil {
			log.Error("revocation check failed", zap.String("user_id", claims.Subject), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"error": "try again later"})
			return
		} else if isRevoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "session revoked"})
			return
		}

		u, err := users.FindUserByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		email := strings.ToLower(u.Email)
		for _, admin := range opts.AdminEmails {
			if email == admin {
				u.IsAdmin = true
			}
		}
		SetCurrentUser(c, u)
		c.Next()
	}
}

// CurrentUser returns the user placed in the context by AuthRequired.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func ActorFrom(c *gin.Context) models.Actor {
	a := models.Actor{UserID: c.GetString(UserIDKey)}
	if u := CurrentUser(c); u != nil {
		a.Admin = u.IsAdmin
	}
	return a
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !u.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden", "requiredRole": role})
			return
		}
		c.Next()
	}
}

// SetCurrentUser places u in the context the way AuthRequired does.
func SetCurrentUser(c *gin.Context, u *models.User) {
	c.Set(UserIDKey, u.ID)
	c.Set(userKey, u)
}
