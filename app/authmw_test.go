package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "auth-test-secret"

type fakeUsers map[string]*models.User

func (f fakeUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %s not found", id)
}

type fakeRevocations struct {
	notBefore map[string]time.Time
	err       error
}

func (f fakeRevocations) IsRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	nb, ok := f.notBefore[userID]
	return ok && !issuedAt.After(nb), nil
}

func sign(t *testing.T, secret string, claims jwt.Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func claimsFor(sub string, iat time.Time) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "ict-loan",
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(time.Hour)),
	}}
}

func authRouter(opts AuthOptions, users UserLookup, rev RevocationChecker, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthRequired(opts, users, rev, zap.NewNop())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		u := CurrentUser(c)
		c.JSON(http.StatusOK, H{"id": u.ID, "admin": u.IsAdmin, "actor": ActorFrom(c).UserID})
	})
	r.GET("/x", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestParseToken(t *testing.T) {
	opts := AuthOptions{Secret: testSecret, Issuer: "ict-loan"}
	now := time.Now()

	c, err := ParseToken(opts, sign(t, testSecret, claimsFor("u1", now), jwt.SigningMethodHS256))
	if err != nil || c.Subject != "u1" {
		t.Fatalf("valid token: %v %+v", err, c)
	}

	bad := map[string]string{
		"wrong secret": sign(t, "other", claimsFor("u1", now), jwt.SigningMethodHS256),
		"wrong method": sign(t, testSecret, claimsFor("u1", now), jwt.SigningMethodHS512),
		"expired":      sign(t, testSecret, claimsFor("u1", now.Add(-2*time.Hour)), jwt.SigningMethodHS256),
		"no subject":   sign(t, testSecret, claimsFor("", now), jwt.SigningMethodHS256),
		"no expiry": sign(t, testSecret, Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1", Issuer: "ict-loan",
		}}, jwt.SigningMethodHS256),
	}
	for name, raw := range bad {
		if _, err := ParseToken(opts, raw); err == nil {
			t.Errorf("%s: token accepted", name)
		}
	}

	other := claimsFor("u1", now)
	other.Issuer = "someone-else"
	if _, err := ParseToken(opts, sign(t, testSecret, other, jwt.SigningMethodHS256)); err == nil {
		t.Error("foreign issuer accepted")
	}
}

func TestAuthRequired(t *testing.T) {
	users := fakeUsers{
		"u1": {ID: "u1", Email: "staff@agency.gov"},
		"u2": {ID: "u2", Email: "Boss@Agency.gov"},
	}
	now := time.Now()
	opts := AuthOptions{Secret: testSecret, Issuer: "ict-loan", AdminEmails: []string{"boss@agency.gov"}}
	rev := fakeRevocations{notBefore: map[string]time.Time{"u1": now.Add(-time.Minute)}}
	r := authRouter(opts, users, rev)

	if w := get(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", w.Code)
	}
	if w := get(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: %d", w.Code)
	}
	old := sign(t, testSecret, claimsFor("u1", now.Add(-10*time.Minute)), jwt.SigningMethodHS256)
	if w := get(r, old); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: %d", w.Code)
	}
	unknown := sign(t, testSecret, claimsFor("ghost", now), jwt.SigningMethodHS256)
	if w := get(r, unknown); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: %d", w.Code)
	}

	fresh := sign(t, testSecret, claimsFor("u1", now), jwt.SigningMethodHS256)
	w := get(r, fresh)
	if w.Code != http.StatusOK || w.Body.String() != `{"actor":"u1","admin":false,"id":"u1"}` {
		t.Errorf("fresh token: %d %s", w.Code, w.Body.String())
	}

	boss := sign(t, testSecret, claimsFor("u2", now), jwt.SigningMethodHS256)
	w = get(r, boss)
	if w.Code != http.StatusOK || w.Body.String() != `{"actor":"u2","admin":true,"id":"u2"}` {
		t.Errorf("configured admin: %d %s", w.Code, w.Body.String())
	}
}

func TestAuthRequiredRevocationStoreDown(t *testing.T) {
	users := fakeUsers{"u1": {ID: "u1", Email: "staff@agency.gov"}}
	r := authRouter(AuthOptions{Secret: testSecret}, users, fakeRevocations{err: errors.New("redis: connection refused")})
	token := sign(t, testSecret, claimsFor("u1", time.Now()), jwt.SigningMethodHS256)
	if w := get(r, token); w.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	run := func(u *models.User, role string) int {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if u != nil {
				SetCurrentUser(c, u)
			}
			c.Next()
		}, RequireRole(role), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w.Code
	}
	if code := run(nil, models.RoleBPM); code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", code)
	}
	if code := run(&models.User{ID: "a"}, models.RoleBPM); code != http.StatusForbidden {
		t.Errorf("plain user: %d", code)
	}
	if code := run(&models.User{ID: "b", IsBPMStaff: true}, models.RoleBPM); code != http.StatusNoContent {
		t.Errorf("bpm staff: %d", code)
	}
	if code := run(&models.User{ID: "c", IsAdmin: true}, models.RoleApprover); code != http.StatusNoContent {
		t.Errorf("admin: %d", code)
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("propagated id = %q / %q", w.Body.String(), w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Body.String() == "" {
		t.Error("request id not generated")
	}
}
