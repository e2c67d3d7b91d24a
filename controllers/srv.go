package controllers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/config"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/notify"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Revoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Srv carries what every controller needs.
type Srv struct {
	Repo    *db.Repo
	Log     *zap.Logger
	Mail    notify.Notifier
	Revoker Revoker
	Cfg     *config.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:    a.Repo,
		Log:     a.Log,
		Mail:    a.Mailer,
		Revoker: a.Revocations,
		Cfg:     a.Config,
	}
}

// fail maps repository errors onto responses. Anything unrecognised is
// logged with the actor, the entity and the attempted payload, and the
// client only sees a generic message.
func (s *Srv) fail(c *gin.Context, err error, entity, id string, payload any) {
	var ve *db.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, app.H{"error": err.Error()})
	case db.IsBusiness(err):
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
	default:
		s.Log.Error("operation failed",
			zap.String("actor_id", c.GetString(app.UserIDKey)),
			zap.String("entity", entity),
			zap.String("entity_id", id),
			zap.Any("payload", payload),
			zap.String("request_id", c.GetString(app.RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, app.H{"error": "operation failed"})
	}
}

// Field errors are keyed by the JSON name the client sent.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bind decodes the JSON body. Binding tag failures are reported per field
// like repository validation errors.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldKey(fe)] = describeTag(fe)
		}
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": fields})
		return false
	}
	c.JSON(http.StatusBadRequest, app.H{"error": "invalid request body"})
	return false
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid":
		return "must be a uuid"
	}
	return "is invalid"
}

// fieldKey drops the root struct name, leaving e.g. "lines[0].outcome".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return lowerFirst(ns[i+1:])
	}
	return lowerFirst(fe.Field())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// isUUID accepts only the canonical 36 character form the uuid columns store.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// pathID reads :id. A malformed id is a validation error, never a query.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isUUID(id) {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"id": "must be a uuid"}})
		return "", false
	}
	return id, true
}

// queryIDs checks optional id filters in the query string.
func queryIDs(c *gin.Context, names ...string) bool {
	fields := app.H{}
	for _, n := range names {
		if v := c.Query(n); v != "" && !isUUID(v) {
			fields[n] = "must be a uuid"
		}
	}
	if len(fields) == 0 {
		return true
	}
	c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": fields})
	return false
}

func pageQuery(c *gin.Context) db.PageQuery {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	return db.PageQuery{Page: page, Size: size}
}

const dateLayout = "2006-01-02"

// dateFields parses optional YYYY-MM-DD strings and collects field errors.
type dateFields map[string]string

func (f dateFields) parse(field, v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		f[field] = "must be a date in YYYY-MM-DD form"
		return nil
	}
	return &t
}

func (f dateFields) respond(c *gin.Context) bool {
	if len(f) == 0 {
		return false
	}
	c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": map[string]string(f)})
	return true
}

// notify sends best-effort mail; failures are logged only.
func (s *Srv) notify(to []string, subject, body string, fields ...zap.Field) {
	if s.Mail == nil {
		return
	}
	if err := s.Mail.Send(to, subject, body); err != nil {
		s.Log.Warn("notification failed", append(fields, zap.String("subject", subject), zap.Error(err))...)
	}
}

func (s *Srv) notifyUser(ctx context.Context, userID, subject, body string, fields ...zap.Field) {
	u, err := s.Repo.FindUserByID(ctx, userID)
	if err != nil {
		s.Log.Warn("notification skipped", append(fields, zap.String("user_id", userID), zap.Error(err))...)
		return
	}
	s.notify([]string{u.Email}, subject, body, fields...)
}
