package db

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"Gin_postgres_redis_ict_loan/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// BusinessError is a rule violation reported to the user as a single message.
type BusinessError struct{ Msg string }

func (e *BusinessError) Error() string { return e.Msg }

func businessf(format string, args ...any) error {
	return &BusinessError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError carries field-level messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(f)}
}

func IsBusiness(err error) bool {
	var be *BusinessError
	var te *models.TransitionError
	return errors.As(err, &be) || errors.As(err, &te)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

// translate maps gorm's not-found sentinel onto ErrNotFound.
func translate(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}
	return err
}
