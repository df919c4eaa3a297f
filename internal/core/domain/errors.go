package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrInvalidCronJob = errors.New("invalid cron job")
	ErrUnknownFlow    = errors.New("unknown flow")
	ErrUnknownReport  = errors.New("unknown report")
	ErrLogUnavailable = errors.New("audit log unavailable")
)

// ValidationError carries per-field messages for a rejected request.
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

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCronJob
}

// ErrArgsViolation is returned when flow arguments do not conform to the
// argument schema of the flow.
type ErrArgsViolation struct {
	Flow   string
	Errors []string
}

func (e *ErrArgsViolation) Error() string {
	return fmt.Sprintf("flow %s arguments invalid: %s", e.Flow, strings.Join(e.Errors, "; "))
}
