// Package services defines the sentinel error markers pipeline stages use to
// tag failures for later classification, plus helpers for wrapping stage
// context into error messages.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout     = errors.New("timeout")
	ErrNetwork     = errors.New("network error")
	ErrRateLimited = errors.New("rate limited")
	ErrPermanent   = errors.New("permanent failure")
	ErrTransient   = errors.New("transient failure")
	ErrValidation  = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
