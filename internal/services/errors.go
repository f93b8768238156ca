package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks download transport or HTTP-status failures. Fatal for
	// the pack being processed, never for the run.
	ErrNetwork = errors.New("network error")
	// ErrExtraction marks corrupt or unreadable archives. Fatal per pack.
	ErrExtraction = errors.New("extraction error")
	// ErrConversionUnavailable marks assets skipped because no capable
	// converter tool is installed. Per asset, non-fatal.
	ErrConversionUnavailable = errors.New("no converter available")
	// ErrConversionFailed marks assets whose converter ran but exited
	// non-zero. Per asset, non-fatal, distinct from unavailability.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrIO marks registry persistence failures. Fatal for the whole run.
	ErrIO = errors.New("io error")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// PackFatal reports whether an error should move the current pack to the
// failed state. Conversion outcomes are per-asset and never pack-fatal.
func PackFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConversionUnavailable), errors.Is(err, ErrConversionFailed):
		return false
	default:
		return true
	}
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
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
