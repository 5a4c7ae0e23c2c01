package hembs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hembs/internal/bitmap"
	"github.com/hupe1980/hembs/internal/fieldcodec"
	"github.com/hupe1980/hembs/internal/resource"
	"github.com/hupe1980/hembs/internal/slot"
)

var (
	// ErrCapacityExceeded is returned by Insert when every slot is in use.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrMalformedRule is matched by every *MalformedRuleError.
	ErrMalformedRule = errors.New("malformed rule")

	// ErrNotFound is returned when deleting a rule or slot that is not live.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned by operations on a classifier before Init.
	ErrNotInitialized = errors.New("classifier not initialized")

	// ErrAlreadyInitialized is returned by Init on an initialized classifier.
	ErrAlreadyInitialized = errors.New("classifier already initialized")

	// ErrInvalidConfig is matched by every *InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidPacket is returned by Search for a packet without IPv4 addresses.
	ErrInvalidPacket = errors.New("invalid packet")

	// ErrMemoryLimitExceeded is returned when an operation would exceed the
	// memory limit set with WithMemoryLimit.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")
)

// MalformedRuleError indicates a rule field that cannot be decoded.
type MalformedRuleError struct {
	Field  string
	Reason string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed rule: %s: %s", e.Field, e.Reason)
}

func (e *MalformedRuleError) Unwrap() error { return ErrMalformedRule }

// InvalidConfigError indicates a configuration value rejected by Init.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type InvalidConfigError struct {
	Param string
	Value any
	cause error
}

func (e *InvalidConfigError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid configuration: %s=%v: %v", e.Param, e.Value, e.cause)
	}
	return fmt.Sprintf("invalid configuration: %s=%v", e.Param, e.Value)
}

func (e *InvalidConfigError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.cause}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, slot.ErrExhausted) {
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}
	if errors.Is(err, slot.ErrNotAllocated) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, resource.ErrMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrMemoryLimitExceeded, err)
	}

	if errors.Is(err, bitmap.ErrZeroCapacity) {
		return &InvalidConfigError{Param: "capacity", Value: 0, cause: err}
	}
	if errors.Is(err, bitmap.ErrInvalidRatio) {
		return &InvalidConfigError{Param: "aggregate_ratio", cause: err}
	}
	if errors.Is(err, fieldcodec.ErrInvalidCellWidth) {
		return &InvalidConfigError{Param: "cell_width", cause: err}
	}

	return err
}
