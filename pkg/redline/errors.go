package redline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benjaminschreck/go-redline/pkg/redline/integrity"
)

// AnchorNotFoundError reports a change whose old text was not found in its unit.
type AnchorNotFoundError struct {
	UnitID string
	Old    string
	// Suggestion is a neighbouring unit where the text was found.
	Suggestion string
	Reason     string
}

func (e *AnchorNotFoundError) Error() string {
	msg := fmt.Sprintf("no match for %q in %s", e.Old, e.UnitID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", e.Suggestion)
	}
	return msg
}

// FuzzyMatchBelowThresholdError reports a change whose best similarity was too low.
type FuzzyMatchBelowThresholdError struct {
	UnitID    string
	Old       string
	Score     int
	Threshold int
}

func (e *FuzzyMatchBelowThresholdError) Error() string {
	return fmt.Sprintf("best match for %q in %s scored %d, below threshold %d", e.Old, e.UnitID, e.Score, e.Threshold)
}

// UnsupportedContentTypeError reports a change on content that cannot be edited as requested.
type UnsupportedContentTypeError struct {
	UnitID string
	Reason string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content in %s: %s", e.UnitID, e.Reason)
}

// ConversionFailure reports a strategy that could not produce its output.
type ConversionFailure struct {
	Strategy Strategy
	Cause    error
}

func (e *ConversionFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Strategy, e.Cause)
}

func (e *ConversionFailure) Unwrap() error {
	return e.Cause
}

// PackageIntegrityError lists integrity errors found in a package.
type PackageIntegrityError struct {
	Issues []integrity.Issue
}

func (e *PackageIntegrityError) Error() string {
	if len(e.Issues) == 0 {
		return "package integrity error"
	}
	if len(e.Issues) == 1 {
		return "package integrity error: " + e.Issues[0].String()
	}
	parts := []string{fmt.Sprintf("%d package integrity issues:", len(e.Issues))}
	for _, issue := range e.Issues {
		parts = append(parts, "  "+issue.String())
	}
	return strings.Join(parts, "\n")
}

// UnrecoverablePackageError reports a document that cannot be read or written at all.
type UnrecoverablePackageError struct {
	Path  string
	Cause error
}

func (e *UnrecoverablePackageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unrecoverable package: %v", e.Cause)
	}
	return fmt.Sprintf("unrecoverable package %s: %v", e.Path, e.Cause)
}

func (e *UnrecoverablePackageError) Unwrap() error {
	return e.Cause
}

// IsUnrecoverable reports whether err is or wraps an UnrecoverablePackageError.
func IsUnrecoverable(err error) bool {
	var target *UnrecoverablePackageError
	return errors.As(err, &target)
}

// IsConversionFailure reports whether err is or wraps a ConversionFailure.
func IsConversionFailure(err error) bool {
	var target *ConversionFailure
	return errors.As(err, &target)
}

// IsAnchorError reports whether err is a per-change anchoring error.
func IsAnchorError(err error) bool {
	var notFound *AnchorNotFoundError
	var below *FuzzyMatchBelowThresholdError
	return errors.As(err, &notFound) || errors.As(err, &below)
}

// MultiError gathers the failures of independent work items, such as the documents of a batch.
type MultiError struct {
	mu     sync.Mutex
	errors []error
}

// NewMultiError returns an empty MultiError.
func NewMultiError() *MultiError {
	return &MultiError{}
}

// Add records err; nil is ignored. Add may be called from several goroutines.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.errors = append(m.errors, err)
	m.mu.Unlock()
}

func (m *MultiError) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// Err returns nil when nothing was recorded, the error itself when there is one, and m otherwise.
func (m *MultiError) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch len(m.errors) {
	case 0:
		return nil
	case 1:
		return m.errors[0]
	}
	return m
}

// Unwrap exposes the recorded errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}

func (m *MultiError) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errors) == 0 {
		return "no errors"
	}
	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}
	parts := []string{fmt.Sprintf("%d errors occurred:", len(m.errors))}
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// ContextError names the stage an error happened in, with the values that identify the work.
type ContextError struct {
	Operation string
	Context   map[string]any
	Cause     error
}

func (e *ContextError) Error() string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	if len(parts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(parts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps err with the operation it failed in. It returns nil for a nil err.
func WithContext(err error, operation string, context map[string]any) error {
	if err == nil {
		return nil
	}
	return &ContextError{Operation: operation, Context: context, Cause: err}
}
