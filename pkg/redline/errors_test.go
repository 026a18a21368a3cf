package redline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/benjaminschreck/go-redline/pkg/redline/integrity"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "anchor not found",
			err:  &AnchorNotFoundError{UnitID: "paragraph_2", Old: "skall", Reason: "text not found"},
			want: `no match for "skall" in paragraph_2: text not found`,
		},
		{
			name: "anchor with suggestion",
			err:  &AnchorNotFoundError{UnitID: "paragraph_2", Old: "skall", Suggestion: "paragraph_3"},
			want: `no match for "skall" in paragraph_2 (did you mean paragraph_3?)`,
		},
		{
			name: "below threshold",
			err:  &FuzzyMatchBelowThresholdError{UnitID: "paragraph_1", Old: "besluta", Score: 72, Threshold: 90},
			want: `best match for "besluta" in paragraph_1 scored 72, below threshold 90`,
		},
		{
			name: "unsupported",
			err:  &UnsupportedContentTypeError{UnitID: "textbox_1", Reason: "drawing"},
			want: "unsupported content in textbox_1: drawing",
		},
		{
			name: "conversion",
			err:  &ConversionFailure{Strategy: StrategyNativeRevision, Cause: errors.New("nested revision")},
			want: "native_revision failed: nested revision",
		},
		{
			name: "unrecoverable",
			err:  &UnrecoverablePackageError{Path: "a.docx", Cause: errors.New("zip: not a valid zip file")},
			want: "unrecoverable package a.docx: zip: not a valid zip file",
		},
		{
			name: "unrecoverable without path",
			err:  &UnrecoverablePackageError{Cause: errors.New("boom")},
			want: "unrecoverable package: boom",
		},
		{
			name: "integrity single",
			err:  &PackageIntegrityError{Issues: []integrity.Issue{{Severity: integrity.SeverityError, Part: "word/document.xml", Message: "bad"}}},
			want: "package integrity error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.err.Error(), tt.want), "got %q", tt.err.Error())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("disk full")
	unrecoverable := fmt.Errorf("apply: %w", &UnrecoverablePackageError{Path: "a.docx", Cause: cause})
	assert.True(t, IsUnrecoverable(unrecoverable))
	assert.ErrorIs(t, unrecoverable, cause)
	assert.False(t, IsUnrecoverable(cause))

	conversion := &ConversionFailure{Strategy: StrategyPlainMarkup, Cause: cause}
	assert.True(t, IsConversionFailure(conversion))
	assert.ErrorIs(t, conversion, cause)

	assert.True(t, IsAnchorError(&AnchorNotFoundError{}))
	assert.True(t, IsAnchorError(&FuzzyMatchBelowThresholdError{}))
	assert.False(t, IsAnchorError(&UnsupportedContentTypeError{}))
}

func TestMultiError(t *testing.T) {
	m := NewMultiError()
	assert.NoError(t, m.Err())
	assert.Equal(t, "no errors", m.Error())

	first := errors.New("first")
	m.Add(nil)
	m.Add(first)
	assert.Equal(t, 1, m.Len())
	assert.Same(t, first, m.Err())

	m.Add(&AnchorNotFoundError{UnitID: "paragraph_1", Old: "x"})
	err := m.Err()
	assert.Contains(t, err.Error(), "2 errors occurred:")
	assert.Contains(t, err.Error(), "[1] first")
	assert.ErrorIs(t, err, first)
	assert.True(t, IsAnchorError(err))

	shared := NewMultiError()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shared.Add(fmt.Errorf("job %d", i))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, shared.Len())
	assert.Len(t, shared.Unwrap(), 8)
}

func TestWithContext(t *testing.T) {
	assert.NoError(t, WithContext(nil, "op", nil))

	cause := errors.New("boom")
	err := WithContext(cause, "convert", map[string]any{"strategy": "native_revision", "change": 2})
	assert.Equal(t, "convert [change=2, strategy=native_revision]: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "convert: boom", WithContext(cause, "convert", nil).Error())
}
