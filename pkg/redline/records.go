package redline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidRecord marks a change record that cannot be applied.
var ErrInvalidRecord = errors.New("invalid change record")

// ChangeRecord is one proposed correction as delivered by the suggestion service.
type ChangeRecord struct {
	UnitID string `json:"unit_id,omitempty"`
	// Old is nil when the record carries no old text; an empty string fills an empty unit.
	Old        *string `json:"old"`
	New        string  `json:"new"`
	Motivation string  `json:"motivation,omitempty"`
	FootnoteID string  `json:"footnote_id,omitempty"`
	TextboxID  string  `json:"textbox_id,omitempty"`
	Page       int     `json:"page,omitempty"`
	Line       int     `json:"line,omitempty"`

	problem string
}

// OldText returns the old text or the empty string.
func (c ChangeRecord) OldText() string {
	if c.Old == nil {
		return ""
	}
	return *c.Old
}

// UnmarshalJSON accepts the current keys and the legacy ones: element_id for unit_id, an integer
// paragraph, and numeric footnote, text box, page and line values written as strings.
func (c *ChangeRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out ChangeRecord
	var err error
	field := func(dst *string, keys ...string) {
		for _, k := range keys {
			if err != nil {
				return
			}
			if v, ok := raw[k]; ok {
				*dst, err = scalar(k, v)
				if *dst != "" {
					return
				}
			}
		}
	}
	number := func(dst *int, key string) {
		v, ok := raw[key]
		if !ok || err != nil {
			return
		}
		var s string
		if s, err = scalar(key, v); err != nil || s == "" {
			return
		}
		if *dst, err = strconv.Atoi(s); err != nil {
			err = fmt.Errorf("%s: %q is not an integer", key, s)
		}
	}

	field(&out.UnitID, "unit_id", "element_id")
	field(&out.New, "new")
	field(&out.Motivation, "motivation")
	field(&out.FootnoteID, "footnote_id")
	field(&out.TextboxID, "textbox_id")
	number(&out.Page, "page")
	number(&out.Line, "line")
	var paragraph int
	number(&paragraph, "paragraph")
	if err != nil {
		return err
	}
	if v, ok := raw["old"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		var old string
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("old: %w", err)
		}
		out.Old = &old
	}

	if out.UnitID == "" && paragraph > 0 {
		out.UnitID = fmt.Sprintf("paragraph_%d", paragraph)
	}
	if out.UnitID == "" && out.TextboxID != "" {
		out.UnitID = out.TextboxID
		if _, err := strconv.Atoi(out.TextboxID); err == nil {
			out.UnitID = "textbox_" + out.TextboxID
		}
	}
	*c = out
	return nil
}

// scalar decodes a JSON string or number as a string.
func scalar(key string, v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return "", nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("%s: %w", key, err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("%s: expected string or number", key)
	}
	return n.String(), nil
}

// Validate reports why the record cannot be applied to a DOCX, or to a PDF when pdf is set.
func (c ChangeRecord) Validate(pdf bool) error {
	if c.problem != "" {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, c.problem)
	}
	if c.Old == nil {
		return fmt.Errorf("%w: missing old", ErrInvalidRecord)
	}
	if pdf {
		if c.Page <= 0 {
			return fmt.Errorf("%w: missing page", ErrInvalidRecord)
		}
		if strings.TrimSpace(*c.Old) == "" {
			return fmt.Errorf("%w: empty old", ErrInvalidRecord)
		}
		return nil
	}
	if c.UnitID == "" && c.FootnoteID == "" {
		return fmt.Errorf("%w: missing unit_id", ErrInvalidRecord)
	}
	return nil
}

// ParseChanges decodes a JSON array of change records, or an object holding one under
// "changes". A record that fails to decode is kept and reported invalid at apply time.
func ParseChanges(r io.Reader) ([]ChangeRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read changes: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Changes json.RawMessage `json:"changes"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse changes: %w", err)
		}
		data = wrapper.Changes
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse changes: %w", err)
	}
	out := make([]ChangeRecord, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			out[i] = ChangeRecord{problem: err.Error()}
		}
	}
	return out, nil
}

// LoadChanges reads change records from a file.
func LoadChanges(path string) ([]ChangeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open changes: %w", err)
	}
	defer f.Close()
	return ParseChanges(f)
}
