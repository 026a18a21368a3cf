package redline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/index"
	"github.com/benjaminschreck/go-redline/pkg/redline/pdfmark"
)

// Element is one addressable unit in the structure handed to the suggestion service.
type Element struct {
	Type       string `json:"type"`
	ElementID  string `json:"element_id"`
	Text       string `json:"text"`
	Empty      bool   `json:"empty"`
	FootnoteID string `json:"footnote_id,omitempty"`
}

// Structure lists the units of a DOCX document.
type Structure struct {
	Type     string    `json:"type"`
	Elements []Element `json:"elements"`
}

// ExtractPackage lists every unit of pkg in index order.
func ExtractPackage(pkg *docx.Package) (*Structure, error) {
	idx, err := index.Build(pkg)
	if err != nil {
		return nil, err
	}
	units := idx.Units()
	s := &Structure{Type: "docx", Elements: make([]Element, 0, len(units))}
	for _, u := range units {
		text := strings.TrimSpace(u.Text())
		s.Elements = append(s.Elements, Element{
			Type:       u.Kind.String(),
			ElementID:  u.ID,
			Text:       text,
			Empty:      text == "",
			FootnoteID: u.FootnoteID,
		})
	}
	return s, nil
}

// Extract returns the structure of a DOCX or PDF file, ready to be encoded as JSON.
func Extract(path string) (any, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".docx":
		pkg, err := docx.Open(path)
		if err != nil {
			return nil, &UnrecoverablePackageError{Path: path, Cause: err}
		}
		s, err := ExtractPackage(pkg)
		if err != nil {
			return nil, &UnrecoverablePackageError{Path: path, Cause: err}
		}
		return s, nil
	case ".pdf":
		doc, err := pdfmark.Load(path)
		if err != nil {
			return nil, &UnrecoverablePackageError{Path: path, Cause: err}
		}
		return doc.Structure(), nil
	default:
		return nil, &UnrecoverablePackageError{Path: path, Cause: fmt.Errorf("unsupported file type %q", ext)}
	}
}
