package pdfmark

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// HighlightColor is the fill of the written highlight annotations.
var HighlightColor = color.SimpleColor{R: 1, G: 0.9, B: 0.2}

const subject = "Suggested change"

var configDir sync.Once

// configuration returns a pdfcpu configuration that never touches the user's config directory
// and writes classic xref tables.
func configuration() *model.Configuration {
	configDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Annotations turns highlights into highlight annotations keyed by page number. Each annotation
// covers the boxes of its highlight with one quad per box and carries the highlight's content as
// its text.
func Annotations(highlights []Highlight, author string) map[int][]model.AnnotationRenderer {
	m := make(map[int][]model.AnnotationRenderer)
	for i, h := range highlights {
		if len(h.Rects) == 0 {
			continue
		}
		var area Rect
		quads := make(types.QuadPoints, 0, len(h.Rects))
		for _, r := range h.Rects {
			area = area.Union(r)
			quads = append(quads, *types.NewQuadLiteralForRect(types.NewRectangle(r.X0, r.Y0, r.X1, r.Y1)))
		}
		col := HighlightColor
		id := fmt.Sprintf("redline%d", i+1)
		rect := types.NewRectangle(area.X0, area.Y0, area.X1, area.Y1)
		ann := model.NewHighlightAnnotation(*rect, 0, h.Content, id, "", 0, &col, 0, 0, 0,
			author, nil, nil, "", subject, quads)
		m[h.Page] = append(m[h.Page], ann)
	}
	return m
}

// WriteAnnotated copies the PDF in rs to w with a highlight annotation per highlight.
func WriteAnnotated(rs io.ReadSeeker, w io.Writer, highlights []Highlight, author string) error {
	m := Annotations(highlights, author)
	if len(m) == 0 {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := io.Copy(w, rs)
		return err
	}
	if err := api.AddAnnotationsMap(rs, w, m, configuration(), false); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}

// AnnotateFile writes the PDF at src with highlights to dst.
func AnnotateFile(src, dst string, highlights []Highlight, author string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()
	return WriteAnnotated(in, out, highlights, author)
}
