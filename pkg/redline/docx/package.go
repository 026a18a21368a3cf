// Package docx reads, edits and re-zips OOXML word-processing packages.
//
// A Package keeps every zip entry in its original order. XML parts are parsed on demand into
// etree documents; only parts that were marked dirty are serialized again on save, every other
// entry is written back with the exact bytes it was read with.
package docx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/zip"
)

// ErrPartNotFound is returned when a named part is absent from the package.
var ErrPartNotFound = errors.New("part not found")

// XMLDeclaration is written at the top of every part the package creates.
const XMLDeclaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// Part is a single entry of the package.
type Part struct {
	Name   string
	method uint16
	header zip.FileHeader
	data   []byte
	doc    *etree.Document
	dirty  bool
}

// Package is an opened OOXML container.
type Package struct {
	order []string
	parts map[string]*Part
}

// Open reads the package at path.
func Open(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	return FromBytes(data)
}

// FromBytes reads a package from its zip bytes.
func FromBytes(data []byte) (*Package, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read reads a package from a zip archive.
func Read(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	pkg := &Package{parts: make(map[string]*Part, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		if _, dup := pkg.parts[f.Name]; dup {
			continue
		}
		pkg.order = append(pkg.order, f.Name)
		pkg.parts[f.Name] = &Part{Name: f.Name, method: f.Method, header: f.FileHeader, data: content}
	}
	return pkg, nil
}

// Names returns the part names in archive order.
func (p *Package) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Has reports whether the package contains name.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Raw returns the current bytes of a part, serializing it first when it was edited.
func (p *Package) Raw(name string) ([]byte, error) {
	part, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrPartNotFound)
	}
	if part.dirty && part.doc != nil {
		data, err := part.doc.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", name, err)
		}
		return data, nil
	}
	return part.data, nil
}

// XML returns the parsed tree of a part. The tree is cached; callers that modify it must call
// Touch so the part is serialized on save.
func (p *Package) XML(name string) (*etree.Document, error) {
	part, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrPartNotFound)
	}
	if part.doc != nil {
		return part.doc, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(part.data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", name)
	}
	part.doc = doc
	return doc, nil
}

// Touch marks a part as edited.
func (p *Package) Touch(name string) {
	if part, ok := p.parts[name]; ok && part.doc != nil {
		part.dirty = true
	}
}

// Dirty returns the names of edited parts.
func (p *Package) Dirty() []string {
	var out []string
	for _, name := range p.order {
		if p.parts[name].dirty {
			out = append(out, name)
		}
	}
	return out
}

// SetRaw replaces or adds a part with the given bytes.
func (p *Package) SetRaw(name string, data []byte) {
	part, ok := p.parts[name]
	if !ok {
		part = &Part{Name: name, method: zip.Deflate}
		p.parts[name] = part
		p.order = append(p.order, name)
	}
	part.data = data
	part.doc = nil
	part.dirty = true
}

// SetXML replaces or adds a part with a parsed tree.
func (p *Package) SetXML(name string, doc *etree.Document) {
	part, ok := p.parts[name]
	if !ok {
		part = &Part{Name: name, method: zip.Deflate}
		p.parts[name] = part
		p.order = append(p.order, name)
	}
	part.doc = doc
	part.dirty = true
}

// NewXMLDocument returns a document with the standard declaration and the given root.
func NewXMLDocument(root *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", XMLDeclaration)
	doc.SetRoot(root)
	return doc
}

// Clone returns an independent copy of the package with all edits flattened to bytes.
func (p *Package) Clone() (*Package, error) {
	out := &Package{order: p.Names(), parts: make(map[string]*Part, len(p.parts))}
	for _, name := range p.order {
		part := p.parts[name]
		data, err := p.Raw(name)
		if err != nil {
			return nil, err
		}
		out.parts[name] = &Part{
			Name:   name,
			method: part.method,
			header: part.header,
			data:   data,
			dirty:  part.dirty,
		}
	}
	return out, nil
}

// WriteTo writes the package as a zip archive.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, name := range p.order {
		part := p.parts[name]
		data, err := p.Raw(name)
		if err != nil {
			return cw.n, err
		}
		method := part.method
		if method != zip.Store {
			method = zip.Deflate
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   method,
			Modified: part.header.Modified,
		})
		if err != nil {
			return cw.n, fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return cw.n, nil
}

// Bytes returns the zip bytes of the package.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path, replacing any existing file.
func (p *Package) Save(path string) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PartsMatching returns the part names accepted by match, sorted by name.
func (p *Package) PartsMatching(match func(string) bool) []string {
	var out []string
	for _, name := range p.order {
		if match(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}
