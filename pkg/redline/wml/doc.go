// Package wml holds the WordprocessingML vocabulary shared by the redline stages.
//
// It works directly on github.com/beevik/etree trees so that namespace prefixes, unknown
// elements and attribute order survive a read/modify/write cycle untouched. Helpers fall into
// three groups:
//
//   - element matching (Is, IsAny) keyed on the "w" namespace
//   - run helpers: editable text, run properties, markup signatures
//   - schema ordering for rPr and settings children so inserted elements land where Word expects
package wml
