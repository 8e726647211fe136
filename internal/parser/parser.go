// Package parser defines the boundary to the file-parsing/OCR collaborator.
// Implementations turn raw file bytes into extracted text with page
// boundaries. Extraction must be reproducible: parsing unchanged bytes
// yields identical text and page offsets.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Page marks one page's character range within the extracted text.
type Page struct {
	Num   int // 1-indexed
	Start int // inclusive offset into Text
	End   int // exclusive offset into Text
}

// Document is the result of parsing one file.
type Document struct {
	Text  string
	Pages []Page
}

// PageFor returns the page number containing the given text offset.
func (d *Document) PageFor(offset int) int {
	for _, p := range d.Pages {
		if offset >= p.Start && offset < p.End {
			return p.Num
		}
	}
	if n := len(d.Pages); n > 0 {
		return d.Pages[n-1].Num
	}
	return 1
}

// Parser extracts text and page boundaries from file bytes.
type Parser interface {
	// Parse extracts the document. filename is used for format detection
	// and error reporting only.
	Parse(ctx context.Context, filename string, data []byte) (*Document, error)
	// Supports reports whether the parser handles the given file extension.
	Supports(ext string) bool
}

// Registry dispatches to the first parser supporting a file's extension.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a parser registry. Parsers are tried in order.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// Parse selects a parser by extension and runs it.
func (r *Registry) Parse(ctx context.Context, filename string, data []byte) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, p := range r.parsers {
		if p.Supports(ext) {
			return p.Parse(ctx, filename, data)
		}
	}
	return nil, fmt.Errorf("no parser for file type %q", ext)
}

// Supports reports whether any registered parser handles the extension.
func (r *Registry) Supports(ext string) bool {
	for _, p := range r.parsers {
		if p.Supports(strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
