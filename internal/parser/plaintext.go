package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// defaultPageChars approximates one printed page of contract text when the
// source carries no page markers.
const defaultPageChars = 3000

// PlainText parses .txt and .md files. Form feeds (\f) are honored as page
// breaks; otherwise pages are cut at paragraph boundaries near a fixed
// character budget so page attribution stays stable across runs.
type PlainText struct{}

// NewPlainText creates a plain-text parser.
func NewPlainText() *PlainText { return &PlainText{} }

func (p *PlainText) Supports(ext string) bool {
	return ext == ".txt" || ext == ".md"
}

func (p *PlainText) Parse(_ context.Context, filename string, data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: not valid UTF-8 text", filename)
	}

	raw := strings.ReplaceAll(string(data), "\r\n", "\n")

	if strings.ContainsRune(raw, '\f') {
		return splitOnFormFeeds(raw), nil
	}
	return paginate(raw, defaultPageChars), nil
}

// splitOnFormFeeds removes form feeds and records the page ranges they
// delimited. Offsets refer to the cleaned text.
func splitOnFormFeeds(raw string) *Document {
	var sb strings.Builder
	doc := &Document{}
	pageStart := 0
	pageNum := 1

	for _, r := range raw {
		if r == '\f' {
			doc.Pages = append(doc.Pages, Page{Num: pageNum, Start: pageStart, End: sb.Len()})
			pageStart = sb.Len()
			pageNum++
			continue
		}
		sb.WriteRune(r)
	}
	doc.Text = sb.String()
	doc.Pages = append(doc.Pages, Page{Num: pageNum, Start: pageStart, End: len(doc.Text)})
	return doc
}

// paginate cuts text into pages of roughly budget characters, preferring
// paragraph breaks. Purely deterministic in the input.
func paginate(text string, budget int) *Document {
	doc := &Document{Text: text}
	if text == "" {
		doc.Pages = []Page{{Num: 1, Start: 0, End: 0}}
		return doc
	}

	start := 0
	pageNum := 1
	for start < len(text) {
		end := start + budget
		if end >= len(text) {
			end = len(text)
		} else {
			// Prefer the last paragraph break inside the budget.
			if cut := strings.LastIndex(text[start:end], "\n\n"); cut > 0 {
				end = start + cut + 2
			} else if cut := strings.LastIndexByte(text[start:end], '\n'); cut > 0 {
				end = start + cut + 1
			}
		}
		doc.Pages = append(doc.Pages, Page{Num: pageNum, Start: start, End: end})
		start = end
		pageNum++
	}
	return doc
}
