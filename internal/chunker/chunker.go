// Package chunker turns extracted contract text into provenance-tagged
// chunks at clause granularity. Chunking is deterministic in the input
// text: identical bytes produce identical chunks, spans, and ids.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/clausewise/clausewise/internal/chunkstore"
	"github.com/clausewise/clausewise/internal/parser"
)

// maxChunkChars splits very long clauses into multiple chunks sharing the
// same clause number.
const maxChunkChars = 1800

// clauseHeading matches numbered clause openings such as "1.", "2.3", "4)"
// or "Section 5." at the start of a paragraph.
var clauseHeading = regexp.MustCompile(`^(?:Section\s+|Article\s+)?(\d+(?:\.\d+)*)[.)]?\s+\S`)

var signatureMarkers = []string{
	"IN WITNESS WHEREOF",
	"SIGNATURE PAGE",
	"By: ",
	"By:\n",
	"Authorized Signatory",
}

// Chunker splits parsed documents into chunks.
type Chunker struct {
	maxChars int
}

// New creates a Chunker with the default size limit.
func New() *Chunker {
	return &Chunker{maxChars: maxChunkChars}
}

// block is a paragraph with its absolute span in the extracted text.
type block struct {
	text  string
	start int
	end   int
}

// Split chunks a parsed document. sourceURI is recorded on every chunk.
func (c *Chunker) Split(docID string, doc *parser.Document, sourceURI string) []chunkstore.Chunk {
	blocks := splitBlocks(doc.Text)
	if len(blocks) == 0 {
		return nil
	}

	var chunks []chunkstore.Chunk
	section := chunkstore.SectionTitle
	clauseNum := ""
	sawBody := false
	inSignature := false

	for i, b := range blocks {
		trimmed := strings.TrimSpace(b.text)

		switch {
		case isSignatureBlock(trimmed) || inSignature:
			section = chunkstore.SectionSignature
			clauseNum = ""
			inSignature = true
		case strings.HasPrefix(strings.ToUpper(trimmed), "WHEREAS"):
			section = chunkstore.SectionRecital
			clauseNum = ""
			sawBody = true
		case clauseHeading.MatchString(trimmed):
			section = chunkstore.SectionClause
			clauseNum = clauseHeading.FindStringSubmatch(trimmed)[1]
			sawBody = true
		case i == 0 && !sawBody:
			section = chunkstore.SectionTitle
		default:
			// Continuation paragraph: stays in the current clause (or
			// becomes a clause body once past the title).
			if section == chunkstore.SectionTitle && sawBody {
				section = chunkstore.SectionClause
			}
			if section == chunkstore.SectionTitle && i > 0 {
				section = chunkstore.SectionRecital
			}
			sawBody = true
		}

		for _, part := range splitOversized(b, c.maxChars) {
			chunks = append(chunks, chunkstore.Chunk{
				DocumentID:   docID,
				SectionType:  section,
				ClauseNumber: clauseNum,
				Text:         part.text,
				PageNum:      doc.PageFor(part.start),
				SpanStart:    part.start,
				SpanEnd:      part.end,
				SourceURI:    sourceURI,
			})
		}
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].ID = chunkID(docID, i, chunks[i].Text)
	}
	return chunks
}

// chunkID derives a deterministic id from the owning document, position,
// and content, so unchanged content re-ingests to identical ids.
func chunkID(docID string, index int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", docID, index, text)))
	return hex.EncodeToString(h[:16])
}

// splitBlocks cuts text into paragraph blocks on blank lines, preserving
// absolute offsets and skipping whitespace-only blocks.
func splitBlocks(text string) []block {
	var blocks []block
	start := 0
	flush := func(end int) {
		seg := text[start:end]
		if strings.TrimSpace(seg) != "" {
			// Tighten the span to the non-whitespace content.
			lead := len(seg) - len(strings.TrimLeft(seg, " \t\n"))
			trail := len(seg) - len(strings.TrimRight(seg, " \t\n"))
			blocks = append(blocks, block{
				text:  seg[lead : len(seg)-trail],
				start: start + lead,
				end:   end - trail,
			})
		}
		start = end
	}

	for {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			flush(len(text))
			break
		}
		flush(start + idx)
		// Skip the blank-line separator.
		for start < len(text) && (text[start] == '\n' || text[start] == ' ' || text[start] == '\t') {
			start++
		}
	}
	return blocks
}

// splitOversized cuts a block into pieces under maxChars at sentence or
// line boundaries where possible.
func splitOversized(b block, maxChars int) []block {
	if len(b.text) <= maxChars {
		return []block{b}
	}

	var parts []block
	rel := 0
	for rel < len(b.text) {
		end := rel + maxChars
		if end >= len(b.text) {
			end = len(b.text)
		} else {
			window := b.text[rel:end]
			if cut := strings.LastIndex(window, ". "); cut > maxChars/2 {
				end = rel + cut + 1
			} else if cut := strings.LastIndexByte(window, '\n'); cut > maxChars/2 {
				end = rel + cut
			}
		}
		seg := b.text[rel:end]
		if strings.TrimSpace(seg) != "" {
			lead := len(seg) - len(strings.TrimLeft(seg, " \t\r\n"))
			trail := len(seg) - len(strings.TrimRight(seg, " \t\r\n"))
			parts = append(parts, block{
				text:  seg[lead : len(seg)-trail],
				start: b.start + rel + lead,
				end:   b.start + end - trail,
			})
		}
		rel = end
	}
	return parts
}

func isSignatureBlock(text string) bool {
	upper := strings.ToUpper(text)
	for _, marker := range signatureMarkers {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}
