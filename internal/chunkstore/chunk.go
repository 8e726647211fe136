package chunkstore

// SectionType categorizes the part of a contract a chunk came from.
type SectionType string

const (
	SectionTitle     SectionType = "title"
	SectionRecital   SectionType = "recital"
	SectionClause    SectionType = "clause"
	SectionSignature SectionType = "signature"
)

// Chunk is a provenance-tagged span of extracted contract text at clause
// granularity. Spans are offsets into the document's extracted text and are
// reproducible: re-running extraction on unchanged bytes yields the same
// spans.
type Chunk struct {
	ID           string      `json:"id"`
	DocumentID   string      `json:"document_id"`
	ChunkIndex   int         `json:"chunk_index"`
	SectionType  SectionType `json:"section_type"`
	ClauseNumber string      `json:"clause_number,omitempty"`
	Text         string      `json:"text"`
	PageNum      int         `json:"page_num"`
	SpanStart    int         `json:"span_start"`
	SpanEnd      int         `json:"span_end"`
	SourceURI    string      `json:"source_uri,omitempty"`
}
