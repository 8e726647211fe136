package registry

import "time"

// Status is the lifecycle state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

// CanTransition reports whether a status change is permitted. Statuses only
// move forward, except error -> processing (retry) and re-entering
// processing for a re-ingest.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusProcessed || to == StatusError || to == StatusProcessing
	case StatusProcessed:
		return to == StatusProcessing
	case StatusError:
		return to == StatusProcessing
	default:
		return false
	}
}

// ContractMetadata holds the structured fields extracted from an NDA.
type ContractMetadata struct {
	// EffectiveDate is an ISO date (2006-01-02), empty when not extracted.
	EffectiveDate    string   `json:"effective_date,omitempty"`
	TermMonths       int      `json:"term_months,omitempty"`
	GoverningLaw     string   `json:"governing_law,omitempty"`
	Parties          []string `json:"parties,omitempty"`
	IsMutual         bool     `json:"is_mutual"`
	SurvivalMonths   int      `json:"survival_months,omitempty"`
	ConfidenceScore  float64  `json:"confidence_score"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	ExtractionMethod string   `json:"extraction_method,omitempty"`
}

// ExpirationDate computes effective_date + term_months. The second return is
// false when either input field is absent.
func (m ContractMetadata) ExpirationDate() (time.Time, bool) {
	if m.EffectiveDate == "" || m.TermMonths <= 0 {
		return time.Time{}, false
	}
	eff, err := time.Parse("2006-01-02", m.EffectiveDate)
	if err != nil {
		return time.Time{}, false
	}
	return eff.AddDate(0, m.TermMonths, 0), true
}

// DocumentRecord is the registry's view of one uploaded contract.
type DocumentRecord struct {
	ID          string           `json:"id"`
	ContentHash string           `json:"content_hash"`
	Filename    string           `json:"filename"`
	StorageURI  string           `json:"storage_uri"`
	Status      Status           `json:"status"`
	// DuplicateOf references the canonical document when this upload's
	// content hash matched an existing non-error record.
	DuplicateOf string           `json:"duplicate_of,omitempty"`
	// FailReason retains the stage failure that flipped Status to error.
	FailReason string            `json:"fail_reason,omitempty"`
	PageCount  int               `json:"page_count,omitempty"`
	ChunkCount int               `json:"chunk_count,omitempty"`
	Metadata   ContractMetadata  `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// clone returns a deep copy so callers never alias registry-owned slices.
func (d *DocumentRecord) clone() DocumentRecord {
	out := *d
	if d.Metadata.Parties != nil {
		out.Metadata.Parties = append([]string(nil), d.Metadata.Parties...)
	}
	if d.Metadata.MissingFields != nil {
		out.Metadata.MissingFields = append([]string(nil), d.Metadata.MissingFields...)
	}
	return out
}
