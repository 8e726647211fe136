package ingest

import "fmt"

// ValidationError rejects an upload before any processing happens. It maps
// to a 400 at the API boundary and never creates a registry record.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ExtractionError marks a failure in the parse or metadata-extraction
// stages. The document flips to error status with this as the fail reason.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction (%s): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IndexError marks a failure to index chunks into a backend after the
// retry budget is spent.
type IndexError struct {
	Backend string
	Err     error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index (%s): %v", e.Backend, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }
