package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for empty or whitespace-only query text.
	ErrInvalidQuery = errors.New("query cannot be empty")

	// ErrMalformedContent indicates a fetched feed page could not be parsed.
	ErrMalformedContent = errors.New("malformed feed content")

	// ErrRunInProgress indicates another ingestion run holds the collection lock.
	ErrRunInProgress = errors.New("ingestion run already in progress")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// TransportError is a network or HTTP failure talking to the feed, the embedder, or the index.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Stage names the ingestion step an item failed in.
type Stage string

const (
	StageEmbed  Stage = "embed"
	StageUpsert Stage = "upsert"
)

// ItemError is a failure processing a single document during ingestion.
type ItemError struct {
	DocumentID string
	Title      string
	Stage      Stage
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Title, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// MarshalJSON renders the failure for JSON output, with the cause as a message.
func (e *ItemError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		DocumentID string `json:"document_id,omitempty"`
		Title      string `json:"title"`
		Stage      Stage  `json:"stage"`
		Message    string `json:"message"`
	}{e.DocumentID, e.Title, e.Stage, msg})
}
