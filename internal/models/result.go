package models

import "time"

// SearchHit is one ranked search result.
type SearchHit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string       `json:"query"`
	Hits      []*SearchHit `json:"hits"`
	QueryTime int64        `json:"query_time_ms"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	RunID     string `json:"run_id,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Cleared   bool   `json:"cleared"`
	// Pages and HarvestStop describe how harvesting ended; HarvestError is set
	// when it ended early on a fetch or parse failure.
	Pages        int           `json:"pages"`
	HarvestStop  string        `json:"harvest_stop"`
	HarvestError string        `json:"harvest_error,omitempty"`
	Failures     []*ItemError  `json:"failures,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Failed returns the number of documents that were harvested but not indexed.
func (r *IngestResult) Failed() int {
	return r.Total - r.Processed
}

// RunStatus is the lifecycle state of a recorded ingestion run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted record of an ingestion run.
type Run struct {
	ID          string     `json:"id"`
	Collection  string     `json:"collection"`
	ClearFirst  bool       `json:"clear_first"`
	Status      RunStatus  `json:"status"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Pages       int        `json:"pages"`
	HarvestStop string     `json:"harvest_stop,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// RunFailure is a persisted per-item failure of a run.
type RunFailure struct {
	RunID      string    `json:"run_id"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Stage      Stage     `json:"stage"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status describes the index and the most recent ingestion run.
type Status struct {
	Collection        string `json:"collection"`
	IndexBackend      string `json:"index_backend"`
	Points            int    `json:"points"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	Dimensions        int    `json:"dimensions"`
	LastRun           *Run   `json:"last_run,omitempty"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	IngestRunning     bool   `json:"ingest_running"`
}
