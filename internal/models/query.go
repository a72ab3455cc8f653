package models

import (
	"strings"
)

// SearchQuery is a similarity search request.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects empty or whitespace-only queries and clamps Limit into
// [1, maxLimit], using defaultLimit when Limit is unset.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrInvalidQuery
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Limit <= 0 {
		q.Limit = 1
	}
	return nil
}
