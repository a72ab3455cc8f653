// Package models defines core data structures for feed documents, index points, queries, and results.
package models

import (
	"time"

	"github.com/hyperjump/feedsearch/internal/docid"
)

// Document is a single harvested feed item. It lives only for the duration of an
// ingestion run; what survives is its IndexPoint in the vector index.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	Categories []string  `json:"categories"`
	Vector     []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDocument creates a document with an ID derived from url and CreatedAt set to now.
// A nil categories slice is stored as an empty one.
func NewDocument(title, content, url string, categories []string) *Document {
	if categories == nil {
		categories = []string{}
	}
	return &Document{
		ID:         docid.FromURL(url),
		Title:      title,
		URL:        url,
		Content:    content,
		Categories: categories,
		CreatedAt:  time.Now().UTC(),
	}
}

// EmbeddableText returns the text sent to the embedder. It is computed from the
// current Title, Content, and Categories on every call, so it cannot go stale.
func (d *Document) EmbeddableText() string {
	return EmbeddableText(d.Title, d.Content, d.Categories)
}

// Point projects the document into its persisted index form.
func (d *Document) Point() *IndexPoint {
	return &IndexPoint{
		ID:     d.ID,
		Vector: d.Vector,
		Payload: Payload{
			Title: d.Title,
			URL:   d.URL,
		},
	}
}

// IndexPoint is what the vector index stores for a document.
type IndexPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the minimal metadata stored next to a vector.
type Payload struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
