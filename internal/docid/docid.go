// Package docid provides deterministic document IDs for harvested feed items.
package docid

import (
	"strings"

	"github.com/google/uuid"
)

// FromURL returns a stable point ID for the given item link. The same link always
// yields the same ID, so re-ingesting a feed replaces points instead of duplicating them.
// Items without a link get a random ID.
//
// IDs are UUIDs because the vector index only accepts UUIDs or unsigned integers.
func FromURL(link string) string {
	normalized := strings.TrimSpace(link)
	if normalized == "" {
		return uuid.New().String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(normalized)).String()
}
