// Package feed harvests documents from a paginated RSS feed.
package feed

import (
	"context"
	"errors"

	"github.com/hyperjump/feedsearch/internal/models"
	"go.uber.org/zap"
)

// StopReason explains why harvesting ended.
type StopReason string

const (
	// StopNotFound: the page after the last one returned 404.
	StopNotFound StopReason = "not_found"
	// StopEmptyPage: a page parsed to zero items.
	StopEmptyPage StopReason = "empty_page"
	// StopMaxPages: the configured page cap was reached.
	StopMaxPages StopReason = "max_pages"
	// StopFetchError: a page could not be fetched; results are partial.
	StopFetchError StopReason = "fetch_error"
	// StopMalformed: a page could not be parsed; results are partial.
	StopMalformed StopReason = "malformed"
	// StopCanceled: the context was canceled; results are partial.
	StopCanceled StopReason = "canceled"
)

// Complete reports whether harvesting reached the end of the feed.
func (r StopReason) Complete() bool {
	return r == StopNotFound || r == StopEmptyPage || r == StopMaxPages
}

// Harvest is the outcome of paginating through a feed.
type Harvest struct {
	Documents []*models.Document
	// Pages is the number of pages that contributed items.
	Pages int
	// LastPage is the last page number requested.
	LastPage int
	Stop     StopReason
	// Err is the failure that ended a partial harvest, nil otherwise.
	Err error
}

// Harvester paginates a feed from page 1 until a terminating condition.
type Harvester struct {
	fetcher  Fetcher
	maxPages int
	logger   *zap.Logger
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithLogger sets a logger for per-page progress.
func WithLogger(l *zap.Logger) HarvesterOption {
	return func(h *Harvester) { h.logger = l }
}

// WithMaxPages caps the number of pages requested. 0 means no cap.
func WithMaxPages(n int) HarvesterOption {
	return func(h *Harvester) { h.maxPages = n }
}

// NewHarvester creates a harvester reading pages from fetcher.
func NewHarvester(fetcher Fetcher, opts ...HarvesterOption) *Harvester {
	h := &Harvester{fetcher: fetcher, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HarvestAll returns every document harvested before the feed ended or failed.
// It never returns an error: failures truncate the result instead.
func (h *Harvester) HarvestAll(ctx context.Context) []*models.Document {
	return h.Harvest(ctx).Documents
}

// Harvest fetches pages 1, 2, ... and stops on a 404, a page with no items, the
// page cap, or the first fetch/parse failure. Documents accumulated before a
// failure are kept.
func (h *Harvester) Harvest(ctx context.Context) *Harvest {
	out := &Harvest{Documents: make([]*models.Document, 0)}
	for page := 1; ; page++ {
		if h.maxPages > 0 && page > h.maxPages {
			out.Stop = StopMaxPages
			break
		}
		if err := ctx.Err(); err != nil {
			out.Stop, out.Err = StopCanceled, err
			break
		}
		out.LastPage = page

		raw, err := h.fetcher.Fetch(ctx, page)
		if errors.Is(err, ErrPageNotFound) {
			h.logger.Info("feed page not found, harvest finished", zap.Int("page", page))
			out.Stop = StopNotFound
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				out.Stop, out.Err = StopCanceled, err
			} else {
				out.Stop, out.Err = StopFetchError, err
			}
			h.logger.Warn("feed page fetch failed, returning partial harvest",
				zap.Int("page", page), zap.Int("documents", len(out.Documents)), zap.Error(err))
			break
		}

		items, err := ParseItems(raw)
		if err != nil {
			out.Stop, out.Err = StopMalformed, err
			h.logger.Warn("feed page parse failed, returning partial harvest",
				zap.Int("page", page), zap.Int("documents", len(out.Documents)), zap.Error(err))
			break
		}
		if len(items) == 0 {
			h.logger.Info("feed page empty, harvest finished", zap.Int("page", page))
			out.Stop = StopEmptyPage
			break
		}

		for _, item := range items {
			doc := item.Document()
			out.Documents = append(out.Documents, doc)
			h.logger.Debug("feed item", zap.Int("page", page), zap.String("title", doc.Title))
		}
		out.Pages++
		h.logger.Info("feed page fetched", zap.Int("page", page), zap.Int("items", len(items)))
	}
	h.logger.Info("harvest done",
		zap.Int("documents", len(out.Documents)),
		zap.Int("pages", out.Pages),
		zap.String("stop", string(out.Stop)))
	return out
}
