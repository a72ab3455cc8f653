// Package indexer runs ingestion: harvest the feed, embed each document, and
// upsert it into the vector index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/feedsearch/internal/embedding"
	"github.com/hyperjump/feedsearch/internal/feed"
	"github.com/hyperjump/feedsearch/internal/lock"
	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/internal/storage"
	"github.com/hyperjump/feedsearch/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harvester produces the documents of one run.
type Harvester interface {
	Harvest(ctx context.Context) *feed.Harvest
}

// Pipeline orchestrates one ingestion run over a collection.
type Pipeline struct {
	harvester   Harvester
	embedder    embedding.Embedder
	index       vector.VectorIndex
	locker      lock.Locker
	runs        storage.RunStore // optional
	collection  string
	concurrency int
	lockTTL     time.Duration
	logger      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithConcurrency sets how many documents are embedded and upserted at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithLocker replaces the in-process run lock, e.g. with a Redis lock shared by
// several instances.
func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(p *Pipeline) { p.locker, p.lockTTL = l, ttl }
}

// WithRunStore records each run and its failures.
func WithRunStore(s storage.RunStore) Option {
	return func(p *Pipeline) { p.runs = s }
}

// WithCollection names the collection in the lock key and run records.
func WithCollection(name string) Option {
	return func(p *Pipeline) { p.collection = name }
}

// NewPipeline creates a pipeline.
func NewPipeline(h Harvester, e embedding.Embedder, idx vector.VectorIndex, opts ...Option) *Pipeline {
	p := &Pipeline{
		harvester:   h,
		embedder:    e,
		index:       idx,
		locker:      lock.NewLocal(),
		collection:  "default",
		concurrency: 1,
		lockTTL:     30 * time.Minute,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// LockName is the lock key guarding the collection.
func (p *Pipeline) LockName() string {
	return "ingest:" + p.collection
}

// Run ingests the feed. With clearFirst the collection is emptied first; a
// failed clear is logged and ingestion continues. Item failures are collected
// in the result and never abort the run. It returns models.ErrRunInProgress if
// another run holds the collection lock. Lockers that implement lock.Extender
// are renewed every third of the TTL; losing the lock cancels the run.
func (p *Pipeline) Run(parent context.Context, clearFirst bool) (*models.IngestResult, error) {
	start := time.Now()
	ok, err := p.locker.Acquire(parent, p.LockName(), p.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, models.ErrRunInProgress
	}
	ctx, cancel := context.WithCancelCause(parent)
	stopRenewal := p.renewLock(ctx, cancel)
	defer func() {
		stopRenewal()
		cancel(nil)
		if err := p.locker.Release(context.WithoutCancel(ctx), p.LockName()); err != nil {
			p.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	result := &models.IngestResult{}
	run := p.startRun(ctx, clearFirst)
	if run != nil {
		result.RunID = run.ID
	}
	log := p.logger.With(zap.String("collection", p.collection), zap.String("run_id", result.RunID))

	if clearFirst {
		if err := p.index.DeleteAll(ctx); err != nil {
			log.Warn("failed to clear collection, continuing", zap.Error(err))
		} else {
			result.Cleared = true
			log.Info("collection cleared")
		}
	}

	harvest := p.harvester.Harvest(ctx)
	result.Total = len(harvest.Documents)
	result.Pages = harvest.Pages
	result.HarvestStop = string(harvest.Stop)
	if harvest.Err != nil {
		result.HarvestError = harvest.Err.Error()
	}
	log.Info("harvest complete",
		zap.Int("documents", result.Total),
		zap.Int("pages", harvest.Pages),
		zap.String("stop", result.HarvestStop))

	outcomes := p.process(ctx, harvest.Documents)
	for _, itemErr := range outcomes {
		if itemErr == nil {
			result.Processed++
			continue
		}
		result.Failures = append(result.Failures, itemErr)
		log.Warn("document failed",
			zap.String("title", itemErr.Title),
			zap.String("stage", string(itemErr.Stage)),
			zap.Error(itemErr.Err))
		p.recordFailure(ctx, result.RunID, itemErr)
	}
	result.Duration = time.Since(start)

	var runErr error
	if ctx.Err() != nil {
		runErr = context.Cause(ctx)
	}
	p.finishRun(ctx, run, result, runErr)
	log.Info("ingestion finished",
		zap.Int("processed", result.Processed),
		zap.Int("total", result.Total),
		zap.Duration("duration", result.Duration))
	return result, runErr
}

// renewLock extends the run lock until the returned stop function is called.
// If the lock is lost the run is canceled with lock.ErrNotHeld as the cause.
func (p *Pipeline) renewLock(ctx context.Context, cancel context.CancelCauseFunc) (stop func()) {
	ext, ok := p.locker.(lock.Extender)
	if !ok || p.lockTTL <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(p.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := ext.Extend(ctx, p.LockName(), p.lockTTL)
				switch {
				case err == nil:
				case errors.Is(err, lock.ErrNotHeld):
					p.logger.Error("run lock lost, canceling ingestion", zap.String("lock", p.LockName()))
					cancel(fmt.Errorf("run lock lost: %w", err))
					return
				default:
					p.logger.Warn("failed to extend run lock", zap.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

// process embeds and upserts every document, returning one outcome per document
// in input order; nil means success.
func (p *Pipeline) process(ctx context.Context, docs []*models.Document) []*models.ItemError {
	outcomes := make([]*models.ItemError, len(docs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = p.processDocument(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) processDocument(ctx context.Context, doc *models.Document) *models.ItemError {
	vec, err := p.embedder.Embed(ctx, doc.EmbeddableText())
	if err != nil {
		return &models.ItemError{DocumentID: doc.ID, Title: doc.Title, Stage: models.StageEmbed, Err: err}
	}
	doc.Vector = vec
	if err := p.index.Upsert(ctx, doc.Point()); err != nil {
		return &models.ItemError{DocumentID: doc.ID, Title: doc.Title, Stage: models.StageUpsert, Err: err}
	}
	p.logger.Debug("document indexed", zap.String("id", doc.ID), zap.String("title", doc.Title))
	return nil
}

func (p *Pipeline) startRun(ctx context.Context, clearFirst bool) *models.Run {
	if p.runs == nil {
		return nil
	}
	run := &models.Run{Collection: p.collection, ClearFirst: clearFirst}
	if err := p.runs.CreateRun(ctx, run); err != nil {
		p.logger.Warn("failed to record run start", zap.Error(err))
		return nil
	}
	return run
}

func (p *Pipeline) recordFailure(ctx context.Context, runID string, itemErr *models.ItemError) {
	if p.runs == nil || runID == "" {
		return
	}
	err := p.runs.RecordFailure(context.WithoutCancel(ctx), &models.RunFailure{
		RunID:      runID,
		DocumentID: itemErr.DocumentID,
		Title:      itemErr.Title,
		Stage:      itemErr.Stage,
		Message:    itemErr.Err.Error(),
	})
	if err != nil {
		p.logger.Warn("failed to record item failure", zap.Error(err))
	}
}

func (p *Pipeline) finishRun(ctx context.Context, run *models.Run, result *models.IngestResult, runErr error) {
	if run == nil {
		return
	}
	run.Status = models.RunStatusFinished
	run.Processed, run.Total = result.Processed, result.Total
	run.Pages, run.HarvestStop = result.Pages, result.HarvestStop
	run.Error = result.HarvestError
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := p.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("failed to record run finish", zap.Error(err))
	}
}
