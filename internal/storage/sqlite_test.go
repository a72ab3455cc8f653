package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/feedsearch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{Collection: "blog_posts", ClearFirst: true}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.StartedAt.IsZero() || run.Status != models.RunStatusRunning {
		t.Fatalf("defaults not set: %+v", run)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Collection != "blog_posts" || !got.ClearFirst || got.FinishedAt != nil {
		t.Errorf("got %+v", got)
	}

	run.Status = models.RunStatusFinished
	run.Processed, run.Total, run.Pages, run.HarvestStop = 4, 5, 2, "not_found"
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetRun(ctx, run.ID)
	if got.Status != models.RunStatusFinished || got.Processed != 4 || got.Total != 5 || got.Pages != 2 {
		t.Errorf("got %+v", got)
	}
	if got.HarvestStop != "not_found" || got.FinishedAt == nil {
		t.Errorf("got %+v", got)
	}
}

func TestSQLiteStore_Failures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	run := &models.Run{Collection: "c"}
	_ = store.CreateRun(ctx, run)

	for _, title := range []string{"first", "second"} {
		err := store.RecordFailure(ctx, &models.RunFailure{
			RunID: run.ID, DocumentID: "doc-" + title, Title: title, Stage: models.StageEmbed, Message: "boom",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	failures, err := store.ListFailures(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 2 || failures[0].Title != "first" || failures[1].Stage != models.StageEmbed {
		t.Errorf("failures = %+v", failures)
	}

	none, err := store.ListFailures(ctx, "other")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("expected empty slice, got %v, %v", none, err)
	}
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &models.Run{ID: string(rune('a' + i)), Collection: "c", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("runs = %v", runs)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: %v", err)
	}
	if err := store.FinishRun(ctx, &models.Run{ID: "missing", Status: models.RunStatusFailed}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun: %v", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	run := &models.Run{Collection: "c"}
	_ = store.CreateRun(context.Background(), run)
	store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.GetRun(context.Background(), run.ID); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
	if store.Path() != path {
		t.Errorf("Path = %s", store.Path())
	}
}
