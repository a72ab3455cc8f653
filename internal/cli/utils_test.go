package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/feedsearch/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "go generics",
		QueryTime: 12,
		Hits: []*models.SearchHit{
			{ID: "a", Title: "Generics in Go", URL: "https://example.com/generics", Score: 0.91, Rank: 1},
			{ID: "b", Title: "No Title", URL: "", Score: 0.5, Rank: 2},
		},
	}
}

func TestWriteSearchHits_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"1. Generics in Go\n", "   https://example.com/generics\n", "2. No Title\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchHits_empty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchHits(&buf, &models.SearchResponse{Query: "q", Hits: []*models.SearchHit{}}, OutputText)
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSearchHits_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "go generics" || len(decoded.Hits) != 2 || decoded.Hits[0].URL != "https://example.com/generics" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteIngestResult_text(t *testing.T) {
	res := &models.IngestResult{
		RunID:        "run-1",
		Processed:    4,
		Total:        5,
		Pages:        2,
		HarvestError: "GET https://example.com/feed/?paged=3: status 500",
		Failures: []*models.ItemError{
			{Title: "Broken", Stage: models.StageEmbed, Err: errors.New("timeout")},
		},
		Duration: 1500 * time.Millisecond,
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Processed 4/5", "failed (embed): Broken: timeout", "Run ID: run-1", "after 2 pages"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteIngestResult_jsonIncludesFailures(t *testing.T) {
	res := &models.IngestResult{
		Processed: 1,
		Total:     2,
		Failures: []*models.ItemError{
			{DocumentID: "d2", Title: "Broken", Stage: models.StageUpsert, Err: errors.New("qdrant down")},
		},
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Failures []struct {
			DocumentID string `json:"document_id"`
			Title      string `json:"title"`
			Stage      string `json:"stage"`
			Message    string `json:"message"`
		} `json:"failures"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Failures) != 1 {
		t.Fatalf("failures = %+v", decoded.Failures)
	}
	f := decoded.Failures[0]
	if f.DocumentID != "d2" || f.Title != "Broken" || f.Stage != "upsert" || f.Message != "qdrant down" {
		t.Errorf("failure = %+v", f)
	}
}

func TestWriteIngestResult_longUnicodeTitle(t *testing.T) {
	title := strings.Repeat("日本語のブログ記事\n", 20)
	res := &models.IngestResult{
		Total:    1,
		Failures: []*models.ItemError{{Title: title, Stage: models.StageEmbed, Err: errors.New("timeout")}},
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !utf8.ValidString(out) {
		t.Fatalf("output is not valid UTF-8: %q", out)
	}
	if !strings.Contains(out, "...: timeout") {
		t.Errorf("long title not truncated:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Errorf("title newlines leaked into output:\n%s", out)
	}
}

func TestWriteRunsAndStatus(t *testing.T) {
	run := &models.Run{ID: "r1", Status: models.RunStatusFinished, Processed: 3, Total: 3, StartedAt: time.Now()}
	var buf bytes.Buffer
	if err := WriteRuns(&buf, []*models.Run{run}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "r1") || !strings.Contains(buf.String(), "3/3") {
		t.Errorf("runs output: %s", buf.String())
	}

	buf.Reset()
	_ = WriteRuns(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No runs recorded.") {
		t.Errorf("empty runs output: %s", buf.String())
	}

	buf.Reset()
	st := &models.Status{Collection: "blog_posts", IndexBackend: "qdrant", Points: 42, LastRun: run, DatabaseSizeBytes: 2048}
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"blog_posts (qdrant)", "Points:      42", "2.0 KiB"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 1 << 20: "1.0 MiB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
