// Package cli formats command output for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/feedsearch/internal/models"
	"github.com/hyperjump/feedsearch/pkg/utils"
)

const (
	titleWidth = 60
	errorWidth = 120
)

// OutputFormat selects text or JSON output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchHits writes search results as an enumerated title and link list,
// or as JSON.
func WriteSearchHits(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Hits) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	fmt.Fprintf(w, "Top %d results for %q (%dms):\n\n", len(response.Hits), response.Query, response.QueryTime)
	for _, hit := range response.Hits {
		fmt.Fprintf(w, "%d. %s\n", hit.Rank, utils.OneLine(hit.Title))
		if hit.URL != "" {
			fmt.Fprintf(w, "   %s\n", hit.URL)
		}
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingestion run.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Processed %d/%d documents in %s\n", res.Processed, res.Total, res.Duration.Round(time.Millisecond))
	if res.Cleared {
		fmt.Fprintln(w, "Collection was cleared first.")
	}
	if res.HarvestError != "" {
		fmt.Fprintf(w, "Harvest stopped early after %d pages: %s\n", res.Pages, res.HarvestError)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed (%s): %s: %v\n", f.Stage, utils.Truncate(utils.OneLine(f.Title), titleWidth), f.Err)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	}
	return nil
}

// WriteRuns writes a table of runs, newest first.
func WriteRuns(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-8s  %d/%d  %s\n", r.StartedAt.Local().Format(time.DateTime), r.Status, r.Processed, r.Total, r.ID)
		if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", utils.Truncate(r.Error, errorWidth))
		}
	}
	return nil
}

// WriteStatus writes index and run status.
func WriteStatus(w io.Writer, s *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Collection:  %s (%s)\n", s.Collection, s.IndexBackend)
	fmt.Fprintf(w, "Points:      %d\n", s.Points)
	fmt.Fprintf(w, "Embedding:   %s %s (%d dims)\n", s.EmbeddingProvider, s.EmbeddingModel, s.Dimensions)
	fmt.Fprintf(w, "Run DB size: %s\n", FormatBytes(s.DatabaseSizeBytes))
	if s.LastRun != nil {
		fmt.Fprintf(w, "Last run:    %s %s %d/%d\n", s.LastRun.StartedAt.Local().Format(time.DateTime), s.LastRun.Status, s.LastRun.Processed, s.LastRun.Total)
	} else {
		fmt.Fprintln(w, "Last run:    none")
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
