// Package cli renders command output for Ruiji.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/ruiji/internal/indexer"
	"github.com/hyperjump/ruiji/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteRelated writes a related-documents response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteRelated(w io.Writer, response *models.RelatedResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintf(w, "No related documents for %s (%dms)\n", response.Path, response.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "Found %d related documents for %s (%dms)\n\n", response.Total, response.Path, response.QueryTime)
	for _, note := range response.Results {
		fmt.Fprintf(w, "  %.4f  %s\n", note.Score, note.Path)
	}
	return nil
}

// WriteReport writes a reindex report to w in the given format.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Reindexed %d documents in %s: %d indexed, %d skipped, %d failed, %d pruned\n",
		report.Total, report.Elapsed.Round(time.Millisecond),
		report.Indexed, report.Skipped, report.Failed, report.Pruned)
	return nil
}

// WriteStatus writes an index status summary to w in the given format.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Vault:       %s\n", status.Vault)
	fmt.Fprintf(w, "Collection:  %s (%d dimensions, model %s)\n", status.Collection, status.Dimensions, status.Model)
	reindexing := "no"
	if status.Reindexing {
		reindexing = "yes"
	}
	fmt.Fprintf(w, "Reindexing:  %s\n", reindexing)
	fmt.Fprintf(w, "Documents:   %d indexed, %d failed\n", status.Documents["indexed"], status.Documents["failed"])
	fmt.Fprintf(w, "Catalog:     %s\n", FormatBytes(status.CatalogBytes))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders a byte count with a binary unit suffix.
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
