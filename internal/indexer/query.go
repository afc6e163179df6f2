package indexer

import (
	"context"
	"fmt"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/pointid"
)

// QueryOptions controls a Related call. Zero values take the configured
// defaults; a negative MinScore disables the threshold.
type QueryOptions struct {
	Limit    int
	MinScore float64
}

// Related returns documents similar to the one at path, best first. The
// queried document is never among the results. No matches is an empty result,
// not an error. A missing document surfaces as the source's read error;
// embedding and search failures are wrapped in *QueryError.
func (m *Manager) Related(ctx context.Context, path string, opts QueryOptions) ([]models.RelatedNote, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = m.cfg.Query.Limit
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = m.cfg.Query.MinScore
	}

	content, err := m.source.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, &QueryError{Path: path, Err: err}
	}

	// Ask for one extra hit: the queried document usually matches itself, and
	// dropping it must not shrink the result set below limit.
	hits, err := m.store.Search(ctx, m.cfg.Store.Collection, vec, limit+1, minScore)
	if err != nil {
		return nil, &QueryError{Path: path, Err: err}
	}

	self := pointid.FromPath(path)
	notes := make([]models.RelatedNote, 0, len(hits))
	for _, h := range hits {
		if h.ID == self || h.Payload.Path == path {
			continue
		}
		notes = append(notes, models.RelatedNote{Path: h.Payload.Path, Score: h.Score})
		if len(notes) == limit {
			break
		}
	}
	return notes, nil
}
