package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// progressEvery is the document cadence of progress notifications.
const progressEvery = 10

// ErrReindexRunning is returned when a bulk reindex is already in flight.
var ErrReindexRunning = errors.New("reindex already running")

// ReindexOptions controls a bulk reindex.
type ReindexOptions struct {
	// Force re-embeds every document even when its content is unchanged.
	Force bool
	// Workers bounds concurrent document indexing; 0 means the configured
	// default. Same-path operations stay serialized regardless.
	Workers int
}

// Report summarizes a bulk reindex run.
type Report struct {
	Total   int           `json:"total"`
	Indexed int           `json:"indexed"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Pruned  int           `json:"pruned"`
	Elapsed time.Duration `json:"elapsed"`
}

// Reindexing reports whether a bulk reindex is currently running.
func (m *Manager) Reindexing() bool {
	return m.reindexing.Load()
}

// ReindexAll walks every document in the source and brings the index up to
// date, then prunes index entries whose documents no longer exist. A failing
// document is counted and skipped, never fatal. Cancelling ctx stops the walk
// between documents; the returned report covers the work done so far.
func (m *Manager) ReindexAll(ctx context.Context, opts ReindexOptions) (*Report, error) {
	if !m.reindexing.CompareAndSwap(false, true) {
		return nil, ErrReindexRunning
	}
	defer m.reindexing.Store(false)

	start := time.Now()
	paths, err := m.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = m.cfg.Reindex.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	report := &Report{Total: len(paths)}
	m.notifier.Notify(fmt.Sprintf("Indexing %d documents", report.Total))

	var (
		mu        sync.Mutex // guards report counters
		processed atomic.Int64
		wg        sync.WaitGroup
	)
	jobs := make(chan string)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				indexed, err := m.indexOne(ctx, path, opts.Force)

				mu.Lock()
				switch {
				case err != nil:
					report.Failed++
				case indexed:
					report.Indexed++
				default:
					report.Skipped++
				}
				mu.Unlock()

				if err != nil && m.logger != nil {
					m.logger.Warn("reindex: document failed", zap.String("path", path), zap.Error(err))
				}
				if n := processed.Add(1); n%progressEvery == 0 {
					m.notifier.Notify(fmt.Sprintf("Processed %d/%d documents", n, report.Total))
				}
			}
		}()
	}

feed:
	for _, path := range paths {
		select {
		case jobs <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() == nil {
		pruned, err := m.pruneOrphans(ctx, paths)
		report.Pruned = pruned
		if err != nil && m.logger != nil {
			m.logger.Warn("reindex: pruning incomplete", zap.Error(err))
		}
	}

	report.Elapsed = time.Since(start)
	m.notifier.Notify(reindexSummary(report))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// pruneOrphans deletes index entries for paths no longer present in the
// source. present is the source listing the reindex ran against.
func (m *Manager) pruneOrphans(ctx context.Context, present []string) (int, error) {
	known, err := m.catalog.Paths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalog: %w", err)
	}
	live := make(map[string]struct{}, len(present))
	for _, p := range present {
		live[p] = struct{}{}
	}

	pruned := 0
	for _, path := range known {
		if _, ok := live[path]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if err := m.DeleteDocument(ctx, path); err != nil {
			if m.logger != nil {
				m.logger.Warn("reindex: prune failed", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		pruned++
	}
	return pruned, nil
}

func reindexSummary(r *Report) string {
	s := fmt.Sprintf("Indexing complete: %d indexed, %d skipped, %d failed", r.Indexed, r.Skipped, r.Failed)
	if r.Pruned > 0 {
		s += fmt.Sprintf(", %d pruned", r.Pruned)
	}
	return s
}
