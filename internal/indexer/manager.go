// Package indexer coordinates document indexing and similarity queries across
// the vault, the embedding service, the vector store, and the catalog.
package indexer

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/notify"
	"github.com/hyperjump/ruiji/internal/pointid"
	"github.com/hyperjump/ruiji/internal/vault"
	"github.com/hyperjump/ruiji/internal/vector"
)

// Manager keeps the vector index in sync with the document source and answers
// related-document queries. Operations on the same path are serialized;
// distinct paths do not contend.
type Manager struct {
	source   vault.Source
	embedder embedding.Embedder
	store    vector.Store
	catalog  *catalog.Catalog
	cfg      *config.Config
	notifier notify.Notifier
	logger   *zap.Logger // optional; when set, logs debug events
	locks    *pathLocks

	reindexing atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger for debug output (documents indexed, skips, deletes).
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithNotifier sets the sink for user-facing progress and failure messages.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// NewManager creates a manager with the given dependencies.
func NewManager(
	source vault.Source,
	embedder embedding.Embedder,
	store vector.Store,
	cat *catalog.Catalog,
	cfg *config.Config,
	opts ...Option,
) *Manager {
	m := &Manager{
		source:   source,
		embedder: embedder,
		store:    store,
		catalog:  cat,
		cfg:      cfg,
		notifier: notify.Nop{},
		locks:    newPathLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap ensures the vector collection exists. Safe to call on every
// startup; an existing collection is left untouched.
func (m *Manager) Bootstrap(ctx context.Context) error {
	return m.store.EnsureCollection(ctx, m.cfg.Store.Collection, m.cfg.Embedding.Dimensions, vector.DistanceCosine)
}

// HandleEvent applies a document lifecycle event. The watch loop must survive
// any single document failing, so errors are logged and sent to the notifier
// rather than returned. The next change to the same document starts clean.
func (m *Manager) HandleEvent(ctx context.Context, ev models.Event) {
	var err error
	switch ev.Kind {
	case models.EventCreate, models.EventModify:
		err = m.IndexPath(ctx, ev.Path)
	case models.EventDelete:
		err = m.DeleteDocument(ctx, ev.Path)
	}
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("event handling failed",
				zap.String("kind", ev.Kind.String()),
				zap.String("path", ev.Path),
				zap.Error(err))
		}
		m.notifier.Notify(fmt.Sprintf("Failed to update index for %s: %v", ev.Path, err))
	}
}

// IndexPath reads the document at path and brings the index up to date with
// its content. Content already indexed unchanged is skipped.
func (m *Manager) IndexPath(ctx context.Context, path string) error {
	_, err := m.indexOne(ctx, path, false)
	return err
}

// indexOne locks path, reads it, and indexes its content. The bool reports
// whether the document was embedded rather than skipped.
func (m *Manager) indexOne(ctx context.Context, path string, force bool) (bool, error) {
	unlock := m.locks.lock(path)
	defer unlock()

	content, err := m.source.Read(ctx, path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return m.indexContent(ctx, path, content, force)
}

// indexContent embeds content and upserts its point. The caller must hold the
// path lock. On failure the previously stored point, if any, is left in place:
// the document simply keeps its prior state until something changes again.
func (m *Manager) indexContent(ctx context.Context, path, content string, force bool) (bool, error) {
	hash := catalog.ContentHash(content)
	if !force {
		entry, err := m.catalog.Get(ctx, path)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("catalog read failed, indexing anyway", zap.String("path", path), zap.Error(err))
			}
		} else if entry != nil && entry.Status == catalog.StatusIndexed && entry.ContentHash == hash {
			if m.logger != nil {
				m.logger.Debug("skipping unchanged document", zap.String("path", path))
			}
			return false, nil
		}
	}

	id := pointid.FromPath(path)
	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		m.recordFailure(ctx, path, id, err)
		return false, fmt.Errorf("failed to embed %s: %w", path, err)
	}

	point := vector.Point{ID: id, Vector: vec, Payload: vector.Payload{Path: path}}
	if err := m.store.Upsert(ctx, m.cfg.Store.Collection, point); err != nil {
		m.recordFailure(ctx, path, id, err)
		return false, fmt.Errorf("failed to store %s: %w", path, err)
	}

	if err := m.catalog.MarkIndexed(ctx, path, id, hash); err != nil {
		// The point is live; only the bookkeeping lagged behind.
		if m.logger != nil {
			m.logger.Warn("catalog update failed after upsert", zap.String("path", path), zap.Error(err))
		}
	}
	if m.logger != nil {
		m.logger.Debug("document indexed", zap.String("path", path), zap.String("point_id", id))
	}
	return true, nil
}

// DeleteDocument removes the document at path from the index. Deleting a
// document that was never indexed succeeds.
func (m *Manager) DeleteDocument(ctx context.Context, path string) error {
	unlock := m.locks.lock(path)
	defer unlock()

	id := pointid.FromPath(path)
	if err := m.store.Delete(ctx, m.cfg.Store.Collection, id); err != nil {
		// Keep the catalog row: the point is still in the store and a later
		// delete or reindex will reconcile it.
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if err := m.catalog.Remove(ctx, path); err != nil {
		if m.logger != nil {
			m.logger.Warn("catalog remove failed", zap.String("path", path), zap.Error(err))
		}
	}
	if m.logger != nil {
		m.logger.Debug("document deleted", zap.String("path", path), zap.String("point_id", id))
	}
	return nil
}

func (m *Manager) recordFailure(ctx context.Context, path, id string, cause error) {
	if err := m.catalog.MarkFailed(ctx, path, id, cause); err != nil && m.logger != nil {
		m.logger.Warn("failed to record failure", zap.String("path", path), zap.Error(err))
	}
}
