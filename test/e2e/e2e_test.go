package e2e

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/indexer"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/vault"
	"github.com/hyperjump/ruiji/internal/vector"
)

const e2eCollection = "e2e-notes"

// engine wires the real client stack against the fakes.
type engine struct {
	manager  *indexer.Manager
	vault    *vault.Vault
	catalog  *catalog.Catalog
	embed    *fakeEmbeddings
	store    *fakeQdrant
	vaultDir string
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	embed := newFakeEmbeddings()
	t.Cleanup(embed.Close)
	qdrant := newFakeQdrant()
	t.Cleanup(qdrant.Close)

	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	v, err := vault.New(vaultDir, []string{".md"})
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Dimensions = len(vocabulary)
	cfg.Store.Collection = e2eCollection

	embedder := embedding.NewClient(embed.URL(), cfg.Embedding.Model, cfg.Embedding.Dimensions)
	store := vector.NewClient(qdrant.URL())
	m := indexer.NewManager(v, embedder, store, cat, cfg)
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &engine{
		manager:  m,
		vault:    v,
		catalog:  cat,
		embed:    embed,
		store:    qdrant,
		vaultDir: vaultDir,
	}
}

func (e *engine) writeDoc(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (e *engine) removeDoc(t *testing.T, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(e.vaultDir, filepath.FromSlash(rel))); err != nil {
		t.Fatal(err)
	}
}

// seedOrchard writes four documents with known pairwise similarity to
// apple.md: orchard.md 0.949, salad.md 0.816, car.md 0.
func seedOrchard(t *testing.T, e *engine) {
	t.Helper()
	e.writeDoc(t, "apple.md", "apple fruit")
	e.writeDoc(t, "orchard.md", "apple apple fruit")
	e.writeDoc(t, "salad.md", "apple fruit banana")
	e.writeDoc(t, "car.md", "car engine")
	report, err := e.manager.ReindexAll(context.Background(), indexer.ReindexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 4 || report.Failed != 0 {
		t.Fatalf("seed report = %+v", report)
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

func TestE2E_RelatedRanksSimilarDocuments(t *testing.T) {
	e := newEngine(t)
	seedOrchard(t, e)

	notes, err := e.manager.Related(context.Background(), "apple.md", indexer.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		path  string
		score float64
	}{
		{"orchard.md", 3 / (math.Sqrt2 * math.Sqrt(5))},
		{"salad.md", 2 / (math.Sqrt2 * math.Sqrt(3))},
	}
	if len(notes) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(notes), len(want), notes)
	}
	for i, w := range want {
		if notes[i].Path != w.path {
			t.Errorf("result %d = %q, want %q", i, notes[i].Path, w.path)
		}
		if math.Abs(notes[i].Score-w.score) > 0.01 {
			t.Errorf("result %d score = %v, want ~%v", i, notes[i].Score, w.score)
		}
	}
	for _, note := range notes {
		if note.Path == "apple.md" {
			t.Error("queried document returned as its own neighbor")
		}
		if note.Path == "car.md" {
			t.Error("unrelated document cleared the similarity threshold")
		}
	}
}

func TestE2E_ThresholdDisabled(t *testing.T) {
	e := newEngine(t)
	seedOrchard(t, e)

	notes, err := e.manager.Related(context.Background(), "apple.md", indexer.QueryOptions{MinScore: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 3 {
		t.Fatalf("unfiltered results = %+v, want all 3 neighbors", notes)
	}
	if notes[2].Path != "car.md" || notes[2].Score > 0.01 {
		t.Errorf("weakest result = %+v, want car.md near zero", notes[2])
	}
}

func TestE2E_DeleteRemovesDocument(t *testing.T) {
	e := newEngine(t)
	seedOrchard(t, e)
	ctx := context.Background()

	if err := e.manager.DeleteDocument(ctx, "orchard.md"); err != nil {
		t.Fatal(err)
	}
	if got := e.store.count(e2eCollection); got != 3 {
		t.Errorf("store holds %d points, want 3", got)
	}

	notes, err := e.manager.Related(ctx, "apple.md", indexer.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Path != "salad.md" {
		t.Errorf("results after delete = %+v, want just salad.md", notes)
	}

	// The file itself is gone from the index and the catalog, so querying it
	// surfaces the read error once the document is also removed on disk.
	e.removeDoc(t, "orchard.md")
	if _, err := e.manager.Related(ctx, "orchard.md", indexer.QueryOptions{}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
	if entry, _ := e.catalog.Get(ctx, "orchard.md"); entry != nil {
		t.Errorf("catalog entry survived delete: %+v", entry)
	}
}

func TestE2E_ReindexSkipsUnchangedContent(t *testing.T) {
	e := newEngine(t)
	seedOrchard(t, e)
	ctx := context.Background()

	embedsAfterSeed := e.embed.requestCount()
	report, err := e.manager.ReindexAll(ctx, indexer.ReindexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 4 || report.Indexed != 0 {
		t.Errorf("second run report = %+v, want everything skipped", report)
	}
	if got := e.embed.requestCount(); got != embedsAfterSeed {
		t.Errorf("embed requests = %d, want %d (unchanged content must not re-embed)", got, embedsAfterSeed)
	}

	e.writeDoc(t, "salad.md", "apple fruit banana banana")
	report, err = e.manager.ReindexAll(ctx, indexer.ReindexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 1 || report.Skipped != 3 {
		t.Errorf("report after edit = %+v, want 1 indexed", report)
	}
}

func TestE2E_EmbeddingModelPassthrough(t *testing.T) {
	e := newEngine(t)
	e.writeDoc(t, "apple.md", "apple fruit")
	if err := e.manager.IndexPath(context.Background(), "apple.md"); err != nil {
		t.Fatal(err)
	}
	if got := e.embed.modelCount("nomic-embed-text"); got != 1 {
		t.Errorf("model nomic-embed-text seen %d times, want 1", got)
	}
}

func TestE2E_EmbeddingFailureDoesNotAbortReindex(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.writeDoc(t, "good1.md", "apple fruit")
	e.writeDoc(t, "good2.md", "banana fruit")
	e.writeDoc(t, "bad.md", "cursed words")
	e.embed.failPromptsContaining("cursed")

	report, err := e.manager.ReindexAll(ctx, indexer.ReindexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 indexed and 1 failed", report)
	}
	if got := e.store.count(e2eCollection); got != 2 {
		t.Errorf("store holds %d points, want 2", got)
	}
	failed, err := e.catalog.ListFailed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Path != "bad.md" {
		t.Errorf("failed entries = %+v", failed)
	}

	// Once the service recovers, the same document indexes cleanly.
	e.embed.failPromptsContaining("")
	if err := e.manager.IndexPath(ctx, "bad.md"); err != nil {
		t.Fatal(err)
	}
	if got := e.store.count(e2eCollection); got != 3 {
		t.Errorf("store holds %d points after recovery, want 3", got)
	}
}

func TestE2E_WatcherKeepsIndexFresh(t *testing.T) {
	e := newEngine(t)
	watch := vault.NewWatcher(
		e.vault,
		func(path string) {
			e.manager.HandleEvent(context.Background(), models.Event{Kind: models.EventModify, Path: path})
		},
		func(path string) {
			e.manager.HandleEvent(context.Background(), models.Event{Kind: models.EventDelete, Path: path})
		},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watch.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer watch.Stop()

	e.writeDoc(t, "fresh.md", "apple fruit")
	if !waitFor(5*time.Second, func() bool { return e.store.count(e2eCollection) == 1 }) {
		t.Fatalf("new file never indexed; store holds %d points", e.store.count(e2eCollection))
	}
	if paths := e.store.paths(e2eCollection); len(paths) != 1 || paths[0] != "fresh.md" {
		t.Errorf("indexed paths = %v", paths)
	}

	e.removeDoc(t, "fresh.md")
	if !waitFor(5*time.Second, func() bool { return e.store.count(e2eCollection) == 0 }) {
		t.Fatalf("deleted file never removed; store holds %d points", e.store.count(e2eCollection))
	}
}
