package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "data", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_markIndexedRoundtrip(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	got, err := c.Get(ctx, "notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("unseen path should return nil entry, got %+v", got)
	}

	if err := c.MarkIndexed(ctx, "notes/a.md", "pid-1", "hash-1"); err != nil {
		t.Fatal(err)
	}
	got, err = c.Get(ctx, "notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("entry missing after MarkIndexed")
	}
	if got.Status != StatusIndexed || got.PointID != "pid-1" || got.ContentHash != "hash-1" {
		t.Errorf("entry = %+v", got)
	}
	if got.IndexedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}

	// Upsert: same path again must update in place, not duplicate.
	if err := c.MarkIndexed(ctx, "notes/a.md", "pid-1", "hash-2"); err != nil {
		t.Fatal(err)
	}
	paths, err := c.Paths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 path after re-index, got %v", paths)
	}
	got, _ = c.Get(ctx, "notes/a.md")
	if got.ContentHash != "hash-2" {
		t.Errorf("content hash not updated: %+v", got)
	}
}

func TestCatalog_markFailed(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.MarkFailed(ctx, "notes/bad.md", "pid-bad", errors.New("embed blew up")); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "notes/bad.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.LastError != "embed blew up" {
		t.Errorf("entry = %+v", got)
	}

	failed, err := c.ListFailed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Path != "notes/bad.md" {
		t.Errorf("ListFailed = %+v", failed)
	}

	// A later success clears the failure.
	if err := c.MarkIndexed(ctx, "notes/bad.md", "pid-bad", "h"); err != nil {
		t.Fatal(err)
	}
	got, _ = c.Get(ctx, "notes/bad.md")
	if got.Status != StatusIndexed || got.LastError != "" {
		t.Errorf("failure not cleared: %+v", got)
	}
	failed, _ = c.ListFailed(ctx)
	if len(failed) != 0 {
		t.Errorf("ListFailed after recovery = %+v", failed)
	}
}

func TestCatalog_failurePreservesIndexedState(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.MarkIndexed(ctx, "notes/a.md", "pid-1", "hash-1"); err != nil {
		t.Fatal(err)
	}
	before, _ := c.Get(ctx, "notes/a.md")

	if err := c.MarkFailed(ctx, "notes/a.md", "pid-1", errors.New("store down")); err != nil {
		t.Fatal(err)
	}
	after, _ := c.Get(ctx, "notes/a.md")
	if after.Status != StatusFailed {
		t.Errorf("status = %s", after.Status)
	}
	if after.ContentHash != "hash-1" {
		t.Errorf("failure must not clobber the last indexed hash: %+v", after)
	}
	if !after.IndexedAt.Equal(before.IndexedAt) {
		t.Errorf("failure must not clobber indexed_at: %v vs %v", after.IndexedAt, before.IndexedAt)
	}
}

func TestCatalog_remove(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.Remove(ctx, "never/seen.md"); err != nil {
		t.Errorf("removing absent path should succeed: %v", err)
	}

	if err := c.MarkIndexed(ctx, "notes/a.md", "pid", "h"); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(ctx, "notes/a.md"); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("entry still present after Remove: %+v", got)
	}
}

func TestCatalog_countByStatus(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		if err := c.MarkIndexed(ctx, p, "pid-"+p, "h"); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.MarkFailed(ctx, "d.md", "pid-d", errors.New("x")); err != nil {
		t.Fatal(err)
	}

	counts, err := c.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusIndexed] != 3 || counts[StatusFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}

	paths, _ := c.Paths(ctx)
	if len(paths) != 4 || paths[0] != "a.md" || paths[3] != "d.md" {
		t.Errorf("paths = %v", paths)
	}
}

func TestCatalog_sizeBytes(t *testing.T) {
	c := openTestCatalog(t)
	if err := c.MarkIndexed(context.Background(), "a.md", "pid", "h"); err != nil {
		t.Fatal(err)
	}
	n, err := c.SizeBytes()
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", n)
	}
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash("apple")
	h2 := ContentHash("apple")
	h3 := ContentHash("apple fruit")
	if h1 != h2 {
		t.Error("same content should hash identically")
	}
	if h1 == h3 {
		t.Error("different content should hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("hex sha256 length = %d, want 64", len(h1))
	}
}
