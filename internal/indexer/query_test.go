package indexer

import (
	"context"
	"errors"
	"io/fs"
	"testing"
)

// seedRankedDocs indexes a query document plus three neighbors at decreasing
// similarity to it.
func seedRankedDocs(t *testing.T, rig *testRig) {
	t.Helper()
	ctx := context.Background()
	docs := map[string][]float32{
		"q.md":  {1, 0, 0, 0},
		"d1.md": {0.9, 0.1, 0, 0},
		"d2.md": {0.8, 0.2, 0, 0},
		"d3.md": {0.7, 0.3, 0, 0},
	}
	for path, vec := range docs {
		content := "content of " + path
		rig.source.put(path, content)
		rig.embedder.set(content, vec)
		if err := rig.manager.IndexPath(ctx, path); err != nil {
			t.Fatalf("index %s: %v", path, err)
		}
	}
}

func TestRelated_ranksBySimilarity(t *testing.T) {
	rig := newTestRig(t)
	seedRankedDocs(t, rig)

	notes, err := rig.manager.Related(context.Background(), "q.md", QueryOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"d1.md", "d2.md", "d3.md"}
	if len(notes) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(notes), len(want), notes)
	}
	for i, note := range notes {
		if note.Path != want[i] {
			t.Errorf("result %d = %q, want %q", i, note.Path, want[i])
		}
		if note.Path == "q.md" {
			t.Error("queried document returned as its own neighbor")
		}
		if i > 0 && note.Score > notes[i-1].Score {
			t.Errorf("results not in descending score order: %+v", notes)
		}
	}
}

func TestRelated_limitSurvivesSelfExclusion(t *testing.T) {
	rig := newTestRig(t)
	seedRankedDocs(t, rig)

	// The query document is the store's best match for itself. Dropping it
	// must still leave a full page of results.
	notes, err := rig.manager.Related(context.Background(), "q.md", QueryOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(notes), notes)
	}
	if notes[0].Path != "d1.md" || notes[1].Path != "d2.md" {
		t.Errorf("results = %+v", notes)
	}
}

func TestRelated_scoreThreshold(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.source.put("a.md", "apple")
	rig.source.put("b.md", "apple fruit")
	rig.source.put("c.md", "car engine")
	rig.embedder.set("apple", []float32{1, 0, 0, 0})
	rig.embedder.set("apple fruit", []float32{1, 1, 0, 0})
	rig.embedder.set("car engine", []float32{0, 0, 1, 0})
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		if err := rig.manager.IndexPath(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	// Default threshold is 0.70: the near neighbor passes, the unrelated
	// document does not.
	notes, err := rig.manager.Related(ctx, "a.md", QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Path != "b.md" {
		t.Fatalf("results = %+v, want just b.md", notes)
	}
	if notes[0].Score < 0.70 || notes[0].Score > 0.72 {
		t.Errorf("score = %v, want ~0.707", notes[0].Score)
	}

	// A negative threshold disables filtering entirely.
	notes, err = rig.manager.Related(ctx, "a.md", QueryOptions{MinScore: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("unfiltered results = %+v, want 2", notes)
	}
	if notes[0].Path != "b.md" || notes[1].Path != "c.md" {
		t.Errorf("unfiltered results = %+v", notes)
	}
}

func TestRelated_noMatches(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.source.put("alone.md", "solitary")
	if err := rig.manager.IndexPath(ctx, "alone.md"); err != nil {
		t.Fatal(err)
	}

	notes, err := rig.manager.Related(ctx, "alone.md", QueryOptions{})
	if err != nil {
		t.Fatalf("no matches must not be an error, got %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("results = %+v, want none", notes)
	}
}

func TestRelated_missingDocument(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.manager.Related(context.Background(), "ghost.md", QueryOptions{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		t.Error("a missing document is a caller mistake, not a query failure")
	}
}

func TestRelated_embedFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.source.put("a.md", "unlucky")
	cause := errors.New("embedding service down")
	rig.embedder.fail("unlucky", cause)

	_, err := rig.manager.Related(context.Background(), "a.md", QueryOptions{})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QueryError", err)
	}
	if qe.Path != "a.md" {
		t.Errorf("QueryError.Path = %q", qe.Path)
	}
	if !errors.Is(err, cause) {
		t.Error("QueryError must unwrap to the underlying cause")
	}
}

func TestRelated_searchFailure(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.source.put("a.md", "fine")
	if err := rig.manager.IndexPath(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}

	rig.store.failSearch = errors.New("store unavailable")
	_, err := rig.manager.Related(ctx, "a.md", QueryOptions{})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QueryError", err)
	}
}
