package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPageHistoryLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	first := Snapshot{
		Title:   "Weekly Plan",
		Content: json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"Draft"}]}]`),
	}
	commit, err := svc.CommitSnapshot("pg-1", first, "Avery", "Create page")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "pg-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	second := first
	second.Content = json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"Final"}]}]`)
	second.Summary = "A plan."
	updated, err := svc.CommitSnapshot("pg-1", second, "Avery", "Update page")
	if err != nil {
		t.Fatalf("CommitSnapshot() second error = %v", err)
	}

	entries, err := svc.History("pg-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Hash != updated.Hash {
		t.Fatalf("expected newest entry first, got %+v", entries)
	}

	restored, err := svc.SnapshotByHash("pg-1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if string(restored.Content) != string(first.Content) {
		t.Fatalf("unexpected restored content: %s", restored.Content)
	}
	if restored.Summary != "" {
		t.Fatalf("first snapshot should have no summary, got %q", restored.Summary)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())

	for i := 0; i < 5; i++ {
		snap := Snapshot{
			Title:   "Page",
			Content: json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"rev ` + string(rune('a'+i)) + `"}]}]`),
		}
		if _, err := svc.CommitSnapshot("pg-1", snap, "Avery", ""); err != nil {
			t.Fatalf("CommitSnapshot() error = %v", err)
		}
	}

	entries, err := svc.History("pg-1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected limit of 3 entries, got %d", len(entries))
	}
}

func TestHistoryForUnknownPageIsEmpty(t *testing.T) {
	svc := New(t.TempDir())

	entries, err := svc.History("pg-missing", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}

	if _, err := svc.SnapshotByHash("pg-missing", "abc1234"); err != ErrNoHistory {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestUnchangedSnapshotDoesNotGrowHistory(t *testing.T) {
	svc := New(t.TempDir())

	snap := Snapshot{
		Title:   "Page",
		Content: json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"Same"}]}]`),
	}
	if _, err := svc.CommitSnapshot("pg-1", snap, "Avery", ""); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if _, err := svc.CommitSnapshot("pg-1", snap, "Avery", ""); err != nil {
		t.Fatalf("CommitSnapshot() repeat error = %v", err)
	}

	entries, err := svc.History("pg-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single entry for identical snapshots, got %d", len(entries))
	}
}

func TestRemoveDeletesRepo(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	snap := Snapshot{Title: "Page", Content: json.RawMessage(`[]`)}
	if _, err := svc.CommitSnapshot("pg-1", snap, "Avery", ""); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if err := svc.Remove("pg-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "pg-1")); !os.IsNotExist(err) {
		t.Fatalf("expected repo directory gone, stat err = %v", err)
	}
}

func TestConcurrentCommitsToSamePage(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snap := Snapshot{
				Title:   "Page",
				Content: json.RawMessage(`[{"type":"paragraph","content":[{"type":"text","text":"writer ` + string(rune('0'+n)) + `"}]}]`),
			}
			if _, err := svc.CommitSnapshot("pg-1", snap, "Avery", ""); err != nil {
				t.Errorf("CommitSnapshot() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := svc.History("pg-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one entry")
	}
}
