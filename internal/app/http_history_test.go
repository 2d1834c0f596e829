package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/history"
)

type fakeHistorian struct {
	commitFn   func(pageID string, snap history.Snapshot, author, message string) (history.CommitInfo, error)
	historyFn  func(pageID string, limit int) ([]history.CommitInfo, error)
	snapshotFn func(pageID, hash string) (history.Snapshot, error)
	removeFn   func(pageID string) error
}

func (f *fakeHistorian) CommitSnapshot(pageID string, snap history.Snapshot, author, message string) (history.CommitInfo, error) {
	if f.commitFn != nil {
		return f.commitFn(pageID, snap, author, message)
	}
	return history.CommitInfo{}, nil
}

func (f *fakeHistorian) History(pageID string, limit int) ([]history.CommitInfo, error) {
	if f.historyFn != nil {
		return f.historyFn(pageID, limit)
	}
	return []history.CommitInfo{}, nil
}

func (f *fakeHistorian) SnapshotByHash(pageID, hash string) (history.Snapshot, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(pageID, hash)
	}
	return history.Snapshot{}, history.ErrNoHistory
}

func (f *fakeHistorian) Remove(pageID string) error {
	if f.removeFn != nil {
		return f.removeFn(pageID)
	}
	return nil
}

func newTestServiceWithHistory(fs *fakeStore, historian pageHistorian) *Service {
	cfg := config.Config{
		TokenSecret:   "test-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		AutosaveQuiet: 20 * time.Millisecond,
	}
	return NewService(cfg, Deps{
		Store:    fs,
		Sessions: newFakeSessions(),
		Accounts: authpw.NewService(fs),
		AI:       ai.NewService(&stubCompleter{}),
		History:  historian,
	})
}

func TestPageHistoryList(t *testing.T) {
	fs := &fakeStore{getPageFn: pageOwnedByUser1(`[]`)}
	historian := &fakeHistorian{
		historyFn: func(pageID string, limit int) ([]history.CommitInfo, error) {
			if pageID != "pg-1" {
				t.Fatalf("unexpected page id %q", pageID)
			}
			if limit != 50 {
				t.Fatalf("expected default limit 50, got %d", limit)
			}
			return []history.CommitInfo{
				{Hash: "abc1234", Message: "Update content", Author: "Avery"},
				{Hash: "def5678", Message: "Create page", Author: "Avery"},
			}, nil
		},
	}
	server := NewHTTPServer(newTestServiceWithHistory(fs, historian), "*")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodGet, "/api/pages/pg-1/history", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	entries, ok := payload["data"].([]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("expected two history entries, got %v", payload["data"])
	}
	first, _ := entries[0].(map[string]any)
	if first["hash"] != "abc1234" {
		t.Fatalf("unexpected first entry: %v", first)
	}
}

func TestPageSnapshotByHash(t *testing.T) {
	fs := &fakeStore{getPageFn: pageOwnedByUser1(`[]`)}
	historian := &fakeHistorian{
		snapshotFn: func(pageID, hash string) (history.Snapshot, error) {
			if hash != "abc1234" {
				t.Fatalf("unexpected hash %q", hash)
			}
			return history.Snapshot{
				Title:   "Older title",
				Content: json.RawMessage(`[{"type":"paragraph"}]`),
			}, nil
		},
	}
	server := NewHTTPServer(newTestServiceWithHistory(fs, historian), "*")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodGet, "/api/pages/pg-1/history/abc1234", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeEnvelope(t, rr)
	data, _ := payload["data"].(map[string]any)
	if data["title"] != "Older title" {
		t.Fatalf("unexpected snapshot payload: %v", data)
	}
}

func TestPageSnapshotWithoutHistoryIs404(t *testing.T) {
	fs := &fakeStore{getPageFn: pageOwnedByUser1(`[]`)}
	server := NewHTTPServer(newTestServiceWithHistory(fs, &fakeHistorian{}), "*")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodGet, "/api/pages/pg-1/history/unknown", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}
