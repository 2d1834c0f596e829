package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"inkwell/api/internal/store"
)

func TestAutosaveSchedulesDeferredSave(t *testing.T) {
	var mu sync.Mutex
	var saved []store.PageFields
	fs := &fakeStore{
		getPageFn: pageOwnedByUser1(`[]`),
		updatePageFn: func(_ context.Context, ownerID, pageID string, fields store.PageFields) (store.Page, error) {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, fields)
			return store.Page{ID: pageID, OwnerID: ownerID, Content: fields.Content}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs, &stubCompleter{}), "*")

	body := []byte(`{"content":[{"type":"paragraph","content":[{"type":"text","text":"draft"}]}]}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodPut, "/api/pages/pg-1/content", body))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rr.Code, rr.Body.String())
	}

	// Nothing persists until the quiet interval elapses
	mu.Lock()
	if len(saved) != 0 {
		mu.Unlock()
		t.Fatal("save must be deferred")
	}
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(saved)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("deferred save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if saved[0].Content == nil {
		t.Fatal("expected content field in deferred save")
	}
	if saved[0].Title != nil || saved[0].Summary != nil {
		t.Fatalf("deferred save must only touch content, got %+v", saved[0])
	}
}

func TestAutosaveRejectsUnownedPage(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, &stubCompleter{}), "*")

	body := []byte(`{"content":[]}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodPut, "/api/pages/pg-1/content", body))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestFlushPersistsPendingSave(t *testing.T) {
	var mu sync.Mutex
	var saved []json.RawMessage
	fs := &fakeStore{
		getPageFn: pageOwnedByUser1(`[]`),
		updatePageFn: func(_ context.Context, ownerID, pageID string, fields store.PageFields) (store.Page, error) {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, fields.Content)
			return store.Page{ID: pageID, OwnerID: ownerID, Content: fields.Content}, nil
		},
	}
	// A quiet interval long enough that only the flush can persist
	svc := newTestServiceQuiet(fs, &stubCompleter{}, time.Hour)
	server := NewHTTPServer(svc, "*")

	body := []byte(`{"content":[{"type":"paragraph","content":[{"type":"text","text":"draft"}]}]}`)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodPut, "/api/pages/pg-1/content", body))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodPost, "/api/pages/pg-1/content/flush", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 {
		t.Fatalf("expected exactly one persisted save, got %d", len(saved))
	}
}

func TestFlushWithNothingPendingIsOK(t *testing.T) {
	fs := &fakeStore{getPageFn: pageOwnedByUser1(`[]`)}
	server := NewHTTPServer(newTestService(fs, &stubCompleter{}), "*")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, http.MethodPost, "/api/pages/pg-1/content/flush", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}
