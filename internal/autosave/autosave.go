// Package autosave coalesces rapid content edits into a single persistence
// call after a quiet period, one pending timer per page.
package autosave

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// SaveFunc persists the given content for a page.
type SaveFunc func(ctx context.Context, pageID string, content json.RawMessage) error

// ErrorFunc is notified when a deferred save fails. There is no automatic
// retry; the next edit re-arms the timer and tries again.
type ErrorFunc func(pageID string, err error)

type pendingSave struct {
	timer  *time.Timer
	latest json.RawMessage
}

// Controller debounces saves per page id. Every Notify resets the page's
// timer to the quiet interval; when the timer fires uninterrupted the save
// runs with the latest content recorded at fire time, not a snapshot from
// when the timer was armed.
type Controller struct {
	quiet   time.Duration
	save    SaveFunc
	onError ErrorFunc

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

func New(quiet time.Duration, save SaveFunc, onError ErrorFunc) *Controller {
	return &Controller{
		quiet:   quiet,
		save:    save,
		onError: onError,
		pending: make(map[string]*pendingSave),
	}
}

// Notify records content as the latest state for the page and re-arms its
// timer. Overlapping fires are not serialized; the store's last-write-wins
// semantics resolve the race.
func (c *Controller) Notify(pageID string, content json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if p, ok := c.pending[pageID]; ok {
		p.latest = content
		p.timer.Reset(c.quiet)
		return
	}
	p := &pendingSave{latest: content}
	p.timer = time.AfterFunc(c.quiet, func() { c.fire(pageID) })
	c.pending[pageID] = p
}

func (c *Controller) fire(pageID string) {
	c.mu.Lock()
	p, ok := c.pending[pageID]
	if !ok {
		c.mu.Unlock()
		return
	}
	content := p.latest
	delete(c.pending, pageID)
	c.mu.Unlock()

	if err := c.save(context.Background(), pageID, content); err != nil && c.onError != nil {
		c.onError(pageID, err)
	}
}

// Pending reports whether a save is armed for the page.
func (c *Controller) Pending(pageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[pageID]
	return ok
}

// Cancel drops any armed save for the page without persisting it.
func (c *Controller) Cancel(pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[pageID]; ok {
		p.timer.Stop()
		delete(c.pending, pageID)
	}
}

// Flush persists any armed save for the page immediately. Used on editor
// teardown so that navigating away cannot lose the last edit.
func (c *Controller) Flush(ctx context.Context, pageID string) error {
	c.mu.Lock()
	p, ok := c.pending[pageID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	p.timer.Stop()
	content := p.latest
	delete(c.pending, pageID)
	c.mu.Unlock()

	return c.save(ctx, pageID, content)
}

// Close flushes every armed save and rejects further notifications.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	remaining := make(map[string]json.RawMessage, len(c.pending))
	for id, p := range c.pending {
		p.timer.Stop()
		remaining[id] = p.latest
	}
	c.pending = make(map[string]*pendingSave)
	c.mu.Unlock()

	var firstErr error
	for id, content := range remaining {
		if err := c.save(ctx, id, content); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
