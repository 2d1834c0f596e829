package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/autosave"
	"inkwell/api/internal/blocks"
	"inkwell/api/internal/config"
	"inkwell/api/internal/export"
	"inkwell/api/internal/history"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Session is the authenticated caller identity plus, right after sign-in or
// refresh, the freshly issued token pair.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error
	ListPages(ctx context.Context, ownerID string) ([]store.PageSummary, error)
	ListTrash(ctx context.Context, ownerID string) ([]store.PageSummary, error)
	GetPage(ctx context.Context, ownerID, pageID string) (store.Page, error)
	CreatePage(ctx context.Context, ownerID, pageID, title, icon string) (store.Page, error)
	UpdatePage(ctx context.Context, ownerID, pageID string, fields store.PageFields) (store.Page, error)
	ToggleFavorite(ctx context.Context, ownerID, pageID string) (bool, error)
	ToggleArchive(ctx context.Context, ownerID, pageID string) (bool, error)
	DeletePage(ctx context.Context, ownerID, pageID string) error
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, data session.Data, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.Data, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type aiAssistant interface {
	Summarize(ctx context.Context, title, content string) (string, error)
	Improve(ctx context.Context, content, selection string) (string, error)
	GenerateTags(ctx context.Context, title, content string) ([]string, error)
	GenerateContent(ctx context.Context, title, content, instruction string) (string, error)
}

type pageSearch interface {
	Search(ctx context.Context, q search.Query) []search.Result
	IndexPage(record search.PageRecord)
	DeletePage(id string)
}

type pageHistorian interface {
	CommitSnapshot(pageID string, snap history.Snapshot, author, message string) (history.CommitInfo, error)
	History(pageID string, limit int) ([]history.CommitInfo, error)
	SnapshotByHash(pageID, hash string) (history.Snapshot, error)
	Remove(pageID string) error
}

type coverStore interface {
	Upload(ctx context.Context, pageID, contentType string, body io.Reader, size int64) (string, error)
	RemoveAll(ctx context.Context, pageID string) error
}

type pageExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Deps bundles the service's collaborators. Search, History, Covers and
// Exporter are optional; a nil value disables the feature.
type Deps struct {
	Store    dataStore
	Sessions sessionStore
	Accounts *authpw.Service
	AI       aiAssistant
	Search   pageSearch
	History  pageHistorian
	Covers   coverStore
	Exporter pageExporter
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	accounts  *authpw.Service
	ai        aiAssistant
	search    pageSearch
	historian pageHistorian
	covers    coverStore
	exporter  pageExporter
	saves     *autosave.Controller
}

func NewService(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		accounts:  deps.Accounts,
		ai:        deps.AI,
		search:    deps.Search,
		historian: deps.History,
		covers:    deps.Covers,
		exporter:  deps.Exporter,
	}
	s.saves = autosave.New(cfg.AutosaveQuiet, s.saveDeferredContent, func(pageID string, err error) {
		log.Printf("autosave: deferred save for %s failed: %v", pageID, err)
	})
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Shutdown flushes any pending autosaves before the process exits.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.saves.Close(ctx)
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (store.User, error) {
	return s.accounts.SignUp(ctx, req)
}

// SignIn verifies credentials and issues a token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.createSession(ctx, user.ID, user.DisplayName)
}

func (s *Service) createSession(ctx context.Context, userID, userName string) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  userID,
		Name: userName,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refreshToken := util.NewToken()
	err = s.sessions.Save(ctx, auth.HashToken(refreshToken), session.Data{
		UserID:      userID,
		DisplayName: userName,
	}, time.Now().Add(s.cfg.RefreshTTL))
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       userID,
		UserName:     userName,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken resolves a bearer access token to a caller identity.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:    claims.Sub,
		UserName:  claims.Name,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	hash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, hash); err != nil {
		return Session{}, err
	}
	return s.createSession(ctx, data.UserID, data.DisplayName)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

// =============================================================================
// Pages
// =============================================================================

func (s *Service) ListPages(ctx context.Context, sess Session) ([]store.PageSummary, error) {
	return s.store.ListPages(ctx, sess.UserID)
}

func (s *Service) ListTrash(ctx context.Context, sess Session) ([]store.PageSummary, error) {
	return s.store.ListTrash(ctx, sess.UserID)
}

func (s *Service) GetPage(ctx context.Context, sess Session, pageID string) (store.Page, error) {
	return s.store.GetPage(ctx, sess.UserID, pageID)
}

func (s *Service) CreatePage(ctx context.Context, sess Session, title, icon string) (store.Page, error) {
	page, err := s.store.CreatePage(ctx, sess.UserID, util.NewID("pg"), title, icon)
	if err != nil {
		return store.Page{}, err
	}
	s.indexPage(page)
	s.commitSnapshot(page, sess.UserName, "Create page")
	return page, nil
}

// PageUpdateInput is the allow-listed partial update. Unknown request fields
// never make it in here; absent fields stay nil and are left untouched.
type PageUpdateInput struct {
	Title      *string         `json:"title"`
	Icon       *string         `json:"icon"`
	CoverImage *string         `json:"coverImage"`
	Content    json.RawMessage `json:"content"`
	Tags       *[]string       `json:"tags"`
	Summary    *string         `json:"summary"`
}

func (s *Service) UpdatePage(ctx context.Context, sess Session, pageID string, input PageUpdateInput) (store.Page, error) {
	fields := store.PageFields{
		Title:      input.Title,
		Icon:       input.Icon,
		CoverImage: input.CoverImage,
		Content:    input.Content,
		Tags:       input.Tags,
		Summary:    input.Summary,
	}
	if fields.Empty() {
		return store.Page{}, domainError(http.StatusBadRequest, "no recognized field to update")
	}

	page, err := s.store.UpdatePage(ctx, sess.UserID, pageID, fields)
	if err != nil {
		return store.Page{}, err
	}

	s.indexPage(page)
	if input.Content != nil {
		s.commitSnapshot(page, sess.UserName, "Update content")
	}
	return page, nil
}

// ToggleFavorite flips the favorite flag and refreshes the page's search
// record so hits report the new state.
func (s *Service) ToggleFavorite(ctx context.Context, sess Session, pageID string) (bool, error) {
	isFavorite, err := s.store.ToggleFavorite(ctx, sess.UserID, pageID)
	if err != nil {
		return false, err
	}
	if s.search != nil {
		if page, err := s.store.GetPage(ctx, sess.UserID, pageID); err == nil {
			s.indexPage(page)
		}
	}
	return isFavorite, nil
}

// ToggleArchive flips the archived flag. Archived pages leave the search
// index; restored ones rejoin it.
func (s *Service) ToggleArchive(ctx context.Context, sess Session, pageID string) (bool, error) {
	isArchived, err := s.store.ToggleArchive(ctx, sess.UserID, pageID)
	if err != nil {
		return false, err
	}
	if s.search != nil {
		if isArchived {
			s.search.DeletePage(pageID)
		} else if page, err := s.store.GetPage(ctx, sess.UserID, pageID); err == nil {
			s.indexPage(page)
		}
	}
	return isArchived, nil
}

func (s *Service) DeletePage(ctx context.Context, sess Session, pageID string) error {
	s.saves.Cancel(autosaveKey(sess.UserID, pageID))
	if err := s.store.DeletePage(ctx, sess.UserID, pageID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePage(pageID)
	}
	if s.historian != nil {
		if err := s.historian.Remove(pageID); err != nil {
			log.Printf("history: remove repo for %s: %v", pageID, err)
		}
	}
	if s.covers != nil {
		if err := s.covers.RemoveAll(ctx, pageID); err != nil {
			log.Printf("covers: remove objects for %s: %v", pageID, err)
		}
	}
	return nil
}

// SearchPages matches non-archived page titles, case-insensitively, capped
// at 20 results.
func (s *Service) SearchPages(ctx context.Context, sess Session, query string) []search.Result {
	if s.search == nil || strings.TrimSpace(query) == "" {
		return []search.Result{}
	}
	return s.search.Search(ctx, search.Query{OwnerID: sess.UserID, Text: query, Limit: 20})
}

// =============================================================================
// Content autosave
// =============================================================================

// AutosaveContent schedules a deferred content save. Ownership is checked up
// front so an unowned page id never arms a timer.
func (s *Service) AutosaveContent(ctx context.Context, sess Session, pageID string, content json.RawMessage) error {
	if len(content) == 0 {
		return domainError(http.StatusBadRequest, "content is required")
	}
	if _, err := s.store.GetPage(ctx, sess.UserID, pageID); err != nil {
		return err
	}
	s.saves.Notify(autosaveKey(sess.UserID, pageID), content)
	return nil
}

// FlushContent persists any pending autosave immediately, used on editor
// teardown so navigating away cannot lose the last edit.
func (s *Service) FlushContent(ctx context.Context, sess Session, pageID string) error {
	if _, err := s.store.GetPage(ctx, sess.UserID, pageID); err != nil {
		return err
	}
	return s.saves.Flush(ctx, autosaveKey(sess.UserID, pageID))
}

func (s *Service) saveDeferredContent(ctx context.Context, key string, content json.RawMessage) error {
	ownerID, pageID, ok := splitAutosaveKey(key)
	if !ok {
		return errors.New("malformed autosave key")
	}
	page, err := s.store.UpdatePage(ctx, ownerID, pageID, store.PageFields{Content: content})
	if err != nil {
		return err
	}
	s.commitSnapshot(page, "autosave", "Autosave")
	return nil
}

func autosaveKey(ownerID, pageID string) string {
	return ownerID + "/" + pageID
}

func splitAutosaveKey(key string) (ownerID, pageID string, ok bool) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// =============================================================================
// AI assist
// =============================================================================

// AssistInput carries one AI feature request. Content is the raw block
// payload as sent by the editor; plain text is extracted server-side.
type AssistInput struct {
	PageID    string          `json:"pageId"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Selection string          `json:"selection"`
	Prompt    string          `json:"prompt"`
}

// AssistResult is a generated outcome plus whether the side-effect write
// (summary, tags) landed. Cached is true for features with no persistence.
type AssistResult struct {
	Text   string
	Tags   []string
	Cached bool
}

// SummarizePage generates a summary and caches it on the page. A failed
// cache write still returns the summary, flagged as not cached.
func (s *Service) SummarizePage(ctx context.Context, sess Session, in AssistInput) (AssistResult, error) {
	page, text, err := s.assistTarget(ctx, sess, in)
	if err != nil {
		return AssistResult{}, err
	}

	summary, err := s.ai.Summarize(ctx, titleOr(in.Title, page.Title), text)
	if err != nil {
		return AssistResult{}, err
	}

	cached := true
	if _, err := s.store.UpdatePage(ctx, sess.UserID, in.PageID, store.PageFields{Summary: &summary}); err != nil {
		log.Printf("ai: cache summary for %s failed: %v", in.PageID, err)
		cached = false
	}
	return AssistResult{Text: summary, Cached: cached}, nil
}

// ImprovePage rewrites the selection (or the whole text). Nothing is
// persisted; the caller inserts the result explicitly.
func (s *Service) ImprovePage(ctx context.Context, sess Session, in AssistInput) (AssistResult, error) {
	_, text, err := s.assistTarget(ctx, sess, in)
	if err != nil {
		return AssistResult{}, err
	}
	improved, err := s.ai.Improve(ctx, text, in.Selection)
	if err != nil {
		return AssistResult{}, err
	}
	return AssistResult{Text: improved, Cached: true}, nil
}

// GenerateTagsForPage generates up to five tags and caches them on the page.
func (s *Service) GenerateTagsForPage(ctx context.Context, sess Session, in AssistInput) (AssistResult, error) {
	page, text, err := s.assistTarget(ctx, sess, in)
	if err != nil {
		return AssistResult{}, err
	}

	tags, err := s.ai.GenerateTags(ctx, titleOr(in.Title, page.Title), text)
	if err != nil {
		return AssistResult{}, err
	}

	cached := true
	if _, err := s.store.UpdatePage(ctx, sess.UserID, in.PageID, store.PageFields{Tags: &tags}); err != nil {
		log.Printf("ai: cache tags for %s failed: %v", in.PageID, err)
		cached = false
	}
	return AssistResult{Tags: tags, Cached: cached}, nil
}

// GenerateForPage writes free-form text from an instruction. Nothing is
// persisted; the caller inserts the result explicitly.
func (s *Service) GenerateForPage(ctx context.Context, sess Session, in AssistInput) (AssistResult, error) {
	page, text, err := s.assistTarget(ctx, sess, in)
	if err != nil {
		return AssistResult{}, err
	}
	generated, err := s.ai.GenerateContent(ctx, titleOr(in.Title, page.Title), text, in.Prompt)
	if err != nil {
		return AssistResult{}, err
	}
	return AssistResult{Text: generated, Cached: true}, nil
}

// assistTarget resolves the page (ownership check before any provider call)
// and extracts the plain text the feature operates on. Request content wins
// over the stored payload so unsaved edits are covered.
func (s *Service) assistTarget(ctx context.Context, sess Session, in AssistInput) (store.Page, string, error) {
	if strings.TrimSpace(in.PageID) == "" {
		return store.Page{}, "", domainError(http.StatusBadRequest, "pageId is required")
	}
	page, err := s.store.GetPage(ctx, sess.UserID, in.PageID)
	if err != nil {
		return store.Page{}, "", err
	}
	raw := in.Content
	if len(raw) == 0 {
		raw = page.Content
	}
	return page, extractPlainText(raw), nil
}

// extractPlainText accepts either a block sequence or a bare JSON string.
func extractPlainText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if bs := blocks.Parse(raw); bs != nil {
		return blocks.ExtractText(bs)
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return ""
}

func titleOr(requested, stored string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return stored
}

// =============================================================================
// Covers, export, history
// =============================================================================

// UploadCover stores a cover image and patches the page's coverImage with
// its public URL.
func (s *Service) UploadCover(ctx context.Context, sess Session, pageID, contentType string, body io.Reader, size int64) (store.Page, error) {
	if s.covers == nil {
		return store.Page{}, domainError(http.StatusServiceUnavailable, "cover storage is not configured")
	}
	if _, err := s.store.GetPage(ctx, sess.UserID, pageID); err != nil {
		return store.Page{}, err
	}

	url, err := s.covers.Upload(ctx, pageID, contentType, body, size)
	if err != nil {
		return store.Page{}, err
	}
	return s.store.UpdatePage(ctx, sess.UserID, pageID, store.PageFields{CoverImage: &url})
}

// ExportPage renders the page to a downloadable document.
func (s *Service) ExportPage(ctx context.Context, sess Session, pageID string, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "export is not configured")
	}
	return s.exporter.Export(ctx, export.Request{
		OwnerID: sess.UserID,
		PageID:  pageID,
		Format:  format,
	})
}

// PageHistory lists the page's content snapshots, newest first.
func (s *Service) PageHistory(ctx context.Context, sess Session, pageID string, limit int) ([]history.CommitInfo, error) {
	if s.historian == nil {
		return []history.CommitInfo{}, nil
	}
	if _, err := s.store.GetPage(ctx, sess.UserID, pageID); err != nil {
		return nil, err
	}
	return s.historian.History(pageID, limit)
}

// PageSnapshot loads the page state recorded by one history entry.
func (s *Service) PageSnapshot(ctx context.Context, sess Session, pageID, hash string) (history.Snapshot, error) {
	if s.historian == nil {
		return history.Snapshot{}, history.ErrNoHistory
	}
	if _, err := s.store.GetPage(ctx, sess.UserID, pageID); err != nil {
		return history.Snapshot{}, err
	}
	return s.historian.SnapshotByHash(pageID, hash)
}

func (s *Service) indexPage(page store.Page) {
	if s.search == nil || page.IsArchived {
		return
	}
	s.search.IndexPage(search.PageRecord{
		ID:         page.ID,
		OwnerID:    page.OwnerID,
		Title:      page.Title,
		Icon:       page.Icon,
		IsFavorite: page.IsFavorite,
		IsArchived: page.IsArchived,
		UpdatedAt:  page.UpdatedAt,
	})
}

func (s *Service) commitSnapshot(page store.Page, author, message string) {
	if s.historian == nil {
		return
	}
	_, err := s.historian.CommitSnapshot(page.ID, history.Snapshot{
		Title:   page.Title,
		Content: page.Content,
		Summary: page.Summary,
	}, author, message)
	if err != nil {
		log.Printf("history: commit snapshot for %s: %v", page.ID, err)
	}
}
