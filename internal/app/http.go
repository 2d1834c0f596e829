package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/api/internal/ai"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/covers"
	"inkwell/api/internal/export"
	"inkwell/api/internal/history"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
)

const maxCoverUploadBytes = 8 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Refresh token invalid")
			return
		}
		writeData(w, http.StatusOK, sessionPayload(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeMessage(w, http.StatusOK, "Signed out")
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.URL.Path == "/api/pages" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListPages(r.Context(), sess)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Could not list pages")
				return
			}
			writeData(w, http.StatusOK, items)
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
				Icon  string `json:"icon"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			page, err := s.service.CreatePage(r.Context(), sess, body.Title, body.Icon)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusCreated, page)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/pages/search" {
		results := s.service.SearchPages(r.Context(), sess, r.URL.Query().Get("q"))
		writeData(w, http.StatusOK, results)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/pages/trash" {
		items, err := s.service.ListTrash(r.Context(), sess)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not list trash")
			return
		}
		writeData(w, http.StatusOK, items)
		return
	}

	if route, ok := strings.CutPrefix(r.URL.Path, "/api/ai/"); ok && r.Method == http.MethodPost {
		s.handleAssist(w, r, sess, route)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "pages" {
		s.handlePage(w, r, sess, parts[2])
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "pages" {
		s.handlePageSubresource(w, r, sess, parts[2], parts[3])
		return
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "pages" {
		switch {
		case parts[3] == "content" && parts[4] == "flush":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			if err := s.service.FlushContent(r.Context(), sess, parts[2]); err != nil {
				writeMappedError(w, err)
				return
			}
			writeMessage(w, http.StatusOK, "Saved")
		case parts[3] == "history":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			snap, err := s.service.PageSnapshot(r.Context(), sess, parts[2], parts[4])
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusOK, snap)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

func (s *HTTPServer) handlePage(w http.ResponseWriter, r *http.Request, sess Session, pageID string) {
	switch r.Method {
	case http.MethodGet:
		page, err := s.service.GetPage(r.Context(), sess, pageID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, page)
	case http.MethodPatch:
		var input PageUpdateInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		page, err := s.service.UpdatePage(r.Context(), sess, pageID, input)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, page)
	case http.MethodDelete:
		if err := s.service.DeletePage(r.Context(), sess, pageID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Page deleted")
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *HTTPServer) handlePageSubresource(w http.ResponseWriter, r *http.Request, sess Session, pageID, sub string) {
	switch sub {
	case "favorite":
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		isFavorite, err := s.service.ToggleFavorite(r.Context(), sess, pageID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"isFavorite": isFavorite})

	case "archive":
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		isArchived, err := s.service.ToggleArchive(r.Context(), sess, pageID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"isArchived": isArchived})

	case "content":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var body struct {
			Content json.RawMessage `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.service.AutosaveContent(r.Context(), sess, pageID, body.Content); err != nil {
			writeMappedError(w, err)
			return
		}
		writeMessage(w, http.StatusAccepted, "Save scheduled")

	case "cover":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.handleCoverUpload(w, r, sess, pageID)

	case "export":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var body struct {
			Format string `json:"format"`
		}
		_ = decodeBody(r, &body)
		result, err := s.service.ExportPage(r.Context(), sess, pageID, export.Format(body.Format))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	case "history":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			limit = parsed
		}
		entries, err := s.service.PageHistory(r.Context(), sess, pageID, limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, entries)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleAssist(w http.ResponseWriter, r *http.Request, sess Session, feature string) {
	var input AssistInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result AssistResult
	var err error
	switch feature {
	case "summarize":
		result, err = s.service.SummarizePage(r.Context(), sess, input)
	case "improve":
		result, err = s.service.ImprovePage(r.Context(), sess, input)
	case "tags":
		result, err = s.service.GenerateTagsForPage(r.Context(), sess, input)
	case "generate":
		result, err = s.service.GenerateForPage(r.Context(), sess, input)
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}

	var data map[string]any
	if result.Tags != nil {
		data = map[string]any{"result": result.Tags}
	} else {
		data = map[string]any{"result": result.Text}
	}
	if !result.Cached {
		writeDataMessage(w, http.StatusOK, data, "Result generated but not cached on the page")
		return
	}
	writeData(w, http.StatusOK, data)
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeData(w, http.StatusCreated, map[string]any{
		"userId":      user.ID,
		"displayName": user.DisplayName,
		"email":       user.Email,
	})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "Sign in failed")
		return
	}
	writeData(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleCoverUpload(w http.ResponseWriter, r *http.Request, sess Session, pageID string) {
	if err := r.ParseMultipartForm(maxCoverUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	page, err := s.service.UploadCover(r.Context(), sess, pageID, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"coverImage": page.CoverImage})
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"accessToken":  sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"expiresAt":    sess.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": true, "message": message})
}

func writeDataMessage(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, map[string]any{"success": true, "data": data, "message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, message := mapError(err)
	writeError(w, status, message)
}

func mapError(err error) (int, string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Message
	}
	var validationErr *ai.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}
	switch {
	case errors.Is(err, sql.ErrNoRows), store.IsNotFound(err), errors.Is(err, history.ErrNoHistory):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ai.ErrRateLimited):
		return http.StatusTooManyRequests, "AI provider is rate limiting requests, try again shortly"
	case errors.Is(err, ai.ErrNoUsableTags):
		return http.StatusInternalServerError, "AI could not generate usable tags"
	case errors.Is(err, ai.ErrEmptyCompletion):
		return http.StatusInternalServerError, "AI returned an empty result"
	case errors.Is(err, covers.ErrUnsupportedImage), errors.Is(err, covers.ErrTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
