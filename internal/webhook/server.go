package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/user/workbase/internal/export"
	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/telegram"
	"github.com/user/workbase/internal/types"
)

// Enqueue hands a normalized inbound event to the dispatch queue.
type Enqueue func(ev *types.InboundEvent) error

// Server exposes the webhook receiver, the chat-export import endpoint, and
// the shared-secret bot API.
type Server struct {
	store   *store.Store
	enqueue Enqueue
	botKey  string
	mux     *http.ServeMux
}

// NewServer creates a Server. botKey guards the /bot/* routes; when empty
// they respond 503.
func NewServer(st *store.Store, enqueue Enqueue, botKey string) *Server {
	s := &Server{
		store:   st,
		enqueue: enqueue,
		botKey:  botKey,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /telegram/webhook", s.handleTelegramWebhook)
	s.mux.HandleFunc("POST /api/import/whatsapp", s.handleImportWhatsApp)

	s.mux.HandleFunc("GET /bot/ping", s.requireBotKey(s.handlePing))
	s.mux.HandleFunc("GET /bot/tasks", s.requireBotKey(s.handleListTasks))
	s.mux.HandleFunc("POST /bot/tasks", s.requireBotKey(s.handleCreateTask))
	s.mux.HandleFunc("PATCH /bot/tasks/{id}", s.requireBotKey(s.handlePatchTask))
	s.mux.HandleFunc("POST /bot/notes", s.requireBotKey(s.handleCreateNote))
	s.mux.HandleFunc("GET /bot/kb", s.requireBotKey(s.handleSearchKB))
	s.mux.HandleFunc("POST /bot/kb", s.requireBotKey(s.handleCreateKB))
	s.mux.HandleFunc("GET /bot/stats", s.requireBotKey(s.handleStats))
	s.mux.HandleFunc("POST /bot/reminders", s.requireBotKey(s.handleCreateReminder))
	s.mux.HandleFunc("GET /bot/activity", s.requireBotKey(s.handleActivity))
	return s
}

// ServeHTTP tags each request with a correlation ID, then delegates to the
// mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	slog.Debug("http request", "request_id", reqID, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// requireBotKey gates a handler behind the X-Bot-Key shared secret.
func (s *Server) requireBotKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.botKey == "" {
			http.Error(w, `{"error":"bot API not configured"}`, http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("X-Bot-Key") != s.botKey {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleTelegramWebhook ingests one platform update. It always acknowledges
// with 200 so the platform never re-delivers; failures are logged and the
// update dropped.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("undecodable webhook update", "error", err)
		writeJSON(w, map[string]bool{"ok": true})
		return
	}
	if ev := telegram.Normalize(update); ev != nil {
		if err := s.enqueue(ev); err != nil {
			slog.Error("enqueue failed", "chat_id", ev.ChatID, "error", err)
		}
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// importRequest is the JSON body for POST /api/import/whatsapp.
type importRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (s *Server) handleImportWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	records := export.Parse(req.Text)
	entries, err := export.Entries(records, req.Category)
	if err != nil {
		if errors.Is(err, export.ErrNoMessages) {
			http.Error(w, `{"error":"no messages found in export"}`, http.StatusBadRequest)
			return
		}
		slog.Error("parse chat export failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	if _, err := s.store.ImportKBEntries(r.Context(), entries, "WhatsApp chat import"); err != nil {
		slog.Error("import kb entries failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]int{"imported_days": len(entries)})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "service": "workbase"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	var tasks []*types.Task
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		if !types.ValidStatus(status) {
			http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
			return
		}
		tasks, err = s.store.ListTasksByStatus(r.Context(), status, limit)
	} else {
		tasks, err = s.store.ListRecentTasks(r.Context(), limit)
	}
	if err != nil {
		slog.Error("list tasks failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}
	writeJSON(w, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task types.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if task.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if task.AssignedBy == "" {
		task.AssignedBy = "API"
	}
	id, err := s.store.CreateTask(r.Context(), &task)
	if err != nil {
		slog.Error("create task failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	var patch map[string]string
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if err := s.store.PatchTask(r.Context(), id, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("patch task failed", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var note types.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if note.Title == "" && note.Content == "" {
		http.Error(w, `{"error":"title or content is required"}`, http.StatusBadRequest)
		return
	}
	if note.Title == "" {
		note.Title = note.Content
	}
	id, err := s.store.CreateNote(r.Context(), &note)
	if err != nil {
		slog.Error("create note failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int64{"id": id})
}

// kbPreviewLen caps entry content in search responses; full entries are
// long chat-day transcripts.
const kbPreviewLen = 300

func (s *Server) handleSearchKB(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	entries, err := s.store.SearchKB(r.Context(), query, 10)
	if err != nil {
		slog.Error("search kb failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*types.KBEntry{}
	}
	for _, e := range entries {
		if runes := []rune(e.Content); len(runes) > kbPreviewLen {
			e.Content = string(runes[:kbPreviewLen])
		}
	}
	writeJSON(w, entries)
}

func (s *Server) handleCreateKB(w http.ResponseWriter, r *http.Request) {
	var entry types.KBEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if entry.Title == "" || entry.Content == "" {
		http.Error(w, `{"error":"title and content are required"}`, http.StatusBadRequest)
		return
	}
	id, err := s.store.CreateKBEntry(r.Context(), &entry)
	if err != nil {
		slog.Error("create kb entry failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), time.Now())
	if err != nil {
		slog.Error("stats failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// reminderRequest is the JSON body for POST /bot/reminders. remind_at is
// RFC 3339; omitted means the reminder is stored without a schedule.
type reminderRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ChatID      int64  `json:"chat_id"`
	RemindAt    string `json:"remind_at"`
	Repeat      string `json:"repeat"`
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	rem := &types.Reminder{
		Title:       req.Title,
		Description: req.Description,
		ChatID:      req.ChatID,
		RepeatType:  req.Repeat,
	}
	if req.RemindAt != "" {
		at, err := time.Parse(time.RFC3339, req.RemindAt)
		if err != nil {
			http.Error(w, `{"error":"remind_at must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		rem.RemindAt = &at
	}
	id, err := s.store.CreateReminder(r.Context(), rem)
	if err != nil {
		slog.Error("create reminder failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	activity, err := s.store.RecentActivity(r.Context(), limit)
	if err != nil {
		slog.Error("recent activity failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if activity == nil {
		activity = []*types.Activity{}
	}
	writeJSON(w, activity)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
