package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/workbase/internal/store"
	"github.com/user/workbase/internal/types"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *[]*types.InboundEvent) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var events []*types.InboundEvent
	srv := NewServer(st, func(ev *types.InboundEvent) error {
		events = append(events, ev)
		return nil
	}, "secret")
	return srv, st, &events
}

func doJSON(t *testing.T, srv *Server, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("X-Bot-Key", key)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestTelegramWebhookEnqueues(t *testing.T) {
	srv, _, events := newTestServer(t)
	update := map[string]any{
		"update_id": 1,
		"message": map[string]any{
			"message_id": 10,
			"chat":       map[string]any{"id": 42, "type": "private"},
			"from":       map[string]any{"id": 7, "username": "alice"},
			"text":       "/tasks",
		},
	}
	rec := doJSON(t, srv, "POST", "/telegram/webhook", "", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(*events) != 1 {
		t.Fatalf("enqueued = %d", len(*events))
	}
	ev := (*events)[0]
	if ev.ChatID != 42 || ev.Text != "/tasks" || ev.Sender != "alice" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTelegramWebhookAlwaysAcknowledges(t *testing.T) {
	srv, _, events := newTestServer(t)
	req := httptest.NewRequest("POST", "/telegram/webhook", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(*events) != 0 {
		t.Errorf("enqueued = %d", len(*events))
	}
}

func TestImportWhatsApp(t *testing.T) {
	srv, st, _ := newTestServer(t)
	text := "01/02/2024, 10:00 - Alice: Shipping v2 on Friday\n01/02/2024, 10:05 - Bob: Noted\n02/02/2024, 09:00 - Alice: Retro at noon"
	rec := doJSON(t, srv, "POST", "/api/import/whatsapp", "", map[string]string{"text": text, "category": "Imported"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["imported_days"] != 2 {
		t.Errorf("imported_days = %d", resp["imported_days"])
	}

	entries, err := st.SearchKB(context.Background(), "Shipping", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Category != "Imported" {
		t.Errorf("category = %q", entries[0].Category)
	}
}

func TestImportWhatsAppNoMessages(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, "POST", "/api/import/whatsapp", "", map[string]string{"text": "just some prose, no export format"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBotKeyRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "GET", "/bot/ping", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "GET", "/bot/ping", "wrong", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "GET", "/bot/ping", "secret", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("right key: status = %d", rec.Code)
	}
}

func TestBotKeyUnconfigured(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	srv := NewServer(st, func(*types.InboundEvent) error { return nil }, "")

	rec := doJSON(t, srv, "GET", "/bot/ping", "anything", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBotTaskLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/bot/tasks", "secret", map[string]string{"title": "Ship release", "priority": "high"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := created["id"]
	if id == 0 {
		t.Fatal("no id returned")
	}

	rec = doJSON(t, srv, "GET", "/bot/tasks?status=todo", "secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var tasks []*types.Task
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Ship release" {
		t.Fatalf("tasks = %+v", tasks)
	}

	rec = doJSON(t, srv, "PATCH", fmt.Sprintf("/bot/tasks/%d", id), "secret", map[string]string{"status": "done"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, "GET", "/bot/tasks?status=done", "secret", nil)
	if err := json.NewDecoder(rec.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("done tasks = %d", len(tasks))
	}
}

func TestBotPatchMissingTask(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, "PATCH", "/bot/tasks/999", "secret", map[string]string{"status": "done"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBotTaskValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/bot/tasks", "secret", map[string]string{"description": "no title"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "GET", "/bot/tasks?status=bogus", "secret", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: status = %d", rec.Code)
	}
}

func TestBotNotesAndKB(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/bot/notes", "secret", map[string]string{"title": "Call log", "content": "client called"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("note: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "POST", "/bot/kb", "secret", map[string]string{"title": "Deploy steps", "content": "run the pipeline"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("kb: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, "GET", "/bot/kb?q=Deploy", "secret", nil)
	var entries []*types.KBEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Category != types.DefaultKBCategory {
		t.Errorf("entries = %+v", entries)
	}
}

func TestBotStats(t *testing.T) {
	srv, _, _ := newTestServer(t)
	doJSON(t, srv, "POST", "/bot/tasks", "secret", map[string]string{"title": "One"})

	rec := doJSON(t, srv, "GET", "/bot/stats", "secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats types.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total = %d", stats.Total)
	}
}

func TestBotCreateReminder(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, "POST", "/bot/reminders", "secret", map[string]any{
		"title":     "Send invoice",
		"chat_id":   42,
		"remind_at": "2026-09-01T15:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, "POST", "/bot/reminders", "secret", map[string]string{
		"title":     "Bad time",
		"remind_at": "tomorrow-ish",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad time: status = %d", rec.Code)
	}
}
