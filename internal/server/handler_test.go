package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hooksink/internal/config"
	"hooksink/internal/metrics"
	"hooksink/internal/model"
	"hooksink/internal/store"

	json "github.com/goccy/go-json"
)

func newTestHandler(cfg config.Config) (*Handler, *store.MemoryRing) {
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = 50
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 262144
	}
	st := store.NewMemoryRing(cfg.MaxEvents)
	return NewHandler(cfg, metrics.New(), st, nil), st
}

func postWebhook(h *Handler, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.HandleWebhook(w, req)
	return w
}

func TestWebhook_RecordsEvent(t *testing.T) {
	h, st := newTestHandler(config.Config{})

	w := postWebhook(h, `{"action":"push"}`, func(r *http.Request) {
		r.Header.Set("Content-Type", "Application/JSON")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if resp.Status != "ok" || resp.ID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	events, _ := st.Recent(context.Background(), 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	ev := events[0]
	if ev.ID != resp.ID {
		t.Fatalf("response id %q != stored id %q", resp.ID, ev.ID)
	}
	if ev.ContentType != "application/json" {
		t.Fatalf("content type not normalized: %q", ev.ContentType)
	}
	if ev.Truncated || ev.Bytes != len(`{"action":"push"}`) {
		t.Fatalf("unexpected body accounting: truncated=%v bytes=%d", ev.Truncated, ev.Bytes)
	}
	if ev.ReceivedAt == "" || ev.IP == "" {
		t.Fatalf("missing ingestion fields: %+v", ev)
	}
}

func TestWebhook_MethodGating(t *testing.T) {
	h, _ := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/webhook", nil)
	w := httptest.NewRecorder()
	h.HandleWebhook(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: expected 405, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/webhook", nil)
	w = httptest.NewRecorder()
	h.HandleWebhook(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS: expected 204, got %d", w.Code)
	}
}

func TestWebhook_TokenRequired(t *testing.T) {
	h, st := newTestHandler(config.Config{WebhookToken: "secret"})

	// 토큰 없음 → 401, store 는 변하지 않아야 한다
	w := postWebhook(h, `{}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if events, _ := st.Recent(context.Background(), 10); len(events) != 0 {
		t.Fatalf("store mutated by rejected request: %d events", len(events))
	}

	// 틀린 토큰 → 401
	w = postWebhook(h, `{}`, func(r *http.Request) {
		r.Header.Set("X-Webhook-Token", "nope")
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	// 헤더 토큰 → 200
	w = postWebhook(h, `{}`, func(r *http.Request) {
		r.Header.Set("X-Webhook-Token", "secret")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with header token, got %d", w.Code)
	}

	// query param 토큰 → 200
	req := httptest.NewRequest(http.MethodPost, "/api/webhook?token=secret", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", rec.Code)
	}
}

func TestWebhook_TruncationBoundary(t *testing.T) {
	h, st := newTestHandler(config.Config{MaxBodyBytes: 8})

	// 정확히 cap — 잘리지 않는다
	postWebhook(h, "12345678", nil)
	events, _ := st.Recent(context.Background(), 1)
	if events[0].Truncated || events[0].Bytes != 8 {
		t.Fatalf("body at cap must not truncate: truncated=%v bytes=%d", events[0].Truncated, events[0].Bytes)
	}

	// cap+1 — 정확히 cap 에서 잘린다
	postWebhook(h, "123456789", nil)
	events, _ = st.Recent(context.Background(), 1)
	if !events[0].Truncated || events[0].Bytes != 8 {
		t.Fatalf("body over cap must truncate at cap: truncated=%v bytes=%d", events[0].Truncated, events[0].Bytes)
	}
	if events[0].BodyPretty != "12345678" {
		t.Fatalf("expected clipped body, got %q", events[0].BodyPretty)
	}
}

func TestWebhook_ContentTypeFallback(t *testing.T) {
	h, st := newTestHandler(config.Config{})

	postWebhook(h, "plain text", nil)
	events, _ := st.Recent(context.Background(), 1)
	if events[0].ContentType != "unknown" {
		t.Fatalf("expected unknown content type, got %q", events[0].ContentType)
	}
}

func TestWebhook_HeaderAllowList(t *testing.T) {
	h, st := newTestHandler(config.Config{})

	postWebhook(h, "x", func(r *http.Request) {
		r.Header.Set("User-Agent", "GitHub-Hookshot/1234")
		r.Header.Set("X-Forwarded-For", "203.0.113.5")
		r.Header.Set("X-Secret-Internal", "do-not-store")
		r.Header.Set("Authorization", "Bearer topsecret")
	})

	events, _ := st.Recent(context.Background(), 1)
	hd := events[0].Headers
	if hd["user-agent"] != "GitHub-Hookshot/1234" {
		t.Fatalf("allow-listed header missing: %v", hd)
	}
	if _, ok := hd["x-secret-internal"]; ok {
		t.Fatal("non-listed header leaked into record")
	}
	if _, ok := hd["authorization"]; ok {
		t.Fatal("authorization header must never be stored")
	}
}

func TestWebhook_PrettyBody(t *testing.T) {
	h, st := newTestHandler(config.Config{})

	// JSON object → pretty-print
	postWebhook(h, `{"b":1,"a":true}`, func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	})
	events, _ := st.Recent(context.Background(), 1)
	pretty := events[0].BodyPretty
	if !strings.HasPrefix(pretty, "{\n") || !strings.Contains(pretty, "  \"a\"") {
		t.Fatalf("expected indented JSON, got %q", pretty)
	}

	// content-type 없이도 body 가 JSON array 로 보이면 pretty-print
	postWebhook(h, ` [1,2] `, nil)
	events, _ = st.Recent(context.Background(), 1)
	if !strings.Contains(events[0].BodyPretty, "\n") {
		t.Fatalf("expected indented array, got %q", events[0].BodyPretty)
	}

	// JSON 이라고 주장하지만 깨진 body → 원문 유지
	postWebhook(h, `{broken`, func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	})
	events, _ = st.Recent(context.Background(), 1)
	if events[0].BodyPretty != `{broken` {
		t.Fatalf("malformed JSON must stay raw, got %q", events[0].BodyPretty)
	}

	// top-level scalar 는 원문 그대로
	postWebhook(h, `42`, func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	})
	events, _ = st.Recent(context.Background(), 1)
	if events[0].BodyPretty != "42" {
		t.Fatalf("scalar body must stay raw, got %q", events[0].BodyPretty)
	}
}

func TestEvents_Endpoint(t *testing.T) {
	h, _ := newTestHandler(config.Config{MaxEvents: 3})

	for i := 1; i <= 4; i++ {
		postWebhook(h, fmt.Sprintf(`{"n":%d}`, i), nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=10", nil)
	w := httptest.NewRecorder()
	h.HandleEvents(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 3 {
		t.Fatalf("expected 3 events (capacity), got %d", len(resp.Events))
	}
	// 최신순: 마지막으로 보낸 {"n":4} 가 첫 번째
	if !strings.Contains(resp.Events[0].BodyPretty, "4") {
		t.Fatalf("expected newest first, got %q", resp.Events[0].BodyPretty)
	}
}

func TestEvents_EmptyListNotNull(t *testing.T) {
	h, _ := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	h.HandleEvents(w, req)

	if !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Fatalf("empty log must serialize as [], got %s", w.Body.String())
	}
}

func TestInfo_Endpoint(t *testing.T) {
	h, _ := newTestHandler(config.Config{MaxEvents: 7, WebhookToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	w := httptest.NewRecorder()
	h.HandleInfo(w, req)

	var resp struct {
		Status        string `json:"status"`
		Storage       string `json:"storage"`
		MaxEvents     int    `json:"max_events"`
		TokenRequired bool   `json:"token_required"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Storage != "memory" || resp.MaxEvents != 7 || !resp.TokenRequired {
		t.Fatalf("unexpected info: %+v", resp)
	}
}

func TestMetrics_Endpoint(t *testing.T) {
	h, _ := newTestHandler(config.Config{})

	postWebhook(h, "x", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.HandleMetrics(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "http_requests_total=1") {
		t.Fatalf("metrics dump missing counters: %s", body)
	}
	if !strings.Contains(body, "http_requests_accepted_total=1") {
		t.Fatalf("accepted counter missing: %s", body)
	}
}
