package server

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"hooksink/internal/archive"
	"hooksink/internal/config"
	"hooksink/internal/metrics"
	"hooksink/internal/model"
	"hooksink/internal/pool"
	"hooksink/internal/store"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	store   store.Store
	archive *archive.Manager // nil 이면 archive 비활성
}

func NewHandler(cfg config.Config, m *metrics.Metrics, st store.Store, arc *archive.Manager) *Handler {
	return &Handler{
		cfg:     cfg,
		metrics: m,
		store:   st,
		archive: arc,
	}
}

// 레코드에 보관하는 헤더 allow-list.
// 전체 헤더 덤프는 payload 중복과 민감정보 유입 위험이 있어
// proxy 체인 추적에 필요한 것만 고정 목록으로 남긴다.
var keepHeaders = []string{
	"content-type",
	"user-agent",
	"x-forwarded-for",
	"x-real-ip",
	"x-amzn-trace-id",
	"cloudfront-viewer-address",
	"cloudfront-viewer-country",
}

// HandleWebhook
//
// 모든 수집 요청을 처리하는 엔드포인트 (POST /api/webhook).
//
// 공통 동작:
//  1. 토큰 검사 (통과 전에는 store 에 어떤 변화도 없다)
//  2. 요청 body 를 MAX_BODY_BYTES 에서 잘라 읽기 (BodyPool 재사용)
//  3. EventRecord 정규화 (id, 수신시각, IP, content-type, 헤더, body)
//  4. store.Record — backend 에러는 그대로 502 로 응답
//  5. archive 활성 시 non-blocking enqueue (best-effort)
//
// 운영 상 의미:
//   - 이 함수는 수신 서버의 가장 뜨거운 경로(hot path)이다.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)

	// 허용 메서드 검사
	if r.Method != http.MethodPost && r.Method != http.MethodOptions {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// OPTIONS 요청은 CORS preflight 로 가정 → 즉시 204
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// --------------------------------------------------------------------
	// 토큰 검사. 실패 시 store 를 건드리기 전에 401 로 끝낸다.
	// --------------------------------------------------------------------
	if !h.authorized(r) {
		atomic.AddInt64(&h.metrics.HTTPRequestsUnauthorizedTotal, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"status": "error",
			"error":  "invalid webhook token",
		})
		return
	}

	// --------------------------------------------------------------------
	// 요청 body 읽기: cap+1 까지만 읽어 초과 여부를 판정한다.
	// 초과분은 거절하지 않고 cap 에서 잘라 보관한다 (degrade 경로).
	// --------------------------------------------------------------------
	buf := pool.BodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBody(buf, h.cfg.MaxBodyBytes*2)
	defer r.Body.Close()

	if _, err := io.Copy(buf, io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"error":  "failed to read body",
		})
		return
	}

	raw := buf.Bytes()
	truncated := false
	if int64(len(raw)) > h.cfg.MaxBodyBytes {
		raw = raw[:h.cfg.MaxBodyBytes]
		truncated = true
		atomic.AddInt64(&h.metrics.BodiesTruncatedTotal, 1)
	}

	// --------------------------------------------------------------------
	// EventRecord 정규화
	// --------------------------------------------------------------------
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))

	ev := &model.Event{
		ID:          uuid.NewString(),
		ReceivedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		IP:          clientIP(r),
		ContentType: contentType,
		Headers:     importantHeaders(r),
		Truncated:   truncated,
		Bytes:       len(raw),
		BodyPretty:  prettyBody(raw, contentType),
	}
	if ev.ContentType == "" {
		ev.ContentType = "unknown"
	}

	// --------------------------------------------------------------------
	// 이벤트 로그에 기록. backend 에러는 숨기지 않고 그대로 응답에 반영.
	// --------------------------------------------------------------------
	if err := h.store.Record(r.Context(), ev); err != nil {
		atomic.AddInt64(&h.metrics.StoreRecordErrorsTotal, 1)
		log.Error().Err(err).Str("backend", h.store.Kind()).Msg("event record failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error",
			"error":  "event store unavailable",
		})
		return
	}

	atomic.AddInt64(&h.metrics.HTTPRequestsAcceptedTotal, 1)

	// archive 는 best-effort: 채널 full 이면 drop (카운터로만 추적)
	if h.archive != nil {
		h.archive.Enqueue(ev)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"id":     ev.ID,
	})
}

// HandleEvents
//
// 최근 이벤트 조회 (GET /api/events?limit=30).
// limit 은 store 쪽에서 [1,100] 으로 clamp 되므로 여기서는 파싱만 한다.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	events, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		atomic.AddInt64(&h.metrics.StoreReadErrorsTotal, 1)
		log.Error().Err(err).Str("backend", h.store.Kind()).Msg("event read failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "error",
			"error":  "event store unavailable",
		})
		return
	}

	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleInfo
//
// 상태/설정 조회 (GET /api/info). side effect 없는 informational read.
func (h *Handler) HandleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"storage":        h.store.Kind(),
		"max_events":     h.store.Capacity(),
		"token_required": h.cfg.WebhookToken != "",
		"archive":        h.cfg.ArchiveEnabled(),
	})
}

// HandleMetrics
//
// 서버 상태 카운터 출력. Prometheus pull 방식으로도 쉽게 전환 가능.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

// authorized 는 WEBHOOK_TOKEN 설정 시 헤더(X-Webhook-Token) 또는
// query param(token) 으로 제시된 토큰을 상수시간 비교한다.
// 토큰 미설정이면 검사 자체가 비활성.
func (h *Handler) authorized(r *http.Request) bool {
	if h.cfg.WebhookToken == "" {
		return true
	}

	provided := strings.TrimSpace(r.Header.Get("X-Webhook-Token"))
	if provided == "" {
		provided = strings.TrimSpace(r.URL.Query().Get("token"))
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.cfg.WebhookToken)) == 1
}

// importantHeaders 는 allow-list 에 있는 헤더만 수집한다.
// 없는 헤더는 생략 — 결과 map 이 비어있을 수 있다.
func importantHeaders(r *http.Request) map[string]string {
	out := map[string]string{}
	for _, k := range keepHeaders {
		if v := r.Header.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// prettyBody 는 저장용 body 텍스트를 만든다.
//   - JSON object/array 로 파싱되면 2-space indent 로 pretty-print
//   - 그 외에는 원문 텍스트 (invalid UTF-8 은 U+FFFD 로 치환)
//
// 구조화 타입을 끝까지 보존하지 않고 문자열 하나로 평탄화한다.
// store 의 목적은 관측(최근 뭐가 왔나 보기)이지 replay 가 아니다.
func prettyBody(raw []byte, contentType string) string {
	text := strings.ToValidUTF8(string(raw), "�")

	trimmed := strings.TrimSpace(text)
	looksJSON := strings.Contains(contentType, "application/json") ||
		strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
	if !looksJSON {
		return text
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}

	switch parsed.(type) {
	case map[string]any, []any:
		if out, err := json.MarshalIndent(parsed, "", "  "); err == nil {
			return string(out)
		}
	}
	// top-level scalar (숫자, 문자열 등)는 원문 그대로
	return text
}

// writeJSON 은 응답 1건을 JSON 으로 직렬화해 내보낸다.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
