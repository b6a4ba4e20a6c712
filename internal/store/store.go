// internal/store/store.go
package store

import (
	"context"

	"hooksink/internal/config"
	"hooksink/internal/kv"
	"hooksink/internal/metrics"
	"hooksink/internal/model"
)

// ------------------------------------------------------------
// EventStore
//
// 이벤트 로그(최신순, 용량 제한)의 유일한 소유자.
// backend 는 두 가지:
//   - memory: in-process ring (기본)
//   - redis:  Upstash/Vercel KV REST list (endpoint + token 설정 시)
//
// 어느 쪽이든 외부 계약은 동일하다:
//   - Record: 최신 엔트리로 추가, 용량 초과 시 가장 오래된 것 제거
//   - Recent: 최신순 최대 limit 건 반환 (limit 은 [1,100] 으로 clamp)
//
// backend 선택은 프로세스 시작 시 1회로 고정이며 runtime failover 는
// 없다. backend 에러는 그대로 호출자에게 올린다 — 여기서 retry 하거나
// 다른 backend 로 숨겨서 넘어가지 않는다.
// ------------------------------------------------------------

// Store 는 이벤트 로그에 대한 접근 계약.
type Store interface {
	// Record 는 이벤트를 로그의 최신 엔트리로 기록한다.
	// 용량이 가득 차 있으면 가장 오래된 엔트리가 밀려난다.
	Record(ctx context.Context, ev *model.Event) error

	// Recent 는 최신순으로 최대 limit 건을 반환한다.
	// limit 은 [1,100] 범위로 정규화되며 범위 밖 입력도 에러가 아니다.
	Recent(ctx context.Context, limit int) ([]*model.Event, error)

	// Kind 는 /api/info 노출용 backend 이름 ("memory" / "redis").
	Kind() string

	// Capacity 는 로그 최대 보관 개수.
	Capacity() int
}

// Recent 가 한 번에 돌려주는 최대 건수.
const maxRecentLimit = 100

// clampLimit 은 호출자가 준 limit 을 [1, maxRecentLimit] 로 정규화한다.
// 0, 음수, 과대값 모두 조용히 보정하며 절대 거절하지 않는다.
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

// New 는 설정에 따라 backend 를 1회 선택해 Store 를 만든다.
// remote 설정이 불완전하면 (URL 또는 token 누락) memory 로 fallback.
func New(cfg config.Config, m *metrics.Metrics) Store {
	if cfg.UseRemote() {
		client := kv.NewClient(cfg.RedisRESTURL, cfg.RedisRESTToken, cfg.RemoteTimeout)
		return NewRedisList(client, cfg.RedisListKey, cfg.MaxEvents, m)
	}
	return NewMemoryRing(cfg.MaxEvents)
}
