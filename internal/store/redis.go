// internal/store/redis.go
package store

import (
	"context"
	"sync/atomic"

	"hooksink/internal/kv"
	"hooksink/internal/metrics"
	"hooksink/internal/model"
)

// RedisList
// ------------------------------------------------------------
// Upstash/Vercel KV 의 list 를 이벤트 로그로 쓰는 adapter.
// 단일 key 아래에 이벤트 1건 = list 엔트리 1건(JSON)으로 쌓는다.
//
// 용량 제한 프로토콜:
//
//	LPUSH key <json>        ← head 에 추가
//	LTRIM key 0 max-1       ← 뒤쪽(오래된 것) 잘라내기
//
// 두 명령은 원자적이지 않다. 동시 writer 가 N 개면 trim 사이 틈에
// list 가 일시적으로 max+N 까지 커질 수 있지만, 이후 어떤 Record 의
// trim 이든 다시 용량 안으로 되돌린다. 의도된 best-effort 동작이다.
//
// 실패 정책: remote 호출 실패(네트워크, non-2xx, error 필드)는
// 그대로 에러로 반환한다. retry 없음, 로컬 buffering fallback 없음.
type RedisList struct {
	client  *kv.Client
	key     string
	max     int
	metrics *metrics.Metrics
}

func NewRedisList(client *kv.Client, key string, max int, m *metrics.Metrics) *RedisList {
	if max < 1 {
		max = 1
	}
	return &RedisList{
		client:  client,
		key:     key,
		max:     max,
		metrics: m,
	}
}

// Record 는 직렬화한 이벤트를 list head 에 넣고 용량만큼 trim 한다.
func (s *RedisList) Record(ctx context.Context, ev *model.Event) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}

	if _, err := s.client.Do(ctx, "LPUSH", s.key, string(data)); err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, "LTRIM", s.key, 0, s.max-1); err != nil {
		return err
	}
	return nil
}

// Recent 는 LRANGE 로 head 쪽 limit 건을 읽어 개별 복원한다.
// 깨진 엔트리는 조회 전체를 실패시키지 않고 placeholder 로 대체한다
// — 호출자는 corruption 을 눈으로 확인할 수 있고 나머지 엔트리는
// 정상적으로 받는다.
func (s *RedisList) Recent(ctx context.Context, limit int) ([]*model.Event, error) {
	limit = clampLimit(limit)

	raw, err := s.client.DoStrings(ctx, "LRANGE", s.key, 0, limit-1)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Event, 0, len(raw))
	for _, item := range raw {
		ev, err := model.Decode([]byte(item))
		if err != nil {
			atomic.AddInt64(&s.metrics.StoreBadEntriesTotal, 1)
			out = append(out, model.Placeholder(item))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisList) Kind() string { return "redis" }

func (s *RedisList) Capacity() int { return s.max }
