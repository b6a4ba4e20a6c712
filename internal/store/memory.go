// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"hooksink/internal/model"
)

// MemoryRing
// ------------------------------------------------------------
// in-process 고정 용량 ring. remote backend 미설정 시의 기본 저장소.
//
// 내부적으로 preallocate 된 slice 위에서 head index 만 움직이므로
// 기록은 O(1) 이고 용량 초과 시 가장 오래된 엔트리를 덮어쓴다.
//
// 주의: 프로세스 메모리에만 존재한다. 재시작/재배포 시 내용은
// 사라지며, serverless 류 환경처럼 프로세스가 수시로 재활용되는
// 곳에서는 보관이 보장되지 않는다. 이는 문서화된 제약이지 버그가
// 아니다 — 보관이 필요하면 remote backend 를 설정해야 한다.
type MemoryRing struct {
	mu    sync.Mutex
	buf   []*model.Event // 용량만큼 preallocate
	head  int            // 다음 기록 위치
	count int            // 현재 보관 건수 (<= cap)
}

func NewMemoryRing(capacity int) *MemoryRing {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryRing{
		buf: make([]*model.Event, capacity),
	}
}

// Record 는 이벤트를 최신 엔트리로 삽입한다.
// mutex 는 index 조작 동안만 잡는다 — I/O 없음, 차단 없음.
func (s *MemoryRing) Record(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	s.buf[s.head] = ev
	s.head = (s.head + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	s.mu.Unlock()
	return nil
}

// Recent 는 최신순으로 최대 limit 건의 복사 slice 를 반환한다.
// 반환된 slice 를 호출자가 어떻게 다루든 내부 상태는 변하지 않는다.
func (s *MemoryRing) Recent(_ context.Context, limit int) ([]*model.Event, error) {
	limit = clampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.count
	if limit < n {
		n = limit
	}

	out := make([]*model.Event, 0, n)
	for i := 0; i < n; i++ {
		// head-1 이 가장 최근 엔트리
		idx := (s.head - 1 - i + len(s.buf)*2) % len(s.buf)
		out = append(out, s.buf[idx])
	}
	return out, nil
}

func (s *MemoryRing) Kind() string { return "memory" }

func (s *MemoryRing) Capacity() int { return len(s.buf) }
