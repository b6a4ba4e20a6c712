// internal/archive/clock.go
package archive

import (
	"sync/atomic"
	"time"
)

//
// clock.go
// ------------------------------------------------------------
// 매초 현재 UTC epoch seconds 와 날짜/시간 파티션 값을 캐싱한다.
//
// archive 경로는 파일명/S3 파티션에 초 단위 정밀도만 필요하므로
// 배치마다 time.Now() 를 부르는 대신 1초 ticker 로 캐싱한다.
// (레코드의 received_at 은 이 캐시를 쓰지 않는다 — 그쪽은
// ingestion 시점의 full-precision 시각이 필요하다.)
//
// 사용처:
//   - DLQ/archive 파일명 prefix (TTL 판단 기준)
//   - S3 파티션 prefix (dt=YYYY-MM-DD / hr=HH, UTC 기준)
// ------------------------------------------------------------

var (
	unixSec atomic.Int64

	dtVal atomic.Value // "YYYY-MM-DD"
	hrVal atomic.Value // "HH"
)

func init() {
	seed()

	// 1초마다 갱신
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			seed()
		}
	}()
}

func seed() {
	now := time.Now().UTC()
	unixSec.Store(now.Unix())
	dtVal.Store(now.Format("2006-01-02"))
	hrVal.Store(now.Format("15"))
}

// Unix returns current UTC epoch seconds (cached, 1-second precision).
func Unix() int64 {
	return unixSec.Load()
}

// DT returns "YYYY-MM-DD" (UTC 기준).
func DT() string {
	return dtVal.Load().(string)
}

// HR returns "HH" (UTC 기준).
func HR() string {
	return hrVal.Load().(string)
}
