// internal/archive/naming.go
package archive

import (
	"fmt"
	"sync/atomic"
)

// naming.go
// ------------------------------------------------------------
// archive/DLQ 파일명과 S3 key 생성 유틸.
// 파일명 규칙은 DLQ 의 정렬·TTL 판단의 핵심이므로
// 예측 가능한 deterministic 패턴을 유지해야 한다.
//
// 파일명 규칙:
//
//	<unix>_<instance>_<counter>.jsonl.gz
//
// 예:
//
//	1764721594_hooksink1_000042.jsonl.gz
//
// 문자열 정렬 = 시간 순 정렬이므로 DLQ 재업로드 시
// 가장 오래된 파일 선처리에 그대로 사용한다.
var globalCounter uint64

// NextCounter 는 원자적 증가 값으로 여러 goroutine에서 충돌 없이
// 순차 번호를 생성한다. 1,000,000 에서 wrap-around 하지만
// timestamp·instance ID 조합으로 파일명 충돌 가능성은 사실상 없다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewFilename 은 <unix>_<instance>_<counter>.jsonl.gz 형태의
// 새로운 파일명을 생성한다.
func NewFilename(instanceID string) string {
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", Unix(), instanceID, NextCounter())
}

// BuildKey 는 표준화된 S3 key 를 만든다.
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<filename>
//
// Athena / Glue 파티션 스캔 비용을 줄이기 위한 구조.
// prefix(archive, dlq)만 호출자가 구분해 주면 된다.
func BuildKey(prefix, filename string) string {
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", prefix, DT(), HR(), filename)
}
