package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 서버 상태를 나타내는 카운터 모음이다.
// Prometheus 용이 아니라 운영자가 장애 원인을 분석할 때 보는
// 내부 카운터들이며, /metrics 에서 plain text 로 노출된다.
type Metrics struct {
	// ======================
	// HTTP 레벨 지표
	// ======================

	// HTTPRequestsTotal
	// - /api/webhook 으로 들어온 모든 요청 수 (메서드/성공 여부 무관).
	// - 트래픽 규모를 가장 단순하게 파악하는 지표.
	HTTPRequestsTotal int64

	// HTTPRequestsAcceptedTotal
	// - 이벤트 로그에 정상 기록까지 끝난 요청 수.
	// - Total 과의 차이가 401/405/backend 실패 규모를 말해준다.
	HTTPRequestsAcceptedTotal int64

	// HTTPRequestsUnauthorizedTotal
	// - 토큰 검사에 걸려 401 로 거절된 요청 수.
	// - 이 값이 튀면 토큰 미설정 클라이언트 또는 스캐닝 트래픽 신호.
	HTTPRequestsUnauthorizedTotal int64

	// BodiesTruncatedTotal
	// - MAX_BODY_BYTES 초과로 잘린 body 수. 거절이 아니라 degrade 경로이므로
	//   에러 카운터가 아닌 별도 지표로 둔다.
	BodiesTruncatedTotal int64

	// ======================
	// Store 레벨 지표
	// ======================

	// StoreRecordErrorsTotal
	// - Record 호출이 backend 에러로 실패한 횟수 (remote backend 전용 경로).
	// - 이 값이 증가하면 Upstash/KV 장애 또는 네트워크 문제.
	StoreRecordErrorsTotal int64

	// StoreReadErrorsTotal
	// - Recent 호출이 backend 에러로 실패한 횟수.
	StoreReadErrorsTotal int64

	// StoreBadEntriesTotal
	// - remote 조회 중 역직렬화 실패로 placeholder 로 대체된 엔트리 수.
	// - 0 이 아니면 list key 에 다른 writer 가 쓰고 있거나 포맷이 깨진 것.
	StoreBadEntriesTotal int64

	// ======================
	// Archive (S3 장기 보관) 지표
	// ======================

	// ArchiveEventsEnqueuedTotal
	// - archive 채널에 정상 진입한 이벤트 수.
	ArchiveEventsEnqueuedTotal int64

	// ArchiveEventsDroppedTotal
	// - archive 채널 full 로 버린 이벤트 수. archive 는 best-effort 라
	//   요청 경로를 막지 않고 drop 한다. 지속 증가 시 배치/업로드 성능 점검.
	ArchiveEventsDroppedTotal int64

	// ArchiveEventsStoredTotal
	// - 최종적으로 S3 에 성공 저장된 이벤트 수 (배치 수 아님).
	ArchiveEventsStoredTotal int64

	// ArchivePutErrorsTotal
	// - S3 PutObject 실패 "시도(attempt)" 횟수. retry 포함이므로
	//   업로드 1건 실패가 여러 번 집계될 수 있다.
	ArchivePutErrorsTotal int64

	// ======================
	// DLQ (archive 로컬 대기열) 지표
	// ======================

	// DLQBatchesEnqueuedTotal
	// - S3 업로드 실패로 로컬 DLQ 에 저장된 배치 파일 수.
	DLQBatchesEnqueuedTotal int64

	// DLQBatchesReuploadedTotal
	// - DLQ 에서 S3 로 재업로드에 성공한 배치 파일 수.
	DLQBatchesReuploadedTotal int64

	// DLQFilesExpiredTotal
	// - TTL 또는 용량 제한으로 삭제된 DLQ 파일 수.
	//   데이터를 영구히 잃기 시작했다는 강한 신호.
	DLQFilesExpiredTotal int64

	// DLQFilesCurrent
	// - 현재 DLQ 디렉토리에 존재하는 파일 수 (gauge).
	DLQFilesCurrent int64

	// DLQSizeBytes
	// - 현재 DLQ 디렉토리 전체 용량 (gauge, bytes).
	DLQSizeBytes int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(256)

	fmt.Fprintf(&sb, "http_requests_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsTotal))
	fmt.Fprintf(&sb, "http_requests_accepted_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsAcceptedTotal))
	fmt.Fprintf(&sb, "http_requests_unauthorized_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsUnauthorizedTotal))
	fmt.Fprintf(&sb, "bodies_truncated_total=%d\n", atomic.LoadInt64(&m.BodiesTruncatedTotal))

	fmt.Fprintf(&sb, "store_record_errors_total=%d\n", atomic.LoadInt64(&m.StoreRecordErrorsTotal))
	fmt.Fprintf(&sb, "store_read_errors_total=%d\n", atomic.LoadInt64(&m.StoreReadErrorsTotal))
	fmt.Fprintf(&sb, "store_bad_entries_total=%d\n", atomic.LoadInt64(&m.StoreBadEntriesTotal))

	fmt.Fprintf(&sb, "archive_events_enqueued_total=%d\n", atomic.LoadInt64(&m.ArchiveEventsEnqueuedTotal))
	fmt.Fprintf(&sb, "archive_events_dropped_total=%d\n", atomic.LoadInt64(&m.ArchiveEventsDroppedTotal))
	fmt.Fprintf(&sb, "archive_events_stored_total=%d\n", atomic.LoadInt64(&m.ArchiveEventsStoredTotal))
	fmt.Fprintf(&sb, "archive_put_errors_total=%d\n", atomic.LoadInt64(&m.ArchivePutErrorsTotal))

	fmt.Fprintf(&sb, "dlq_batches_enqueued_total=%d\n", atomic.LoadInt64(&m.DLQBatchesEnqueuedTotal))
	fmt.Fprintf(&sb, "dlq_batches_reuploaded_total=%d\n", atomic.LoadInt64(&m.DLQBatchesReuploadedTotal))
	fmt.Fprintf(&sb, "dlq_files_expired_total=%d\n", atomic.LoadInt64(&m.DLQFilesExpiredTotal))
	fmt.Fprintf(&sb, "dlq_files_current=%d\n", atomic.LoadInt64(&m.DLQFilesCurrent))
	fmt.Fprintf(&sb, "dlq_size_bytes=%d\n", atomic.LoadInt64(&m.DLQSizeBytes))

	return sb.String()
}
