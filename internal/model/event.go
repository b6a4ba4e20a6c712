// internal/model/event.go
package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// Event
// ------------------------------------------------------------
// 수신된 webhook 호출 1건을 정규화한 레코드.
// ingestion 파이프라인에서 모든 데이터의 "기본 단위"가 된다.
// Handler → Store(memory/redis) → 조회 API / Archive 까지 그대로 전달된다.
//
// 생성 이후에는 어떤 필드도 수정하지 않는다(write-once).
// 저장 backend 가 무엇이든 wire format 은 이 구조체의 JSON 하나뿐이며,
// 각 엔트리는 독립적으로 직렬화된다 (엔트리 간 참조 없음).
type Event struct {
	ID          string            `json:"id"`                // 레코드 고유 ID (ingestion 시점 uuid)
	ReceivedAt  string            `json:"received_at"`       // 수신 시각 (UTC, RFC3339)
	IP          string            `json:"ip"`                // 발신자 IP (XFF/CloudFront 헤더 기반 추출)
	ContentType string            `json:"content_type"`      // 소문자 정규화, 없으면 "unknown"
	Headers     map[string]string `json:"headers,omitempty"` // allow-list 통과 헤더만 보관
	Truncated   bool              `json:"truncated"`         // body 가 MAX_BODY_BYTES 초과로 잘렸는지
	Bytes       int               `json:"bytes"`             // 저장된(잘린 후) body 길이
	BodyPretty  string            `json:"body_pretty"`       // JSON 이면 pretty-print, 아니면 원문 텍스트
}

// PlaceholderID 는 저장소에서 역직렬화에 실패한 엔트리를
// 대체 레코드로 돌려줄 때 사용하는 고정 sentinel ID.
const PlaceholderID = "bad"

// Encode 는 이벤트를 저장용 JSON 한 건으로 직렬화한다.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode 는 저장소에서 읽은 엔트리 하나를 Event 로 복원한다.
// 실패 시 호출자는 Placeholder 로 대체해야 하며, 전체 조회를 중단하면 안 된다.
func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Placeholder
// ------------------------------------------------------------
// 깨진 저장 엔트리를 대신하는 가시적인 대체 레코드.
// 원문 텍스트를 body_pretty 에 그대로 담아 운영자가
// corruption 내용을 직접 확인할 수 있게 한다.
func Placeholder(raw string) *Event {
	return &Event{
		ID:         PlaceholderID,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		BodyPretty: raw,
	}
}
