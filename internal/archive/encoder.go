package archive

import (
	"bytes"

	"hooksink/internal/model"
	"hooksink/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Encoder 는 이벤트 배치를 JSONL → gzip 형태로 직렬화하는 컴포넌트.
// archive 경로에서 CPU 와 메모리에 가장 큰 영향을 주는 구간이다.
//
// 특징:
//   - goccy/go-json 기반 인코딩
//   - gzip.Writer + bytes.Buffer 재사용(pool 기반)
//   - 결과는 새로운 []byte 로 복사해 호출자에게 소유권을 넘김
//     (pool 버퍼를 그대로 반환하면 데이터 corruption 위험)
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeBatchJSONLGZ 는 이벤트 배치를 한 줄에 레코드 하나씩
// JSONL 로 인코딩한 뒤 gzip 압축해 반환한다.
func (e *Encoder) EncodeBatchJSONLGZ(events []*model.Event) ([]byte, error) {

	// gzip 결과를 담을 버퍼와 writer 를 pool 에서 가져온다.
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	// JSON encoder 를 gzip writer 에 직결 — 중간 버퍼 없음.
	enc := json.NewEncoder(gz)

	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			_ = gz.Close()
			pool.GzipPool.Put(gz)
			pool.PutBuffer(buf)
			return nil, err
		}
	}

	// Close() 시 gzip footer 까지 flush 되어 스트림이 완성된다.
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	// pool 버퍼는 재사용되므로 caller 소유의 새 slice 로 복사해 반환.
	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)

	pool.PutBuffer(buf)

	return data, nil
}
