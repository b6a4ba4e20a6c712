package archive

import (
	"bufio"
	"bytes"
	"testing"

	"hooksink/internal/model"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

func TestEncodeBatchJSONLGZ(t *testing.T) {
	enc := NewEncoder()

	batch := []*model.Event{
		{ID: "e1", ReceivedAt: "2026-08-31T10:00:00Z", BodyPretty: "{}"},
		{ID: "e2", ReceivedAt: "2026-08-31T10:00:01Z", BodyPretty: "hello", Bytes: 5},
	}

	data, err := enc.EncodeBatchJSONLGZ(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// gzip 을 풀어 한 줄 = 레코드 하나가 복원되는지 확인
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var got []*model.Event
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var ev model.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line decode: %v", err)
		}
		got = append(got, &ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Fatalf("batch order lost: %q, %q", got[0].ID, got[1].ID)
	}
	if got[1].BodyPretty != "hello" || got[1].Bytes != 5 {
		t.Fatalf("record fields lost: %+v", got[1])
	}
}

func TestEncodeBatchJSONLGZ_Reuse(t *testing.T) {
	// pool 재사용 경로에서 앞선 배치가 다음 결과를 오염시키지 않아야 한다
	enc := NewEncoder()

	first, err := enc.EncodeBatchJSONLGZ([]*model.Event{{ID: "a"}})
	if err != nil {
		t.Fatalf("encode first: %v", err)
	}
	firstCopy := append([]byte(nil), first...)

	if _, err := enc.EncodeBatchJSONLGZ([]*model.Event{{ID: "b"}}); err != nil {
		t.Fatalf("encode second: %v", err)
	}

	if !bytes.Equal(first, firstCopy) {
		t.Fatal("first batch bytes mutated by second encode")
	}
}
