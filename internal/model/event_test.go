package model

import (
	"reflect"
	"strings"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	orig := &Event{
		ID:          "3f2a9c",
		ReceivedAt:  "2026-08-31T09:15:00.123456789Z",
		IP:          "203.0.113.77",
		ContentType: "application/json",
		Headers: map[string]string{
			"content-type": "application/json",
			"user-agent":   "GitHub-Hookshot/abc123",
		},
		Truncated:  false,
		Bytes:      17,
		BodyPretty: "{\n  \"a\": 1\n}",
	}

	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Fatalf("round-trip mismatch:\n got %+v\nwant %+v", got, orig)
	}
}

func TestEventRoundTrip_EmptyFields(t *testing.T) {
	// 헤더 전부 생략, 빈 body — ingestion 경로가 실제로 만들 수 있는 최소 레코드
	orig := &Event{
		ID:          "empty",
		ReceivedAt:  "2026-08-31T09:15:00Z",
		IP:          "unknown",
		ContentType: "unknown",
		Truncated:   false,
		Bytes:       0,
		BodyPretty:  "",
	}

	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.ID != orig.ID || got.BodyPretty != "" || got.Bytes != 0 || got.Truncated {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if len(got.Headers) != 0 {
		t.Fatalf("expected empty headers, got %v", got.Headers)
	}
}

func TestEventRoundTrip_LargeBody(t *testing.T) {
	orig := &Event{
		ID:         "big",
		ReceivedAt: "2026-08-31T09:15:00Z",
		Truncated:  true,
		Bytes:      262144,
		BodyPretty: strings.Repeat("x", 262144),
	}

	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BodyPretty != orig.BodyPretty || got.Bytes != orig.Bytes || !got.Truncated {
		t.Fatal("large body round-trip mismatch")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("not json at all")); err == nil {
		t.Fatal("expected decode error for malformed entry")
	}
}

func TestPlaceholder(t *testing.T) {
	raw := "%%% corrupted entry %%%"
	ev := Placeholder(raw)

	if ev.ID != PlaceholderID {
		t.Fatalf("expected sentinel id %q, got %q", PlaceholderID, ev.ID)
	}
	if ev.BodyPretty != raw {
		t.Fatalf("placeholder must carry raw text, got %q", ev.BodyPretty)
	}
	if ev.ReceivedAt == "" {
		t.Fatal("placeholder must carry a timestamp")
	}
}
