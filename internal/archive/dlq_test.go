package archive

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"hooksink/internal/config"
	"hooksink/internal/metrics"
)

func dlqConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		InstanceID:      "test",
		ArchivePrefix:   "raw",
		DLQPrefix:       "dlq",
		DLQDir:          t.TempDir(),
		DLQMaxAge:       time.Hour,
		DLQMaxSizeBytes: 1024,
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	return len(entries)
}

func TestDLQ_SaveAndCapacityEviction(t *testing.T) {
	cfg := dlqConfig(t)
	cfg.DLQMaxSizeBytes = 10
	m := metrics.New()
	d := NewDLQ(cfg, m, nil)

	if err := d.Save(make([]byte, 8)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := countFiles(t, cfg.DLQDir); got != 1 {
		t.Fatalf("expected 1 file, got %d", got)
	}

	// 두 번째 배치는 용량 초과 → 가장 오래된 파일이 밀려난다
	if err := d.Save(make([]byte, 8)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := countFiles(t, cfg.DLQDir); got != 1 {
		t.Fatalf("expected 1 file after eviction, got %d", got)
	}
	if n := atomic.LoadInt64(&m.DLQFilesExpiredTotal); n != 1 {
		t.Fatalf("expected 1 expired file, got %d", n)
	}
	if n := atomic.LoadInt64(&m.DLQBatchesEnqueuedTotal); n != 2 {
		t.Fatalf("expected 2 enqueued batches, got %d", n)
	}
}

func TestDLQ_DropWhenBatchLargerThanQueue(t *testing.T) {
	cfg := dlqConfig(t)
	cfg.DLQMaxSizeBytes = 4
	d := NewDLQ(cfg, metrics.New(), nil)

	// 지울 파일이 없어도 공간이 안 나오면 배치를 버린다 (에러 아님)
	if err := d.Save(make([]byte, 8)); err != nil {
		t.Fatalf("save must not fail on drop: %v", err)
	}
	if got := countFiles(t, cfg.DLQDir); got != 0 {
		t.Fatalf("expected no files, got %d", got)
	}
}

func TestDLQ_RestoresGaugesFromDisk(t *testing.T) {
	cfg := dlqConfig(t)

	// 프로세스 재시작 시나리오: 디렉토리에 기존 파일이 남아있다
	if err := os.WriteFile(filepath.Join(cfg.DLQDir, "1000000000_old_000001.jsonl.gz"), make([]byte, 6), 0o600); err != nil {
		t.Fatalf("prep: %v", err)
	}

	m := metrics.New()
	NewDLQ(cfg, m, nil)

	if n := atomic.LoadInt64(&m.DLQFilesCurrent); n != 1 {
		t.Fatalf("expected files gauge 1, got %d", n)
	}
	if n := atomic.LoadInt64(&m.DLQSizeBytes); n != 6 {
		t.Fatalf("expected size gauge 6, got %d", n)
	}
}

func TestDLQ_TTLExpiry(t *testing.T) {
	cfg := dlqConfig(t)
	m := metrics.New()
	d := NewDLQ(cfg, m, nil)

	// 파일명 prefix 의 timestamp 가 TTL 기준 — 아주 오래된 파일을 심는다
	name := "1000000000_test_000001.jsonl.gz"
	if err := os.WriteFile(filepath.Join(cfg.DLQDir, name), []byte("stale"), 0o600); err != nil {
		t.Fatalf("prep: %v", err)
	}

	d.ProcessOneCtx(context.Background())

	if got := countFiles(t, cfg.DLQDir); got != 0 {
		t.Fatalf("expected expired file to be removed, got %d files", got)
	}
	if n := atomic.LoadInt64(&m.DLQFilesExpiredTotal); n != 1 {
		t.Fatalf("expected 1 expired file, got %d", n)
	}
}

func TestDLQ_PickOldest(t *testing.T) {
	cfg := dlqConfig(t)
	d := NewDLQ(cfg, metrics.New(), nil)

	for _, name := range []string{
		"1000000002_test_000001.jsonl.gz",
		"1000000001_test_000001.jsonl.gz",
		"1000000003_test_000001.jsonl.gz",
	} {
		if err := os.WriteFile(filepath.Join(cfg.DLQDir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("prep: %v", err)
		}
	}

	if got := d.pickOldest(); got != "1000000001_test_000001.jsonl.gz" {
		t.Fatalf("expected oldest by filename, got %q", got)
	}
}
