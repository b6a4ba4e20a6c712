// internal/archive/dlq.go
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"hooksink/internal/config"
	"hooksink/internal/metrics"

	"github.com/rs/zerolog/log"
)

// DLQ 는 S3 업로드에 실패한 배치를 로컬 디스크에 보관했다가
// 이후 재업로드하는 대기열이다.
//
// TTL 판단은 "파일명 prefix 의 Unix timestamp" 기준으로 한다.
// 파일 내용은 업로드하려던 gzip+JSONL 배치 그대로이며,
// 재업로드 성공 시 archive prefix 로 들어간다.
type DLQ struct {
	cfg      config.Config
	metrics  *metrics.Metrics
	uploader *Uploader

	// 현재 DLQ 디렉토리에 저장된 파일 총 바이트 수
	sizeBytes int64
}

// NewDLQ 는 디렉토리를 초기화하고 기존 파일을 스캔하여
// DLQSizeBytes / DLQFilesCurrent gauge 를 복원한다.
func NewDLQ(cfg config.Config, m *metrics.Metrics, uploader *Uploader) *DLQ {
	_ = os.MkdirAll(cfg.DLQDir, 0o755)

	d := &DLQ{
		cfg:      cfg,
		metrics:  m,
		uploader: uploader,
	}

	var total int64
	var count int64

	entries, err := os.ReadDir(cfg.DLQDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || e.Name() == "" || e.Name()[0] == '.' {
				continue
			}
			if info, err := e.Info(); err == nil {
				total += info.Size()
				count++
			}
		}
	}

	atomic.StoreInt64(&d.sizeBytes, total)
	if total > 0 {
		atomic.AddInt64(&m.DLQSizeBytes, total)
	}
	if count > 0 {
		atomic.AddInt64(&m.DLQFilesCurrent, count)
	}

	return d
}

// Save 는 업로드 실패한 gzip+JSONL 배치를 로컬 DLQ 에 저장한다.
// 용량 확보에 실패하면 배치를 버린다 — archive 는 best-effort 경로라
// 여기서 에러를 위로 올려봐야 할 수 있는 일이 없다.
func (d *DLQ) Save(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	size := int64(len(data))
	if !d.ensureCapacity(size) {
		log.Error().Int64("bytes", size).Msg("DLQ full, dropping batch")
		return nil
	}

	filename := NewFilename(d.cfg.InstanceID)
	path := filepath.Join(d.cfg.DLQDir, filename)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	atomic.AddInt64(&d.sizeBytes, size)
	atomic.AddInt64(&d.metrics.DLQSizeBytes, size)
	atomic.AddInt64(&d.metrics.DLQFilesCurrent, 1)
	atomic.AddInt64(&d.metrics.DLQBatchesEnqueuedTotal, 1)

	return nil
}

// ensureCapacity 는 DLQMaxSizeBytes 를 초과하지 않도록
// 가장 오래된 파일부터 삭제한다. 더 지울 파일이 없는데도
// 공간이 부족하면 false.
func (d *DLQ) ensureCapacity(incoming int64) bool {
	max := d.cfg.DLQMaxSizeBytes
	if max <= 0 {
		return true
	}

	for {
		curr := atomic.LoadInt64(&d.sizeBytes)
		if curr+incoming <= max {
			return true
		}

		oldest := d.pickOldest()
		if oldest == "" {
			return false
		}

		path := filepath.Join(d.cfg.DLQDir, oldest)
		if info, err := os.Stat(path); err == nil {
			atomic.AddInt64(&d.sizeBytes, -info.Size())
			atomic.AddInt64(&d.metrics.DLQSizeBytes, -info.Size())
		}

		_ = os.Remove(path)

		atomic.AddInt64(&d.metrics.DLQFilesCurrent, -1)
		atomic.AddInt64(&d.metrics.DLQFilesExpiredTotal, 1)

		log.Warn().Str("file", oldest).Msg("DLQ capacity eviction")
	}
}

// ProcessOneCtx 는 가장 오래된 파일 1개를 재업로드한다.
// TTL(파일명 prefix timestamp 기준) 초과 파일은 삭제만 한다.
func (d *DLQ) ProcessOneCtx(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	name := d.pickOldest()
	if name == "" {
		return
	}

	path := filepath.Join(d.cfg.DLQDir, name)

	info, err := os.Stat(path)
	if err != nil {
		// 파일이 사라진 경우 gauge 만 정리
		_ = os.Remove(path)
		atomic.AddInt64(&d.metrics.DLQFilesCurrent, -1)
		return
	}
	size := info.Size()

	// --- TTL 판단 ---
	if d.cfg.DLQMaxAge > 0 {
		if sec, ok := extractUnixFromFilename(name); ok {
			age := time.Duration(Unix()-sec) * time.Second
			if age > d.cfg.DLQMaxAge {
				_ = os.Remove(path)

				atomic.AddInt64(&d.sizeBytes, -size)
				atomic.AddInt64(&d.metrics.DLQSizeBytes, -size)
				atomic.AddInt64(&d.metrics.DLQFilesCurrent, -1)
				atomic.AddInt64(&d.metrics.DLQFilesExpiredTotal, 1)

				log.Info().Str("file", name).Dur("age", age).Msg("DLQ TTL expired")
				return
			}
		}
		// filename 에서 unix 를 읽지 못하면 TTL 판단은 skip
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("DLQ open failed")
		return
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}

	key := BuildKey(d.cfg.ArchivePrefix, name)
	if err := d.uploader.UploadFileWithRetryCtx(ctx, key, f, size); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("DLQ reupload failed")
		return
	}

	// 업로드 성공 → 로컬 파일 제거
	_ = os.Remove(path)

	atomic.AddInt64(&d.sizeBytes, -size)
	atomic.AddInt64(&d.metrics.DLQSizeBytes, -size)
	atomic.AddInt64(&d.metrics.DLQFilesCurrent, -1)
	atomic.AddInt64(&d.metrics.DLQBatchesReuploadedTotal, 1)

	log.Info().Str("key", key).Msg("DLQ reupload success")
}

// pickOldest 는 DLQ 디렉토리에서 파일명 기준(=timestamp 기준)으로
// 가장 오래된 파일을 반환한다.
//
// 주의:
//   - Readdir 결과는 임의 순서이므로 반드시 정렬이 필요하다.
//   - 파일명이 <unix>_<instance>_<counter>.jsonl.gz 이므로
//     문자열 정렬 = 시간 정렬이 성립한다.
func (d *DLQ) pickOldest() string {
	entries, err := os.ReadDir(d.cfg.DLQDir)
	if err != nil {
		return ""
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "" || name[0] == '.' {
			continue
		}
		files = append(files, name)
	}

	if len(files) == 0 {
		return ""
	}

	sort.Strings(files)
	return files[0]
}

// extractUnixFromFilename 은 파일명 prefix 에서 Unix seconds 를 파싱한다.
// 파일명 형식: "<unix>_<instance>_<counter>.jsonl.gz"
func extractUnixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
