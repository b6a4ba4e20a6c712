// internal/archive/manager.go
package archive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hooksink/internal/config"
	"hooksink/internal/metrics"
	"hooksink/internal/model"

	"github.com/rs/zerolog/log"
)

// Manager 는 수신된 이벤트의 S3 장기 보관 파이프라인이다.
// ring store 와는 완전히 분리된 best-effort 경로로,
// 여기서 무슨 일이 생겨도 수집 요청과 최근 이벤트 조회는 영향받지 않는다.
//
// 흐름:
//   - Enqueue: handler 가 기록 성공한 이벤트를 non-blocking 으로 push
//   - collectLoop: BatchSize 또는 FlushInterval 단위로 배치 구성
//   - uploadLoop: gzip+JSONL 인코딩 → S3 업로드 → 실패 시 로컬 DLQ
//
// graceful shutdown 을 지원하며, 모든 배치 처리가 끝나야 종료된다.
type Manager struct {
	cfg     config.Config
	metrics *metrics.Metrics
	s3      *Uploader
	dlq     *DLQ
	encoder *Encoder

	eventCh  chan *model.Event
	uploadCh chan []*model.Event

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager 는 Uploader · DLQ · Encoder 를 초기화하고
// 이벤트 처리 채널을 구성한다.
func NewManager(cfg config.Config, m *metrics.Metrics) *Manager {
	uploader := NewUploader(cfg, m)

	return &Manager{
		cfg:      cfg,
		metrics:  m,
		s3:       uploader,
		dlq:      NewDLQ(cfg, m, uploader),
		encoder:  NewEncoder(),
		eventCh:  make(chan *model.Event, cfg.ChannelSize),
		uploadCh: make(chan []*model.Event, cfg.UploadQueue),
	}
}

// Start 는 두 개의 주요 goroutine 을 실행한다.
func (m *Manager) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(2)
	go m.collectLoop()
	go m.uploadLoop()
}

// Enqueue 는 이벤트를 archive 채널에 non-blocking 으로 넣는다.
// 채널이 가득 차 있으면 즉시 drop — 요청 경로를 절대 막지 않는다.
func (m *Manager) Enqueue(ev *model.Event) {
	select {
	case m.eventCh <- ev:
		atomic.AddInt64(&m.metrics.ArchiveEventsEnqueuedTotal, 1)
	default:
		atomic.AddInt64(&m.metrics.ArchiveEventsDroppedTotal, 1)
	}
}

// Shutdown 은 eventCh 를 먼저 닫고
// 남은 배치가 모두 처리될 때까지 대기한다.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.cancel()
		close(m.eventCh)
	})
	m.wg.Wait()
}

// collectLoop 는 eventCh 에서 이벤트를 읽어 batch 로 묶는다.
// BatchSize 도달 또는 FlushInterval 타이머 만료 시 uploadCh 에 전달한다.
//
// flush 는 항상 새로운 batch slice 를 생성하여
// 재사용으로 인한 데이터 오염을 방지한다.
func (m *Manager) collectLoop() {
	defer m.wg.Done()
	defer close(m.uploadCh)

	batch := make([]*model.Event, 0, m.cfg.BatchSize)
	timer := time.NewTimer(m.cfg.FlushInterval)
	defer timer.Stop()

	reset := func() {
		// 타이머가 이미 만료된 상태면 drain
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.cfg.FlushInterval)
	}

	flush := func() {
		if len(batch) > 0 {
			select {
			case m.uploadCh <- batch:
			case <-m.ctx.Done():
				return
			}
			batch = make([]*model.Event, 0, m.cfg.BatchSize)
			reset()
		}
	}

	for {
		select {
		case <-m.ctx.Done():
			flush()
			return

		case ev, ok := <-m.eventCh:
			if !ok {
				// 채널 종료 → 남은 batch 처리 후 종료
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= m.cfg.BatchSize {
				flush()
			}

		case <-timer.C:
			flush()
		}
	}
}

// uploadLoop 는 uploadCh 에서 batch 를 받아
//  1. gzip+JSONL 인코딩
//  2. S3 업로드 (실패 시 DLQ 저장)
//  3. DLQ 재업로드 (starvation 방지, 배치당 최대 3건)
//
// 를 수행한다. uploadCh 가 닫히면 모든 작업을 마치고 종료된다.
func (m *Manager) uploadLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case batch, ok := <-m.uploadCh:
			if !ok {
				log.Info().Msg("archive uploader exiting")
				return
			}

			m.processUploadCtx(m.ctx, batch)

			// DLQ starvation 방지 — 배치마다 최대 3건 재처리
			for i := 0; i < 3; i++ {
				m.dlq.ProcessOneCtx(m.ctx)
			}

		default:
			// idle 시에도 DLQ 재업로드 진행
			for i := 0; i < 3; i++ {
				m.dlq.ProcessOneCtx(m.ctx)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// processUploadCtx 는 배치 하나를 인코딩해서 업로드한다.
// 인코딩 실패는 레코드가 이미 메모리에서 정상 직렬화된 적이 있는
// 값들이라 사실상 발생하지 않지만, 발생하면 배치를 버리고 집계만 한다.
func (m *Manager) processUploadCtx(ctx context.Context, batch []*model.Event) {
	if len(batch) == 0 {
		return
	}

	data, err := m.encoder.EncodeBatchJSONLGZ(batch)
	if err != nil {
		atomic.AddInt64(&m.metrics.ArchiveEventsDroppedTotal, int64(len(batch)))
		log.Error().Err(err).Int("events", len(batch)).Msg("archive encode failed, batch dropped")
		return
	}

	key := BuildKey(m.cfg.ArchivePrefix, NewFilename(m.cfg.InstanceID))

	if err := m.s3.UploadBytesWithRetryCtx(ctx, key, data); err != nil {
		// 업로드 실패 → 로컬 DLQ 로
		if err2 := m.dlq.Save(data); err2 != nil {
			log.Error().Err(err2).Msg("local DLQ save failed")
		}
		return
	}

	atomic.AddInt64(&m.metrics.ArchiveEventsStoredTotal, int64(len(batch)))
}
