package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"hooksink/internal/archive"
	"hooksink/internal/config"
	"hooksink/internal/logger"
	"hooksink/internal/metrics"
	"hooksink/internal/server"
	"hooksink/internal/store"

	"github.com/rs/zerolog/log"
)

func main() {

	// ====================================================================
	// CPU 설정 (Fargate vCPU 특성 대응)
	// ====================================================================
	//
	// Fargate 류 환경은 vCPU 단위로 CPU share 가 제한되는데
	// Go 런타임은 기본적으로 호스트의 모든 논리 코어를 GOMAXPROCS 로
	// 잡으려 한다. 0.25 vCPU Task 에서 default 로 두면 busy-loop
	// scheduling 으로 오히려 성능이 떨어진다.
	//
	// 운영에서는 Task Definition 환경변수로 GOMAXPROCS 를
	// vCPU 수에 맞춰 지정하는 것을 권장. 미지정 시 1 로 고정.
	// ====================================================================
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
	} else {
		runtime.GOMAXPROCS(1) // default: 1 logical CPU
	}

	// ====================================================================
	// Config / Logger / Metrics 초기화
	// ====================================================================
	cfg := config.Load()
	logger.Init(cfg)
	m := metrics.New()

	// ====================================================================
	// Event store backend 선택 (프로세스 lifetime 동안 고정)
	// ====================================================================
	//
	// remote endpoint + credential 이 모두 있으면 Upstash/KV list,
	// 아니면 in-memory ring. 불완전한 remote 설정은 memory fallback
	// 이며 시작 실패가 아니다.
	//
	// memory backend 는 재시작 시 내용이 사라진다 — 문서화된 제약.
	// ====================================================================
	st := store.New(cfg, m)
	log.Info().
		Str("backend", st.Kind()).
		Int("max_events", st.Capacity()).
		Bool("token_required", cfg.WebhookToken != "").
		Msg("event store ready")

	// ====================================================================
	// Archive 파이프라인 (선택 기능)
	// ====================================================================
	//
	// ARCHIVE_BUCKET 설정 시에만 기동. ring store 와 분리된
	// best-effort 장기 보관 경로이며 수집 응답에는 관여하지 않는다.
	// ====================================================================
	var arc *archive.Manager
	if cfg.ArchiveEnabled() {
		arc = archive.NewManager(cfg, m)
		arc.Start()
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("archive pipeline started")
	}

	// ====================================================================
	// HTTP 라우팅
	// ====================================================================
	h := server.NewHandler(cfg, m, st, arc)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook", h.HandleWebhook)
	mux.HandleFunc("/api/events", h.HandleEvents)
	mux.HandleFunc("/api/info", h.HandleInfo)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		// LB health check 는 단순 문자열로 충분
		w.Write([]byte("ok"))
	})

	// ====================================================================
	// HTTP 서버 설정 (Timeout 매우 중요)
	// ====================================================================
	//
	// webhook payload 는 작고 짧다. Timeout 을 짧게 잡아
	// 비정상 커넥션이 서버 리소스를 점유하는 것을 방지한다.
	// IdleTimeout 은 LB keep-alive 연결 관리 목적.
	// ====================================================================
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ====================================================================
	// Graceful Shutdown
	// ====================================================================
	//
	// SIGTERM 수신 시:
	//   1) HTTP 서버 먼저 멈추고 (더 이상 요청 받지 않음)
	//   2) archive 파이프라인 종료 (잔여 배치 flush 후 join)
	// ====================================================================
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		cancel()

		if arc != nil {
			log.Info().Msg("stopping archive pipeline...")
			arc.Shutdown()
		}
	}()

	// ====================================================================
	// 서버 시작
	// ====================================================================
	log.Info().Str("addr", cfg.HTTPAddr).Msg("webhook receiver listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server terminated")
	}

	// 이미 종료되어 있더라도 다시 호출해도 safe
	if arc != nil {
		arc.Shutdown()
	}
	log.Info().Msg("shutdown complete")
}
