// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config
//
// 서비스 실행 시 필요한 모든 환경 변수 값을 보관하는 구조체.
// 모든 값은 프로세스 시작 시점에 Load() 에 의해 초기화되며,
// 이후에는 변경되지 않는 불변(read-only) 설정들이다.
type Config struct {

	// ---------------------------
	// 서버 식별자 / 네트워크
	// ---------------------------

	ServiceName string // 로그 공통 태그용 서비스명
	InstanceID  string // 프로세스 고유 ID (호스트명 기반, 실패 시 랜덤 hex)
	HTTPAddr    string // HTTP 서버 bind 주소 (예: ":8080")

	// ---------------------------
	// 수집 / 저장 파라미터
	// ---------------------------

	MaxEvents    int    // 이벤트 로그 최대 보관 개수 (ring 용량)
	MaxBodyBytes int64  // 단일 요청 body 최대 크기 (초과분은 잘라서 보관)
	WebhookToken string // 비어있지 않으면 수집 요청에 토큰 검사 적용

	// ---------------------------
	// Remote list backend (Upstash / Vercel KV REST)
	// ---------------------------
	// URL + Token 이 모두 있어야 remote backend 가 선택된다.
	// 둘 중 하나만 있는 불완전 설정은 "미설정"으로 취급하고
	// in-memory ring 으로 fallback 한다 (시작 실패 아님).

	RedisRESTURL   string        // REST endpoint (두 가지 env 네이밍 모두 허용)
	RedisRESTToken string        // REST bearer token
	RedisListKey   string        // 이벤트가 쌓이는 단일 list key
	RemoteTimeout  time.Duration // remote 호출 1건당 timeout

	// ---------------------------
	// 로깅
	// ---------------------------

	LogLevel   string // zerolog 레벨 문자열 (debug/info/warn/error)
	LogPretty  bool   // true 면 ConsoleWriter (로컬 개발용)
	LogSampleN uint32 // Debug/Info 샘플링 N (0/1 이면 샘플링 없음)

	// ---------------------------
	// Archive (S3 장기 보관, 선택 기능)
	// ---------------------------
	// ArchiveBucket 이 비어있으면 archive 파이프라인 전체가 비활성.
	// ring store 의 동작에는 어떤 영향도 주지 않는 best-effort 경로다.

	AWSRegion     string // AWS 리전 (archive 활성 시 필수)
	ArchiveBucket string // 이벤트 배치가 저장될 S3 버킷
	ArchivePrefix string // 정상 배치 저장 prefix (예: raw)
	DLQPrefix     string // 재업로드 실패/비정상 배치 prefix (예: dlq)

	ChannelSize   int           // archive EventCh 버퍼 크기
	UploadQueue   int           // uploadCh 버퍼 크기
	BatchSize     int           // N개 모이면 S3 업로드
	FlushInterval time.Duration // 시간 기반 flush 주기

	S3Timeout    time.Duration // S3 PutObject 시도당 timeout
	S3AppRetries int           // 애플리케이션 레벨 재시도 횟수 (SDK retry 는 0 고정)

	DLQDir          string        // 로컬 DLQ 디렉토리
	DLQMaxAge       time.Duration // DLQ 파일 TTL
	DLQMaxSizeBytes int64         // DLQ 전체 허용 용량
}

// UseRemote 는 remote list backend 가 완전히 설정되었는지 여부.
// endpoint 또는 credential 중 하나라도 없으면 false (memory fallback).
func (c Config) UseRemote() bool {
	return c.RedisRESTURL != "" && c.RedisRESTToken != ""
}

// ArchiveEnabled 는 S3 장기 보관 파이프라인 활성 여부.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// Load
//
// 환경 변수 기반으로 Config 값을 초기화한다.
// 수집 서버는 env 없이도 로컬에서 바로 뜰 수 있어야 하므로
// 모든 값에 기본값을 둔다. 단, archive 활성 시 리전은 필수(fail-fast).
func Load() Config {
	cfg := Config{
		ServiceName: envOr("SERVICE_NAME", "hooksink"),
		InstanceID:  fallbackInstanceID(),
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),

		MaxEvents:    envOrInt("MAX_EVENTS", 50),
		MaxBodyBytes: envOrInt64("MAX_BODY_BYTES", 262144), // 256 KB
		WebhookToken: strings.TrimSpace(os.Getenv("WEBHOOK_TOKEN")),

		// Upstash 네이밍과 Vercel KV 네이밍 모두 지원
		RedisRESTURL:   firstNonEmpty("UPSTASH_REDIS_REST_URL", "KV_REST_API_URL"),
		RedisRESTToken: firstNonEmpty("UPSTASH_REDIS_REST_TOKEN", "KV_REST_API_TOKEN"),
		RedisListKey:   envOr("REDIS_LIST_KEY", "webhook:events"),
		RemoteTimeout:  envOrDur("REMOTE_TIMEOUT", 10*time.Second),

		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogPretty:  envOrBool("LOG_PRETTY", false),
		LogSampleN: uint32(envOrInt("LOG_SAMPLE_N", 0)),

		AWSRegion:     os.Getenv("AWS_REGION"),
		ArchiveBucket: os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix: envOr("ARCHIVE_PREFIX", "raw"),
		DLQPrefix:     envOr("ARCHIVE_DLQ_PREFIX", "dlq"),

		ChannelSize:   envOrInt("ARCHIVE_CHANNEL_SIZE", 4096),
		UploadQueue:   envOrInt("ARCHIVE_UPLOAD_QUEUE", 8),
		BatchSize:     envOrInt("ARCHIVE_BATCH_SIZE", 500),
		FlushInterval: envOrDur("ARCHIVE_FLUSH_INTERVAL", 5*time.Second),

		S3Timeout:    envOrDur("ARCHIVE_S3_TIMEOUT", 5*time.Second),
		S3AppRetries: envOrInt("ARCHIVE_S3_RETRIES", 3),

		DLQDir:          envOr("ARCHIVE_DLQ_DIR", "/tmp/hooksink-dlq"),
		DLQMaxAge:       envOrDur("ARCHIVE_DLQ_MAX_AGE", 24*time.Hour),
		DLQMaxSizeBytes: envOrInt64("ARCHIVE_DLQ_MAX_SIZE_BYTES", 256*1024*1024),
	}

	if cfg.ArchiveEnabled() && cfg.AWSRegion == "" {
		log.Fatalf("ARCHIVE_BUCKET is set but AWS_REGION is missing")
	}

	return cfg
}

// envOr / envOrInt / envOrInt64 / envOrBool / envOrDur
//
// 공통 패턴.
// env 가 없으면 기본값, 형식이 잘못되면 즉시 로그 출력 후 종료(fail-fast).
// 런타임 중 설정 오류를 겪지 않도록 하기 위한 보호 전략.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func envOrInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int64 env %s=%q: %v", key, v, err)
	}
	return n
}

func envOrBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

func envOrDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

// firstNonEmpty 는 주어진 env key 들 중 처음으로 값이 있는 것을 반환한다.
// Upstash / Vercel KV 처럼 같은 값을 다른 이름으로 주입하는 경우 대응.
func firstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// fallbackInstanceID
//
// 이 수집 서버 인스턴스를 식별하는 고유 값.
//   - 기본: hostname (ECS/Fargate에서는 task-id 형태로 고유)
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	// 랜덤 6바이트 → 12자리 hex
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
