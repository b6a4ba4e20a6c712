// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"hooksink/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 애플리케이션 시작 시 한 번만 호출되는 로거 초기화 함수.
// Config 설정(환경변수)에 따라 개발용 콘솔 출력 또는
// 운영용 JSON 로그로 형태를 바꾼다.
//
// [주요 동작]
//
//  1. 로그 포맷 자동 전환:
//     - LOG_PRETTY=true: 색상 있는 콘솔 출력 (로컬 개발)
//     - LOG_PRETTY=false: JSON 포맷 (CloudWatch 등 수집/검색용)
//
//  2. 공통 필드 자동 추가:
//     - 모든 로그에 "service", "instance" 가 붙는다.
//     - 인스턴스 여러 대 운영 시 어느 프로세스의 로그인지 즉시 식별.
//
//  3. 로그 샘플링:
//     - LOG_SAMPLE_N > 1 이면 Debug/Info 는 N건 중 1건만 기록.
//     - Warn/Error 는 절대 샘플링하지 않는다.
func Init(cfg config.Config) {

	// 1) 최소 출력 레벨 결정
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	// 2) 출력 방식 결정 (사람 vs 기계)
	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stdout
	}

	// 3) 기본 Logger 생성 (공통 태그 부착)
	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	// 4) 샘플링 설정
	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
			// Warn/Error: 샘플링하지 않음 (nil)
		})
	}

	// 5) 전역 Logger 교체
	zlog.Logger = logger

	// 표준 라이브러리 log 사용처도 zerolog 설정을 따르도록 연결
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
