// internal/archive/s3.go
package archive

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"hooksink/internal/config"
	"hooksink/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader 는 archive 배치의 S3 업로드를 담당한다.
// - JSONL.gz 바이트 업로드 (UploadBytesWithRetryCtx)
// - 로컬 DLQ 파일 업로드 (UploadFileWithRetryCtx)
//
// 모든 업로드는 컨텍스트 기반(timeout + cancel-safe)이며
// 애플리케이션 레벨 retry(backoff)를 포함한다.
//
// Retry 정책 단일화:
// AWS SDK v2 기본 retry 와 코드 레벨 retry 가 겹치면 처리 지연이
// 예측 불가능해지므로 SDK retry 는 0 으로 고정하고,
// 재시도 횟수는 오직 S3AppRetries 로만 제어한다.
type Uploader struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *s3.Client
}

func NewUploader(cfg config.Config, m *metrics.Metrics) *Uploader {
	return &Uploader{
		cfg:     cfg,
		metrics: m,
		client:  newS3Client(cfg),
	}
}

// newS3Client 는 리전 등 기본 옵션을 로드한다.
// 실패 시 fatal — archive 가 설정된 채로 자격 증명이 깨져 있으면
// 조용히 돌기보다 배포 시점에 드러나는 편이 낫다.
func newS3Client(cfg config.Config) *s3.Client {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(
		context.TODO(),
		awsCfgLib.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})
}

// UploadBytesWithRetryCtx 는 메모리의 gzip+JSONL 배치를 업로드한다.
// - 시도당 S3Timeout
// - retry + exponential backoff (최대 2초)
// - shutdown-safe: ctx.Done() 시 즉시 중단
//
// body 는 매 재시도마다 reader 를 새로 만들어야 하므로
// bytes.NewReader 를 사용한다.
func (u *Uploader) UploadBytesWithRetryCtx(ctx context.Context, key string, body []byte) error {

	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= u.cfg.S3AppRetries; attempt++ {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		reader := bytes.NewReader(body)

		if err := u.putObject(ctx, key, reader, int64(len(body))); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&u.metrics.ArchivePutErrorsTotal, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

// UploadFileWithRetryCtx 는 로컬 DLQ 파일을 그대로 업로드한다.
// io.ReadSeeker 로 받아 retry 시 Seek(0) 으로 rewind 한다.
func (u *Uploader) UploadFileWithRetryCtx(ctx context.Context, key string, f io.ReadSeeker, size int64) error {

	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= u.cfg.S3AppRetries; attempt++ {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := u.putObject(ctx, key, f, size); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&u.metrics.ArchivePutErrorsTotal, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}

		// retry 전에 파일 포인터를 처음으로 되돌린다 (반드시 필요)
		f.Seek(0, io.SeekStart)
	}

	return lastErr
}

// putObject 는 S3 PutObject 1회 호출만 담당한다.
// retry 는 caller 에서 제어하며, 호출당 S3Timeout 을 강제한다.
func (u *Uploader) putObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ctx2, cancel := context.WithTimeout(ctx, u.cfg.S3Timeout)
	defer cancel()

	_, err := u.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.ArchiveBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})

	return err
}
