// internal/kv/client.go
package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// ------------------------------------------------------------
// Upstash / Vercel KV REST command client
//
// Upstash REST API 는 Redis 명령 전체를 JSON 배열로 POST body 에
// 담아 보내는 방식을 지원한다:
//
//	POST <endpoint>
//	Authorization: Bearer <token>
//	["LPUSH","webhook:events","{...}"]
//
// 응답 envelope 은 {"result": ...} 또는 {"error": "..."} 이다.
// 이 client 는 명령 1건 = HTTP 요청 1건만 담당하고,
// retry 나 fallback 은 일절 하지 않는다 (실패는 곧 store 실패).
// ------------------------------------------------------------

// Client 는 단일 endpoint 에 대한 REST 명령 실행기.
// http.Client 의 Timeout 으로 호출당 상한을 강제하므로
// 느린 backend 가 요청 경로를 무한정 붙잡을 수 없다.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// APIError 는 non-2xx 응답. status 와 body 앞부분만 보관한다.
type APIError struct {
	StatusCode int
	Body       string // 최대 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kv: HTTP %d: %s", e.StatusCode, e.Body)
}

// CommandError 는 2xx 응답이지만 envelope 에 error 필드가 있는 경우.
// (예: WRONGTYPE, 잘못된 명령 등 Redis 레벨 에러)
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return "kv: " + e.Message
}

func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// 응답 envelope. result 는 명령에 따라 타입이 달라지므로
// raw 로 받아 호출자가 해석한다.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Do 는 Redis 명령 하나를 실행하고 result 필드를 raw JSON 으로 반환한다.
// args 예: "LPUSH", key, value / "LTRIM", key, 0, 49
func (c *Client) Do(ctx context.Context, args ...any) (json.RawMessage, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("kv: malformed response: %w", err)
	}
	if env.Error != "" {
		return nil, &CommandError{Message: env.Error}
	}

	return env.Result, nil
}

// DoStrings 는 LRANGE 처럼 문자열 배열을 돌려주는 명령용 helper.
// result 가 null 이면 빈 slice 를 반환한다.
func (c *Client) DoStrings(ctx context.Context, args ...any) ([]string, error) {
	raw, err := c.Do(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("kv: unexpected result shape: %w", err)
	}
	return out, nil
}
