// Package line LINE Messaging API 推送客户端
package line

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL LINE Messaging API 地址
const DefaultBaseURL = "https://api.line.me"

// Pusher 推送消息接口
type Pusher interface {
	Push(ctx context.Context, to string, messages ...Message) error
}

// Config 客户端配置
type Config struct {
	BaseURL            string
	ChannelAccessToken string
	Timeout            time.Duration
	RetryCount         int
}

// Client LINE 推送客户端
type Client struct {
	http *resty.Client
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api returned %d: %s", e.StatusCode, e.Body)
}

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(cfg.ChannelAccessToken).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 只重试网络错误和 5xx，4xx 重试没有意义
			return err != nil || r.StatusCode() >= 500
		})

	return &Client{http: http}
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

// Push 向用户推送消息，非 2xx 视为失败
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	if to == "" {
		return fmt.Errorf("line push: empty recipient")
	}
	if len(messages) == 0 {
		return fmt.Errorf("line push: no messages")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(pushRequest{To: to, Messages: messages}).
		Post("/v2/bot/message/push")
	if err != nil {
		return fmt.Errorf("line push: %w", err)
	}
	if !resp.IsSuccess() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
