package videotools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailureKind 外部服务失败类型
type FailureKind string

const (
	FailureRateLimited  FailureKind = "rate_limited"  // 被限流
	FailureAuth         FailureKind = "auth_error"    // 鉴权失败或缺少 key
	FailureNotFound     FailureKind = "not_found"     // 没有结果
	FailureTransientIO  FailureKind = "transient_io"  // 网络或临时错误
	FailureInvalidInput FailureKind = "invalid_input" // 输入不被服务接受
)

// Failure 适配器失败
// 失败类型在适配器边界确定，下游只看 Kind，不做字符串匹配
type Failure struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Provider, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Provider, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure 创建失败
func NewFailure(kind FailureKind, provider string, err error) *Failure {
	return &Failure{Kind: kind, Provider: provider, Err: err}
}

// Failuref 使用格式化消息创建失败
func Failuref(kind FailureKind, provider, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误链上的失败类型，不是 Failure 时返回空
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// FromHTTPStatus 按 HTTP 状态码归类
func FromHTTPStatus(provider string, status int, body string) *Failure {
	if len(body) > 256 {
		body = body[:256]
	}
	err := fmt.Errorf("status %d: %s", status, strings.TrimSpace(body))

	switch {
	case status == http.StatusTooManyRequests:
		return NewFailure(FailureRateLimited, provider, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewFailure(FailureAuth, provider, err)
	case status == http.StatusNotFound:
		return NewFailure(FailureNotFound, provider, err)
	case status >= 500 || status == http.StatusRequestTimeout:
		return NewFailure(FailureTransientIO, provider, err)
	default:
		return NewFailure(FailureInvalidInput, provider, err)
	}
}

// Classify 把 SDK 或网络错误归类为 Failure，已是 Failure 的原样返回
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewFailure(FailureTransientIO, provider, err)
	case errors.As(err, &netErr):
		return NewFailure(FailureTransientIO, provider, err)
	}

	// SDK 错误只暴露消息文本，这里按常见的状态描述归类
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return NewFailure(FailureRateLimited, provider, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return NewFailure(FailureAuth, provider, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "eof"):
		return NewFailure(FailureTransientIO, provider, err)
	}
	return NewFailure(FailureInvalidInput, provider, err)
}
