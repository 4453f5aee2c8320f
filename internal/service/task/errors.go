package task

import (
	"errors"
	"fmt"

	"reelforge/internal/pkg/videotools"
)

// ErrorKind 任务失败类型
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"          // 参数错误，没有调用外部服务
	KindScriptGeneration   ErrorKind = "script_generation"   // 文案生成失败
	KindKeywordGeneration  ErrorKind = "keyword_generation"  // 关键词生成失败
	KindVoiceSynthesis     ErrorKind = "voice_synthesis"     // 配音失败
	KindMaterialResolution ErrorKind = "material_resolution" // 素材获取失败
	KindComposition        ErrorKind = "composition"         // 视频合成失败
	KindInternal           ErrorKind = "internal"            // 未预期的错误
)

// Error 任务失败
// 调用方直接展示 Kind 和 Message
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AdapterKind 返回外部服务的失败类型，不是适配器错误时返回空
func (e *Error) AdapterKind() videotools.FailureKind {
	return videotools.KindOf(e.Cause)
}

// newError 创建任务失败
func newError(kind ErrorKind, stage Stage, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsError 取出错误链上的任务失败
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// KindOf 返回任务失败类型，不是任务失败时返回 internal
func KindOf(err error) ErrorKind {
	if te, ok := AsError(err); ok {
		return te.Kind
	}
	return KindInternal
}
