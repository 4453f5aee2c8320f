package providers

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"reelforge/internal/pkg/ark"
	"reelforge/internal/pkg/videotools"
)

// completeFunc 单轮对话
type completeFunc func(ctx context.Context, system, prompt string) (string, error)

// LLM 基于大模型的文案和关键词生成
// 实现了 videotools.ScriptGenerator 和 videotools.TermsGenerator
type LLM struct {
	name     string
	complete completeFunc
}

// NewEinoLLM 使用 ai/component 创建的 ChatModel（默认推荐）
func NewEinoLLM(name string, chatModel model.BaseChatModel) *LLM {
	return &LLM{
		name: name,
		complete: func(ctx context.Context, system, prompt string) (string, error) {
			messages := []*schema.Message{schema.UserMessage(prompt)}
			if system != "" {
				messages = append([]*schema.Message{schema.SystemMessage(system)}, messages...)
			}
			resp, err := chatModel.Generate(ctx, messages)
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		},
	}
}

// NewArkLLM 直接使用 volcengine-go-sdk 的 Ark 客户端
func NewArkLLM(client *ark.Client) *LLM {
	return &LLM{name: "ark", complete: client.Complete}
}

// Name 服务商名称
func (l *LLM) Name() string {
	return l.name
}

// GenerateScript 生成文案
func (l *LLM) GenerateScript(ctx context.Context, subject, language string, paragraphs int) (string, error) {
	raw, err := l.complete(ctx, videotools.ScriptSystemPrompt, videotools.BuildScriptPrompt(subject, language, paragraphs))
	if err != nil {
		return "", videotools.Classify(l.name, fmt.Errorf("generate script: %w", err))
	}

	script := videotools.CleanScript(raw)
	if script == "" {
		return "", videotools.Failuref(videotools.FailureInvalidInput, l.name, "model returned an empty script")
	}

	log.Debug().Str("provider", l.name).Int("script_len", len([]rune(script))).Msg("script generated")
	return script, nil
}

// GenerateTerms 生成素材搜索关键词
func (l *LLM) GenerateTerms(ctx context.Context, subject, script string, amount int) ([]string, error) {
	raw, err := l.complete(ctx, videotools.TermsSystemPrompt, videotools.BuildTermsPrompt(subject, script, amount))
	if err != nil {
		return nil, videotools.Classify(l.name, fmt.Errorf("generate terms: %w", err))
	}

	terms := videotools.ParseTerms(raw, amount)
	if len(terms) == 0 {
		return nil, videotools.Failuref(videotools.FailureNotFound, l.name, "no search terms in model output")
	}

	log.Debug().Str("provider", l.name).Strs("terms", terms).Msg("terms generated")
	return terms, nil
}
