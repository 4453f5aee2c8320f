package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"reelforge/internal/config"
)

// compatibleBaseURLs 兼容 OpenAI 协议的服务商默认地址
var compatibleBaseURLs = map[string]string{
	"deepseek": "https://api.deepseek.com",
	"moonshot": "https://api.moonshot.cn/v1",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"ollama":   "http://localhost:11434/v1",
}

// NewChatModel 创建 ChatModel
// 支持 openai, azure, ark 以及兼容 OpenAI 协议的 deepseek/moonshot/qwen/ollama
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIChatModel(ctx, cfg, cfg.BaseURL, false)
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires ai.base_url")
		}
		return newOpenAIChatModel(ctx, cfg, cfg.BaseURL, true)
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		baseURL, ok := compatibleBaseURLs[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
		}
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
		return newOpenAIChatModel(ctx, cfg, baseURL, false)
	}
}

// newOpenAIChatModel 创建 OpenAI 协议的 ChatModel
func newOpenAIChatModel(ctx context.Context, cfg *config.AIConfig, baseURL string, byAzure bool) (model.BaseChatModel, error) {
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.Provider == "ollama" {
		apiKey = "ollama"
	}

	modelCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  apiKey,
		BaseURL: baseURL,
		ByAzure: byAzure,
	}

	if cfg.Options.Temperature > 0 {
		temp := float32(cfg.Options.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.Options.MaxTokens > 0 {
		maxTokens := cfg.Options.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Options.TopP > 0 {
		topP := float32(cfg.Options.TopP)
		modelCfg.TopP = &topP
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel（使用 eino-ext 模块）
func newArkChatModel(ctx context.Context, cfg *config.AIConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "doubao-seed-1-6-flash-250615"
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   modelName,
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
	}

	if cfg.Options.Temperature > 0 {
		temp := float32(cfg.Options.Temperature)
		modelCfg.Temperature = &temp
	}
	if cfg.Options.MaxTokens > 0 {
		maxTokens := cfg.Options.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	if cfg.Options.TopP > 0 {
		topP := float32(cfg.Options.TopP)
		modelCfg.TopP = &topP
	}

	return arkext.NewChatModel(ctx, modelCfg)
}
