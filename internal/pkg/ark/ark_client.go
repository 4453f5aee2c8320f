package ark

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"reelforge/internal/config"
)

const (
	defaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultModel   = "doubao-seed-1-6-flash-250615"
)

// Client Ark 客户端封装
// 用于调用火山引擎的 Ark API（豆包大模型），使用官方 volcengine-go-sdk
type Client struct {
	client  *arkruntime.Client
	model   string
	options config.AIOptionsConfig
}

// NewClient 创建 Ark 客户端
func NewClient(cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ark api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	return &Client{
		client:  arkruntime.NewClientWithApiKey(cfg.APIKey, arkruntime.WithBaseUrl(baseURL)),
		model:   modelName,
		options: cfg.Options,
	}, nil
}

// Model 当前使用的模型
func (c *Client) Model() string {
	return c.model
}

// Complete 单轮对话，system 为空时只发送用户消息
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	var messages []*model.ChatCompletionMessage
	if system != "" {
		messages = append(messages, newMessage("system", system))
	}
	messages = append(messages, newMessage("user", prompt))

	req := &model.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.options.MaxTokens > 0 {
		req.MaxTokens = c.options.MaxTokens
	}
	if c.options.Temperature > 0 {
		req.Temperature = float32(c.options.Temperature)
	}
	if c.options.TopP > 0 {
		req.TopP = float32(c.options.TopP)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Msg("failed to call Ark ChatCompletion API")
		return "", fmt.Errorf("ark chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ark chat completion: no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == nil || content.StringValue == nil {
		return "", fmt.Errorf("ark chat completion: empty content")
	}
	return *content.StringValue, nil
}

func newMessage(role, text string) *model.ChatCompletionMessage {
	return &model.ChatCompletionMessage{
		Role:    role,
		Content: &model.ChatCompletionMessageContent{StringValue: &text},
	}
}
