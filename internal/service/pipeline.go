package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"reelforge/internal/ai/component"
	"reelforge/internal/config"
	"reelforge/internal/model/video"
	"reelforge/internal/pkg/ark"
	"reelforge/internal/pkg/ffmpeg"
	"reelforge/internal/pkg/tts"
	"reelforge/internal/pkg/videotools"
	"reelforge/internal/pkg/videotools/providers"
	"reelforge/internal/service/task"
)

// Pipeline 由配置组装出的编排器及其适配器
type Pipeline struct {
	Orchestrator *task.Orchestrator
	Voices       *providers.VoiceRouter
	FFmpeg       *ffmpeg.Client
}

// NewPipeline 根据配置创建适配器并组装编排器
// 缺少某个服务的凭据时只记录警告，真正用到时由编排器在校验阶段报错
func NewPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	ff := ffmpeg.NewClient()

	llm, err := newLLM(ctx, &cfg.AI)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("LLM not configured, subject-only tasks will be rejected")
	}

	voices := newVoiceRouter(cfg, ff)
	if len(voices.Providers()) == 0 {
		log.Warn().Msg("no voice provider configured")
	}

	workers := cfg.App.DownloadWorkers
	materials := providers.NewMaterialRouter()
	if keys := config.NormalizeKeys(cfg.App.PexelsAPIKeys); len(keys) > 0 {
		materials.Register(video.VideoSourcePexels, providers.NewStockResolver(providers.NewPexels(), keys, workers))
	}
	if keys := config.NormalizeKeys(cfg.App.PixabayAPIKeys); len(keys) > 0 {
		materials.Register(video.VideoSourcePixabay, providers.NewStockResolver(providers.NewPixabay(), keys, workers))
	}

	o := &task.Orchestrator{
		Voice:            voices,
		Materials:        materials,
		Composer:         task.NewFFmpegComposer(ff, cfg.App.SongDir, cfg.App.FontDir, videotools.DefaultSegmenter()),
		Keys:             task.KeysFromConfig(cfg.App),
		WorkDir:          cfg.App.WorkDir,
		ScriptParagraphs: cfg.App.ScriptParagraphs,
		TermsAmount:      cfg.App.TermsAmount,
	}
	// 避免把 nil 指针装进接口
	if llm != nil {
		o.Script = llm
		o.Terms = llm
	}

	return &Pipeline{Orchestrator: o, Voices: voices, FFmpeg: ff}, nil
}

// newLLM volcengine 使用官方 SDK，其余走 eino ChatModel
func newLLM(ctx context.Context, cfg *config.AIConfig) (*providers.LLM, error) {
	if cfg.Provider == "volcengine" {
		client, err := ark.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return providers.NewArkLLM(client), nil
	}

	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, fmt.Errorf("ai.api_key is required for provider %q", cfg.Provider)
	}
	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	return providers.NewEinoLLM(name, chatModel), nil
}

func newVoiceRouter(cfg *config.Config, ff *ffmpeg.Client) *providers.VoiceRouter {
	router := providers.NewVoiceRouter("azure")
	if cfg.Azure.SpeechKey != "" && cfg.Azure.SpeechRegion != "" {
		router.Register("azure", providers.NewAzureTTS(cfg.Azure, ff))
	}
	if cfg.TTS.AccessToken != "" {
		client, err := tts.NewClient(cfg.TTS)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create volcengine TTS client")
		} else {
			router.Register("volc", providers.NewVolcTTS(client))
		}
	}
	return router
}
