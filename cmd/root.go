package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reelforge/internal/config"
	"reelforge/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "Reelforge - short video generation service",
	Long: `Reelforge turns a topic or a script into short videos.
It drives an LLM for script and keywords, a TTS provider for narration,
stock or local footage for visuals and ffmpeg for composition.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// 本地开发时从 .env 读取密钥，文件不存在时忽略
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.reelforge")
	}

	// 环境变量设置
	viper.SetEnvPrefix("REELFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}
	cfg.App.PexelsAPIKeys = config.NormalizeKeys(cfg.App.PexelsAPIKeys)
	cfg.App.PixabayAPIKeys = config.NormalizeKeys(cfg.App.PixabayAPIKeys)

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.allow_origins", []string{})

	// App
	viper.SetDefault("app.work_dir", "./storage/tasks")
	viper.SetDefault("app.song_dir", "./resource/songs")
	viper.SetDefault("app.font_dir", "./resource/fonts")
	viper.SetDefault("app.hide_log", false)
	viper.SetDefault("app.max_concurrent_tasks", 2)
	viper.SetDefault("app.script_paragraphs", 1)
	viper.SetDefault("app.terms_amount", 5)
	viper.SetDefault("app.download_workers", 4)

	// UI 默认参数
	viper.SetDefault("ui.language", "en-US")
	viper.SetDefault("ui.video_source", "pexels")
	viper.SetDefault("ui.video_concat_mode", "random")
	viper.SetDefault("ui.video_transition_mode", "none")
	viper.SetDefault("ui.video_aspect", "portrait")
	viper.SetDefault("ui.video_clip_duration", 3)
	viper.SetDefault("ui.voice_name", "azure:en-US-JennyNeural")
	viper.SetDefault("ui.voice_volume", 1.0)
	viper.SetDefault("ui.voice_rate", 1.0)
	viper.SetDefault("ui.bgm_type", "random")
	viper.SetDefault("ui.bgm_volume", 0.2)
	viper.SetDefault("ui.subtitle_enabled", true)
	viper.SetDefault("ui.font_name", "MicrosoftYaHeiBold.ttc")
	viper.SetDefault("ui.subtitle_position", "bottom")
	viper.SetDefault("ui.custom_position", 70.0)
	viper.SetDefault("ui.text_fore_color", "#FFFFFF")
	viper.SetDefault("ui.font_size", 60)
	viper.SetDefault("ui.stroke_color", "#000000")
	viper.SetDefault("ui.stroke_width", 1.5)

	// AI
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.options.max_tokens", 4096)
	viper.SetDefault("ai.options.top_p", 1.0)

	// TTS
	viper.SetDefault("tts.api_url", "https://openspeech.bytedance.com/api/v1/tts")
	viper.SetDefault("tts.cluster", "volcano_tts")
	viper.SetDefault("tts.sample_rate", 24000)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stderr")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "reelforge")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// Auth
	viper.SetDefault("auth.access_token_expiry", "24h")

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.publish", false)
	viper.SetDefault("storage.local.base_path", "./storage/public")
	viper.SetDefault("storage.local.base_url", "http://localhost:8080/storage")
	viper.SetDefault("storage.local.presign_expiry", 3600)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
