package config

import (
	"errors"
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	App     AppConfig     `mapstructure:"app"`
	UI      UIConfig      `mapstructure:"ui"`
	AI      AIConfig      `mapstructure:"ai"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Azure   AzureConfig   `mapstructure:"azure"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"` // 为空时允许所有来源
}

// AppConfig 视频生成相关配置
type AppConfig struct {
	WorkDir            string   `mapstructure:"work_dir"`             // 任务工作目录（每个任务一个子目录）
	SongDir            string   `mapstructure:"song_dir"`             // 随机背景音乐目录
	FontDir            string   `mapstructure:"font_dir"`             // 字幕字体目录
	PexelsAPIKeys      []string `mapstructure:"pexels_api_keys"`      // Pexels API Key（支持多个轮换）
	PixabayAPIKeys     []string `mapstructure:"pixabay_api_keys"`     // Pixabay API Key（支持多个轮换）
	HideLog            bool     `mapstructure:"hide_log"`             // 是否隐藏进度日志
	MaxConcurrentTasks int      `mapstructure:"max_concurrent_tasks"` // HTTP 模式下同时运行的任务上限
	ScriptParagraphs   int      `mapstructure:"script_paragraphs"`    // 生成文案段落数
	TermsAmount        int      `mapstructure:"terms_amount"`         // 生成关键词数量
	DownloadWorkers    int      `mapstructure:"download_workers"`     // 素材并发下载数
}

// UIConfig 表示层保存的默认参数
// 只在构造 VideoParams 时使用，编排器本身不读取
type UIConfig struct {
	Language            string  `mapstructure:"language"`
	VideoLanguage       string  `mapstructure:"video_language"`
	VideoSource         string  `mapstructure:"video_source"`
	VideoConcatMode     string  `mapstructure:"video_concat_mode"`
	VideoTransitionMode string  `mapstructure:"video_transition_mode"`
	VideoAspect         string  `mapstructure:"video_aspect"`
	VideoClipDuration   int     `mapstructure:"video_clip_duration"`
	VoiceName           string  `mapstructure:"voice_name"`
	VoiceVolume         float64 `mapstructure:"voice_volume"`
	VoiceRate           float64 `mapstructure:"voice_rate"`
	BgmType             string  `mapstructure:"bgm_type"`
	BgmVolume           float64 `mapstructure:"bgm_volume"`
	SubtitleEnabled     bool    `mapstructure:"subtitle_enabled"`
	FontName            string  `mapstructure:"font_name"`
	SubtitlePosition    string  `mapstructure:"subtitle_position"`
	CustomPosition      float64 `mapstructure:"custom_position"`
	TextForeColor       string  `mapstructure:"text_fore_color"`
	FontSize            int     `mapstructure:"font_size"`
	StrokeColor         string  `mapstructure:"stroke_color"`
	StrokeWidth         float64 `mapstructure:"stroke_width"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// TTSConfig 火山引擎 TTS 配置
type TTSConfig struct {
	APIURL      string `mapstructure:"api_url"`
	AccessToken string `mapstructure:"access_token"`
	AppID       string `mapstructure:"app_id"`
	Cluster     string `mapstructure:"cluster"`
	SampleRate  int    `mapstructure:"sample_rate"`
}

// AzureConfig Azure 语音服务配置（region + key）
type AzureConfig struct {
	SpeechRegion string `mapstructure:"speech_region"`
	SpeechKey    string `mapstructure:"speech_key"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 认证配置
// JWTSecret 为空时任务接口不做鉴权
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type    string       `mapstructure:"type"`    // local, oss
	Publish bool         `mapstructure:"publish"` // 任务成功后是否上传成片
	Local   *LocalConfig `mapstructure:"local,omitempty"`
	OSS     *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath      string `mapstructure:"base_path"`      // 基础路径
	BaseURL       string `mapstructure:"base_url"`       // 基础URL（用于生成访问URL）
	PresignExpiry int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.App.WorkDir == "" {
		return errors.New("app.work_dir is required")
	}

	return nil
}

// NormalizeKeys 展开 "k1,k2" 形式的 key 配置并去掉空值
// 环境变量只能传字符串，所以这里统一处理
func NormalizeKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
