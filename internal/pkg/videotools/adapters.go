package videotools

import (
	"context"

	"reelforge/internal/model/video"
)

// ScriptGenerator 根据主题生成视频文案
// 具体的大模型调用由 providers 包实现，方便单测和替换
type ScriptGenerator interface {
	// GenerateScript 生成文案
	//
	// Args:
	//   - subject: 视频主题
	//   - language: 文案语言，空表示跟随主题
	//   - paragraphs: 段落数
	GenerateScript(ctx context.Context, subject, language string, paragraphs int) (string, error)
}

// TermsGenerator 根据主题和文案生成素材搜索关键词
type TermsGenerator interface {
	GenerateTerms(ctx context.Context, subject, script string, amount int) ([]string, error)
}

// VoiceSynthesizer 语音合成
type VoiceSynthesizer interface {
	// Synthesize 合成语音并写入 audioPath
	// 没有产生音频时必须返回错误，不能返回空结果
	//
	// Args:
	//   - text: 要朗读的文本
	//   - voiceName: 带服务商前缀的音色，如 azure:en-US-JennyNeural
	//   - rate: 语速倍数
	//   - audioPath: 音频输出路径
	Synthesize(ctx context.Context, text, voiceName string, rate float64, audioPath string) (*VoiceResult, error)
}

// MaterialResolver 素材获取
// 远程来源按关键词搜索并下载到 Dir，本地来源校验后原样返回
type MaterialResolver interface {
	Resolve(ctx context.Context, q MaterialQuery) ([]video.MaterialInfo, error)
}

// VoiceResult 语音合成结果
type VoiceResult struct {
	AudioPath string     `json:"audio_path"` // 音频文件路径
	Duration  float64    `json:"duration"`   // 音频时长（秒）
	Marks     []WordMark `json:"marks"`      // 词级时间戳，用于字幕对齐
}

// WordMark 词级时间戳
type WordMark struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"` // 秒
	End   float64 `json:"end"`   // 秒
}

// MaterialQuery 素材查询条件
type MaterialQuery struct {
	Source      video.VideoSource    // 素材来源
	Terms       []string             // 搜索关键词（远程来源）
	Materials   []video.MaterialInfo // 用户提供的素材（本地来源）
	Aspect      video.Aspect         // 画面比例
	MinDuration float64              // 单个素材的最短时长（秒）
	MaxTotal    float64              // 累计素材时长达到该值即可停止，0 表示不限
	Dir         string               // 下载目录
}
