package video

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"reelforge/internal/config"
)

// ErrInvalidParams 参数校验失败
var ErrInvalidParams = errors.New("invalid video params")

// MaterialInfo 素材信息
// 由素材搜索产生或直接来自用户上传的文件，挂到 VideoParams 之后不再修改
type MaterialInfo struct {
	Provider string  `json:"provider" bson:"provider"`                     // pexels / pixabay / local
	URL      string  `json:"url" bson:"url"`                               // 远程地址或本地路径
	Duration float64 `json:"duration,omitempty" bson:"duration,omitempty"` // 时长（秒），图片为 0
}

// VideoParams 一次视频生成请求的全部参数
type VideoParams struct {
	// 文案
	VideoSubject  string   `json:"video_subject" bson:"video_subject"`
	VideoScript   string   `json:"video_script" bson:"video_script"`
	VideoTerms    []string `json:"video_terms,omitempty" bson:"video_terms,omitempty"`
	VideoLanguage string   `json:"video_language,omitempty" bson:"video_language,omitempty"`

	// 素材
	VideoSource    VideoSource    `json:"video_source" bson:"video_source"`
	VideoMaterials []MaterialInfo `json:"video_materials,omitempty" bson:"video_materials,omitempty"`

	// 合成
	VideoConcatMode     ConcatMode     `json:"video_concat_mode" bson:"video_concat_mode"`
	VideoTransitionMode TransitionMode `json:"video_transition_mode" bson:"video_transition_mode"`
	VideoAspect         Aspect         `json:"video_aspect" bson:"video_aspect"`
	VideoClipDuration   int            `json:"video_clip_duration" bson:"video_clip_duration"`
	VideoCount          int            `json:"video_count" bson:"video_count"`

	// 配音
	VoiceName   string  `json:"voice_name" bson:"voice_name"`
	VoiceVolume float64 `json:"voice_volume" bson:"voice_volume"`
	VoiceRate   float64 `json:"voice_rate" bson:"voice_rate"`

	// 背景音乐
	BgmType   BgmType `json:"bgm_type" bson:"bgm_type"`
	BgmFile   string  `json:"bgm_file,omitempty" bson:"bgm_file,omitempty"`
	BgmVolume float64 `json:"bgm_volume" bson:"bgm_volume"`

	// 字幕
	SubtitleEnabled  bool             `json:"subtitle_enabled" bson:"subtitle_enabled"`
	FontName         string           `json:"font_name" bson:"font_name"`
	SubtitlePosition SubtitlePosition `json:"subtitle_position" bson:"subtitle_position"`
	CustomPosition   float64          `json:"custom_position" bson:"custom_position"`
	TextForeColor    string           `json:"text_fore_color" bson:"text_fore_color"`
	StrokeColor      string           `json:"stroke_color" bson:"stroke_color"`
	FontSize         int              `json:"font_size" bson:"font_size"`
	StrokeWidth      float64          `json:"stroke_width" bson:"stroke_width"`
}

// Defaults 返回与界面默认值一致的参数
func Defaults() VideoParams {
	return VideoParams{
		VideoSource:         VideoSourcePexels,
		VideoConcatMode:     ConcatModeRandom,
		VideoTransitionMode: TransitionNone,
		VideoAspect:         AspectPortrait,
		VideoClipDuration:   3,
		VideoCount:          1,
		VoiceVolume:         1.0,
		VoiceRate:           1.0,
		BgmType:             BgmRandom,
		BgmVolume:           0.2,
		SubtitleEnabled:     true,
		SubtitlePosition:    SubtitleBottom,
		CustomPosition:      70,
		TextForeColor:       "#FFFFFF",
		StrokeColor:         "#000000",
		FontSize:            60,
		StrokeWidth:         1.5,
	}
}

// FromUIConfig 用表示层保存的偏好构造默认参数
// 未配置的字段回落到 Defaults()
func FromUIConfig(ui config.UIConfig) VideoParams {
	p := Defaults()
	p.VideoLanguage = ui.VideoLanguage
	if ui.VideoSource != "" {
		p.VideoSource = VideoSource(ui.VideoSource)
	}
	if ui.VideoConcatMode != "" {
		p.VideoConcatMode = ConcatMode(ui.VideoConcatMode)
	}
	if ui.VideoTransitionMode != "" {
		p.VideoTransitionMode = TransitionMode(ui.VideoTransitionMode)
	}
	if ui.VideoAspect != "" {
		p.VideoAspect = Aspect(ui.VideoAspect)
	}
	if ui.VideoClipDuration > 0 {
		p.VideoClipDuration = ui.VideoClipDuration
	}
	p.VoiceName = ui.VoiceName
	if ui.VoiceVolume > 0 {
		p.VoiceVolume = ui.VoiceVolume
	}
	if ui.VoiceRate > 0 {
		p.VoiceRate = ui.VoiceRate
	}
	if ui.BgmType != "" {
		p.BgmType = BgmType(ui.BgmType)
	}
	p.BgmVolume = ui.BgmVolume
	p.SubtitleEnabled = ui.SubtitleEnabled
	p.FontName = ui.FontName
	if ui.SubtitlePosition != "" {
		p.SubtitlePosition = SubtitlePosition(ui.SubtitlePosition)
	}
	p.CustomPosition = ui.CustomPosition
	if ui.TextForeColor != "" {
		p.TextForeColor = ui.TextForeColor
	}
	if ui.StrokeColor != "" {
		p.StrokeColor = ui.StrokeColor
	}
	if ui.FontSize > 0 {
		p.FontSize = ui.FontSize
	}
	p.StrokeWidth = ui.StrokeWidth
	return p
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate 校验参数不变量，不发起任何外部调用
// 返回的错误都包装了 ErrInvalidParams
func (p *VideoParams) Validate() error {
	subject := strings.TrimSpace(p.VideoSubject)
	script := strings.TrimSpace(p.VideoScript)
	if subject == "" && script == "" {
		return invalid("video subject and script cannot both be empty")
	}

	if !p.VideoSource.Valid() {
		return invalid("unsupported video source %q", p.VideoSource)
	}
	if p.VideoSource == VideoSourceLocal {
		if len(p.VideoMaterials) == 0 {
			return invalid("local video source requires at least one material")
		}
		for i, m := range p.VideoMaterials {
			if strings.TrimSpace(m.URL) == "" {
				return invalid("material %d has empty path", i)
			}
		}
	}

	if !p.VideoConcatMode.Valid() {
		return invalid("unsupported concat mode %q", p.VideoConcatMode)
	}
	if !p.VideoTransitionMode.Valid() {
		return invalid("unsupported transition mode %q", p.VideoTransitionMode)
	}
	if !p.VideoAspect.Valid() {
		return invalid("unsupported video aspect %q", p.VideoAspect)
	}
	if p.VideoClipDuration <= 0 {
		return invalid("video clip duration must be positive, got %d", p.VideoClipDuration)
	}
	if p.VideoCount < MinVideoCount || p.VideoCount > MaxVideoCount {
		return invalid("video count must be within [%d,%d], got %d", MinVideoCount, MaxVideoCount, p.VideoCount)
	}

	if strings.TrimSpace(p.VoiceName) == "" {
		return invalid("voice name is required")
	}
	if p.VoiceVolume <= 0 {
		return invalid("voice volume must be positive, got %v", p.VoiceVolume)
	}
	if p.VoiceRate <= 0 {
		return invalid("voice rate must be positive, got %v", p.VoiceRate)
	}

	if !p.BgmType.Valid() {
		return invalid("unsupported bgm type %q", p.BgmType)
	}
	if p.BgmType == BgmCustom {
		if p.BgmFile == "" {
			return invalid("custom bgm requires a file")
		}
		if _, err := os.Stat(p.BgmFile); err != nil {
			return invalid("custom bgm file %q not found", p.BgmFile)
		}
	}
	if p.BgmVolume < 0 || p.BgmVolume > 1 {
		return invalid("bgm volume must be within [0,1], got %v", p.BgmVolume)
	}

	if !p.SubtitlePosition.Valid() {
		return invalid("unsupported subtitle position %q", p.SubtitlePosition)
	}
	if p.SubtitlePosition == SubtitleCustom && (p.CustomPosition < 0 || p.CustomPosition > 100) {
		return invalid("custom subtitle position must be within [0,100], got %v", p.CustomPosition)
	}
	if p.SubtitleEnabled {
		if !colorPattern.MatchString(p.TextForeColor) {
			return invalid("invalid text fore color %q", p.TextForeColor)
		}
		if !colorPattern.MatchString(p.StrokeColor) {
			return invalid("invalid stroke color %q", p.StrokeColor)
		}
		if p.FontSize <= 0 {
			return invalid("font size must be positive, got %d", p.FontSize)
		}
		if p.StrokeWidth < 0 {
			return invalid("stroke width must be non-negative, got %v", p.StrokeWidth)
		}
	}

	return nil
}

// Clone 深拷贝，编排器持有自己的副本
func (p VideoParams) Clone() VideoParams {
	c := p
	if p.VideoTerms != nil {
		c.VideoTerms = append([]string(nil), p.VideoTerms...)
	}
	if p.VideoMaterials != nil {
		c.VideoMaterials = append([]MaterialInfo(nil), p.VideoMaterials...)
	}
	return c
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
