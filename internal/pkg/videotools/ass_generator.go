package videotools

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"reelforge/internal/model/video"
)

// SubtitleStyle 字幕样式
type SubtitleStyle struct {
	FontName       string                 // 字体文件名或字体族名
	FontSize       int                    // 字号（以视频高度为基准的像素）
	PrimaryColor   string                 // 文字颜色 #RRGGBB
	OutlineColor   string                 // 描边颜色 #RRGGBB
	StrokeWidth    float64                // 描边宽度
	Position       video.SubtitlePosition // 字幕位置
	CustomPosition float64                // 自定义位置，距顶部的百分比
	Width          int                    // 视频宽度
	Height         int                    // 视频高度
}

// StyleFromParams 从视频参数构造字幕样式
func StyleFromParams(p video.VideoParams) SubtitleStyle {
	w, h := p.VideoAspect.Resolution()
	return SubtitleStyle{
		FontName:       p.FontName,
		FontSize:       p.FontSize,
		PrimaryColor:   p.TextForeColor,
		OutlineColor:   p.StrokeColor,
		StrokeWidth:    p.StrokeWidth,
		Position:       p.SubtitlePosition,
		CustomPosition: p.CustomPosition,
		Width:          w,
		Height:         h,
	}
}

// ASSGenerator ASS字幕生成器
type ASSGenerator struct{}

// NewASSGenerator 创建ASS字幕生成器实例
func NewASSGenerator() *ASSGenerator {
	return &ASSGenerator{}
}

// Generate 生成ASS格式内容
func (ag *ASSGenerator) Generate(segments []SegmentTimestamp, style SubtitleStyle) string {
	if style.Width <= 0 || style.Height <= 0 {
		style.Width, style.Height = 1080, 1920
	}

	alignment, marginV := 2, style.Height/20
	switch style.Position {
	case video.SubtitleTop:
		alignment = 8
	case video.SubtitleCenter:
		alignment, marginV = 5, 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, `[Script Info]
ScriptType: v4.00+
WrapStyle: 0
ScaledBorderAndShadow: yes
YCbCr Matrix: TV.709
PlayResX: %d
PlayResY: %d

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,%d,%s,&H000000FF,%s,&H00000000,0,0,0,0,100,100,0,0,1,%.1f,0,%d,40,40,%d,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`,
		style.Width, style.Height,
		FontFamily(style.FontName), style.FontSize,
		ASSColor(style.PrimaryColor), ASSColor(style.OutlineColor),
		style.StrokeWidth, alignment, marginV)

	prefix := ""
	if style.Position == video.SubtitleCustom {
		// 自定义位置按距顶部百分比定位，并保证整行留在画面内
		y := float64(style.Height-style.FontSize) * style.CustomPosition / 100
		y = math.Max(0, y) + float64(style.FontSize)/2
		prefix = fmt.Sprintf(`{\an5\pos(%d,%d)}`, style.Width/2, int(math.Round(y)))
	}

	for _, seg := range segments {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s%s\n",
			FormatASSTime(seg.StartTime), FormatASSTime(seg.EndTime), prefix, escapeASSText(seg.Text))
	}
	return b.String()
}

// FormatASSTime 将秒数转换为ASS时间格式 (H:MM:SS.CC)
func FormatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(math.Round(seconds * 100))
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

// ASSColor 将 #RRGGBB 转为 ASS 的 &H00BBGGRR
func ASSColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "&H00FFFFFF"
	}
	return strings.ToUpper(fmt.Sprintf("&H00%s%s%s", hex[4:6], hex[2:4], hex[0:2]))
}

// FontFamily 字体文件名去掉扩展名作为字体族名
func FontFamily(fontName string) string {
	if fontName == "" {
		return "Arial"
	}
	base := filepath.Base(fontName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// escapeASSText 去掉会被当作样式标签的花括号，换行转为 \N
func escapeASSText(text string) string {
	r := strings.NewReplacer("{", "", "}", "", "\r\n", `\N`, "\n", `\N`)
	return r.Replace(text)
}
