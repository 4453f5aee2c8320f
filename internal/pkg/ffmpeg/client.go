package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client FFmpeg 客户端
// 用于封装 FFmpeg 命令调用
type Client struct {
	ffmpegPath  string // FFmpeg 可执行文件路径（默认: ffmpeg）
	ffprobePath string // FFprobe 可执行文件路径（默认: ffprobe）
}

// NewClient 创建 FFmpeg 客户端
func NewClient() *Client {
	ffmpegPath := os.Getenv("FFMPEG_PATH")
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ffprobePath := os.Getenv("FFPROBE_PATH")
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// MediaInfo 媒体信息
type MediaInfo struct {
	Width    int     // 宽度，纯音频为 0
	Height   int     // 高度，纯音频为 0
	FPS      float64 // 帧率
	Duration float64 // 时长（秒）
	HasAudio bool    // 是否包含音频流
}

// probeOutput ffprobe -of json 的输出结构
type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 获取媒体信息
func (c *Client) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return ParseProbeOutput(output)
}

// ParseProbeOutput 解析 ffprobe 的 JSON 输出
func ParseProbeOutput(data []byte) (*MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
		info.Duration = d
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
				info.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}

	return info, nil
}

// parseFrameRate 解析 "30000/1001" 格式的帧率
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// GetMediaDuration 获取媒体时长（秒）
func (c *Client) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	info, err := c.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// IsImage 根据扩展名判断是否为图片素材
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

// ClipSpec 单个片段的裁剪参数
type ClipSpec struct {
	Input    string  // 源文件（视频或图片）
	Output   string  // 输出文件
	Start    float64 // 起始时间（秒），图片忽略
	Duration float64 // 片段时长（秒）
	Width    int
	Height   int
	FPS      int
}

// CutClip 从素材中截取一段并标准化为目标分辨率和帧率（去掉原音轨）
// 图片素材生成带缓慢推进效果的静态片段
func (c *Client) CutClip(ctx context.Context, spec ClipSpec) error {
	if spec.FPS <= 0 {
		spec.FPS = 30
	}
	if err := c.run(ctx, BuildCutArgs(spec)); err != nil {
		return fmt.Errorf("ffmpeg cut clip %s: %w", spec.Input, err)
	}

	log.Debug().
		Str("input", spec.Input).
		Str("output", spec.Output).
		Float64("start", spec.Start).
		Float64("duration", spec.Duration).
		Msg("clip cut")
	return nil
}

// BuildCutArgs 生成 CutClip 的命令行参数
func BuildCutArgs(spec ClipSpec) []string {
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		spec.Width, spec.Height, spec.Width, spec.Height)
	dur := fmt.Sprintf("%.3f", spec.Duration)

	if IsImage(spec.Input) {
		frames := int(spec.Duration * float64(spec.FPS))
		zoom := fmt.Sprintf("zoompan=z='min(1.0+on*0.0008,1.3)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d",
			frames, spec.Width, spec.Height, spec.FPS)
		return []string{
			"-y",
			"-loop", "1",
			"-i", spec.Input,
			"-t", dur,
			"-vf", scale + "," + zoom + ",format=yuv420p",
			"-an",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-r", strconv.Itoa(spec.FPS),
			spec.Output,
		}
	}

	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", spec.Start),
		"-i", spec.Input,
		"-t", dur,
		"-vf", scale + ",format=yuv420p",
		"-an",
		"-r", strconv.Itoa(spec.FPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		spec.Output,
	}
}

// ConcatVideos 合并多个视频文件
// 使用 concat demuxer（需要创建 concat list 文件），输入必须已标准化
func (c *Client) ConcatVideos(ctx context.Context, videoPaths []string, outputPath string) error {
	if len(videoPaths) == 0 {
		return fmt.Errorf("no videos to concat")
	}

	listFile := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".concat.txt"
	var buf bytes.Buffer
	for _, p := range videoPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("get absolute path: %w", err)
		}
		fmt.Fprintf(&buf, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outputPath,
	}
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}

	log.Debug().Int("count", len(videoPaths)).Str("output", outputPath).Msg("videos concatenated")
	return nil
}

// ConcatWithTransitions 使用 xfade 拼接视频
// transitions[i] 是第 i 与 i+1 段之间的 xfade 转场名称
func (c *Client) ConcatWithTransitions(ctx context.Context, videoPaths []string, durations []float64,
	transitions []string, transitionDuration float64, fps int, outputPath string) error {
	if len(videoPaths) == 0 {
		return fmt.Errorf("no videos to concat")
	}
	if len(videoPaths) == 1 {
		return c.ConcatVideos(ctx, videoPaths, outputPath)
	}

	filter, err := BuildXfadeFilter(durations, transitions, transitionDuration)
	if err != nil {
		return err
	}

	args := []string{"-y"}
	for _, p := range videoPaths {
		args = append(args, "-i", p)
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		outputPath,
	)
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg xfade concat: %w", err)
	}

	log.Debug().Int("count", len(videoPaths)).Str("output", outputPath).Msg("videos concatenated with transitions")
	return nil
}

// BuildXfadeFilter 生成 xfade 链式滤镜，输出标签为 [vout]
func BuildXfadeFilter(durations []float64, transitions []string, transitionDuration float64) (string, error) {
	n := len(durations)
	if n < 2 {
		return "", fmt.Errorf("xfade needs at least 2 inputs, got %d", n)
	}
	if len(transitions) != n-1 {
		return "", fmt.Errorf("xfade needs %d transitions, got %d", n-1, len(transitions))
	}

	parts := make([]string, 0, n-1)
	offset := 0.0
	last := "[0:v]"
	for i := 1; i < n; i++ {
		offset += durations[i-1] - transitionDuration
		if offset < 0 {
			offset = 0
		}
		out := fmt.Sprintf("[x%d]", i)
		if i == n-1 {
			out = "[vout]"
		}
		parts = append(parts, fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%.2f:offset=%.3f%s",
			last, i, transitions[i-1], transitionDuration, offset, out))
		last = out
	}
	return strings.Join(parts, ";"), nil
}

// BurnSubtitles 将 ASS 字幕烧录进视频
// fontsDir 非空时作为 libass 的字体目录
func (c *Client) BurnSubtitles(ctx context.Context, videoPath, assPath, fontsDir, outputPath string) error {
	vf := "ass=" + EscapeFilterPath(assPath)
	if fontsDir != "" {
		vf += ":fontsdir=" + EscapeFilterPath(fontsDir)
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "copy",
		outputPath,
	}
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg burn subtitles: %w", err)
	}

	log.Debug().Str("video", videoPath).Str("subtitle", assPath).Msg("subtitles burned")
	return nil
}

// MixSpec 音视频合成参数
type MixSpec struct {
	VideoPath   string  // 无音轨的视频
	VoicePath   string  // 配音
	VoiceVolume float64 // 配音音量倍数
	BgmPath     string  // 背景音乐，可为空
	BgmVolume   float64 // 背景音乐音量倍数
	Duration    float64 // 输出时长（秒），通常为配音时长
	OutputPath  string
}

// MixAudio 合成配音与背景音乐并封装到视频
func (c *Client) MixAudio(ctx context.Context, spec MixSpec) error {
	if err := c.run(ctx, BuildMixArgs(spec)); err != nil {
		return fmt.Errorf("ffmpeg mix audio: %w", err)
	}

	log.Debug().
		Str("video", spec.VideoPath).
		Str("voice", spec.VoicePath).
		Str("bgm", spec.BgmPath).
		Str("output", spec.OutputPath).
		Msg("audio mixed")
	return nil
}

// BuildMixArgs 生成 MixAudio 的命令行参数
// 背景音乐循环播放，按配音时长截断
func BuildMixArgs(spec MixSpec) []string {
	args := []string{"-y", "-i", spec.VideoPath, "-i", spec.VoicePath}

	var filter string
	if spec.BgmPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", spec.BgmPath)
		filter = fmt.Sprintf(
			"[1:a]volume=%.2f[voice];[2:a]volume=%.2f[bgm];[voice][bgm]amix=inputs=2:duration=first:dropout_transition=2:normalize=0[aout]",
			spec.VoiceVolume, spec.BgmVolume)
	} else {
		filter = fmt.Sprintf("[1:a]volume=%.2f[aout]", spec.VoiceVolume)
	}

	args = append(args,
		"-filter_complex", filter,
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
	)
	if spec.Duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", spec.Duration))
	}
	args = append(args, "-movflags", "+faststart", spec.OutputPath)
	return args
}

// EscapeFilterPath 转义滤镜参数中的路径
func EscapeFilterPath(p string) string {
	p = filepath.ToSlash(p)
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`)
	return r.Replace(p)
}

// run 执行 ffmpeg，失败时返回 stderr 末尾
func (c *Client) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
