package task

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/ffmpeg"
	"reelforge/internal/pkg/videotools"
)

const (
	defaultFPS                = 30
	defaultTransitionDuration = 0.5
	maxClips                  = 500
)

// mediaTool ffmpeg.Client 中合成用到的部分
type mediaTool interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	CutClip(ctx context.Context, spec ffmpeg.ClipSpec) error
	ConcatVideos(ctx context.Context, videoPaths []string, outputPath string) error
	ConcatWithTransitions(ctx context.Context, videoPaths []string, durations []float64, transitions []string, transitionDuration float64, fps int, outputPath string) error
	BurnSubtitles(ctx context.Context, videoPath, assPath, fontsDir, outputPath string) error
	MixAudio(ctx context.Context, spec ffmpeg.MixSpec) error
}

// FFmpegComposer 基于 ffmpeg 的成片合成
// 流程：裁剪素材 → 拼接（可选转场）→ 烧录字幕 → 混合配音和背景音乐
type FFmpegComposer struct {
	tool               mediaTool
	songDir            string
	fontDir            string
	segmenter          *gse.Segmenter
	fps                int
	transitionDuration float64
}

// NewFFmpegComposer 创建合成器
// segmenter 为 nil 时字幕按字符和空白切分
func NewFFmpegComposer(client *ffmpeg.Client, songDir, fontDir string, segmenter *gse.Segmenter) *FFmpegComposer {
	return &FFmpegComposer{
		tool:               client,
		songDir:            songDir,
		fontDir:            fontDir,
		segmenter:          segmenter,
		fps:                defaultFPS,
		transitionDuration: defaultTransitionDuration,
	}
}

// Compose 实现 Composer
func (c *FFmpegComposer) Compose(ctx context.Context, req ComposeRequest) error {
	p := req.Params
	rnd := rand.New(rand.NewSource(req.Seed))
	width, height := p.VideoAspect.Resolution()
	logger := log.With().Str("task_id", req.TaskID).Int("index", req.Index).Logger()

	sources, err := c.clipSources(ctx, req.Materials, float64(p.VideoClipDuration))
	if err != nil {
		return err
	}

	overlap := 0.0
	if p.VideoTransitionMode != video.TransitionNone {
		overlap = c.transitionDuration
	}
	plan, covered := planClips(sources, float64(p.VideoClipDuration), req.Voice.Duration, overlap)
	if len(plan) == 0 {
		return fmt.Errorf("no clips planned from %d material(s)", len(req.Materials))
	}
	if covered < req.Voice.Duration {
		logger.Warn().
			Int("clips", len(plan)).
			Float64("covered", covered).
			Float64("narration", req.Voice.Duration).
			Msg("clip limit reached, video is shorter than narration")
	}

	clips := make([]string, 0, len(plan))
	durations := make([]float64, 0, len(plan))
	for i, cp := range plan {
		out := filepath.Join(req.TempDir, fmt.Sprintf("clip-%03d.mp4", i))
		spec := ffmpeg.ClipSpec{
			Input:    cp.Path,
			Output:   out,
			Start:    cp.Start,
			Duration: cp.Duration,
			Width:    width,
			Height:   height,
			FPS:      c.fps,
		}
		if err := c.tool.CutClip(ctx, spec); err != nil {
			return err
		}
		clips = append(clips, out)
		durations = append(durations, cp.Duration)
	}
	logger.Debug().Int("clips", len(clips)).Msg("clips prepared")

	current := filepath.Join(req.TempDir, "combined.mp4")
	if p.VideoTransitionMode == video.TransitionNone || len(clips) == 1 {
		err = c.tool.ConcatVideos(ctx, clips, current)
	} else {
		transitions := make([]string, len(clips)-1)
		for i := range transitions {
			transitions[i] = xfadeTransition(p.VideoTransitionMode, rnd)
		}
		err = c.tool.ConcatWithTransitions(ctx, clips, durations, transitions, c.transitionDuration, c.fps, current)
	}
	if err != nil {
		return err
	}

	if p.SubtitleEnabled {
		assPath := filepath.Join(req.TempDir, "subtitle.ass")
		if err := c.writeSubtitles(req, assPath); err != nil {
			return err
		}
		subtitled := filepath.Join(req.TempDir, "subtitled.mp4")
		if err := c.tool.BurnSubtitles(ctx, current, assPath, c.fontDir, subtitled); err != nil {
			return err
		}
		current = subtitled
	}

	bgm, err := c.pickBGM(p, rnd)
	if err != nil {
		return err
	}

	return c.tool.MixAudio(ctx, ffmpeg.MixSpec{
		VideoPath:   current,
		VoicePath:   req.Voice.AudioPath,
		VoiceVolume: p.VoiceVolume,
		BgmPath:     bgm,
		BgmVolume:   p.BgmVolume,
		Duration:    req.Voice.Duration,
		OutputPath:  req.OutputPath,
	})
}

// clipSource 可裁剪的素材
type clipSource struct {
	Path     string
	Duration float64
}

// clipPlan 一个待裁剪的片段
type clipPlan struct {
	Path     string
	Start    float64
	Duration float64
}

// clipSources 获取素材时长，图片按片段时长处理
func (c *FFmpegComposer) clipSources(ctx context.Context, materials []video.MaterialInfo, clip float64) ([]clipSource, error) {
	out := make([]clipSource, 0, len(materials))
	for _, m := range materials {
		if ffmpeg.IsImage(m.URL) {
			out = append(out, clipSource{Path: m.URL, Duration: clip})
			continue
		}
		d := m.Duration
		if d <= 0 {
			info, err := c.tool.Probe(ctx, m.URL)
			if err != nil {
				return nil, fmt.Errorf("probe material %s: %w", m.URL, err)
			}
			d = info.Duration
		}
		if d <= 0 {
			log.Warn().Str("material", m.URL).Msg("skip material without duration")
			continue
		}
		out = append(out, clipSource{Path: m.URL, Duration: d})
	}
	return out, nil
}

// planClips 把素材切成不超过 clip 秒的片段，依次取用直到覆盖 target
// 素材不够时从头循环，overlap 为每个转场重叠掉的时长
// 返回计划和实际覆盖的时长，片段数达到 maxClips 时覆盖时长可能小于 target
func planClips(sources []clipSource, clip, target, overlap float64) ([]clipPlan, float64) {
	if len(sources) == 0 || clip <= 0 {
		return nil, 0
	}

	var segments []clipPlan
	for _, s := range sources {
		if s.Duration <= clip {
			segments = append(segments, clipPlan{Path: s.Path, Duration: s.Duration})
			continue
		}
		for start := 0.0; start+clip <= s.Duration+1e-6; start += clip {
			segments = append(segments, clipPlan{Path: s.Path, Start: start, Duration: clip})
		}
	}

	var (
		plan  []clipPlan
		total float64
	)
	for i := 0; len(plan) < maxClips; i++ {
		seg := segments[i%len(segments)]
		// 转场重叠后仍需保留正向时长
		if overlap > 0 && seg.Duration <= overlap {
			if i >= len(segments) && len(plan) == 0 {
				break
			}
			continue
		}
		plan = append(plan, seg)
		total += seg.Duration
		if len(plan) > 1 {
			total -= overlap
		}
		if total >= target {
			break
		}
	}
	return plan, total
}

// xfadeTransition 把转场模式映射为 xfade 转场名称
func xfadeTransition(mode video.TransitionMode, rnd *rand.Rand) string {
	switch mode {
	case video.TransitionFadeIn:
		return "fade"
	case video.TransitionFadeOut:
		return "fadeblack"
	case video.TransitionSlideIn:
		return "slideleft"
	case video.TransitionSlideOut:
		return "slideright"
	default:
		return shuffleTransitions[rnd.Intn(len(shuffleTransitions))]
	}
}

var shuffleTransitions = []string{
	"fade", "fadeblack", "fadewhite", "dissolve",
	"slideleft", "slideright", "slideup", "slidedown",
	"wipeleft", "wiperight", "circleopen", "circleclose",
}

// writeSubtitles 按配音文本生成 ASS 字幕
func (c *FFmpegComposer) writeSubtitles(req ComposeRequest, path string) error {
	text := strings.TrimSpace(req.Narration)
	if text == "" {
		return fmt.Errorf("no narration for subtitles")
	}

	splitter := videotools.NewSubtitleSplitter(videotools.SuggestMaxLength(text), c.segmenter)
	segments := splitter.SplitTextNaturally(text)
	timestamps := videotools.NewSubtitleTimestampCalculator().Calculate(segments, req.Voice.Marks, req.Voice.Duration)
	if len(timestamps) == 0 {
		return fmt.Errorf("no subtitle segments from narration")
	}
	for _, ts := range timestamps {
		if ts.EndTime <= ts.StartTime || math.IsNaN(ts.StartTime) {
			return fmt.Errorf("malformed subtitle timing %.3f-%.3f for %q", ts.StartTime, ts.EndTime, ts.Text)
		}
	}

	content := videotools.NewASSGenerator().Generate(timestamps, videotools.StyleFromParams(req.Params))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

// pickBGM 选择背景音乐，random 模式目录为空时不加背景音乐
func (c *FFmpegComposer) pickBGM(p video.VideoParams, rnd *rand.Rand) (string, error) {
	switch p.BgmType {
	case video.BgmCustom:
		if _, err := os.Stat(p.BgmFile); err != nil {
			return "", fmt.Errorf("bgm file: %w", err)
		}
		return p.BgmFile, nil
	case video.BgmRandom:
		songs, err := listSongs(c.songDir)
		if err != nil || len(songs) == 0 {
			log.Warn().Err(err).Str("dir", c.songDir).Msg("no background music found, skipping")
			return "", nil
		}
		return songs[rnd.Intn(len(songs))], nil
	default:
		return "", nil
	}
}

// listSongs 列出目录下的 mp3，按名称排序保证随机结果可复现
func listSongs(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
