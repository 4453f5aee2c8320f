package task

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/ffmpeg"
	"reelforge/internal/pkg/videotools"
)

// fakeMediaTool 记录调用，输出文件写入占位内容
type fakeMediaTool struct {
	probed      []string
	cuts        []ffmpeg.ClipSpec
	concat      []string
	transitions []string
	burned      string
	mix         *ffmpeg.MixSpec
	durations   map[string]float64
}

func (f *fakeMediaTool) Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	f.probed = append(f.probed, path)
	return &ffmpeg.MediaInfo{Duration: f.durations[path]}, nil
}

func (f *fakeMediaTool) CutClip(ctx context.Context, spec ffmpeg.ClipSpec) error {
	f.cuts = append(f.cuts, spec)
	return os.WriteFile(spec.Output, []byte("clip"), 0o644)
}

func (f *fakeMediaTool) ConcatVideos(ctx context.Context, videoPaths []string, outputPath string) error {
	f.concat = videoPaths
	return os.WriteFile(outputPath, []byte("concat"), 0o644)
}

func (f *fakeMediaTool) ConcatWithTransitions(ctx context.Context, videoPaths []string, durations []float64, transitions []string, transitionDuration float64, fps int, outputPath string) error {
	f.concat = videoPaths
	f.transitions = transitions
	return os.WriteFile(outputPath, []byte("xfade"), 0o644)
}

func (f *fakeMediaTool) BurnSubtitles(ctx context.Context, videoPath, assPath, fontsDir, outputPath string) error {
	data, err := os.ReadFile(assPath)
	if err != nil {
		return err
	}
	f.burned = string(data)
	return os.WriteFile(outputPath, []byte("subtitled"), 0o644)
}

func (f *fakeMediaTool) MixAudio(ctx context.Context, spec ffmpeg.MixSpec) error {
	f.mix = &spec
	return os.WriteFile(spec.OutputPath, []byte("final"), 0o644)
}

func TestPlanClips(t *testing.T) {
	tests := []struct {
		name      string
		sources   []clipSource
		clip      float64
		target    float64
		overlap   float64
		wantCount int
		wantFirst clipPlan
	}{
		{
			name:      "长素材切成多段",
			sources:   []clipSource{{Path: "a", Duration: 10}},
			clip:      3,
			target:    8,
			wantCount: 3,
			wantFirst: clipPlan{Path: "a", Start: 0, Duration: 3},
		},
		{
			name:      "短素材整段使用并循环",
			sources:   []clipSource{{Path: "a", Duration: 2}},
			clip:      3,
			target:    5,
			wantCount: 3,
			wantFirst: clipPlan{Path: "a", Duration: 2},
		},
		{
			name:      "转场重叠需要更多片段",
			sources:   []clipSource{{Path: "a", Duration: 3}, {Path: "b", Duration: 3}},
			clip:      3,
			target:    9,
			overlap:   0.5,
			wantCount: 4,
			wantFirst: clipPlan{Path: "a", Duration: 3},
		},
		{
			name:      "本地 5 秒素材生成约 5 秒成片",
			sources:   []clipSource{{Path: "a", Duration: 5}},
			clip:      3,
			target:    5,
			wantCount: 2,
			wantFirst: clipPlan{Path: "a", Duration: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, covered := planClips(tt.sources, tt.clip, tt.target, tt.overlap)
			require.Len(t, plan, tt.wantCount)
			assert.Equal(t, tt.wantFirst, plan[0])

			total := 0.0
			for i, p := range plan {
				total += p.Duration
				if i > 0 {
					total -= tt.overlap
				}
			}
			assert.GreaterOrEqual(t, total, tt.target)
			assert.InDelta(t, total, covered, 1e-9)
		})
	}

	plan, covered := planClips(nil, 3, 5, 0)
	assert.Nil(t, plan)
	assert.Zero(t, covered)
	plan, _ = planClips([]clipSource{{Path: "a", Duration: 0.3}}, 3, 5, 0.5)
	assert.Empty(t, plan)

	t.Run("达到片段上限时返回实际覆盖时长", func(t *testing.T) {
		plan, covered := planClips([]clipSource{{Path: "a", Duration: 1}}, 3, 10000, 0)
		assert.Len(t, plan, maxClips)
		assert.InDelta(t, float64(maxClips), covered, 1e-9)
		assert.Less(t, covered, 10000.0)
	})
}

func TestXfadeTransition(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	assert.Equal(t, "fade", xfadeTransition(video.TransitionFadeIn, rnd))
	assert.Equal(t, "fadeblack", xfadeTransition(video.TransitionFadeOut, rnd))
	assert.Equal(t, "slideleft", xfadeTransition(video.TransitionSlideIn, rnd))
	assert.Equal(t, "slideright", xfadeTransition(video.TransitionSlideOut, rnd))
	assert.Contains(t, shuffleTransitions, xfadeTransition(video.TransitionShuffle, rnd))
}

func TestFFmpegComposer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	image := filepath.Join(dir, "cover.png")
	voice := filepath.Join(dir, "audio.mp3")
	for _, f := range []string{clip, image, voice} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	}
	songDir := filepath.Join(dir, "songs")
	require.NoError(t, os.MkdirAll(songDir, 0o755))
	song := filepath.Join(songDir, "calm.mp3")
	require.NoError(t, os.WriteFile(song, []byte("x"), 0o644))

	newRequest := func() ComposeRequest {
		p := video.Defaults()
		p.VideoSubject = "cats"
		p.VideoSource = video.VideoSourceLocal
		p.VoiceName = "azure:en-US-JennyNeural"
		tmp := filepath.Join(t.TempDir(), "compose")
		require.NoError(t, os.MkdirAll(tmp, 0o755))
		return ComposeRequest{
			TaskID:    "t1",
			Params:    p,
			Narration: "Cats purr. Cats sleep.",
			Voice: videotools.VoiceResult{
				AudioPath: voice,
				Duration:  5,
				Marks:     videotools.EstimateMarks("Cats purr. Cats sleep.", 5),
			},
			Materials:  []video.MaterialInfo{{Provider: "local", URL: clip}, {Provider: "local", URL: image}},
			Seed:       7,
			TempDir:    tmp,
			OutputPath: filepath.Join(tmp, "final-1.mp4"),
		}
	}

	t.Run("字幕和随机背景音乐", func(t *testing.T) {
		tool := &fakeMediaTool{durations: map[string]float64{clip: 5}}
		c := &FFmpegComposer{tool: tool, songDir: songDir, fps: 30, transitionDuration: 0.5}
		req := newRequest()

		require.NoError(t, c.Compose(ctx, req))
		assert.Equal(t, []string{clip}, tool.probed)
		require.NotEmpty(t, tool.cuts)
		assert.Equal(t, 1080, tool.cuts[0].Width)
		assert.Equal(t, 1920, tool.cuts[0].Height)
		assert.Contains(t, tool.burned, "Dialogue:")
		assert.Contains(t, tool.burned, "Cats purr")
		require.NotNil(t, tool.mix)
		assert.Equal(t, song, tool.mix.BgmPath)
		assert.InDelta(t, 0.2, tool.mix.BgmVolume, 1e-9)
		assert.InDelta(t, 5.0, tool.mix.Duration, 1e-9)
		assert.Equal(t, req.OutputPath, tool.mix.OutputPath)
		assert.True(t, strings.HasSuffix(tool.mix.VideoPath, "subtitled.mp4"))
	})

	t.Run("关闭字幕、无背景音乐、使用转场", func(t *testing.T) {
		tool := &fakeMediaTool{durations: map[string]float64{clip: 5}}
		c := &FFmpegComposer{tool: tool, fps: 30, transitionDuration: 0.5}
		req := newRequest()
		req.Params.SubtitleEnabled = false
		req.Params.BgmType = video.BgmNone
		req.Params.VideoTransitionMode = video.TransitionSlideIn

		require.NoError(t, c.Compose(ctx, req))
		assert.Empty(t, tool.burned)
		require.NotEmpty(t, tool.transitions)
		for _, tr := range tool.transitions {
			assert.Equal(t, "slideleft", tr)
		}
		assert.Equal(t, "", tool.mix.BgmPath)
		assert.True(t, strings.HasSuffix(tool.mix.VideoPath, "combined.mp4"))
	})

	t.Run("片段数达到上限时记录警告", func(t *testing.T) {
		var buf bytes.Buffer
		prev := log.Logger
		log.Logger = zerolog.New(&buf)
		defer func() { log.Logger = prev }()

		tool := &fakeMediaTool{durations: map[string]float64{clip: 1}}
		c := &FFmpegComposer{tool: tool, fps: 30}
		req := newRequest()
		req.Materials = []video.MaterialInfo{{Provider: "local", URL: clip}}
		req.Params.SubtitleEnabled = false
		req.Params.BgmType = video.BgmNone
		req.Params.VideoTransitionMode = video.TransitionNone
		req.Voice.Duration = 1000

		require.NoError(t, c.Compose(ctx, req))
		assert.Len(t, tool.cuts, maxClips)
		assert.Contains(t, buf.String(), "clip limit reached, video is shorter than narration")
		assert.Contains(t, buf.String(), `"task_id":"t1"`)
	})

	t.Run("没有可用素材", func(t *testing.T) {
		tool := &fakeMediaTool{durations: map[string]float64{}}
		c := &FFmpegComposer{tool: tool, fps: 30}
		req := newRequest()
		req.Materials = []video.MaterialInfo{{Provider: "local", URL: clip}}
		assert.Error(t, c.Compose(ctx, req))
	})
}
