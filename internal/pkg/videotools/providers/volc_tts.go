package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"reelforge/internal/pkg/tts"
	"reelforge/internal/pkg/videotools"
)

const volcProvider = "volc"

// volcSynthesizer 抽象 tts.Client，便于单测
type volcSynthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error)
}

// VolcTTS 火山引擎语音合成
// 实现了 videotools.VoiceSynthesizer，音色不带 volc: 前缀
type VolcTTS struct {
	client volcSynthesizer
}

// NewVolcTTS 创建火山引擎语音合成适配器
func NewVolcTTS(client *tts.Client) *VolcTTS {
	return &VolcTTS{client: client}
}

// Synthesize 合成语音并写入 audioPath
func (v *VolcTTS) Synthesize(ctx context.Context, text, voiceName string, rate float64, audioPath string) (*videotools.VoiceResult, error) {
	text = videotools.CleanTextForTTS(text)
	if text == "" {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, volcProvider, "empty text after cleaning")
	}

	res, err := v.client.Synthesize(ctx, tts.Request{Text: text, VoiceType: voiceName, SpeedRatio: rate})
	if err != nil {
		return nil, classifyVolcError(err)
	}
	if len(res.AudioData) == 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, volcProvider, "empty audio for voice %s", voiceName)
	}

	if err := os.WriteFile(audioPath, res.AudioData, 0o644); err != nil {
		return nil, fmt.Errorf("write audio %s: %w", audioPath, err)
	}

	marks := make([]videotools.WordMark, 0, len(res.Words))
	for _, w := range res.Words {
		marks = append(marks, videotools.WordMark{Text: w.Text, Start: w.StartTime, End: w.EndTime})
	}
	duration := res.Duration
	if duration <= 0 && len(marks) > 0 {
		duration = marks[len(marks)-1].End
	}

	return &videotools.VoiceResult{AudioPath: audioPath, Duration: duration, Marks: marks}, nil
}

// classifyVolcError 按火山引擎返回码归类
func classifyVolcError(err error) error {
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		return videotools.Classify(volcProvider, err)
	}
	if apiErr.StatusCode != http.StatusOK {
		return videotools.FromHTTPStatus(volcProvider, apiErr.StatusCode, apiErr.Message)
	}

	switch apiErr.Code {
	case 3003:
		return videotools.NewFailure(videotools.FailureRateLimited, volcProvider, err)
	case 3005, 3030, 3031, 3032:
		return videotools.NewFailure(videotools.FailureTransientIO, volcProvider, err)
	case 3050:
		return videotools.NewFailure(videotools.FailureNotFound, volcProvider, err)
	default:
		return videotools.NewFailure(videotools.FailureInvalidInput, volcProvider, err)
	}
}
