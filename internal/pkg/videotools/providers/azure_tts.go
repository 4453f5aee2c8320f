package providers

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reelforge/internal/config"
	"reelforge/internal/pkg/videotools"
)

const (
	azureProvider     = "azure"
	azureOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	azureBitrate      = 48000
)

// DurationProber 获取音频时长，通常由 ffmpeg.Client 提供
type DurationProber interface {
	GetMediaDuration(ctx context.Context, path string) (float64, error)
}

// AzureTTS Azure 语音服务 REST 接口
// REST 接口不返回词边界，时间戳按时长估算
type AzureTTS struct {
	region     string
	key        string
	endpoint   string
	prober     DurationProber
	httpClient *http.Client
}

// NewAzureTTS 创建 Azure 语音合成适配器，prober 可为 nil
func NewAzureTTS(cfg config.AzureConfig, prober DurationProber) *AzureTTS {
	return &AzureTTS{
		region:     cfg.SpeechRegion,
		key:        cfg.SpeechKey,
		endpoint:   fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.SpeechRegion),
		prober:     prober,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize 合成语音并写入 audioPath
func (a *AzureTTS) Synthesize(ctx context.Context, text, voiceName string, rate float64, audioPath string) (*videotools.VoiceResult, error) {
	if a.region == "" || a.key == "" {
		return nil, videotools.Failuref(videotools.FailureAuth, azureProvider, "azure.speech_region and azure.speech_key are required")
	}
	text = videotools.CleanTextForTTS(text)
	if text == "" {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, azureProvider, "empty text after cleaning")
	}

	ssml, err := BuildSSML(text, voiceName, rate)
	if err != nil {
		return nil, videotools.NewFailure(videotools.FailureInvalidInput, azureProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("create azure tts request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("User-Agent", "reelforge")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, videotools.Classify(azureProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, videotools.Classify(azureProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, videotools.FromHTTPStatus(azureProvider, resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, azureProvider, "empty audio for voice %s", voiceName)
	}

	if err := os.WriteFile(audioPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("write audio %s: %w", audioPath, err)
	}

	duration := float64(len(body)) * 8 / azureBitrate
	if a.prober != nil {
		if d, err := a.prober.GetMediaDuration(ctx, audioPath); err == nil && d > 0 {
			duration = d
		} else if err != nil {
			log.Warn().Err(err).Str("audio", audioPath).Msg("failed to probe audio duration, using bitrate estimate")
		}
	}

	return &videotools.VoiceResult{
		AudioPath: audioPath,
		Duration:  duration,
		Marks:     videotools.EstimateMarks(text, duration),
	}, nil
}

// azureVoiceName 去掉音色列表中的 -V2 后缀，Azure 只认识不带后缀的名字
func azureVoiceName(voiceName string) string {
	return strings.TrimSuffix(strings.TrimSpace(voiceName), "-V2")
}

// BuildSSML 构建 SSML 请求体，voiceName 形如 en-US-JennyNeural
func BuildSSML(text, voiceName string, rate float64) (string, error) {
	voiceName = azureVoiceName(voiceName)
	parts := strings.SplitN(voiceName, "-", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid azure voice name %q", voiceName)
	}
	lang := parts[0] + "-" + parts[1]
	if rate <= 0 {
		rate = 1.0
	}
	pct := int(math.Round((rate - 1.0) * 100))

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", err
	}
	var escapedVoice bytes.Buffer
	if err := xml.EscapeText(&escapedVoice, []byte(voiceName)); err != nil {
		return "", err
	}

	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s"><prosody rate="%+d%%">%s</prosody></voice></speak>`,
		lang, escapedVoice.String(), pct, escaped.String()), nil
}
