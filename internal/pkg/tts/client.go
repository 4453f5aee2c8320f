package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reelforge/internal/config"
	"reelforge/internal/pkg/id"
)

const (
	defaultAPIURL    = "https://openspeech.bytedance.com/api/v1/tts"
	defaultCluster   = "volcano_tts"
	defaultVoiceType = "BV001_streaming"
	defaultRate      = 24000

	// codeSuccess 接口成功返回码
	codeSuccess = 3000
)

// Client TTS 客户端封装
// 用于调用火山引擎的 TTS API（文本转语音）
// 参考: https://openspeech.bytedance.com/api/v1/tts
type Client struct {
	apiURL      string
	accessToken string
	appID       string
	cluster     string
	sampleRate  int
	httpClient  *http.Client
}

// NewClient 创建 TTS 客户端
func NewClient(cfg config.TTSConfig) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("TTS access token is required")
	}

	c := &Client{
		apiURL:      cfg.APIURL,
		accessToken: cfg.AccessToken,
		appID:       cfg.AppID,
		cluster:     cfg.Cluster,
		sampleRate:  cfg.SampleRate,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.cluster == "" {
		c.cluster = defaultCluster
	}
	if c.sampleRate == 0 {
		c.sampleRate = defaultRate
	}
	return c, nil
}

// Request 一次合成请求
type Request struct {
	Text        string  // 要朗读的文本
	VoiceType   string  // 音色，如 BV001_streaming
	SpeedRatio  float64 // 语速倍数，0 表示 1.0
	VolumeRatio float64 // 音量倍数，0 表示 1.0
}

// Result TTS生成结果
type Result struct {
	AudioData []byte  `json:"-"`        // 音频数据（mp3）
	Duration  float64 `json:"duration"` // 音频时长（秒）
	Words     []Word  `json:"words"`    // 词级时间戳
}

// Word 词级时间戳
type Word struct {
	Text      string  `json:"word"`
	StartTime float64 `json:"start_time"` // 秒
	EndTime   float64 `json:"end_time"`   // 秒
}

// APIError 接口错误
// StatusCode 为 HTTP 状态码，Code 为业务返回码（HTTP 失败时为 0）
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tts api error: code %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("tts api error: status %d: %s", e.StatusCode, e.Message)
}

// Synthesize 生成语音并获取时间戳
// 返回音频数据和时长，不保存到文件
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	requestID := id.New()
	body, err := json.Marshal(c.buildRequestConfig(req, requestID))
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer; "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("voice_type", req.VoiceType).
		Int("text_len", len([]rune(req.Text))).
		Msg("sending TTS request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send tts request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncate(string(respBody), 256)}
	}

	return parseResponse(respBody)
}

// apiResponse 接口响应
type apiResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Data     string `json:"data"`
	Addition struct {
		Duration json.RawMessage `json:"duration"`
		Frontend json.RawMessage `json:"frontend"`
	} `json:"addition"`
}

// parseResponse 解析接口响应
func parseResponse(body []byte) (*Result, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// 部分响应的 frontend 字段缺少逗号，尝试修复后再解析
		if err := json.Unmarshal([]byte(fixJSON(string(body))), &resp); err != nil {
			return nil, fmt.Errorf("parse tts response: %w", err)
		}
	}

	if resp.Code != codeSuccess {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &APIError{StatusCode: http.StatusOK, Code: resp.Code, Message: msg}
	}

	audio, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode tts audio: %w", err)
	}

	return &Result{
		AudioData: audio,
		Duration:  parseDuration(resp.Addition.Duration),
		Words:     parseFrontend(resp.Addition.Frontend),
	}, nil
}

// parseDuration duration 单位为毫秒，可能是字符串或数字
func parseDuration(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return ms / 1000.0
}

// parseFrontend frontend 可能是 JSON 字符串或对象
func parseFrontend(raw json.RawMessage) []Word {
	if len(raw) == 0 {
		return nil
	}

	var frontend struct {
		Words []Word `json:"words"`
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, &frontend); err != nil {
		if err := json.Unmarshal([]byte(fixJSON(string(raw))), &frontend); err != nil {
			log.Warn().Err(err).Msg("failed to parse tts frontend data")
			return nil
		}
	}

	words := frontend.Words[:0]
	for _, w := range frontend.Words {
		if strings.TrimSpace(w.Text) != "" {
			words = append(words, w)
		}
	}
	return words
}

// buildRequestConfig 构建请求配置
func (c *Client) buildRequestConfig(req Request, requestID string) map[string]any {
	appConfig := map[string]any{
		"token":   c.accessToken,
		"cluster": c.cluster,
	}
	if c.appID != "" {
		appConfig["appid"] = c.appID
	}

	voiceType := req.VoiceType
	if voiceType == "" {
		voiceType = defaultVoiceType
	}
	speed := req.SpeedRatio
	if speed <= 0 {
		speed = 1.0
	}
	volume := req.VolumeRatio
	if volume <= 0 {
		volume = 1.0
	}

	return map[string]any{
		"app":  appConfig,
		"user": map[string]any{"uid": requestID},
		"audio": map[string]any{
			"voice_type":   voiceType,
			"encoding":     "mp3",
			"rate":         c.sampleRate,
			"speed_ratio":  speed,
			"volume_ratio": volume,
			"pitch_ratio":  1.0,
		},
		"request": map[string]any{
			"reqid":         requestID,
			"text":          req.Text,
			"text_type":     "plain",
			"operation":     "query",
			"with_frontend": "1",
			"frontend_type": "unitTson",
		},
	}
}

// fixJSON 修复 frontend 中相邻对象缺少逗号的问题
func fixJSON(s string) string {
	return strings.ReplaceAll(s, "}{", "},{")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
