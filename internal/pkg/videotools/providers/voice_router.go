package providers

import (
	"context"
	"sort"
	"strings"

	"reelforge/internal/pkg/videotools"
)

// VoiceRouter 按音色前缀分发到不同的语音服务
// 音色形如 azure:en-US-JennyNeural、volc:BV001_streaming，无前缀时使用默认服务
type VoiceRouter struct {
	routes   map[string]videotools.VoiceSynthesizer
	fallback string
}

// NewVoiceRouter 创建语音路由，fallback 为无前缀音色使用的服务名
func NewVoiceRouter(fallback string) *VoiceRouter {
	return &VoiceRouter{
		routes:   make(map[string]videotools.VoiceSynthesizer),
		fallback: fallback,
	}
}

// Register 注册服务
func (r *VoiceRouter) Register(provider string, s videotools.VoiceSynthesizer) *VoiceRouter {
	r.routes[provider] = s
	return r
}

// Providers 已注册的服务名
func (r *VoiceRouter) Providers() []string {
	out := make([]string, 0, len(r.routes))
	for name := range r.routes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SplitVoiceName 拆分服务前缀和音色
func SplitVoiceName(voiceName string) (provider, voice string) {
	if p, v, ok := strings.Cut(voiceName, ":"); ok {
		return strings.ToLower(strings.TrimSpace(p)), strings.TrimSpace(v)
	}
	return "", strings.TrimSpace(voiceName)
}

// Synthesize 实现 videotools.VoiceSynthesizer
func (r *VoiceRouter) Synthesize(ctx context.Context, text, voiceName string, rate float64, audioPath string) (*videotools.VoiceResult, error) {
	provider, voice := SplitVoiceName(voiceName)
	if provider == "" {
		provider = r.fallback
	}
	s, ok := r.routes[provider]
	if !ok {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, "voice", "no voice provider %q configured", provider)
	}
	return s.Synthesize(ctx, text, voice, rate, audioPath)
}
