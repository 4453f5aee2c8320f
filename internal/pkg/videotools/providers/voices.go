package providers

import "strings"

// Voice 可选音色
type Voice struct {
	Name     string `json:"name"`     // 带前缀的音色名，直接作为 voice_name 使用
	Provider string `json:"provider"` // azure / volc
	Locale   string `json:"locale"`
	Gender   string `json:"gender"`
}

// catalog 常用音色
var catalog = []Voice{
	{Name: "azure:zh-CN-XiaoxiaoNeural", Provider: "azure", Locale: "zh-CN", Gender: "Female"},
	{Name: "azure:zh-CN-YunxiNeural", Provider: "azure", Locale: "zh-CN", Gender: "Male"},
	{Name: "azure:zh-CN-YunjianNeural", Provider: "azure", Locale: "zh-CN", Gender: "Male"},
	{Name: "azure:zh-HK-HiuMaanNeural", Provider: "azure", Locale: "zh-HK", Gender: "Female"},
	{Name: "azure:zh-TW-HsiaoChenNeural", Provider: "azure", Locale: "zh-TW", Gender: "Female"},
	{Name: "azure:en-US-JennyNeural", Provider: "azure", Locale: "en-US", Gender: "Female"},
	{Name: "azure:en-US-GuyNeural", Provider: "azure", Locale: "en-US", Gender: "Male"},
	{Name: "azure:en-US-AvaMultilingualNeural-V2", Provider: "azure", Locale: "en-US", Gender: "Female"},
	{Name: "azure:en-US-AndrewMultilingualNeural-V2", Provider: "azure", Locale: "en-US", Gender: "Male"},
	{Name: "azure:de-DE-KatjaNeural", Provider: "azure", Locale: "de-DE", Gender: "Female"},
	{Name: "azure:fr-FR-DeniseNeural", Provider: "azure", Locale: "fr-FR", Gender: "Female"},
	{Name: "azure:vi-VN-HoaiMyNeural", Provider: "azure", Locale: "vi-VN", Gender: "Female"},
	{Name: "volc:BV001_streaming", Provider: "volc", Locale: "zh-CN", Gender: "Female"},
	{Name: "volc:BV002_streaming", Provider: "volc", Locale: "zh-CN", Gender: "Male"},
	{Name: "volc:BV700_streaming", Provider: "volc", Locale: "zh-CN", Gender: "Female"},
	{Name: "volc:BV115_streaming", Provider: "volc", Locale: "zh-CN", Gender: "Female"},
	{Name: "volc:BV503_streaming", Provider: "volc", Locale: "en-US", Gender: "Female"},
}

// Voices 返回已注册服务的音色，locale 非空时按前缀过滤
func (r *VoiceRouter) Voices(locale string) []Voice {
	out := make([]Voice, 0, len(catalog))
	for _, v := range catalog {
		if _, ok := r.routes[v.Provider]; !ok {
			continue
		}
		if locale != "" && !strings.HasPrefix(strings.ToLower(v.Locale), strings.ToLower(locale)) {
			continue
		}
		out = append(out, v)
	}
	return out
}
