package task

import (
	"reelforge/internal/config"
	"reelforge/internal/model/video"
)

// KeyChecker 检查素材来源是否配置了 API Key
type KeyChecker interface {
	HasKeys(source video.VideoSource) bool
}

// StaticKeys 按来源记录的 key 列表
type StaticKeys map[video.VideoSource][]string

// KeysFromConfig 从应用配置读取素材库 key
func KeysFromConfig(app config.AppConfig) StaticKeys {
	return StaticKeys{
		video.VideoSourcePexels:  config.NormalizeKeys(app.PexelsAPIKeys),
		video.VideoSourcePixabay: config.NormalizeKeys(app.PixabayAPIKeys),
	}
}

// HasKeys 实现 KeyChecker，本地来源不需要 key
func (k StaticKeys) HasKeys(source video.VideoSource) bool {
	if !source.IsRemote() {
		return true
	}
	return len(config.NormalizeKeys(k[source])) > 0
}
