package providers

import (
	"context"
	"os"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/videotools"
)

// LocalResolver 本地素材，只校验文件存在
type LocalResolver struct{}

// Resolve 实现 videotools.MaterialResolver
func (LocalResolver) Resolve(ctx context.Context, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	if len(q.Materials) == 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, string(video.VideoSourceLocal), "no local materials provided")
	}
	out := make([]video.MaterialInfo, 0, len(q.Materials))
	for _, m := range q.Materials {
		info, err := os.Stat(m.URL)
		if err != nil {
			return nil, videotools.Failuref(videotools.FailureInvalidInput, string(video.VideoSourceLocal), "material %s: %v", m.URL, err)
		}
		if info.IsDir() {
			return nil, videotools.Failuref(videotools.FailureInvalidInput, string(video.VideoSourceLocal), "material %s is a directory", m.URL)
		}
		out = append(out, video.MaterialInfo{Provider: string(video.VideoSourceLocal), URL: m.URL, Duration: m.Duration})
	}
	return out, nil
}

// MaterialRouter 按素材来源分发
type MaterialRouter struct {
	routes map[video.VideoSource]videotools.MaterialResolver
}

// NewMaterialRouter 创建素材路由，默认注册本地来源
func NewMaterialRouter() *MaterialRouter {
	return &MaterialRouter{routes: map[video.VideoSource]videotools.MaterialResolver{
		video.VideoSourceLocal: LocalResolver{},
	}}
}

// Register 注册来源
func (r *MaterialRouter) Register(source video.VideoSource, resolver videotools.MaterialResolver) *MaterialRouter {
	r.routes[source] = resolver
	return r
}

// Resolve 实现 videotools.MaterialResolver
func (r *MaterialRouter) Resolve(ctx context.Context, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	resolver, ok := r.routes[q.Source]
	if !ok {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, string(q.Source), "unsupported video source %q", q.Source)
	}
	return resolver.Resolve(ctx, q)
}
