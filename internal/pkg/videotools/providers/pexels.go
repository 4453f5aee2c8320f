package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/videotools"
)

const pexelsBaseURL = "https://api.pexels.com"

// Pexels 素材搜索
type Pexels struct {
	baseURL    string
	httpClient *http.Client
}

// NewPexels 创建 Pexels 搜索
func NewPexels() *Pexels {
	return &Pexels{baseURL: pexelsBaseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// pexelsResponse Pexels 视频搜索响应
type pexelsResponse struct {
	Videos []struct {
		ID         int `json:"id"`
		Width      int `json:"width"`
		Height     int `json:"height"`
		Duration   int `json:"duration"`
		VideoFiles []struct {
			ID       int    `json:"id"`
			Quality  string `json:"quality"`
			FileType string `json:"file_type"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			Link     string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Name 服务名
func (p *Pexels) Name() string { return string(video.VideoSourcePexels) }

// Search 按关键词搜索，过滤掉比 minDuration 短的视频
func (p *Pexels) Search(ctx context.Context, apiKey, term string, aspect video.Aspect, minDuration float64) ([]video.MaterialInfo, error) {
	width, height := aspect.Resolution()
	orientation := "portrait"
	if aspect == video.AspectLandscape {
		orientation = "landscape"
	}

	params := url.Values{}
	params.Set("query", term)
	params.Set("per_page", "20")
	params.Set("orientation", orientation)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/videos/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create pexels request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, videotools.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, videotools.FromHTTPStatus(p.Name(), resp.StatusCode, string(body))
	}

	var result pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, videotools.NewFailure(videotools.FailureTransientIO, p.Name(), fmt.Errorf("decode response: %w", err))
	}

	var items []video.MaterialInfo
	for _, v := range result.Videos {
		if float64(v.Duration) < minDuration {
			continue
		}

		// 优先取分辨率完全一致的文件，否则取方向一致的最大文件
		var link string
		best := 0
		for _, f := range v.VideoFiles {
			if f.Link == "" {
				continue
			}
			if f.Width == width && f.Height == height {
				link = f.Link
				break
			}
			if (f.Width >= f.Height) == (width >= height) && f.Width*f.Height > best {
				best = f.Width * f.Height
				link = f.Link
			}
		}
		if link == "" {
			continue
		}
		items = append(items, video.MaterialInfo{Provider: p.Name(), URL: link, Duration: float64(v.Duration)})
	}
	return items, nil
}
