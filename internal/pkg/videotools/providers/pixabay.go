package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/videotools"
)

const pixabayBaseURL = "https://pixabay.com"

// Pixabay 素材搜索
type Pixabay struct {
	baseURL    string
	httpClient *http.Client
}

// NewPixabay 创建 Pixabay 搜索
func NewPixabay() *Pixabay {
	return &Pixabay{baseURL: pixabayBaseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

type pixabayFile struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pixabayResponse struct {
	Hits []struct {
		ID       int `json:"id"`
		Duration int `json:"duration"`
		Videos   struct {
			Large  pixabayFile `json:"large"`
			Medium pixabayFile `json:"medium"`
			Small  pixabayFile `json:"small"`
			Tiny   pixabayFile `json:"tiny"`
		} `json:"videos"`
	} `json:"hits"`
}

// Name 服务名
func (p *Pixabay) Name() string { return string(video.VideoSourcePixabay) }

// Search 按关键词搜索，取宽度不小于目标分辨率的文件
func (p *Pixabay) Search(ctx context.Context, apiKey, term string, aspect video.Aspect, minDuration float64) ([]video.MaterialInfo, error) {
	width, _ := aspect.Resolution()

	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("q", term)
	params.Set("video_type", "all")
	params.Set("per_page", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/videos/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create pixabay request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, videotools.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		// Pixabay 用 400 表示 key 错误
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "key") {
			return nil, videotools.Failuref(videotools.FailureAuth, p.Name(), "status %d: %s", resp.StatusCode, body)
		}
		return nil, videotools.FromHTTPStatus(p.Name(), resp.StatusCode, string(body))
	}

	var result pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, videotools.NewFailure(videotools.FailureTransientIO, p.Name(), fmt.Errorf("decode response: %w", err))
	}

	var items []video.MaterialInfo
	for _, hit := range result.Hits {
		if float64(hit.Duration) < minDuration {
			continue
		}
		for _, f := range []pixabayFile{hit.Videos.Large, hit.Videos.Medium, hit.Videos.Small, hit.Videos.Tiny} {
			if f.URL != "" && f.Width >= width {
				items = append(items, video.MaterialInfo{Provider: p.Name(), URL: f.URL, Duration: float64(hit.Duration)})
				break
			}
		}
	}
	return items, nil
}
