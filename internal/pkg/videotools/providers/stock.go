package providers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/keypool"
	"reelforge/internal/pkg/videotools"
)

const (
	rateLimitCooldown = time.Minute
	authCooldown      = 24 * time.Hour
	defaultWorkers    = 4
)

// Searcher 素材库搜索
type Searcher interface {
	Name() string
	Search(ctx context.Context, apiKey, term string, aspect video.Aspect, minDuration float64) ([]video.MaterialInfo, error)
}

// StockResolver 远程素材获取：按关键词搜索后并发下载
// 每个素材库使用独立的 key 池，限流或鉴权失败的 key 进入冷却
type StockResolver struct {
	searcher   Searcher
	keys       *keypool.Pool
	workers    int
	httpClient *http.Client
}

// NewStockResolver 创建远程素材获取器，workers <= 0 时使用默认并发数
func NewStockResolver(searcher Searcher, keys []string, workers int) *StockResolver {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &StockResolver{
		searcher:   searcher,
		keys:       keypool.New(keys),
		workers:    workers,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// HasKeys 是否配置了 key
func (s *StockResolver) HasKeys() bool {
	return s.keys.Len() > 0
}

// Resolve 实现 videotools.MaterialResolver
// 返回的素材已下载到 q.Dir，URL 为本地路径
func (s *StockResolver) Resolve(ctx context.Context, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	provider := s.searcher.Name()
	if !s.HasKeys() {
		return nil, videotools.Failuref(videotools.FailureAuth, provider, "no api key configured")
	}
	if len(q.Terms) == 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, provider, "no search terms")
	}

	candidates, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, videotools.Failuref(videotools.FailureNotFound, provider, "no materials found for terms %v", q.Terms)
	}

	if err := os.MkdirAll(q.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create material dir: %w", err)
	}

	materials, err := s.downloadAll(ctx, candidates, q)
	if err != nil {
		return nil, err
	}
	if len(materials) == 0 {
		return nil, videotools.Failuref(videotools.FailureTransientIO, provider, "all %d downloads failed", len(candidates))
	}

	keys := s.keys.Stats()
	log.Info().
		Str("provider", provider).
		Int("candidates", len(candidates)).
		Int("downloaded", len(materials)).
		Int("available_keys", keys.Available).
		Int("blacklisted_keys", keys.Blacklisted).
		Msg("materials resolved")
	return materials, nil
}

// search 搜索所有关键词，结果按 URL 去重
// 单个关键词失败只记录日志，全部失败且没有结果时返回最后一个错误
func (s *StockResolver) search(ctx context.Context, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	seen := make(map[string]bool)
	var (
		out     []video.MaterialInfo
		lastErr error
	)
	for _, term := range q.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := s.searchTerm(ctx, term, q)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("provider", s.searcher.Name()).Str("term", term).Msg("search failed")
			if errors.Is(err, keypool.ErrNoKeys) {
				break
			}
			continue
		}
		added := 0
		for _, item := range items {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			out = append(out, item)
			added++
		}
		log.Debug().Str("term", term).Int("found", len(items)).Int("added", added).Msg("search term done")
	}

	if len(out) == 0 && lastErr != nil {
		if errors.Is(lastErr, keypool.ErrNoKeys) {
			keys := s.keys.Stats()
			log.Warn().
				Str("provider", s.searcher.Name()).
				Int("total_keys", keys.Total).
				Int("blacklisted_keys", keys.Blacklisted).
				Msg("all api keys are cooling down")
			return nil, videotools.NewFailure(videotools.FailureRateLimited, s.searcher.Name(), lastErr)
		}
		return nil, lastErr
	}
	return out, nil
}

// searchTerm 搜索单个关键词，限流或鉴权失败时换 key 重试
func (s *StockResolver) searchTerm(ctx context.Context, term string, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	var lastErr error
	for attempt := 0; attempt < s.keys.Len(); attempt++ {
		key, err := s.keys.Get()
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		items, err := s.searcher.Search(ctx, key, term, q.Aspect, q.MinDuration)
		if err == nil {
			return items, nil
		}
		lastErr = err

		switch videotools.KindOf(err) {
		case videotools.FailureRateLimited:
			s.keys.MarkFailed(key, rateLimitCooldown)
		case videotools.FailureAuth:
			s.keys.MarkFailed(key, authCooldown)
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// downloadAll 分批并发下载，直到累计时长达到 q.MaxTotal
func (s *StockResolver) downloadAll(ctx context.Context, candidates []video.MaterialInfo, q videotools.MaterialQuery) ([]video.MaterialInfo, error) {
	var (
		materials []video.MaterialInfo
		total     float64
		next      int
	)

	for next < len(candidates) && (q.MaxTotal <= 0 || total < q.MaxTotal) {
		// 按声明的时长挑出这一批
		var batch []video.MaterialInfo
		planned := total
		for next < len(candidates) && (q.MaxTotal <= 0 || planned < q.MaxTotal) {
			batch = append(batch, candidates[next])
			planned += candidates[next].Duration
			next++
		}

		results := make([]*video.MaterialInfo, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, item := range batch {
			g.Go(func() error {
				path, err := s.download(gctx, item.URL, q.Dir)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.Warn().Err(err).Str("url", item.URL).Msg("material download failed")
					return nil
				}
				results[i] = &video.MaterialInfo{Provider: item.Provider, URL: path, Duration: item.Duration}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, r := range results {
			if r != nil {
				materials = append(materials, *r)
				total += r.Duration
			}
		}
	}
	return materials, nil
}

// download 下载到 dir，文件名取 URL 的 md5，已存在时直接复用
func (s *StockResolver) download(ctx context.Context, rawURL, dir string) (string, error) {
	sum := md5.Sum([]byte(rawURL))
	path := filepath.Join(dir, "vid-"+hex.EncodeToString(sum[:])+".mp4")
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", videotools.Classify(s.searcher.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", videotools.FromHTTPStatus(s.searcher.Name(), resp.StatusCode, "")
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil || n == 0 {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return "", videotools.Classify(s.searcher.Name(), copyErr)
		}
		if closeErr != nil {
			return "", closeErr
		}
		return "", videotools.Failuref(videotools.FailureTransientIO, s.searcher.Name(), "empty download %s", rawURL)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename download: %w", err)
	}
	return path, nil
}
