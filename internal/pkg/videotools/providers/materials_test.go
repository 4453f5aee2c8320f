package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/videotools"
)

// fakeSearcher 按 key 返回结果或失败
type fakeSearcher struct {
	mu       sync.Mutex
	results  map[string][]video.MaterialInfo // term -> items
	failKeys map[string]error
	keysUsed []string
}

func (f *fakeSearcher) Name() string { return "pexels" }

func (f *fakeSearcher) Search(ctx context.Context, apiKey, term string, aspect video.Aspect, minDuration float64) ([]video.MaterialInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keysUsed = append(f.keysUsed, apiKey)
	if err, ok := f.failKeys[apiKey]; ok {
		return nil, err
	}
	return f.results[term], nil
}

func TestPexelsSearch(t *testing.T) {
	var gotAuth, gotOrientation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrientation = r.URL.Query().Get("orientation")
		assert.Equal(t, "/videos/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"videos":[
			{"id":1,"duration":12,"video_files":[
				{"quality":"sd","width":540,"height":960,"link":"https://x/1-sd.mp4"},
				{"quality":"hd","width":1080,"height":1920,"link":"https://x/1-hd.mp4"}]},
			{"id":2,"duration":2,"video_files":[{"width":1080,"height":1920,"link":"https://x/2.mp4"}]},
			{"id":3,"duration":8,"video_files":[
				{"width":1920,"height":1080,"link":"https://x/3-land.mp4"},
				{"width":720,"height":1280,"link":"https://x/3-720.mp4"}]}
		]}`))
	}))
	defer srv.Close()

	p := NewPexels()
	p.baseURL = srv.URL
	items, err := p.Search(context.Background(), "key-1", "cats", video.AspectPortrait, 3)
	require.NoError(t, err)
	assert.Equal(t, "key-1", gotAuth)
	assert.Equal(t, "portrait", gotOrientation)
	require.Len(t, items, 2)
	assert.Equal(t, "https://x/1-hd.mp4", items[0].URL)
	assert.Equal(t, 12.0, items[0].Duration)
	assert.Equal(t, "https://x/3-720.mp4", items[1].URL)
}

func TestPixabaySearch(t *testing.T) {
	t.Run("取宽度足够的文件", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "key-1", r.URL.Query().Get("key"))
			assert.Equal(t, "cats", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"hits":[
				{"id":1,"duration":10,"videos":{
					"large":{"url":"https://p/1-l.mp4","width":1920,"height":1080},
					"medium":{"url":"https://p/1-m.mp4","width":1280,"height":720}}},
				{"id":2,"duration":10,"videos":{"large":{"url":"https://p/2-l.mp4","width":640,"height":360}}}
			]}`))
		}))
		defer srv.Close()

		p := NewPixabay()
		p.baseURL = srv.URL
		items, err := p.Search(context.Background(), "key-1", "cats", video.AspectLandscape, 5)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://p/1-l.mp4", items[0].URL)
	})

	t.Run("错误的 key 是 auth_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("[ERROR 400] Invalid or missing API key"))
		}))
		defer srv.Close()

		p := NewPixabay()
		p.baseURL = srv.URL
		_, err := p.Search(context.Background(), "bad", "cats", video.AspectLandscape, 5)
		assert.Equal(t, videotools.FailureAuth, videotools.KindOf(err))
	})
}

func TestStockResolver(t *testing.T) {
	ctx := context.Background()

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("video:" + r.URL.Path))
	}))
	defer files.Close()

	item := func(name string, d float64) video.MaterialInfo {
		return video.MaterialInfo{Provider: "pexels", URL: files.URL + "/" + name, Duration: d}
	}

	t.Run("没有 key 是 auth_error", func(t *testing.T) {
		r := NewStockResolver(&fakeSearcher{}, nil, 2)
		_, err := r.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats"}, Dir: t.TempDir()})
		assert.Equal(t, videotools.FailureAuth, videotools.KindOf(err))
	})

	t.Run("没有结果是 not_found", func(t *testing.T) {
		r := NewStockResolver(&fakeSearcher{}, []string{"k1"}, 2)
		_, err := r.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats"}, Dir: t.TempDir()})
		assert.Equal(t, videotools.FailureNotFound, videotools.KindOf(err))
	})

	t.Run("限流的 key 被跳过", func(t *testing.T) {
		s := &fakeSearcher{
			results: map[string][]video.MaterialInfo{"cats": {item("a.mp4", 10)}},
			failKeys: map[string]error{
				"k1": videotools.Failuref(videotools.FailureRateLimited, "pexels", "429"),
			},
		}
		r := NewStockResolver(s, []string{"k1", "k2"}, 2)

		materials, err := r.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats"}, Dir: t.TempDir()})
		require.NoError(t, err)
		require.Len(t, materials, 1)
		assert.Contains(t, s.keysUsed, "k2")
	})

	t.Run("日志带 key 使用统计", func(t *testing.T) {
		var buf bytes.Buffer
		prev := log.Logger
		log.Logger = zerolog.New(&buf)
		defer func() { log.Logger = prev }()

		ok := NewStockResolver(&fakeSearcher{results: map[string][]video.MaterialInfo{"cats": {item("a.mp4", 10)}}}, []string{"k1"}, 1)
		_, err := ok.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats"}, Dir: t.TempDir()})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"available_keys":1,"blacklisted_keys":0`)

		buf.Reset()
		limited := NewStockResolver(&fakeSearcher{failKeys: map[string]error{
			"k1": videotools.Failuref(videotools.FailureRateLimited, "pexels", "429"),
		}}, []string{"k1"}, 1)
		_, err = limited.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats", "dogs"}, Dir: t.TempDir()})
		assert.Equal(t, videotools.FailureRateLimited, videotools.KindOf(err))
		assert.Contains(t, buf.String(), "all api keys are cooling down")
		assert.Contains(t, buf.String(), `"total_keys":1,"blacklisted_keys":1`)
	})

	t.Run("所有 key 都限流是 rate_limited", func(t *testing.T) {
		s := &fakeSearcher{failKeys: map[string]error{
			"k1": videotools.Failuref(videotools.FailureRateLimited, "pexels", "429"),
		}}
		r := NewStockResolver(s, []string{"k1"}, 2)
		_, err := r.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats", "dogs"}, Dir: t.TempDir()})
		assert.Equal(t, videotools.FailureRateLimited, videotools.KindOf(err))
	})

	t.Run("去重下载并在时长足够时停止", func(t *testing.T) {
		s := &fakeSearcher{results: map[string][]video.MaterialInfo{
			"cats": {item("a.mp4", 10), item("missing.mp4", 10), item("b.mp4", 10)},
			"dogs": {item("a.mp4", 10), item("c.mp4", 10), item("d.mp4", 10)},
		}}
		dir := t.TempDir()
		r := NewStockResolver(s, []string{"k1"}, 3)

		materials, err := r.Resolve(ctx, videotools.MaterialQuery{
			Terms:    []string{"cats", "dogs"},
			MaxTotal: 25,
			Dir:      dir,
		})
		require.NoError(t, err)
		// a、missing、b 为第一批，missing 失败后补下载 c
		require.Len(t, materials, 3)
		for _, m := range materials {
			assert.Equal(t, dir, filepath.Dir(m.URL))
			data, err := os.ReadFile(m.URL)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		}
		assert.Equal(t, "video:/a.mp4", mustRead(t, materials[0].URL))
		assert.Equal(t, "video:/c.mp4", mustRead(t, materials[2].URL))
	})

	t.Run("全部下载失败是 transient_io", func(t *testing.T) {
		s := &fakeSearcher{results: map[string][]video.MaterialInfo{"cats": {item("missing.mp4", 10)}}}
		r := NewStockResolver(s, []string{"k1"}, 1)
		_, err := r.Resolve(ctx, videotools.MaterialQuery{Terms: []string{"cats"}, Dir: t.TempDir()})
		assert.Equal(t, videotools.FailureTransientIO, videotools.KindOf(err))
	})
}

func TestMaterialRouter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("x"), 0o644))

	r := NewMaterialRouter()

	materials, err := r.Resolve(ctx, videotools.MaterialQuery{
		Source:    video.VideoSourceLocal,
		Materials: []video.MaterialInfo{{URL: clip}},
	})
	require.NoError(t, err)
	assert.Equal(t, []video.MaterialInfo{{Provider: "local", URL: clip}}, materials)

	_, err = r.Resolve(ctx, videotools.MaterialQuery{
		Source:    video.VideoSourceLocal,
		Materials: []video.MaterialInfo{{URL: filepath.Join(dir, "nope.mp4")}},
	})
	assert.Equal(t, videotools.FailureInvalidInput, videotools.KindOf(err))

	_, err = r.Resolve(ctx, videotools.MaterialQuery{Source: video.VideoSourceLocal, Materials: []video.MaterialInfo{{URL: dir}}})
	assert.Equal(t, videotools.FailureInvalidInput, videotools.KindOf(err))

	_, err = r.Resolve(ctx, videotools.MaterialQuery{Source: video.VideoSourcePixabay})
	assert.Equal(t, videotools.FailureInvalidInput, videotools.KindOf(err), fmt.Sprint(err))
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
