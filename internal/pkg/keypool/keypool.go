package keypool

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrNoKeys 没有可用的 key（未配置或全部处于冷却中）
var ErrNoKeys = errors.New("no available api keys")

// Pool 多个 API Key 的轮换池
// 优先选择使用次数少的 key，失败的 key 在冷却期内不会被选中
type Pool struct {
	keys        []string
	usageCounts map[string]int
	blacklist   map[string]time.Time
	rnd         *rand.Rand
	now         func() time.Time
	mu          sync.Mutex
}

// New 创建 key 池，keys 为空时返回的池总是返回 ErrNoKeys
func New(keys []string) *Pool {
	return &Pool{
		keys:        append([]string(nil), keys...),
		usageCounts: make(map[string]int),
		blacklist:   make(map[string]time.Time),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Len 配置的 key 数量
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Get 取一个可用的 key
func (p *Pool) Get() (string, error) {
	if p == nil {
		return "", ErrNoKeys
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleanBlacklist()
	available := p.availableKeys()
	if len(available) == 0 {
		return "", ErrNoKeys
	}

	minUsage := -1
	for _, key := range available {
		if c := p.usageCounts[key]; minUsage == -1 || c < minUsage {
			minUsage = c
		}
	}

	// 在使用次数较少的一半里随机挑选
	threshold := minUsage + len(available)/2
	candidates := make([]string, 0, len(available))
	for _, key := range available {
		if p.usageCounts[key] <= threshold {
			candidates = append(candidates, key)
		}
	}

	selected := candidates[p.rnd.Intn(len(candidates))]
	p.usageCounts[selected]++
	return selected, nil
}

// MarkFailed 将 key 拉黑 retryAfter 时长
func (p *Pool) MarkFailed(key string, retryAfter time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blacklist[key] = p.now().Add(retryAfter)
}

// Stats 使用统计
type Stats struct {
	Total       int            `json:"total_keys"`
	Available   int            `json:"available_keys"`
	Blacklisted int            `json:"blacklisted"`
	UsageCounts map[string]int `json:"-"`
}

// Stats 返回当前统计
func (p *Pool) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.availableKeys()
	counts := make(map[string]int, len(p.usageCounts))
	for k, v := range p.usageCounts {
		counts[k] = v
	}
	return Stats{
		Total:       len(p.keys),
		Available:   len(available),
		Blacklisted: len(p.keys) - len(available),
		UsageCounts: counts,
	}
}

// 调用方需持有锁
func (p *Pool) availableKeys() []string {
	now := p.now()
	available := make([]string, 0, len(p.keys))
	for _, key := range p.keys {
		if until, ok := p.blacklist[key]; ok && now.Before(until) {
			continue
		}
		available = append(available, key)
	}
	return available
}

// 调用方需持有锁
func (p *Pool) cleanBlacklist() {
	now := p.now()
	for key, until := range p.blacklist {
		if !now.Before(until) {
			delete(p.blacklist, key)
		}
	}
}
