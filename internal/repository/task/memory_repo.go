package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"reelforge/internal/model/task"
)

// MemoryRepo 进程内任务仓库，未配置 MongoDB 时使用
// 进程退出后任务记录丢失
type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// NewMemoryRepo 创建进程内仓库
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tasks: make(map[string]*task.Task)}
}

// Create 实现 TaskRepository
func (r *MemoryRepo) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.tasks[t.ID] = clone(t)
	return nil
}

// FindByID 实现 TaskRepository
func (r *MemoryRepo) FindByID(ctx context.Context, id, userID string) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || (userID != "" && t.UserID != userID) {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

// List 实现 TaskRepository
func (r *MemoryRepo) List(ctx context.Context, userID string, page, pageSize int64, status string) ([]*task.Task, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	r.mu.RLock()
	var matched []*task.Task
	for _, t := range r.tasks {
		if userID != "" && t.UserID != userID {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		matched = append(matched, clone(t))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Update 实现 TaskRepository
func (r *MemoryRepo) Update(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	r.tasks[t.ID] = clone(t)
	return nil
}

// UpdateProgress 实现 TaskRepository
func (r *MemoryRepo) UpdateProgress(ctx context.Context, id string, status task.Status, stage string, progress float64, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return nil
	}
	t.Status = status
	t.Stage = stage
	t.Progress = progress
	t.Detail = detail
	t.UpdatedAt = time.Now()
	return nil
}

func clone(t *task.Task) *task.Task {
	c := *t
	c.Params = t.Params.Clone()
	c.Terms = append([]string(nil), t.Terms...)
	c.Videos = append([]string(nil), t.Videos...)
	c.VideoURLs = append([]string(nil), t.VideoURLs...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
