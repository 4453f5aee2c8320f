package service

import (
	"sync"
	"time"

	taskmodel "reelforge/internal/model/task"
)

// ProgressEvent 推送给订阅者的进度事件
type ProgressEvent struct {
	TaskID   string           `json:"task_id"`
	Status   taskmodel.Status `json:"status"`
	Stage    string           `json:"stage"`
	Progress float64          `json:"progress"`
	Detail   string           `json:"detail,omitempty"`
	Videos   []string         `json:"videos,omitempty"`
	Time     time.Time        `json:"time"`
}

// Terminal 是否为最后一个事件
func (e ProgressEvent) Terminal() bool {
	return e.Status.Terminal()
}

const subscriberBuffer = 32

// ProgressHub 按任务分发进度事件
// 订阅者消费过慢时丢弃中间事件，终止事件之后关闭通道
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
}

// NewProgressHub 创建 ProgressHub
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe 订阅任务进度，返回的函数用于取消订阅
func (h *ProgressHub) Subscribe(taskID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[taskID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(taskID, ch) })
	}
}

// Publish 广播事件
func (h *ProgressHub) Publish(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.TaskID] {
		if ev.Terminal() {
			// 终止事件必须送达，先腾出位置
			select {
			case ch <- ev:
			default:
				select {
				case <-ch:
				default:
				}
				ch <- ev
			}
			close(ch)
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}
	if ev.Terminal() {
		delete(h.subs, ev.TaskID)
	}
}

// Subscribers 当前订阅数
func (h *ProgressHub) Subscribers(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}

func (h *ProgressHub) remove(taskID string, ch chan ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[taskID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subs, taskID)
	}
}
