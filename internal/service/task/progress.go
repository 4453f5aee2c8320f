package task

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"reelforge/internal/pkg/logger"
)

// Reporter 进度回调
// 编排器在自己的 goroutine 里同步调用，实现方需要异步处理时自行转发
type Reporter interface {
	Report(fraction float64, stage, detail string)
}

// ReporterFunc 函数形式的 Reporter
type ReporterFunc func(fraction float64, stage, detail string)

// Report 实现 Reporter
func (f ReporterFunc) Report(fraction float64, stage, detail string) {
	if f != nil {
		f(fraction, stage, detail)
	}
}

// Nop 丢弃所有进度
var Nop Reporter = ReporterFunc(nil)

// LogReporter 把进度写入日志
type LogReporter struct {
	Logger zerolog.Logger
	TaskID string
}

// NewLogReporter 使用全局 logger 创建
func NewLogReporter(taskID string) *LogReporter {
	return &LogReporter{Logger: logger.ForTask(taskID), TaskID: taskID}
}

// Report 实现 Reporter
func (r *LogReporter) Report(fraction float64, stage, detail string) {
	ev := r.Logger.Info()
	if stage == StageFailed.String() {
		ev = r.Logger.Error()
	}
	ev.Str("task_id", r.TaskID).
		Str("stage", stage).
		Float64("progress", math.Round(fraction*1000)/1000).
		Str("detail", detail).
		Msg("task progress")
}

// Multi 把进度广播给多个 Reporter，nil 会被忽略
func Multi(reporters ...Reporter) Reporter {
	var out multiReporter
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiReporter []Reporter

func (m multiReporter) Report(fraction float64, stage, detail string) {
	for _, r := range m {
		r.Report(fraction, stage, detail)
	}
}

// monotonic 保证进度在 [0,1] 内且不回退
type monotonic struct {
	next Reporter
	mu   sync.Mutex
	last float64
}

func newMonotonic(next Reporter) *monotonic {
	if next == nil {
		next = Nop
	}
	return &monotonic{next: next}
}

func (m *monotonic) Report(fraction float64, stage, detail string) {
	m.mu.Lock()
	if math.IsNaN(fraction) {
		fraction = m.last
	}
	fraction = math.Min(1, math.Max(fraction, m.last))
	m.last = fraction
	m.mu.Unlock()

	m.next.Report(fraction, stage, detail)
}

// Last 最近一次上报的进度
func (m *monotonic) Last() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
