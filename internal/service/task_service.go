package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	taskmodel "reelforge/internal/model/task"
	"reelforge/internal/model/video"
	"reelforge/internal/pkg/cache"
	"reelforge/internal/pkg/id"
	"reelforge/internal/pkg/logger"
	"reelforge/internal/pkg/storage"
	"reelforge/internal/pkg/videotools/providers"
	taskrepo "reelforge/internal/repository/task"
	"reelforge/internal/service/task"
)

// persistInterval 进度写库的最小间隔，阶段变化时立即写入
const persistInterval = time.Second

// Runner 执行一次视频生成，*task.Orchestrator 实现了它
type Runner interface {
	Precheck(taskID string, params video.VideoParams) error
	Start(ctx context.Context, taskID string, params video.VideoParams, reporter task.Reporter) (*task.Result, error)
	GenerateScript(ctx context.Context, subject, language string) (string, error)
	GenerateTerms(ctx context.Context, subject, script string) ([]string, error)
}

// ProgressCache 最新进度快照，*cache.RedisCache 实现了它
type ProgressCache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
}

// VoiceLister 列出可用音色
type VoiceLister interface {
	Voices(locale string) []providers.Voice
}

// TaskService 任务服务接口
type TaskService interface {
	CreateTask(ctx context.Context, userID string, params video.VideoParams) (*taskmodel.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*taskmodel.Task, error)
	ListTasks(ctx context.Context, userID string, page, pageSize int64, status string) (*TaskListResult, error)
	LatestProgress(ctx context.Context, userID, taskID string) (*ProgressEvent, error)
	Subscribe(taskID string) (<-chan ProgressEvent, func())
	Voices(locale string) []providers.Voice
	GenerateScript(ctx context.Context, subject, language string, withTerms bool) (*ScriptResult, error)
	GenerateTerms(ctx context.Context, subject, script string) ([]string, error)
	Wait()
}

// ScriptResult 单独生成的文案，withTerms 时附带关键词
type ScriptResult struct {
	Script string   `json:"script"`
	Terms  []string `json:"terms,omitempty"`
}

// TaskListResult 任务列表结果
type TaskListResult struct {
	Tasks    []*taskmodel.Task
	Total    int64
	Page     int64
	PageSize int64
}

// TaskServiceOptions 可选依赖，为空时对应功能关闭
type TaskServiceOptions struct {
	Cache         ProgressCache
	Storage       storage.Storage
	Voices        VoiceLister
	MaxConcurrent int
	HideLog       bool
}

type taskService struct {
	repo    taskrepo.TaskRepository
	runner  Runner
	hub     *ProgressHub
	cache   ProgressCache
	storage storage.Storage
	voices  VoiceLister
	hideLog bool

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewTaskService 创建 TaskService
func NewTaskService(repo taskrepo.TaskRepository, runner Runner, hub *ProgressHub, opts TaskServiceOptions) TaskService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if hub == nil {
		hub = NewProgressHub()
	}
	return &taskService{
		repo:    repo,
		runner:  runner,
		hub:     hub,
		cache:   opts.Cache,
		storage: opts.Storage,
		voices:  opts.Voices,
		hideLog: opts.HideLog,
		slots:   make(chan struct{}, opts.MaxConcurrent),
	}
}

// CreateTask 校验参数、写入任务记录并在后台执行
// 参数非法时返回 *task.Error，不会创建任务
func (s *taskService) CreateTask(ctx context.Context, userID string, params video.VideoParams) (*taskmodel.Task, error) {
	taskID := id.New()
	if err := s.runner.Precheck(taskID, params); err != nil {
		return nil, err
	}

	t := &taskmodel.Task{
		ID:     taskID,
		UserID: userID,
		Params: params.Clone(),
		Status: taskmodel.StatusPending,
		Stage:  "queued",
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.wg.Add(1)
	go s.execute(t.ID, t.Params)

	log.Info().Str("task_id", t.ID).Str("user_id", userID).Str("source", string(params.VideoSource)).Msg("task created")
	return t, nil
}

// GenerateScript 只生成文案（可选附带关键词），不创建任务
// 失败时返回 *task.Error，类型为 script_generation 或 keyword_generation
func (s *taskService) GenerateScript(ctx context.Context, subject, language string, withTerms bool) (*ScriptResult, error) {
	script, err := s.runner.GenerateScript(ctx, subject, language)
	if err != nil {
		return nil, err
	}
	res := &ScriptResult{Script: script}
	if withTerms {
		if res.Terms, err = s.runner.GenerateTerms(ctx, subject, script); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GenerateTerms 根据已有文案生成关键词
func (s *taskService) GenerateTerms(ctx context.Context, subject, script string) ([]string, error) {
	return s.runner.GenerateTerms(ctx, subject, script)
}

// GetTask 查询任务
func (s *taskService) GetTask(ctx context.Context, userID, taskID string) (*taskmodel.Task, error) {
	return s.repo.FindByID(ctx, taskID, userID)
}

// ListTasks 分页查询任务
func (s *taskService) ListTasks(ctx context.Context, userID string, page, pageSize int64, status string) (*TaskListResult, error) {
	list, total, err := s.repo.List(ctx, userID, page, pageSize, status)
	if err != nil {
		return nil, err
	}
	return &TaskListResult{Tasks: list, Total: total, Page: page, PageSize: pageSize}, nil
}

// LatestProgress 最新进度，优先读缓存，缓存缺失时由任务记录构造
func (s *taskService) LatestProgress(ctx context.Context, userID, taskID string) (*ProgressEvent, error) {
	t, err := s.repo.FindByID(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && !t.Status.Terminal() {
		var ev ProgressEvent
		err := s.cache.Get(ctx, cache.TaskProgressKey(taskID), &ev)
		if err == nil {
			return &ev, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Debug().Err(err).Str("task_id", taskID).Msg("failed to read cached progress")
		}
	}
	return eventFromTask(t), nil
}

// Subscribe 订阅任务进度
func (s *taskService) Subscribe(taskID string) (<-chan ProgressEvent, func()) {
	return s.hub.Subscribe(taskID)
}

// Voices 列出可用音色
func (s *taskService) Voices(locale string) []providers.Voice {
	if s.voices == nil {
		return nil
	}
	return s.voices.Voices(locale)
}

// Wait 等待所有后台任务结束
func (s *taskService) Wait() {
	s.wg.Wait()
}

// execute 在后台排队执行任务
func (s *taskService) execute(taskID string, params video.VideoParams) {
	defer s.wg.Done()
	ctx := context.Background()
	logger := logger.ForTask(taskID)

	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	reporter := newTaskReporter(s, taskID)
	var r task.Reporter = reporter
	if !s.hideLog {
		r = task.Multi(reporter, task.NewLogReporter(taskID))
	}

	res, err := s.runner.Start(ctx, taskID, params, r)

	// 读不到任务记录时仍然发布终止事件，避免订阅者一直等待
	t, findErr := s.repo.FindByID(ctx, taskID, "")
	if findErr != nil {
		logger.Error().Err(findErr).Msg("failed to load task after run")
		t = &taskmodel.Task{ID: taskID, Params: params}
	}
	now := time.Now()
	t.CompletedAt = &now
	if findErr != nil {
		t.UpdatedAt = now
	}

	if err != nil {
		t.Status = taskmodel.StatusFailed
		t.Stage = task.StageFailed.String()
		t.ErrorKind = string(task.KindOf(err))
		t.ErrorMessage = err.Error()
		if te, ok := task.AsError(err); ok {
			t.ErrorMessage = te.Message
			t.Detail = te.Stage.String()
		}
		t.Progress = reporter.last()
	} else {
		t.Status = taskmodel.StatusCompleted
		t.Stage = task.StageDone.String()
		t.Progress = 1
		t.Script = res.Script
		t.Terms = res.Terms
		t.Videos = res.Videos
		t.VoiceFallback = res.VoiceFallback
		t.VideoURLs = s.publish(ctx, taskID, res.Videos)
	}

	if findErr == nil {
		if err := s.repo.Update(ctx, t); err != nil {
			logger.Error().Err(err).Msg("failed to save task result")
		}
	}

	ev := eventFromTask(t)
	s.cacheProgress(ctx, *ev)
	s.hub.Publish(*ev)
}

// publish 上传成片，失败只记录日志，本地文件仍然可用
func (s *taskService) publish(ctx context.Context, taskID string, videos []string) []string {
	if s.storage == nil {
		return nil
	}
	urls := make([]string, 0, len(videos))
	for _, path := range videos {
		url, err := s.upload(ctx, taskID, path)
		if err != nil {
			log.Warn().Err(err).Str("task_id", taskID).Str("video", path).Msg("failed to publish video")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (s *taskService) upload(ctx context.Context, taskID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	key := storage.VideoKey(taskID, path)
	return s.storage.Upload(ctx, key, f, storage.ContentType(path))
}

func (s *taskService) cacheProgress(ctx context.Context, ev ProgressEvent) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.TaskProgressKey(ev.TaskID), ev, cache.TaskProgressTTL); err != nil {
		log.Debug().Err(err).Str("task_id", ev.TaskID).Msg("failed to cache task progress")
	}
}

func eventFromTask(t *taskmodel.Task) *ProgressEvent {
	detail := t.Detail
	if t.Status == taskmodel.StatusFailed && t.ErrorMessage != "" {
		detail = t.ErrorMessage
	}
	return &ProgressEvent{
		TaskID:   t.ID,
		Status:   t.Status,
		Stage:    t.Stage,
		Progress: t.Progress,
		Detail:   detail,
		Videos:   t.Videos,
		Time:     t.UpdatedAt,
	}
}

// taskReporter 把编排器进度同步到仓库、缓存和订阅者
// 终止状态由 execute 在写入结果后统一推送
type taskReporter struct {
	s      *taskService
	taskID string

	mu          sync.Mutex
	fraction    float64
	lastStage   string
	lastPersist time.Time
}

func newTaskReporter(s *taskService, taskID string) *taskReporter {
	return &taskReporter{s: s, taskID: taskID}
}

// Report 实现 task.Reporter
func (r *taskReporter) Report(fraction float64, stage, detail string) {
	if stage == task.StageFailed.String() || stage == task.StageDone.String() {
		r.mu.Lock()
		r.fraction = fraction
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.fraction = fraction
	persist := stage != r.lastStage || time.Since(r.lastPersist) >= persistInterval
	if persist {
		r.lastStage = stage
		r.lastPersist = time.Now()
	}
	r.mu.Unlock()

	ctx := context.Background()
	ev := ProgressEvent{
		TaskID:   r.taskID,
		Status:   taskmodel.StatusRunning,
		Stage:    stage,
		Progress: fraction,
		Detail:   detail,
		Time:     time.Now(),
	}
	if persist {
		if err := r.s.repo.UpdateProgress(ctx, r.taskID, taskmodel.StatusRunning, stage, fraction, detail); err != nil && !errors.Is(err, taskrepo.ErrNotFound) {
			log.Warn().Err(err).Str("task_id", r.taskID).Msg("failed to persist task progress")
		}
	}
	r.s.cacheProgress(ctx, ev)
	r.s.hub.Publish(ev)
}

func (r *taskReporter) last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fraction
}
