package task

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	taskmodel "reelforge/internal/model/task"
	"reelforge/internal/model/video"
	"reelforge/internal/pkg/ctxutil"
	httputil "reelforge/internal/pkg/http"
	"reelforge/internal/pkg/id"
	taskrepo "reelforge/internal/repository/task"
	"reelforge/internal/service"
	"reelforge/internal/service/task"
)

// ErrorResponse 复用通用错误响应
type ErrorResponse = httputil.ErrorResponse

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 2 * wsPingInterval
)

// Handler 任务处理器
type Handler struct {
	svc      service.TaskService
	defaults video.VideoParams
	upgrader websocket.Upgrader
}

// NewHandler 创建任务处理器
// defaults 为请求体缺省字段的取值，一般由 ui.* 配置生成
func NewHandler(svc service.TaskService, defaults video.VideoParams) *Handler {
	return &Handler{
		svc:      svc,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// TaskInfo 任务 DTO
type TaskInfo struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Stage         string   `json:"stage"`
	Progress      float64  `json:"progress"`
	Detail        string   `json:"detail,omitempty"`
	Subject       string   `json:"video_subject,omitempty"`
	Script        string   `json:"script,omitempty"`
	Terms         []string `json:"terms,omitempty"`
	Videos        []string `json:"videos,omitempty"`
	VideoURLs     []string `json:"video_urls,omitempty"`
	VoiceFallback bool     `json:"voice_fallback,omitempty"`
	ErrorKind     string   `json:"error_kind,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	CompletedAt   string   `json:"completed_at,omitempty"`
}

func toTaskInfo(t *taskmodel.Task) TaskInfo {
	info := TaskInfo{
		ID:            t.ID,
		Status:        string(t.Status),
		Stage:         t.Stage,
		Progress:      t.Progress,
		Detail:        t.Detail,
		Subject:       t.Params.VideoSubject,
		Script:        t.Script,
		Terms:         t.Terms,
		Videos:        t.Videos,
		VideoURLs:     t.VideoURLs,
		VoiceFallback: t.VoiceFallback,
		ErrorKind:     t.ErrorKind,
		ErrorMessage:  t.ErrorMessage,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		info.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return info
}

// CreateTaskResponseData 创建任务响应
type CreateTaskResponseData struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// CreateTask 提交视频生成任务
// @Summary      提交视频生成任务
// @Description  校验参数后在后台执行，立即返回任务ID
// @Tags         任务
// @Accept       json
// @Produce      json
// @Param        request  body      video.VideoParams  true  "视频参数，缺省字段使用服务端默认值"
// @Success      202      {object}  httputil.SuccessResponse
// @Failure      400      {object}  ErrorResponse  "参数错误，detail 为错误类型"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/tasks [post]
func (h *Handler) CreateTask(c *gin.Context) {
	params := h.defaults.Clone()
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadRequest, "Invalid request body", err.Error()))
		return
	}

	ctx := c.Request.Context()
	t, err := h.svc.CreateTask(ctx, ctxutil.UserIDOrEmpty(ctx), params)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, httputil.NewSuccessResponse("accepted", CreateTaskResponseData{
		TaskID:    t.ID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}))
}

// GetTask 获取任务详情
// @Summary      获取任务详情
// @Tags         任务
// @Produce      json
// @Param        id   path      string  true  "任务ID"
// @Success      200  {object}  httputil.SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/tasks/{id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.svc.GetTask(ctx, ctxutil.UserIDOrEmpty(ctx), taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", toTaskInfo(t)))
}

// ListTasksResponseData 任务列表响应
type ListTasksResponseData struct {
	Tasks    []TaskInfo `json:"tasks"`
	Total    int64      `json:"total"`
	Page     int64      `json:"page"`
	PageSize int64      `json:"page_size"`
}

// ListTasks 分页查询任务
// @Summary      任务列表
// @Tags         任务
// @Produce      json
// @Param        page       query     int     false  "页码"
// @Param        page_size  query     int     false  "每页数量"
// @Param        status     query     string  false  "状态筛选"
// @Success      200        {object}  httputil.SuccessResponse
// @Router       /api/v1/tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	pageSize, _ := strconv.ParseInt(c.DefaultQuery("page_size", "20"), 10, 64)
	status := c.Query("status")

	ctx := c.Request.Context()
	res, err := h.svc.ListTasks(ctx, ctxutil.UserIDOrEmpty(ctx), page, pageSize, status)
	if err != nil {
		writeError(c, err)
		return
	}

	data := ListTasksResponseData{
		Tasks:    make([]TaskInfo, 0, len(res.Tasks)),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	}
	for _, t := range res.Tasks {
		data.Tasks = append(data.Tasks, toTaskInfo(t))
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", data))
}

// GetProgress 获取最新进度
// @Summary      获取任务最新进度
// @Tags         任务
// @Produce      json
// @Param        id   path      string  true  "任务ID"
// @Success      200  {object}  httputil.SuccessResponse
// @Router       /api/v1/tasks/{id}/progress [get]
func (h *Handler) GetProgress(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ev, err := h.svc.LatestProgress(ctx, ctxutil.UserIDOrEmpty(ctx), taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", ev))
}

// StreamProgress 通过 websocket 推送进度，任务终止后服务端关闭连接
// @Summary      订阅任务进度
// @Tags         任务
// @Param        id   path  string  true  "任务ID"
// @Router       /api/v1/tasks/{id}/ws [get]
func (h *Handler) StreamProgress(c *gin.Context) {
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 先订阅再读快照，避免漏掉两者之间的事件
	events, cancel := h.svc.Subscribe(taskID)
	defer cancel()

	latest, err := h.svc.LatestProgress(ctx, ctxutil.UserIDOrEmpty(ctx), taskID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// 读循环只用于感知客户端断开，收到 pong 时延长读超时
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, *latest); err != nil || latest.Terminal() {
		closeConn(conn)
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				closeConn(conn)
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
			if ev.Terminal() {
				closeConn(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// ListVoices 列出可用音色
// @Summary      可用音色
// @Tags         任务
// @Produce      json
// @Param        locale  query     string  false  "语言前缀，如 zh-CN"
// @Success      200     {object}  httputil.SuccessResponse
// @Router       /api/v1/voices [get]
func (h *Handler) ListVoices(c *gin.Context) {
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", h.svc.Voices(c.Query("locale"))))
}

func writeEvent(conn *websocket.Conn, ev service.ProgressEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}

func closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func taskIDParam(c *gin.Context) (string, bool) {
	taskID := c.Param("id")
	if !id.IsValid(taskID) {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadRequest, "invalid task id"))
		return "", false
	}
	return taskID, true
}

// writeError 按错误类型映射状态码
func writeError(c *gin.Context, err error) {
	if errors.Is(err, taskrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, httputil.NewErrorResponse(httputil.CodeNotFound, "task not found"))
		return
	}
	if te, ok := task.AsError(err); ok {
		switch te.Kind {
		case task.KindValidation:
			c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeValidation, te.Message, string(te.Kind)))
			return
		case task.KindScriptGeneration, task.KindKeywordGeneration:
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("llm request failed")
			c.JSON(http.StatusBadGateway, httputil.NewErrorResponse(httputil.CodeUpstream, te.Message, string(te.Kind)))
			return
		}
	}
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("task request failed")
	c.JSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.CodeInternal, "Internal Server Error", string(task.KindOf(err))))
}
