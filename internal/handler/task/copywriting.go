package task

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reelforge/internal/model/video"
	httputil "reelforge/internal/pkg/http"
)

// GenerateScriptRequest 单独生成文案的请求
type GenerateScriptRequest struct {
	VideoSubject  string            `json:"video_subject" binding:"required"`
	VideoLanguage string            `json:"video_language"`
	VideoSource   video.VideoSource `json:"video_source"` // 非本地来源时同时生成关键词
}

// GenerateTermsRequest 单独生成关键词的请求
type GenerateTermsRequest struct {
	VideoSubject string `json:"video_subject"`
	VideoScript  string `json:"video_script" binding:"required"`
}

// GenerateTermsResponseData 关键词响应
type GenerateTermsResponseData struct {
	Terms []string `json:"terms"`
}

// GenerateScript 生成文案和关键词，不创建任务
// @Summary      生成视频文案
// @Description  根据主题生成文案，video_source 不是 local 时同时生成关键词
// @Tags         文案
// @Accept       json
// @Produce      json
// @Param        request  body      GenerateScriptRequest  true  "主题和语言"
// @Success      200      {object}  httputil.SuccessResponse
// @Failure      400      {object}  ErrorResponse  "参数错误"
// @Failure      502      {object}  ErrorResponse  "大模型调用失败，detail 为错误类型"
// @Router       /api/v1/scripts [post]
func (h *Handler) GenerateScript(c *gin.Context) {
	var req GenerateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadRequest, "Invalid request body", err.Error()))
		return
	}
	source := req.VideoSource
	if source == "" {
		source = h.defaults.VideoSource
	}
	language := strings.TrimSpace(req.VideoLanguage)
	if language == "" {
		language = h.defaults.VideoLanguage
	}

	res, err := h.svc.GenerateScript(c.Request.Context(), req.VideoSubject, language, source.IsRemote())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", res))
}

// GenerateTerms 根据已有文案生成关键词
// @Summary      生成素材关键词
// @Tags         文案
// @Accept       json
// @Produce      json
// @Param        request  body      GenerateTermsRequest  true  "主题和文案"
// @Success      200      {object}  httputil.SuccessResponse
// @Failure      400      {object}  ErrorResponse  "参数错误"
// @Failure      502      {object}  ErrorResponse  "大模型调用失败，detail 为错误类型"
// @Router       /api/v1/terms [post]
func (h *Handler) GenerateTerms(c *gin.Context) {
	var req GenerateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeBadRequest, "Invalid request body", err.Error()))
		return
	}

	terms, err := h.svc.GenerateTerms(c.Request.Context(), req.VideoSubject, req.VideoScript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", GenerateTermsResponseData{Terms: terms}))
}
