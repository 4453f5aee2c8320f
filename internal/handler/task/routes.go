package task

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册任务相关路由
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	g.POST("/tasks", h.CreateTask)
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:id", h.GetTask)
	g.GET("/tasks/:id/progress", h.GetProgress)
	g.GET("/tasks/:id/ws", h.StreamProgress)
	g.GET("/voices", h.ListVoices)
	g.POST("/scripts", h.GenerateScript)
	g.POST("/terms", h.GenerateTerms)
}
