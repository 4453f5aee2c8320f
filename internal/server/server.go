package server

import (
	"context"
	"errors"
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"reelforge/internal/config"
	"reelforge/internal/handler"
	taskHandler "reelforge/internal/handler/task"
	"reelforge/internal/model/video"
	"reelforge/internal/pkg/cache"
	"reelforge/internal/pkg/jwt"
	"reelforge/internal/pkg/mongodb"
	"reelforge/internal/pkg/storage"
	"reelforge/internal/pkg/storagefactory"
	taskRepo "reelforge/internal/repository/task"
	"reelforge/internal/server/middleware"
	"reelforge/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	mongo   *mongodb.Client
	redis   *cache.RedisCache
	store   storage.Storage
	taskSvc service.TaskService
}

// New 创建服务器实例
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
	}

	// MongoDB 可选，未配置时任务记录只保存在内存
	var repo taskRepo.TaskRepository = taskRepo.NewMemoryRepo()
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(ctx, &cfg.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to MongoDB, tasks are kept in memory")
		} else {
			srv.mongo = client
			log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")
			if err := mongodb.EnsureIndexes(client.Database()); err != nil {
				log.Warn().Err(err).Msg("failed to ensure indexes")
			}
			repo = taskRepo.NewRepo(client.Database())
		}
	}

	// Redis 可选，用于缓存最新进度
	var progressCache service.ProgressCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			srv.redis = rc
			progressCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	if cfg.Storage.Publish {
		store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Str("type", cfg.Storage.Type).Msg("failed to create storage, videos will not be published")
		} else {
			srv.store = store
		}
	}

	pipeline, err := service.NewPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv.taskSvc = service.NewTaskService(repo, pipeline.Orchestrator, nil, service.TaskServiceOptions{
		Cache:         progressCache,
		Storage:       srv.store,
		Voices:        pipeline.Voices,
		MaxConcurrent: cfg.App.MaxConcurrentTasks,
		HideLog:       cfg.App.HideLog,
	})

	srv.setupRoutes()
	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(s.cfg.Server.AllowOrigins))

	healthHandler := handler.NewHealthHandler(s.readyChecks())
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储发布的成片由这里对外提供
	if s.store != nil && s.store.Type() == string(storage.StorageTypeLocal) && s.cfg.Storage.Local != nil {
		s.engine.Static("/storage", s.cfg.Storage.Local.BasePath)
	}

	v1 := s.engine.Group("/api/v1")
	if s.cfg.Auth.JWTSecret != "" {
		v1.Use(middleware.Auth(jwt.NewJWT(s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenExpiry)))
	} else {
		log.Warn().Msg("auth.jwt_secret not configured, task API is open")
	}

	defaults := video.FromUIConfig(s.cfg.UI)
	taskHandler.RegisterRoutes(v1, taskHandler.NewHandler(s.taskSvc, defaults))
}

// readyChecks 就绪检查项
func (s *Server) readyChecks() map[string]handler.ReadyCheck {
	checks := map[string]handler.ReadyCheck{
		"ffmpeg": func(ctx context.Context) error {
			_, err := exec.LookPath("ffmpeg")
			return err
		},
	}
	if s.mongo != nil {
		checks["mongo"] = func(ctx context.Context) error {
			return s.mongo.Ping(ctx)
		}
	}
	if s.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.redis.Ping(ctx)
		}
	}
	return checks
}

// Run 启动服务器，ctx 结束后等待运行中的任务完成再退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
		err := srv.Shutdown(context.Background())

		log.Info().Msg("waiting for running tasks")
		s.taskSvc.Wait()

		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}
		return err
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
