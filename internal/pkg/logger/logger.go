package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"reelforge/internal/config"
)

// Init 初始化全局日志
// 未知级别按 info 处理；output 为 file 时追加写入 file_path
func Init(cfg *config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.TimeFormat {
	case "Unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "UnixMs":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}
	zerolog.DurationFieldUnit = time.Millisecond

	out, err := openOutput(cfg)
	if err != nil {
		return err
	}
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	return nil
}

func openOutput(cfg *config.LogConfig) (io.Writer, error) {
	var w io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		w = os.Stdout
	}
	if cfg.Output == "file" && cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}
	if cfg.Format == "console" {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}, nil
	}
	return w, nil
}

// ForTask 带 task_id 字段的子 logger
func ForTask(taskID string) zerolog.Logger {
	return log.With().Str("task_id", taskID).Logger()
}
