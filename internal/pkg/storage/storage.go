package storage

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"time"
)

// Storage 成片发布存储
type Storage interface {
	// Upload 上传文件，返回可访问地址
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// URL 获取下载地址，私有存储返回带过期时间的签名地址
	URL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除文件，文件不存在视为成功
	Delete(ctx context.Context, key string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Type 存储类型
	Type() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// ContentType 根据扩展名推断 Content-Type
func ContentType(name string) string {
	switch ext := filepath.Ext(name); ext {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ass":
		return "text/x-ass"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// VideoKey 成片在存储中的 key：videos/<taskID>/<file>
func VideoKey(taskID, path string) string {
	return "videos/" + taskID + "/" + filepath.Base(path)
}
