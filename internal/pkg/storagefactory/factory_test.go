package storagefactory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/pkg/storage"
)

func TestNewStorage(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		cfg      *config.StorageConfig
		wantErr  bool
		wantType string
	}{
		{
			name: "valid local storage config",
			cfg: &config.StorageConfig{
				Type: "local",
				Local: &config.LocalConfig{
					BasePath: tmpDir,
					BaseURL:  "http://localhost:7080/files/",
				},
			},
			wantType: "local",
		},
		{
			name:    "missing local config",
			cfg:     &config.StorageConfig{Type: "local"},
			wantErr: true,
		},
		{
			name:    "missing oss config",
			cfg:     &config.StorageConfig{Type: "oss"},
			wantErr: true,
		},
		{
			name:    "unsupported storage type",
			cfg:     &config.StorageConfig{Type: "s3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStorage(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStorage() expected error, got nil")
				}
				if s != nil {
					t.Errorf("NewStorage() expected nil storage, got %v", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStorage() unexpected error: %v", err)
			}
			if s.Type() != tt.wantType {
				t.Errorf("Type() = %v, want %v", s.Type(), tt.wantType)
			}
		})
	}
}

func TestLocalStorage_Publish(t *testing.T) {
	tmpDir := t.TempDir()
	baseURL := "http://localhost:7080/files"
	ctx := context.Background()

	s, err := NewStorage(ctx, &config.StorageConfig{
		Type:  "local",
		Local: &config.LocalConfig{BasePath: tmpDir, BaseURL: baseURL},
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	key := storage.VideoKey("task-1", "/work/task-1/final-1.mp4")
	if key != "videos/task-1/final-1.mp4" {
		t.Fatalf("VideoKey() = %v", key)
	}

	url, err := s.Upload(ctx, key, strings.NewReader("video"), storage.ContentType(key))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if want := baseURL + "/" + key; url != want {
		t.Errorf("Upload() url = %v, want %v", url, want)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, key))
	if err != nil || string(data) != "video" {
		t.Errorf("uploaded content = %q, err = %v", data, err)
	}

	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true", exists, err)
	}

	link, err := s.URL(ctx, key, time.Hour)
	if err != nil || link != url {
		t.Errorf("URL() = %v, %v, want %v", link, err, url)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete() of missing file error = %v, want nil", err)
	}
	if _, err := s.URL(ctx, key, time.Hour); err == nil {
		t.Errorf("URL() of missing file expected error")
	}
}

func TestLocalStorage_KeyEscape(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := NewStorage(context.Background(), &config.StorageConfig{
		Type:  "local",
		Local: &config.LocalConfig{BasePath: filepath.Join(tmpDir, "base")},
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if _, err := s.Upload(context.Background(), "../../outside.mp4", strings.NewReader("x"), "video/mp4"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "outside.mp4")); !os.IsNotExist(err) {
		t.Errorf("key escaped base path")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "base", "outside.mp4")); err != nil {
		t.Errorf("file not stored under base path: %v", err)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"final-1.mp4": "video/mp4",
		"audio.mp3":   "audio/mpeg",
		"sub.ass":     "text/x-ass",
		"noext":       "application/octet-stream",
	}
	for name, want := range cases {
		if got := storage.ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %v, want %v", name, got, want)
		}
	}
}
