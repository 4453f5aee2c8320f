package task

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelforge/internal/model/video"
)

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal 是否为终止状态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 一次视频生成任务
type Task struct {
	ID            string            `bson:"id" json:"id"`                                             // 任务ID（UUID）
	UserID        string            `bson:"user_id,omitempty" json:"user_id,omitempty"`               // 提交者，未开启鉴权时为空
	Params        video.VideoParams `bson:"params" json:"params"`                                     // 提交时的参数
	Status        Status            `bson:"status" json:"status"`                                     // 状态
	Stage         string            `bson:"stage" json:"stage"`                                       // 当前阶段
	Progress      float64           `bson:"progress" json:"progress"`                                 // 总体进度（0.0-1.0）
	Detail        string            `bson:"detail,omitempty" json:"detail,omitempty"`                 // 最近一条进度说明
	Script        string            `bson:"script,omitempty" json:"script,omitempty"`                 // 实际使用的文案
	Terms         []string          `bson:"terms,omitempty" json:"terms,omitempty"`                   // 实际使用的关键词
	Videos        []string          `bson:"videos,omitempty" json:"videos,omitempty"`                 // 成片路径
	VideoURLs     []string          `bson:"video_urls,omitempty" json:"video_urls,omitempty"`         // 发布后的访问地址
	VoiceFallback bool              `bson:"voice_fallback,omitempty" json:"voice_fallback,omitempty"` // 是否使用了兜底配音
	ErrorKind     string            `bson:"error_kind,omitempty" json:"error_kind,omitempty"`         // 失败类型
	ErrorMessage  string            `bson:"error_message,omitempty" json:"error_message,omitempty"`   // 失败原因
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time        `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Collection 返回集合名称
func (t *Task) Collection() string { return "tasks" }

// EnsureIndexes 创建和维护索引
func (t *Task) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
