package task

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelforge/internal/model/task"
)

// ErrNotFound 任务不存在
var ErrNotFound = errors.New("task not found")

// TaskRepository 任务仓库接口
type TaskRepository interface {
	Create(ctx context.Context, t *task.Task) error
	FindByID(ctx context.Context, id, userID string) (*task.Task, error)
	List(ctx context.Context, userID string, page, pageSize int64, status string) ([]*task.Task, int64, error)
	Update(ctx context.Context, t *task.Task) error
	UpdateProgress(ctx context.Context, id string, status task.Status, stage string, progress float64, detail string) error
}

// Repo 基于 MongoDB 实现 TaskRepository
type Repo struct {
	coll *mongo.Collection
}

// NewRepo 创建任务仓库
func NewRepo(db *mongo.Database) *Repo {
	var t task.Task
	return &Repo{coll: db.Collection(t.Collection())}
}

// Create 创建任务
func (r *Repo) Create(ctx context.Context, t *task.Task) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

// FindByID 根据ID查询任务，userID 非空时校验归属
func (r *Repo) FindByID(ctx context.Context, id, userID string) (*task.Task, error) {
	var t task.Task
	filter := bson.M{"id": id}
	if userID != "" {
		filter["user_id"] = userID
	}
	if err := r.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List 分页查询任务列表，按创建时间倒序
func (r *Repo) List(ctx context.Context, userID string, page, pageSize int64, status string) ([]*task.Task, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var list []*task.Task
	if err := cur.All(ctx, &list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Update 整体更新任务
func (r *Repo) Update(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": t.ID}, bson.M{"$set": t})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress 只更新进度相关字段
// 已经终止的任务不会被迟到的进度覆盖
func (r *Repo) UpdateProgress(ctx context.Context, id string, status task.Status, stage string, progress float64, detail string) error {
	filter := bson.M{
		"id":     id,
		"status": bson.M{"$nin": []task.Status{task.StatusCompleted, task.StatusFailed}},
	}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"stage":      stage,
		"progress":   progress,
		"detail":     detail,
		"updated_at": time.Now(),
	}}
	_, err := r.coll.UpdateOne(ctx, filter, update)
	return err
}

func normalizePage(page, pageSize int64) (int64, int64) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
