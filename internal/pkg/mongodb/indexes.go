package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"reelforge/internal/model/task"
)

// EnsureIndexes 创建所有模型的索引
// 在应用启动时调用
func EnsureIndexes(db *mongo.Database) error {
	return EnsureAllIndexes(context.Background(), db, &task.Task{})
}
