package mongostore

import (
	"context"

	"workerbee/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// TaskStore
// ============================================================================

func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	return insertOne(ctx, s.col(ColTasks), task)
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return findOne[model.Task](ctx, s.col(ColTasks), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListTasks(ctx context.Context) ([]*model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Task](ctx, s.col(ColTasks), bson.D{}, opts)
}

// UpdateTask 整记录覆盖更新（created_by/created_at 不可变，不参与 $set）
func (s *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	return updateFields(ctx, s.col(ColTasks), task.ID, bson.D{
		{Key: "title", Value: task.Title},
		{Key: "description", Value: task.Description},
		{Key: "priority", Value: task.Priority},
		{Key: "status", Value: task.Status},
		{Key: "due_date", Value: task.DueDate},
		{Key: "assigned_to", Value: task.AssignedTo},
		{Key: "completed_at", Value: task.CompletedAt},
		{Key: "completed_by", Value: task.CompletedBy},
		{Key: "updated_at", Value: task.UpdatedAt},
	})
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColTasks), id)
}
