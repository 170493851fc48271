package mongostore

import (
	"context"
	"time"

	"workerbee/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "username", Value: username}})
}

func (s *Store) ListUsers(ctx context.Context, search string) ([]*model.User, error) {
	filter := bson.D{{Key: "active", Value: true}}
	if search != "" {
		// 大小写无关子串匹配，特殊字符按字面量处理
		re := bson.D{{Key: "$regex", Value: regexQuoteMeta(search)}, {Key: "$options", Value: "i"}}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "username", Value: re}},
			bson.D{{Key: "email", Value: re}},
			bson.D{{Key: "display_name", Value: re}},
		}})
	}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	return findMany[model.User](ctx, s.col(ColUsers), filter, opts)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin *time.Time) error {
	update := bson.D{
		{Key: "login_attempts", Value: attempts},
		{Key: "lock_until", Value: lockUntil},
		{Key: "updated_at", Value: time.Now().UTC()},
	}
	if lastLogin != nil {
		update = append(update, bson.E{Key: "last_login_at", Value: lastLogin})
	}
	return updateFields(ctx, s.col(ColUsers), id, update)
}
