package repository

import (
	"context"
	"time"

	"workerbee/internal/shared/model"
)

const userColumns = `id, username, email, display_name, password_hash, active,
	pref_theme, pref_language, pref_notifications,
	login_attempts, lock_until, last_login_at, created_at, updated_at`

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`),
		user.ID, user.Username, user.Email, user.DisplayName, user.PasswordHash, user.Active,
		user.Preferences.Theme, user.Preferences.Language, user.Preferences.Notifications,
		user.LoginAttempts, user.LockUntil, user.LastLoginAt, user.CreatedAt, user.UpdatedAt,
	)
	return wrapError(err)
}

func (s *Store) scanUser(scan func(dest ...interface{}) error) (*model.User, error) {
	u := &model.User{}
	err := scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Active,
		&u.Preferences.Theme, &u.Preferences.Language, &u.Preferences.Notifications,
		&u.LoginAttempts, &u.LockUntil, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	return u, nil
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return s.scanUser(row.Scan)
}

// GetUserByEmail 通过邮箱查找用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email = $1`), email)
	return s.scanUser(row.Scan)
}

// GetUserByUsername 通过用户名查找用户
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE username = $1`), username)
	return s.scanUser(row.Scan)
}

// ListUsers 列出活跃用户，search 非空时按用户名/邮箱/显示名模糊匹配
func (s *Store) ListUsers(ctx context.Context, search string) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = $1`
	args := []interface{}{true}
	if search != "" {
		like := s.dialect.ILike()
		query += ` AND (username ` + like + ` $2 OR email ` + like + ` $3 OR display_name ` + like + ` $4)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY username ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := s.scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, wrapError(rows.Err())
}

// UpdateUserPassword 更新用户密码
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`),
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}

// UpdateUserLoginState 更新登录簿记（失败计数、锁定截止、最近登录时间）
func (s *Store) UpdateUserLoginState(ctx context.Context, id string, attempts int, lockUntil, lastLogin *time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET login_attempts = $1, lock_until = $2, last_login_at = COALESCE($3, last_login_at), updated_at = $4
		 WHERE id = $5`),
		attempts, lockUntil, lastLogin, time.Now().UTC(), id,
	)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}
