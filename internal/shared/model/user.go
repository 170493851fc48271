// Package model 定义核心数据模型
//
// user.go 包含用户账号相关的模型定义：
//   - User：用户账号（含登录锁定状态）
//   - UserPreferences：用户偏好设置
//
// 敏感字段（密码哈希、登录失败计数、锁定时间）通过 json:"-" 排除在
// 所有 API 响应之外，序列化即脱敏，无需各处手动清理。
package model

import (
	"regexp"
	"time"
)

// 用户字段约束
const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 30
	DisplayNameMaxLen = 50

	// MaxLoginAttempts 连续登录失败达到该次数后锁定账号
	MaxLoginAttempts = 5

	// LockDuration 账号锁定时长
	LockDuration = 2 * time.Hour
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidUsername 校验用户名格式（字母/数字/下划线/连字符，3-30 位）
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// ValidEmail 校验邮箱格式
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// UserPreferences 用户偏好设置
type UserPreferences struct {
	Theme         string `json:"theme,omitempty" bson:"theme,omitempty" db:"theme"`
	Language      string `json:"language,omitempty" bson:"language,omitempty" db:"language"`
	Notifications bool   `json:"notifications" bson:"notifications" db:"notifications"`
}

// User 用户账号
//
// 锁定状态机：
//   - 连续 MaxLoginAttempts 次登录失败 → LockUntil = now + LockDuration
//   - 锁定期间登录一律失败（密码正确也不放行），且不重置/延长锁定
//   - 锁定期过后下一次尝试自动回到未锁定状态
//   - 任意一次成功登录将失败计数清零
type User struct {
	ID           string          `json:"id" bson:"_id" db:"id"`
	Username     string          `json:"username" bson:"username" db:"username"`
	Email        string          `json:"email" bson:"email" db:"email"`
	DisplayName  string          `json:"display_name" bson:"display_name" db:"display_name"`
	PasswordHash string          `json:"-" bson:"password_hash" db:"password_hash"`
	Active       bool            `json:"active" bson:"active" db:"active"`
	Preferences  UserPreferences `json:"preferences" bson:"preferences" db:"preferences"`

	// 登录锁定簿记（不出现在任何响应中）
	LoginAttempts int        `json:"-" bson:"login_attempts" db:"login_attempts"`
	LockUntil     *time.Time `json:"-" bson:"lock_until,omitempty" db:"lock_until"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Locked 判断账号在给定时刻是否处于锁定状态
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}
