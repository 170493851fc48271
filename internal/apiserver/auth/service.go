package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"workerbee/internal/shared/apperr"
	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
)

// Service 认证业务逻辑：注册、登录（含锁定状态机）、令牌校验
type Service struct {
	store storage.UserStore
	cfg   Config

	// now 可注入的时钟，测试用
	now func() time.Time
}

// NewService 创建认证服务
func NewService(store storage.UserStore, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// RegisterInput 注册请求
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register 注册新用户并签发会话令牌
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if !model.ValidUsername(in.Username) {
		return nil, "", apperr.New(apperr.KindValidation, "username must be 3-30 characters (letters, digits, underscore, hyphen)")
	}
	if !model.ValidEmail(in.Email) {
		return nil, "", apperr.New(apperr.KindValidation, "invalid email address")
	}
	if len(in.Password) < PasswordMinLen {
		return nil, "", apperr.Newf(apperr.KindValidation, "password must be at least %d characters", PasswordMinLen)
	}
	if len(in.DisplayName) > model.DisplayNameMaxLen {
		return nil, "", apperr.Newf(apperr.KindValidation, "display name must be at most %d characters", model.DisplayNameMaxLen)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           model.NewID(model.IDPrefixUser),
		Username:     in.Username,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		Active:       true,
		Preferences:  model.UserPreferences{Notifications: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", apperr.New(apperr.KindConflict, "username or email already registered")
		}
		return nil, "", translateStoreErr("register", err)
	}

	token, err := GenerateToken(s.cfg, user.ID, user.Username, user.Email)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to issue token", err)
	}

	log.Printf("[auth] registered user %s (%s)", user.ID, user.Username)
	return user, token, nil
}

// LoginInput 登录请求，identifier 可以是用户名或邮箱
type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// 登录失败的统一文案，不区分"用户不存在"和"密码错误"
var errInvalidCredentials = apperr.New(apperr.KindAuth, "invalid username or password")

// Login 登录：校验凭据并推进锁定状态机
//
// 状态机规则：
//   - 连续 model.MaxLoginAttempts 次失败 → 锁定 model.LockDuration
//   - 锁定期内任何尝试（含正确密码）都返回 423，且不重置/延长锁定
//   - 锁定期过后第一次尝试按未锁定处理，失败计数从头再来
//   - 成功登录清零计数并打点 last_login_at
func (s *Service) Login(ctx context.Context, in LoginInput) (*model.User, string, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, "", apperr.New(apperr.KindValidation, "identifier and password are required")
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// 跑一次哈希比较抹平时间差
			CheckPassword(in.Password, "$2a$12$invalidinvalidinvalidinvalidinvalidinvalidinvalidinv")
			return nil, "", errInvalidCredentials
		}
		return nil, "", translateStoreErr("login", err)
	}

	now := s.now().UTC()

	if user.Locked(now) {
		return nil, "", apperr.New(apperr.KindLocked, "account temporarily locked due to too many failed login attempts")
	}

	if !user.Active {
		return nil, "", apperr.New(apperr.KindAuth, "account is disabled")
	}

	if !CheckPassword(in.Password, user.PasswordHash) {
		attempts := user.LoginAttempts + 1
		if user.LockUntil != nil {
			// 过期锁：计数从头再来
			attempts = 1
		}

		var lockUntil *time.Time
		if attempts >= model.MaxLoginAttempts {
			until := now.Add(model.LockDuration)
			lockUntil = &until
			log.Printf("[auth] locking user %s after %d failed attempts", user.ID, attempts)
		}

		if err := s.store.UpdateUserLoginState(ctx, user.ID, attempts, lockUntil, nil); err != nil {
			log.Printf("[auth] failed to persist login attempts for %s: %v", user.ID, err)
		}

		if lockUntil != nil {
			return nil, "", apperr.New(apperr.KindLocked, "account temporarily locked due to too many failed login attempts")
		}
		return nil, "", errInvalidCredentials
	}

	// 成功：清零簿记
	if err := s.store.UpdateUserLoginState(ctx, user.ID, 0, nil, &now); err != nil {
		log.Printf("[auth] failed to reset login state for %s: %v", user.ID, err)
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now

	token, err := GenerateToken(s.cfg, user.ID, user.Username, user.Email)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "failed to issue token", err)
	}

	return user, token, nil
}

// Verify 校验令牌并返回对应的用户记录
func (s *Service) Verify(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := ParseToken(s.cfg, tokenString)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperr.New(apperr.KindAuth, "token expired")
		}
		return nil, apperr.Wrap(apperr.KindAuth, "invalid token", err)
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindAuth, "invalid token")
		}
		return nil, translateStoreErr("verify", err)
	}
	if !user.Active {
		return nil, apperr.New(apperr.KindAuth, "account is disabled")
	}
	return user, nil
}

// lookup 按用户名或邮箱查找
func (s *Service) lookup(ctx context.Context, identifier string) (*model.User, error) {
	if strings.Contains(identifier, "@") {
		return s.store.GetUserByEmail(ctx, strings.ToLower(identifier))
	}
	return s.store.GetUserByUsername(ctx, identifier)
}

// translateStoreErr 存储层错误 → 业务错误
func translateStoreErr(op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return apperr.Wrap(apperr.KindUpstream, "storage backend unavailable, try again later", err)
	}
	return apperr.Wrap(apperr.KindInternal, "internal server error", fmt.Errorf("%s: %w", op, err))
}
