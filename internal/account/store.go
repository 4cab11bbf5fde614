package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/rev2018/placement-tracker/internal/auth"
	"github.com/rev2018/placement-tracker/internal/database"
	"github.com/rev2018/placement-tracker/internal/errcode"
)

// DefaultMinPasswordLength 是未配置时的最短密码长度。
const DefaultMinPasswordLength = 6

var (
	// ErrDuplicateEmail 表示邮箱已被注册（唯一约束冲突）。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials 同时覆盖"用户不存在"与"密码错误"，不向调用方区分两者。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound 仅用于按 ID 查询。
	ErrUserNotFound = errors.New("user not found")
)

// Store 是账号凭据的持久化入口。
type Store struct {
	db                *gorm.DB
	minPasswordLength int
	now               func() time.Time
}

// NewStore 构造 Store；minPasswordLength <= 0 时使用默认值。
func NewStore(db *gorm.DB, minPasswordLength int) *Store {
	if db == nil {
		panic("database connection cannot be nil for account.Store")
	}
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &Store{
		db:                db,
		minPasswordLength: minPasswordLength,
		now:               time.Now,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount 校验输入、哈希密码并写入新用户，返回用户 ID。
func (s *Store) CreateAccount(ctx context.Context, fullName, email, password string) (uint, error) {
	fullName = strings.TrimSpace(fullName)
	email = NormalizeEmail(email)

	verr := &errcode.ValidationError{}
	if fullName == "" {
		verr.Add("full_name", "is required")
	}
	if email == "" {
		verr.Add("email", "is required")
	}
	switch {
	case password == "":
		verr.Add("password", "is required")
	case len([]rune(password)) < s.minPasswordLength:
		verr.Add("password", fmt.Sprintf("must be at least %d characters", s.minPasswordLength))
	case len(password) > auth.MaxPasswordBytes:
		verr.Add("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}

	user := database.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

// VerifyCredentials 返回密码校验通过的用户；用户不存在或密码错误均返回 ErrInvalidCredentials。
func (s *Store) VerifyCredentials(ctx context.Context, email, password string) (*database.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user database.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 与命中用户时的耗时保持一致。
		auth.CheckPasswordHash(password, placeholderHash())
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser 按 ID 读取用户。
func (s *Store) GetUser(ctx context.Context, id uint) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by id %d: %w", id, err)
	}
	return &user, nil
}

var (
	placeholderOnce sync.Once
	placeholder     string
)

func placeholderHash() string {
	placeholderOnce.Do(func() {
		placeholder, _ = auth.HashPassword("placement-tracker-placeholder")
	})
	return placeholder
}
