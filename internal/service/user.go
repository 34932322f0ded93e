package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/db"
	"github.com/Louie-KC/chat/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const searchLimit = 50

// UserService 封装账号相关的业务逻辑。
type UserService struct {
	db     *gorm.DB
	hasher *auth.Hasher
}

func NewUserService(db *gorm.DB, hasher *auth.Hasher) *UserService {
	return &UserService{db: db, hasher: hasher}
}

// UserInfo 是对外输出的用户数据。
type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Register 注册新用户，用户名大小写不敏感地唯一。
func (s *UserService) Register(ctx context.Context, username, password string) (*UserInfo, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	key := strings.ToLower(username)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username_key = ?", key).Count(&count).Error; err != nil {
		return nil, storage("count username", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, storage("hash password", err)
	}
	user := models.User{Username: username, UsernameKey: key, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// 并发注册同名用户时由唯一索引兜底。
		if db.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, storage("create user", err)
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

// Verify 校验用户名密码，成功时若哈希参数过期则顺带升级。
func (s *UserService) Verify(ctx context.Context, username, password string) (*UserInfo, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrWrongPassword
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("username_key = ?", strings.ToLower(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storage("find user", err)
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, storage("verify password", err)
	}
	if !ok {
		return nil, ErrWrongPassword
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, &user, password)
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

func (s *UserService) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("rehash password")
		return
	}
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_hash = ?", user.ID, user.PasswordHash).
		Update("password_hash", hash).Error
	if err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("rehash password")
	}
}

// ChangePassword 在确认旧密码后替换密码哈希。
func (s *UserService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if oldPassword == newPassword {
		return ErrSameAsOld
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storage("find user", err)
	}
	ok, err := s.hasher.Verify(user.PasswordHash, oldPassword)
	if err != nil {
		return storage("verify password", err)
	}
	if !ok {
		return ErrWrongOldPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return storage("hash password", err)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_hash = ?", user.ID, user.PasswordHash).
		Update("password_hash", hash)
	if res.Error != nil {
		return storage("update password", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPasswordChanged
	}
	return nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*UserInfo, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "username").
		Where("username_key = ?", strings.ToLower(strings.TrimSpace(username))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storage("find user", err)
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*UserInfo, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "username").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storage("find user", err)
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

// Search 按用户名子串查找用户，排除搜索者本人以及拉黑了搜索者的用户。
func (s *UserService) Search(ctx context.Context, searcherID uint, term string) ([]UserInfo, error) {
	if err := ValidateSearchTerm(term); err != nil {
		return nil, err
	}
	blockers := s.db.Model(&models.Association{}).Select("user_id").
		Where("other_id = ? AND kind = ?", searcherID, models.AssociationBlock)
	var users []models.User
	err := s.db.WithContext(ctx).Select("id", "username").
		Where("username_key LIKE ?", "%"+strings.ToLower(term)+"%").
		Where("id <> ?", searcherID).
		Where("id NOT IN (?)", blockers).
		Order("username_key").Limit(searchLimit).
		Find(&users).Error
	if err != nil {
		return nil, storage("search users", err)
	}
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, UserInfo{ID: u.ID, Username: u.Username})
	}
	return out, nil
}
