package service

import (
	"context"
	"errors"
	"time"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/db"
	"github.com/Louie-KC/chat/internal/metrics"
	"github.com/Louie-KC/chat/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxIssueAttempts = 5
	clientLabelMax   = 255
)

// TokenService 负责会话令牌的签发、解析与吊销。
type TokenService struct {
	db  *gorm.DB
	ttl time.Duration

	newToken func() (uuid.UUID, error)
	now      func() time.Time
}

// NewTokenService 创建令牌服务，ttl 为 0 表示令牌不过期。
func NewTokenService(db *gorm.DB, ttl time.Duration) *TokenService {
	return &TokenService{db: db, ttl: ttl, newToken: auth.NewToken, now: time.Now}
}

// Session 是一次成功解析后的会话。
type Session struct {
	ID     uint
	UserID uint
	Token  string
}

type TokenInfo struct {
	ClientLabel string    `json:"client_label"`
	IssuedAt    time.Time `json:"issued_at"`
	IsRequester bool      `json:"is_requester"`
}

func (s *TokenService) expiry(now time.Time) *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	exp := now.Add(s.ttl)
	return &exp
}

func (s *TokenService) live(q *gorm.DB) *gorm.DB {
	return q.Where("expires_at IS NULL OR expires_at > ?", s.now().UTC())
}

// Issue 为用户签发新令牌。遇到唯一索引冲突时：同一用户则刷新 client_label，
// 不同用户则重新生成，最多尝试 maxIssueAttempts 次。
func (s *TokenService) Issue(ctx context.Context, userID uint, clientLabel string) (string, error) {
	if len(clientLabel) > clientLabelMax {
		clientLabel = clientLabel[:clientLabelMax]
	}
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		id, err := s.newToken()
		if err != nil {
			return "", storage("generate token", err)
		}
		tok := id.String()
		now := s.now().UTC()
		row := models.LoginToken{
			UserID:      userID,
			Token:       tok,
			ClientLabel: clientLabel,
			IssuedAt:    now,
			ExpiresAt:   s.expiry(now),
		}
		err = s.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			return tok, nil
		}
		if !db.IsUniqueViolation(err) {
			return "", storage("create token", err)
		}

		var existing models.LoginToken
		err = s.db.WithContext(ctx).Where("token = ?", tok).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return "", storage("find token", err)
		}
		if existing.UserID == userID {
			err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"client_label": clientLabel,
				"expires_at":   s.expiry(now),
			}).Error
			if err != nil {
				return "", storage("refresh token label", err)
			}
			return tok, nil
		}
		metrics.TokenCollisionsTotal.Inc()
	}
	return "", ErrTokenSpace
}

// Resolve 把 bearer 值解析为会话。格式错误与未知令牌返回不同的错误。
func (s *TokenService) Resolve(ctx context.Context, bearer string) (*Session, error) {
	tok, err := auth.ParseToken(bearer)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("malformed").Inc()
		return nil, ErrMalformedToken
	}
	var row models.LoginToken
	err = s.live(s.db.WithContext(ctx).Where("token = ?", tok)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthFailuresTotal.WithLabelValues("unknown").Inc()
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storage("resolve token", err)
	}
	return &Session{ID: row.ID, UserID: row.UserID, Token: row.Token}, nil
}

// Lookup 按会话 ID 确认会话仍然有效，供长连接复查使用。
func (s *TokenService) Lookup(ctx context.Context, sessionID uint) (*Session, error) {
	var row models.LoginToken
	err := s.live(s.db.WithContext(ctx).Where("id = ?", sessionID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storage("lookup session", err)
	}
	return &Session{ID: row.ID, UserID: row.UserID, Token: row.Token}, nil
}

// Revoke 删除属于该用户的指定令牌。
func (s *TokenService) Revoke(ctx context.Context, userID uint, token string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&models.LoginToken{})
	if res.Error != nil {
		return storage("revoke token", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAll 删除用户的全部令牌，没有令牌时同样成功。
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.LoginToken{}).Error; err != nil {
		return storage("revoke all tokens", err)
	}
	return nil
}

func (s *TokenService) List(ctx context.Context, userID uint, requesting string) ([]TokenInfo, error) {
	var rows []models.LoginToken
	err := s.live(s.db.WithContext(ctx).Where("user_id = ?", userID)).
		Order("issued_at asc").Order("id asc").Find(&rows).Error
	if err != nil {
		return nil, storage("list tokens", err)
	}
	out := make([]TokenInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, TokenInfo{ClientLabel: r.ClientLabel, IssuedAt: r.IssuedAt, IsRequester: r.Token == requesting})
	}
	return out, nil
}

// PurgeExpired 删除所有已过期的令牌，返回删除行数。
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&models.LoginToken{})
	if res.Error != nil {
		return 0, storage("purge tokens", res.Error)
	}
	return res.RowsAffected, nil
}
