package service

import (
	"context"
	"time"

	"github.com/Louie-KC/chat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssociationService 维护用户之间的有向好友/拉黑关系。
type AssociationService struct {
	db *gorm.DB
}

func NewAssociationService(db *gorm.DB) *AssociationService {
	return &AssociationService{db: db}
}

type AssociationSummary struct {
	Friends            []UserInfo `json:"friends"`
	IncomingRequests   []UserInfo `json:"incoming_requests"`
	UnacceptedRequests []UserInfo `json:"unaccepted_requests"`
	Blocked            []UserInfo `json:"blocked"`
}

// Set 写入 userID 到 otherID 的关系，已有关系会被覆盖。
func (s *AssociationService) Set(ctx context.Context, userID, otherID uint, kind string) error {
	if kind != models.AssociationFriend && kind != models.AssociationBlock {
		return ErrInvalidKind
	}
	if userID == otherID {
		return ErrSelfAssociation
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", otherID).Count(&count).Error; err != nil {
		return storage("find user", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	row := models.Association{UserID: userID, OtherID: otherID, Kind: kind, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "other_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return storage("set association", err)
	}
	return nil
}

// Remove 删除关系，关系不存在时同样成功。
func (s *AssociationService) Remove(ctx context.Context, userID, otherID uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ? AND other_id = ?", userID, otherID).Delete(&models.Association{}).Error
	if err != nil {
		return storage("remove association", err)
	}
	return nil
}

func (s *AssociationService) scan(q *gorm.DB, op string) ([]UserInfo, error) {
	out := make([]UserInfo, 0)
	if err := q.Select("u.id, u.username").Order("u.username_key").Scan(&out).Error; err != nil {
		return nil, storage(op, err)
	}
	return out, nil
}

// reverse 把 a 的反向好友关系 b 连接进来。
const reverse = "associations AS b ON b.user_id = a.other_id AND b.other_id = a.user_id AND b.kind = ?"

// Friends 返回双向都是 friend 的用户。
func (s *AssociationService) Friends(ctx context.Context, userID uint) ([]UserInfo, error) {
	q := s.db.WithContext(ctx).Table("associations AS a").
		Joins("JOIN users AS u ON u.id = a.other_id").
		Joins("JOIN "+reverse, models.AssociationFriend).
		Where("a.user_id = ? AND a.kind = ?", userID, models.AssociationFriend)
	return s.scan(q, "list friends")
}

// IncomingRequests 返回向 userID 发出好友请求但尚未被回应的用户。
func (s *AssociationService) IncomingRequests(ctx context.Context, userID uint) ([]UserInfo, error) {
	q := s.db.WithContext(ctx).Table("associations AS a").
		Joins("JOIN users AS u ON u.id = a.user_id").
		Joins("LEFT JOIN "+reverse, models.AssociationFriend).
		Where("a.other_id = ? AND a.kind = ? AND b.user_id IS NULL", userID, models.AssociationFriend)
	return s.scan(q, "list incoming requests")
}

// UnacceptedOutgoing 返回 userID 发出但对方尚未回应的好友请求。
func (s *AssociationService) UnacceptedOutgoing(ctx context.Context, userID uint) ([]UserInfo, error) {
	q := s.db.WithContext(ctx).Table("associations AS a").
		Joins("JOIN users AS u ON u.id = a.other_id").
		Joins("LEFT JOIN "+reverse, models.AssociationFriend).
		Where("a.user_id = ? AND a.kind = ? AND b.user_id IS NULL", userID, models.AssociationFriend)
	return s.scan(q, "list outgoing requests")
}

func (s *AssociationService) Blocked(ctx context.Context, userID uint) ([]UserInfo, error) {
	q := s.db.WithContext(ctx).Table("associations AS a").
		Joins("JOIN users AS u ON u.id = a.other_id").
		Where("a.user_id = ? AND a.kind = ?", userID, models.AssociationBlock)
	return s.scan(q, "list blocked")
}

// Summary 一次返回四个视图。
func (s *AssociationService) Summary(ctx context.Context, userID uint) (*AssociationSummary, error) {
	var (
		out AssociationSummary
		err error
	)
	if out.Friends, err = s.Friends(ctx, userID); err != nil {
		return nil, err
	}
	if out.IncomingRequests, err = s.IncomingRequests(ctx, userID); err != nil {
		return nil, err
	}
	if out.UnacceptedRequests, err = s.UnacceptedOutgoing(ctx, userID); err != nil {
		return nil, err
	}
	if out.Blocked, err = s.Blocked(ctx, userID); err != nil {
		return nil, err
	}
	return &out, nil
}
