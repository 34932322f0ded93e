package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Louie-KC/chat/internal/db"
	"github.com/Louie-KC/chat/internal/models"

	"gorm.io/gorm"
)

// RoomService 封装房间与成员关系相关的业务逻辑。
type RoomService struct {
	db     *gorm.DB
	online OnlineCounter
	notify Notifier
}

func NewRoomService(db *gorm.DB, online OnlineCounter, notify Notifier) *RoomService {
	if online == nil {
		online = nopNotifier{}
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &RoomService{db: db, online: online, notify: notify}
}

// RoomDTO 是对外输出的房间数据。
type RoomDTO struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Online int    `json:"online"`
}

// Create 在同一事务中创建房间并把创建者加入成员。
func (s *RoomService) Create(ctx context.Context, name string, creatorID uint) (*RoomDTO, error) {
	name, err := NormalizeRoomName(name)
	if err != nil {
		return nil, err
	}
	room := models.Room{Name: name}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Create(&models.RoomMember{RoomID: room.ID, UserID: creatorID, JoinedAt: time.Now().UTC()}).Error
	})
	if err != nil {
		return nil, storage("create room", err)
	}
	return &RoomDTO{ID: room.ID, Name: room.Name}, nil
}

func (s *RoomService) exists(ctx context.Context, model interface{}, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember 把用户加入房间；已经是成员时直接成功。
func (s *RoomService) AddMember(ctx context.Context, roomID, userID uint) error {
	ok, err := s.exists(ctx, &models.Room{}, roomID)
	if err != nil {
		return storage("find room", err)
	}
	if !ok {
		return ErrRoomNotFound
	}
	ok, err = s.exists(ctx, &models.User{}, userID)
	if err != nil {
		return storage("find user", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	member, err := s.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}
	err = s.db.WithContext(ctx).Create(&models.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now().UTC()}).Error
	if err != nil && !db.IsUniqueViolation(err) {
		return storage("add member", err)
	}
	return nil
}

// RemoveMember 把用户移出房间并断开其实时连接；用户不在房间时返回 ErrNotMember。
func (s *RoomService) RemoveMember(ctx context.Context, roomID, userID uint) error {
	res := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMember{})
	if res.Error != nil {
		return storage("remove member", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotMember
	}
	s.notify.Evict(roomID, userID)
	return nil
}

func (s *RoomService) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).Count(&count).Error
	if err != nil {
		return false, storage("check membership", err)
	}
	return count > 0, nil
}

// RequireMember 每次请求都重新查询，不做缓存。
func (s *RoomService) RequireMember(ctx context.Context, roomID, userID uint) error {
	ok, err := s.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRoomMember
	}
	return nil
}

func (s *RoomService) ListMembers(ctx context.Context, roomID uint) ([]UserInfo, error) {
	out := make([]UserInfo, 0)
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("users.id, users.username").
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Order("users.username_key").
		Scan(&out).Error
	if err != nil {
		return nil, storage("list members", err)
	}
	return out, nil
}

func (s *RoomService) Rename(ctx context.Context, roomID uint, name string) error {
	name, err := NormalizeRoomName(name)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Update("name", name)
	if res.Error != nil {
		return storage("rename room", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	evt := map[string]interface{}{"type": "rename", "room_id": roomID, "name": name}
	if b, err := json.Marshal(evt); err == nil {
		s.notify.Broadcast(roomID, b)
	}
	return nil
}

// ListForUser 返回用户所在的房间，附带各房间的在线人数。
func (s *RoomService) ListForUser(ctx context.Context, userID uint) ([]RoomDTO, error) {
	var rooms []models.Room
	err := s.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.id").
		Find(&rooms).Error
	if err != nil {
		return nil, storage("list rooms", err)
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, Online: s.online.Online(r.ID)})
	}
	return out, nil
}

// Get 返回单个房间。
func (s *RoomService) Get(ctx context.Context, roomID uint) (*RoomDTO, error) {
	var room models.Room
	err := s.db.WithContext(ctx).First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, storage("find room", err)
	}
	return &RoomDTO{ID: room.ID, Name: room.Name, Online: s.online.Online(room.ID)}, nil
}
