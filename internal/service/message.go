package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Louie-KC/chat/internal/metrics"
	"github.com/Louie-KC/chat/internal/models"

	"gorm.io/gorm"
)

// MaxWindow 是单次读取消息的上限。
const MaxWindow = 200

// MessageService 封装消息相关的业务逻辑。调用方负责先校验成员身份。
type MessageService struct {
	db     *gorm.DB
	notify Notifier
	maxLen int
	now    func() time.Time
}

func NewMessageService(db *gorm.DB, notify Notifier, maxLen int) *MessageService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &MessageService{db: db, notify: notify, maxLen: maxLen, now: time.Now}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	Type      string    `json:"type"`
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Append 写入一条消息并推送给房间内的实时连接。
func (s *MessageService) Append(ctx context.Context, roomID, senderID uint, body string) (*MessageDTO, error) {
	if err := ValidateMessage(body, s.maxLen); err != nil {
		return nil, err
	}
	msg := models.Message{RoomID: roomID, SenderID: senderID, Body: body, SentAt: s.now().UTC()}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, storage("append message", err)
	}
	metrics.MessagesTotal.Inc()

	usernames, err := s.resolveUsernames(ctx, []models.Message{msg})
	if err != nil {
		return nil, storage("resolve sender", err)
	}
	out := toDTO(msg, usernames)
	if b, err := json.Marshal(out); err == nil {
		s.notify.Broadcast(roomID, b)
	}
	return &out, nil
}

// ReadWindow 从最新消息往前跳过 offset 条，取 limit 条，按时间升序返回。
func (s *MessageService) ReadWindow(ctx context.Context, roomID uint, offset, limit int) ([]MessageDTO, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		return nil, ErrInvalidOffset
	}
	if limit > MaxWindow {
		limit = MaxWindow
	}

	var msgs []models.Message
	err := s.db.WithContext(ctx).Where("room_id = ?", roomID).
		Order("sent_at desc").Order("id desc").
		Offset(offset).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, storage("read messages", err)
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	usernames, err := s.resolveUsernames(ctx, msgs)
	if err != nil {
		return nil, storage("resolve senders", err)
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toDTO(m, usernames))
	}
	return out, nil
}

func toDTO(m models.Message, usernames map[uint]string) MessageDTO {
	return MessageDTO{
		Type:      "message",
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.SenderID,
		Username:  usernames[m.SenderID],
		Content:   m.Body,
		CreatedAt: m.SentAt,
	}
}

// resolveUsernames 批量获取消息涉及的用户名。
func (s *MessageService) resolveUsernames(ctx context.Context, msgs []models.Message) (map[uint]string, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		userIDs = append(userIDs, m.SenderID)
	}

	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}
	return usernames, nil
}
