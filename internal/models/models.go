package models

import "time"

type User struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"size:64;not null"`
	// UsernameKey 是小写形式，唯一索引保证用户名大小写不敏感地唯一。
	UsernameKey  string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginToken 是一次登录对应的不透明会话令牌，一个用户可同时持有多个。
type LoginToken struct {
	ID          uint       `gorm:"primaryKey"`
	UserID      uint       `gorm:"index;not null"`
	Token       string     `gorm:"uniqueIndex;size:36;not null"`
	ClientLabel string     `gorm:"size:255"`
	IssuedAt    time.Time  `gorm:"index;not null"`
	ExpiresAt   *time.Time `gorm:"index"`
}

type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RoomMember struct {
	RoomID   uint `gorm:"primaryKey;autoIncrement:false"`
	UserID   uint `gorm:"primaryKey;autoIncrement:false;index"`
	JoinedAt time.Time
}

type Message struct {
	ID       uint      `gorm:"primaryKey"`
	RoomID   uint      `gorm:"index:idx_msg_room_sent,priority:1;not null"`
	SenderID uint      `gorm:"index;not null"`
	Body     string    `gorm:"type:text;not null"`
	SentAt   time.Time `gorm:"index:idx_msg_room_sent,priority:2;not null"`
}

const (
	AssociationFriend = "friend"
	AssociationBlock  = "block"
)

// Association 是 UserID 指向 OtherID 的有向关系，每个有序对最多一行。
type Association struct {
	UserID    uint   `gorm:"primaryKey;autoIncrement:false"`
	OtherID   uint   `gorm:"primaryKey;autoIncrement:false;index"`
	Kind      string `gorm:"size:16;not null"`
	UpdatedAt time.Time
}
