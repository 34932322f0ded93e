package server

import (
	"context"

	"github.com/Louie-KC/chat/internal/service"
)

// streamBackend 让 WebSocket 连接复用与 REST 接口相同的鉴权和写入路径。
type streamBackend struct {
	tokens *service.TokenService
	users  *service.UserService
	rooms  *service.RoomService
	msgs   *service.MessageService
	notify service.Notifier
}

func (b *streamBackend) Authorize(ctx context.Context, sessionID, userID, roomID uint) (string, error) {
	sess, err := b.tokens.Lookup(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.UserID != userID {
		return "", service.ErrUnauthorized
	}
	if err := b.rooms.RequireMember(ctx, roomID, userID); err != nil {
		return "", err
	}
	u, err := b.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func (b *streamBackend) Send(ctx context.Context, roomID, userID uint, body string) error {
	_, err := b.msgs.Append(ctx, roomID, userID, body)
	return err
}

func (b *streamBackend) Publish(roomID uint, payload []byte) {
	b.notify.Broadcast(roomID, payload)
}
