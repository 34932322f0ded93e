package service

// Notifier 把房间事件推送给实时连接，本地 Hub 与 Redis relay 都实现它。
type Notifier interface {
	Broadcast(roomID uint, payload []byte)
	Evict(roomID, userID uint)
}

// OnlineCounter 报告房间当前的在线连接数。
type OnlineCounter interface {
	Online(roomID uint) int
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(uint, []byte) {}
func (nopNotifier) Evict(uint, uint)       {}
func (nopNotifier) Online(uint) int        { return 0 }
