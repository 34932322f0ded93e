package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/Louie-KC/chat/internal/metrics"
)

// Hub 管理房间级别的子 Hub，实现延迟创建与并发安全。
// 它同时实现 service.Notifier 与 service.OnlineCounter。
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]*RoomHub
}

func NewHub() *Hub { return &Hub{rooms: make(map[uint]*RoomHub)} }

// GetRoom 若房间未初始化则懒加载一个 RoomHub。
func (h *Hub) GetRoom(roomID uint) *RoomHub {
	h.mu.RLock()
	room := h.rooms[roomID]
	h.mu.RUnlock()
	if room != nil {
		return room
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room = h.rooms[roomID]
	if room != nil {
		return room
	}
	room = NewRoomHub(roomID)
	h.rooms[roomID] = room
	go room.run()
	return room
}

func (h *Hub) lookup(roomID uint) *RoomHub {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) Online(roomID uint) int {
	room := h.lookup(roomID)
	if room == nil {
		return 0
	}
	return room.Online()
}

// Broadcast 把 payload 推送给房间内的所有本地连接；房间没有连接时直接丢弃。
func (h *Hub) Broadcast(roomID uint, payload []byte) {
	if room := h.lookup(roomID); room != nil {
		room.broadcast <- payload
	}
}

// Evict 断开某个用户在房间内的全部本地连接。
func (h *Hub) Evict(roomID, userID uint) {
	if room := h.lookup(roomID); room != nil {
		room.evict <- userID
	}
}

type RoomHub struct {
	roomID     uint
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	evict      chan uint
	online     int32
}

func NewRoomHub(roomID uint) *RoomHub {
	return &RoomHub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		evict:      make(chan uint, 16),
	}
}

func (rh *RoomHub) presence(kind string, c *Client) []byte {
	evt := map[string]interface{}{"type": kind, "room_id": rh.roomID, "user_id": c.userID, "username": c.uname, "online": rh.Online()}
	b, err := json.Marshal(evt)
	if err != nil {
		return nil
	}
	return b
}

// drop 移除客户端并关闭其发送通道，writePump 随之退出。
func (rh *RoomHub) drop(c *Client) {
	delete(rh.clients, c)
	close(c.send)
	atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
	metrics.WsConnections.Dec()
}

func (rh *RoomHub) fanout(msg []byte) {
	if msg == nil {
		return
	}
	for c := range rh.clients {
		select {
		case c.send <- msg:
		default:
			rh.drop(c)
		}
	}
}

func (rh *RoomHub) run() {
	for {
		select {
		case c := <-rh.register:
			rh.clients[c] = true
			atomic.StoreInt32(&rh.online, int32(len(rh.clients)))
			metrics.WsConnections.Inc()
			rh.fanout(rh.presence("join", c))
		case c := <-rh.unregister:
			if _, ok := rh.clients[c]; ok {
				rh.drop(c)
				rh.fanout(rh.presence("leave", c))
			}
		case userID := <-rh.evict:
			for c := range rh.clients {
				if c.userID == userID {
					rh.drop(c)
					rh.fanout(rh.presence("leave", c))
				}
			}
		case msg := <-rh.broadcast:
			rh.fanout(msg)
		}
	}
}

// Online 返回房间在线客户端数量，供 REST 接口复用。
func (rh *RoomHub) Online() int { return int(atomic.LoadInt32(&rh.online)) }
