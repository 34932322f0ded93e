package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/db/dbtest"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fixture struct {
	db     *gorm.DB
	users  *UserService
	tokens *TokenService
	rooms  *RoomService
	msgs   *MessageService
	assoc  *AssociationService
	notify *recorder
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	rec := &recorder{online: map[uint]int{}}
	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		db:     gdb,
		users:  NewUserService(gdb, auth.NewHasher(testParams)),
		tokens: NewTokenService(gdb, 12*time.Hour),
		rooms:  NewRoomService(gdb, rec, rec),
		msgs:   NewMessageService(gdb, rec, 1000),
		assoc:  NewAssociationService(gdb),
		notify: rec,
		clock:  clk,
	}
	f.tokens.now = clk.now
	f.msgs.now = clk.tick
	return f
}

func (f *fixture) register(t *testing.T, name string) *UserInfo {
	t.Helper()
	u, err := f.users.Register(context.Background(), name, "password1")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sequence returns the given ids in order, repeating the last one.
func sequence(ids ...uuid.UUID) func() (uuid.UUID, error) {
	var i int
	return func() (uuid.UUID, error) {
		id := ids[min(i, len(ids)-1)]
		i++
		return id, nil
	}
}

type recorder struct {
	mu         sync.Mutex
	broadcasts map[uint][][]byte
	evicted    [][2]uint
	online     map[uint]int
}

func (r *recorder) Broadcast(roomID uint, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broadcasts == nil {
		r.broadcasts = map[uint][][]byte{}
	}
	r.broadcasts[roomID] = append(r.broadcasts[roomID], payload)
}

func (r *recorder) Evict(roomID, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, [2]uint{roomID, userID})
}

func (r *recorder) Online(roomID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[roomID]
}
