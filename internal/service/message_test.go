package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Louie-KC/chat/internal/models"
)

func TestReadWindow_NoOverlapNoGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	const n = 7
	for i := 1; i <= n; i++ {
		if _, err := f.msgs.Append(ctx, room.ID, alice.ID, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		offset, limit int
		want          string
	}{
		{0, 3, "m5,m6,m7"},
		{3, 3, "m2,m3,m4"},
		{6, 3, "m1"},
		{7, 3, ""},
		{0, 50, "m1,m2,m3,m4,m5,m6,m7"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("offset=%d,limit=%d", tt.offset, tt.limit), func(t *testing.T) {
			got, err := f.msgs.ReadWindow(ctx, room.ID, tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("ReadWindow() error = %v", err)
			}
			var bodies []string
			for _, m := range got {
				bodies = append(bodies, m.Content)
				if m.Username != "alice" {
					t.Errorf("username = %q, want alice", m.Username)
				}
			}
			if strings.Join(bodies, ",") != tt.want {
				t.Errorf("ReadWindow() = %v, want %s", bodies, tt.want)
			}
		})
	}
}

func TestReadWindow_InvalidArgs(t *testing.T) {
	f := newFixture(t)
	if _, err := f.msgs.ReadWindow(context.Background(), 1, 0, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("limit=0 error = %v, want ErrInvalidLimit", err)
	}
	if _, err := f.msgs.ReadWindow(context.Background(), 1, -1, 10); !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("offset=-1 error = %v, want ErrInvalidOffset", err)
	}
}

func TestReadWindow_ClampsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	rows := make([]models.Message, 0, MaxWindow+5)
	for i := 0; i < MaxWindow+5; i++ {
		rows = append(rows, models.Message{RoomID: room.ID, SenderID: alice.ID, Body: "x", SentAt: f.clock.tick()})
	}
	if err := f.db.CreateInBatches(rows, 50).Error; err != nil {
		t.Fatal(err)
	}
	got, err := f.msgs.ReadWindow(ctx, room.ID, 0, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != MaxWindow {
		t.Errorf("ReadWindow() len = %d, want %d", len(got), MaxWindow)
	}
}

func TestAppend_Broadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	msg, err := f.msgs.Append(ctx, room.ID, alice.ID, "hi")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.CreatedAt.Location().String() != "UTC" {
		t.Errorf("sent_at location = %v, want UTC", msg.CreatedAt.Location())
	}
	payloads := f.notify.broadcasts[room.ID]
	if len(payloads) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(payloads))
	}
	var evt MessageDTO
	if err := json.Unmarshal(payloads[0], &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != "message" || evt.Content != "hi" || evt.Username != "alice" {
		t.Errorf("broadcast event = %+v", evt)
	}
}

func TestAppend_Validation(t *testing.T) {
	f := newFixture(t)
	f.msgs.maxLen = 5
	for _, body := range []string{"", "   ", "toolong"} {
		if _, err := f.msgs.Append(context.Background(), 1, 1, body); KindOf(err) != KindValidation {
			t.Errorf("Append(%q) error = %v, want validation", body, err)
		}
	}
}
