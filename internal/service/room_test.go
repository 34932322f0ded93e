package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateRoom_CreatorIsMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	room, err := f.rooms.Create(ctx, "  Team  ", alice.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if room.Name != "Team" {
		t.Errorf("Create() name = %q, want trimmed Team", room.Name)
	}
	ok, err := f.rooms.IsMember(ctx, room.ID, alice.ID)
	if err != nil || !ok {
		t.Errorf("IsMember(creator) = %v, %v; want true", ok, err)
	}
}

func TestCreateRoom_InvalidName(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	for _, name := range []string{"", "   ", "team!", strings.Repeat("a", 65)} {
		if _, err := f.rooms.Create(context.Background(), name, alice.ID); KindOf(err) != KindValidation {
			t.Errorf("Create(%q) error = %v, want validation", name, err)
		}
	}
}

func TestAddMember_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bobb")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	for i := 0; i < 2; i++ {
		if err := f.rooms.AddMember(ctx, room.ID, bob.ID); err != nil {
			t.Fatalf("AddMember() #%d error = %v", i+1, err)
		}
	}
	members, err := f.rooms.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Username != "alice" || members[1].Username != "bobb" {
		t.Errorf("ListMembers() = %+v", members)
	}

	if err := f.rooms.AddMember(ctx, room.ID, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("AddMember(unknown user) error = %v, want ErrUserNotFound", err)
	}
	if err := f.rooms.AddMember(ctx, 9999, bob.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("AddMember(unknown room) error = %v, want ErrRoomNotFound", err)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bobb")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	if err := f.rooms.RemoveMember(ctx, room.ID, bob.ID); !errors.Is(err, ErrNotMember) {
		t.Errorf("RemoveMember(absent) error = %v, want ErrNotMember", err)
	}
	_ = f.rooms.AddMember(ctx, room.ID, bob.ID)
	if err := f.rooms.RemoveMember(ctx, room.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if err := f.rooms.RequireMember(ctx, room.ID, bob.ID); !errors.Is(err, ErrNotRoomMember) {
		t.Errorf("RequireMember() after removal error = %v", err)
	}
	if KindOf(ErrNotRoomMember) != KindAuth {
		t.Errorf("ErrNotRoomMember kind = %v, want auth", KindOf(ErrNotRoomMember))
	}
	if len(f.notify.evicted) != 1 || f.notify.evicted[0] != [2]uint{room.ID, bob.ID} {
		t.Errorf("evicted = %v, want [[%d %d]]", f.notify.evicted, room.ID, bob.ID)
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	room, _ := f.rooms.Create(ctx, "Team", alice.ID)

	if err := f.rooms.Rename(ctx, room.ID, "Team Two"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	got, err := f.rooms.Get(ctx, room.ID)
	if err != nil || got.Name != "Team Two" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if err := f.rooms.Rename(ctx, room.ID, "bad/name"); KindOf(err) != KindValidation {
		t.Errorf("Rename(invalid) error = %v", err)
	}
	if err := f.rooms.Rename(ctx, 9999, "Other"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Rename(unknown) error = %v", err)
	}
	if len(f.notify.broadcasts[room.ID]) != 1 {
		t.Errorf("rename should broadcast one event, got %d", len(f.notify.broadcasts[room.ID]))
	}
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bobb")
	team, _ := f.rooms.Create(ctx, "Team", alice.ID)
	f.rooms.Create(ctx, "Bobs Room", bob.ID)
	f.notify.online[team.ID] = 2

	rooms, err := f.rooms.ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != team.ID || rooms[0].Online != 2 {
		t.Errorf("ListForUser() = %+v", rooms)
	}
}
