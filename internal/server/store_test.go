package server

import (
	"testing"
)

func TestCreateRoomAssignsCodeAndStatus(t *testing.T) {
	store := NewStore()
	room := store.CreateRoom(RoomSettings{SongsRequired: 5})
	if room.Status != statusLobby {
		t.Fatalf("expected lobby, got %s", room.Status)
	}
	if len(room.Code) != 6 {
		t.Fatalf("expected 6-character code, got %q", room.Code)
	}
	if room.Settings.SongsRequired != 5 {
		t.Fatalf("settings not carried onto the room")
	}
	other := store.CreateRoom(RoomSettings{})
	if other.Code == room.Code {
		t.Fatalf("two rooms share a code")
	}
}

func TestAddParticipantFirstJoinerIsHost(t *testing.T) {
	store := NewStore()
	room := store.CreateRoom(RoomSettings{})

	_, ada, err := store.AddParticipant(room.ID, "user-1", "Ada", false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !ada.IsHost || room.HostID != ada.ID {
		t.Fatalf("first joiner should be host")
	}

	_, ben, err := store.AddParticipant(room.Code, "user-2", "Ben", false)
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if ben.IsHost {
		t.Fatalf("second joiner should not be host")
	}
}

func TestAddParticipantReclaimsSeatByUserID(t *testing.T) {
	store := NewStore()
	room := store.CreateRoom(RoomSettings{})
	_, first, err := store.AddParticipant(room.ID, "user-1", "Ada", false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	room.Status = statusPlayingRound1

	_, again, err := store.AddParticipant(room.ID, "user-1", "Ada Again", false)
	if err != nil {
		t.Fatalf("reclaim should succeed mid-game: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("reclaim created a new seat")
	}
	if again.Name != "Ada Again" {
		t.Fatalf("reclaim did not refresh name")
	}

	if _, _, err := store.AddParticipant(room.ID, "user-2", "Late", false); err == nil {
		t.Fatalf("expected new join to fail mid-game")
	}
}

func TestUpdateRoomRejectsUnknownRoom(t *testing.T) {
	store := NewStore()
	if _, err := store.UpdateRoom("missing", func(room *Room) error { return nil }); err == nil {
		t.Fatalf("expected error for unknown room")
	}
}

func TestUpdateRoomRollsNothingBackButPropagatesError(t *testing.T) {
	store := NewStore()
	room := store.CreateRoom(RoomSettings{})
	_, err := store.UpdateRoom(room.ID, func(room *Room) error {
		return errTest
	})
	if err != errTest {
		t.Fatalf("expected closure error, got %v", err)
	}
}

func TestRestoreRoomRejectsDuplicates(t *testing.T) {
	store := NewStore()
	room := store.CreateRoom(RoomSettings{})

	clone := &Room{ID: "room-99", Code: room.Code}
	if err := store.RestoreRoom(clone); err == nil {
		t.Fatalf("expected duplicate code to be rejected")
	}
	clone.Code = "OTHER1"
	if err := store.RestoreRoom(clone); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := store.RestoreRoom(clone); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}

	next := store.CreateRoom(RoomSettings{})
	if roomSortKey(next.ID) <= 99 {
		t.Fatalf("restore did not bump the id sequence: %s", next.ID)
	}
}

func TestListRoomSummaries(t *testing.T) {
	store := NewStore()
	first := store.CreateRoom(RoomSettings{})
	second := store.CreateRoom(RoomSettings{})
	if _, _, err := store.AddParticipant(second.ID, "user-1", "Ada", false); err != nil {
		t.Fatalf("join: %v", err)
	}

	list := store.ListRoomSummaries()
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("summaries out of creation order")
	}
	if list[1].Participants != 1 {
		t.Fatalf("expected participant count 1, got %d", list[1].Participants)
	}
}
