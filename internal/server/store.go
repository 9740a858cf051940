package server

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Store holds the in-memory view of every live room. Reads are served from
// this view; it is kept current by applying the same changes that are
// persisted, so re-applying a change is harmless.
type Store struct {
	mu                sync.Mutex
	nextID            int
	nextParticipantID int
	rooms             map[string]*Room
}

func NewStore() *Store {
	return &Store{
		nextID:            1,
		nextParticipantID: 1,
		rooms:             make(map[string]*Room),
	}
}

func (s *Store) CreateRoom(settings RoomSettings) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("room-%d", s.nextID)
	s.nextID++
	room := &Room{
		ID:              id,
		Code:            newRoomCode(),
		Status:          statusLobby,
		StatusChangedAt: timeNowUTC(),
		Settings:        settings,
		AuthTokens:      make(map[int]string),
	}
	s.rooms[id] = room
	return room
}

func (s *Store) GetRoom(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	return room, ok
}

func (s *Store) UpdateRoom(id string, update func(room *Room) error) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, errors.New("room not found")
	}
	if err := update(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) FindRoomByCode(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Code == code {
			return room, true
		}
	}
	return nil, false
}

func (s *Store) UpdateRoomID(room *Room, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.ID == newID {
		return
	}
	delete(s.rooms, room.ID)
	room.ID = newID
	s.rooms[newID] = room
}

func (s *Store) RemoveRoom(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// AddParticipant joins a player into a room by id or code. A returning
// player reclaims their existing seat by user id, which keeps reconnects
// idempotent.
func (s *Store) AddParticipant(roomIDOrCode, userID, name string, spectator bool) (*Room, *Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomIDOrCode]
	if !ok {
		for _, candidate := range s.rooms {
			if candidate.Code == roomIDOrCode {
				room = candidate
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, nil, errors.New("room not found")
	}

	for i := range room.Participants {
		if room.Participants[i].UserID == userID {
			if name != "" {
				room.Participants[i].Name = name
			}
			return room, &room.Participants[i], nil
		}
	}
	if room.Status != statusLobby {
		return nil, nil, errors.New("game already started")
	}

	participant := Participant{
		ID:          s.nextParticipantID,
		UserID:      userID,
		Name:        name,
		IsHost:      len(room.Participants) == 0,
		IsSpectator: spectator,
		JoinedAt:    timeNowUTC(),
	}
	s.nextParticipantID++
	room.Participants = append(room.Participants, participant)
	if participant.IsHost {
		room.HostID = participant.ID
	}
	return room, &room.Participants[len(room.Participants)-1], nil
}

// RestoreRoom re-registers a room rebuilt from persisted rows, for example
// after a restart while a change-feed consumer replays events.
func (s *Store) RestoreRoom(room *Room) error {
	if room == nil {
		return errors.New("room is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return errors.New("room already running")
	}
	for _, existing := range s.rooms {
		if existing.Code == room.Code {
			return errors.New("room already running")
		}
	}
	s.rooms[room.ID] = room
	if id := roomSortKey(room.ID); id >= s.nextID {
		s.nextID = id + 1
	}
	maxParticipantID := 0
	for _, participant := range room.Participants {
		if participant.ID > maxParticipantID {
			maxParticipantID = participant.ID
		}
	}
	if maxParticipantID >= s.nextParticipantID {
		s.nextParticipantID = maxParticipantID + 1
	}
	return nil
}

func (s *Store) ListRoomSummaries() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]RoomSummary, 0, len(s.rooms))
	for _, room := range s.rooms {
		list = append(list, RoomSummary{
			ID:           room.ID,
			Code:         room.Code,
			Status:       room.Status,
			Participants: len(room.Participants),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return roomSortKey(list[i].ID) < roomSortKey(list[j].ID)
	})
	return list
}

func roomSortKey(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	value, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return value
}

func (s *Store) GetParticipant(roomID string, participantID int) (*Room, *Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil, false
	}
	for i := range room.Participants {
		if room.Participants[i].ID == participantID {
			return room, &room.Participants[i], true
		}
	}
	return room, nil, false
}

func (s *Store) FindParticipant(room *Room, participantID int) (*Participant, bool) {
	for i := range room.Participants {
		if room.Participants[i].ID == participantID {
			return &room.Participants[i], true
		}
	}
	return nil, false
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
