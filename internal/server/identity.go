package server

import (
	"errors"

	"github.com/google/uuid"
)

// The identity provider hands us a stable opaque user id per session. The
// server never interprets it; it only keys participant uniqueness within a
// room. Requests after join authenticate with a per-participant token.

func resolveUserID(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return uuid.NewString()
}

func issueAuthToken(room *Room, participantID int) string {
	token := uuid.NewString()
	if room.AuthTokens == nil {
		room.AuthTokens = make(map[int]string)
	}
	room.AuthTokens[participantID] = token
	return token
}

func authParticipant(room *Room, participantID int, token string) (*Participant, error) {
	expected, ok := room.AuthTokens[participantID]
	if !ok || token == "" || token != expected {
		return nil, errors.New("not authorized")
	}
	for i := range room.Participants {
		if room.Participants[i].ID == participantID {
			return &room.Participants[i], nil
		}
	}
	return nil, errors.New("participant not found")
}

func requireHost(room *Room, participantID int, token string) error {
	participant, err := authParticipant(room, participantID, token)
	if err != nil {
		return err
	}
	if !participant.IsHost {
		return errors.New("only the host can do that")
	}
	return nil
}
