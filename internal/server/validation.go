package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	maxNameLength    = 20
	maxRoomCodeLen   = 12
	maxTrackFieldLen = 256
)

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("name is required")
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("name must be %d characters or fewer", maxNameLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("name contains unsupported characters")
	}
	return trimmed, nil
}

func validateRoomCode(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" || len(trimmed) > maxRoomCodeLen {
		return "", errors.New("invalid room code")
	}
	return trimmed, nil
}

func sanitizePicks(picks []TrackPick) error {
	for _, pick := range picks {
		if len(pick.TrackID) > maxTrackFieldLen ||
			len(pick.Name) > maxTrackFieldLen ||
			len(pick.Artist) > maxTrackFieldLen {
			return errors.New("track fields are too long")
		}
	}
	return nil
}

func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
