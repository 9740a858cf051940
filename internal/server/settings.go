package server

import (
	"errors"
	"fmt"

	"song-sleuth/internal/config"
)

// RoomSettings is the configuration snapshot taken at room creation. It is
// validated once here and never mutated during a game; the host may replace
// it wholesale while the room is still in the lobby.
type RoomSettings struct {
	SongsRequired          int  `json:"songs_required"`
	ChristmasSongsRequired int  `json:"christmas_songs_required"`
	RecentSongsRequired    int  `json:"recent_songs_required"`
	ChameleonMode          bool `json:"chameleon_mode"`
	AllowDuplicateSongs    bool `json:"allow_duplicate_songs"`
	GuessSeconds           int  `json:"guess_seconds"`
	TriviaEnabled          bool `json:"trivia_enabled"`
	TriviaQuestionCount    int  `json:"trivia_question_count"`
	TriviaSeconds          int  `json:"trivia_seconds"`
	FavouritesEnabled      bool `json:"favourites_enabled"`
	InstantReveal          bool `json:"instant_reveal"`
	RevealSeconds          int  `json:"reveal_seconds"`
}

func defaultSettings(cfg config.Config) RoomSettings {
	return RoomSettings{
		SongsRequired:          cfg.SongsRequired,
		ChristmasSongsRequired: cfg.ChristmasSongsRequired,
		RecentSongsRequired:    cfg.RecentSongsRequired,
		GuessSeconds:           cfg.GuessSeconds,
		TriviaEnabled:          true,
		TriviaQuestionCount:    cfg.TriviaQuestionCount,
		TriviaSeconds:          cfg.TriviaSeconds,
		FavouritesEnabled:      true,
		RevealSeconds:          cfg.RevealSeconds,
	}
}

func validateSettings(settings RoomSettings) error {
	if settings.SongsRequired < 1 || settings.SongsRequired > 20 {
		return fmt.Errorf("songs_required must be between 1 and 20")
	}
	if settings.ChristmasSongsRequired < 0 || settings.ChristmasSongsRequired > settings.SongsRequired {
		return errors.New("christmas_songs_required must not exceed songs_required")
	}
	if settings.RecentSongsRequired < 0 || settings.RecentSongsRequired > settings.SongsRequired {
		return errors.New("recent_songs_required must not exceed songs_required")
	}
	if settings.ChameleonMode && settings.SongsRequired < 2 {
		return errors.New("chameleon_mode needs at least two songs per player")
	}
	if settings.GuessSeconds < 0 {
		return errors.New("guess_seconds must not be negative")
	}
	if settings.TriviaEnabled {
		if settings.TriviaQuestionCount != 5 && settings.TriviaQuestionCount != 10 {
			return errors.New("trivia_question_count must be 5 or 10")
		}
		if settings.TriviaSeconds < 0 {
			return errors.New("trivia_seconds must not be negative")
		}
	}
	if settings.RevealSeconds < 0 {
		return errors.New("reveal_seconds must not be negative")
	}
	return nil
}
