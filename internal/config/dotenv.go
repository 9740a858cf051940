package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	SongsRequired            int
	ChristmasSongsRequired   int
	RecentSongsRequired      int
	GuessSeconds             int
	TriviaSeconds            int
	TriviaQuestionCount      int
	RevealSeconds            int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	CatalogueClientID        string
	CatalogueClientSecret    string
	CatalogueTokenTTLSeconds int
	OpenAIAPIKey             string
	OpenAIModel              string
}

func Default() Config {
	return Config{
		SongsRequired:            10,
		ChristmasSongsRequired:   0,
		RecentSongsRequired:      0,
		GuessSeconds:             45,
		TriviaSeconds:            30,
		TriviaQuestionCount:      5,
		RevealSeconds:            8,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		CatalogueTokenTTLSeconds: 3300,
		OpenAIModel:              "gpt-4o-mini",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("SONGS_REQUIRED"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SongsRequired = value
		}
	}
	if raw := os.Getenv("CHRISTMAS_SONGS_REQUIRED"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.ChristmasSongsRequired = value
		}
	}
	if raw := os.Getenv("RECENT_SONGS_REQUIRED"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.RecentSongsRequired = value
		}
	}
	if raw := os.Getenv("GUESS_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.GuessSeconds = value
		}
	}
	if raw := os.Getenv("TRIVIA_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.TriviaSeconds = value
		}
	}
	if raw := os.Getenv("TRIVIA_QUESTION_COUNT"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && (value == 5 || value == 10) {
			cfg.TriviaQuestionCount = value
		}
	}
	if raw := os.Getenv("REVEAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.RevealSeconds = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("CATALOGUE_CLIENT_ID"); raw != "" {
		cfg.CatalogueClientID = raw
	}
	if raw := os.Getenv("CATALOGUE_CLIENT_SECRET"); raw != "" {
		cfg.CatalogueClientSecret = raw
	}
	if raw := os.Getenv("CATALOGUE_TOKEN_TTL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CatalogueTokenTTLSeconds = value
		}
	}
	if raw := os.Getenv("OPENAI_API_KEY"); raw != "" {
		cfg.OpenAIAPIKey = raw
	}
	if raw := os.Getenv("OPENAI_MODEL"); raw != "" {
		cfg.OpenAIModel = raw
	}
	return cfg
}
