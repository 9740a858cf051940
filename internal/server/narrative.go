package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// tryWithFallback runs a best-effort collaborator call and substitutes the
// fallback on any error. Collaborator failures are invisible to gameplay.
func tryWithFallback[T any](primary func() (T, error), fallback T) T {
	value, err := primary()
	if err != nil {
		return fallback
	}
	return value
}

var staticIntroLines = []string{
	"Headphones on. Somebody in this room has questionable taste, and tonight we find out who.",
	"Every song in this playlist is a confession. Start guessing.",
	"The playlist is loaded. The aliases are in place. Good luck.",
}

var staticResultsLines = []string{
	"The votes are in, the secrets are out. Scroll down for the damage.",
	"Some of you know your friends a little too well.",
	"That's a wrap. Argue about the scoring in person.",
}

type narrativeClient struct {
	apiKey string
	model  string
	http   *http.Client
}

func newNarrativeClient(apiKey, model string) *narrativeClient {
	return &narrativeClient{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *narrativeClient) configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *narrativeClient) complete(ctx context.Context, system, user string) (string, error) {
	if !c.configured() {
		return "", errors.New("narrative generator is not configured")
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.9,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build narrative request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build narrative request")
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach narrative generator")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("narrative request failed (%d)", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("narrative error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("narrative generator returned nothing")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// staticIntroLine picks a deterministic fallback so a room always has some
// intro even when the generator never answers.
func staticIntroLine(room *Room) string {
	return staticIntroLines[len(room.Code)%len(staticIntroLines)]
}

func staticOutroLine(room *Room) string {
	return staticResultsLines[len(room.Code)%len(staticResultsLines)]
}

// refreshIntroLine generates a nicer intro in the background. The fallback
// is already in place, so a failure changes nothing; a late result is
// discarded if the room has moved past the lobby.
func (s *Server) refreshIntroLine(roomID string, playerCount int) {
	line := tryWithFallback(func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.narrative.complete(ctx,
			"You write one-sentence intros for a party game where friends guess who submitted which song. Dry, playful, under 25 words.",
			fmt.Sprintf("%d players just joined a room. Write the intro line.", playerCount))
	}, "")
	if line == "" {
		return
	}
	room, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != statusLobby {
			return errors.New("room moved on")
		}
		room.IntroLine = line
		return nil
	})
	if err != nil {
		return
	}
	s.broadcastRoom(room)
}

// refreshOutroLine does the same for the results blurb.
func (s *Server) refreshOutroLine(roomID, leaderName string) {
	line := tryWithFallback(func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.narrative.complete(ctx,
			"You write one-sentence results reveals for a song-guessing party game. Dry, playful, under 25 words. Never invent scores.",
			fmt.Sprintf("The game just ended. The leader is %s.", leaderName))
	}, "")
	if line == "" {
		return
	}
	room, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != statusResults {
			return errors.New("room moved on")
		}
		room.OutroLine = line
		return nil
	})
	if err != nil {
		return
	}
	s.broadcastRoom(room)
}

// RefineOrder asks the generator for a better listening order as a JSON
// index array. Anything malformed is an error so the caller keeps its own
// ordering.
func (c *narrativeClient) RefineOrder(ctx context.Context, tracks []Track) ([]int, error) {
	var sb strings.Builder
	for i, track := range tracks {
		fmt.Fprintf(&sb, "%d. %s by %s\n", i, track.Name, track.Artist)
	}
	content, err := c.complete(ctx,
		"You order party playlists. Reply with only a JSON array of the input indexes in your preferred play order.",
		sb.String())
	if err != nil {
		return nil, err
	}
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no index array in response")
	}
	var order []int
	if err := json.Unmarshal([]byte(content[start:end+1]), &order); err != nil {
		return nil, err
	}
	return order, nil
}
