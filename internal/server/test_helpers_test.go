package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

var errTest = errors.New("test error")

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

type testPlayer struct {
	ID    int
	Token string
}

func createRoom(t *testing.T, ts *httptest.Server) (string, string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["id"].(string), body["code"].(string)
}

func joinPlayer(t *testing.T, ts *httptest.Server, roomID, name string) testPlayer {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/join", map[string]any{
		"name": name,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return testPlayer{
		ID:    int(body["participant_id"].(float64)),
		Token: body["token"].(string),
	}
}

func authed(player testPlayer, extra map[string]any) map[string]any {
	payload := map[string]any{
		"participant_id": player.ID,
		"token":          player.Token,
	}
	for key, value := range extra {
		payload[key] = value
	}
	return payload
}

// testTrackBatch builds count tracks with distinct artists, years, durations,
// and popularity so metadata-driven features always have material to work
// with. The seed keeps batches distinct across players.
func testTrackBatch(seed, count int) []map[string]any {
	tracks := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		n := seed*100 + i
		tracks = append(tracks, map[string]any{
			"track_id":     fmt.Sprintf("track-%d", n),
			"name":         fmt.Sprintf("Song %d", n),
			"artist":       fmt.Sprintf("Artist %d", n),
			"release_year": 1960 + n,
			"duration_ms":  150000 + n*1000,
			"popularity":   10 + n,
		})
	}
	return tracks
}

func submitBatch(t *testing.T, ts *httptest.Server, roomID string, player testPlayer, tracks []map[string]any) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/submissions", authed(player, map[string]any{
		"tracks": tracks,
	}))
}

func advanceRoom(t *testing.T, ts *httptest.Server, roomID string, host testPlayer) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/advance", authed(host, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance failed with status %d", resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func fetchSnapshot(t *testing.T, ts *httptest.Server, roomID string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+roomID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dest any) error {
	t.Helper()
	return json.NewDecoder(resp.Body).Decode(dest)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

// fastSettings is the standard test configuration: short batches, no timers,
// both optional phases on.
func fastSettings(songs int) map[string]any {
	return map[string]any{
		"songs_required":        songs,
		"guess_seconds":         0,
		"trivia_enabled":        true,
		"trivia_question_count": 5,
		"trivia_seconds":        0,
		"favourites_enabled":    true,
	}
}

// newGameRoom builds an in-memory room with submitted batches for unit
// tests that bypass the HTTP surface. Track metadata is distinct across the
// batch so ordering and trivia always have material.
func newGameRoom(playerCount, songsEach int) *Room {
	room := &Room{
		ID:     "room-1",
		Code:   "ABCDEF",
		Status: statusSubmitting,
		HostID: 1,
		Settings: RoomSettings{
			SongsRequired:       songsEach,
			TriviaEnabled:       true,
			TriviaQuestionCount: 5,
			FavouritesEnabled:   true,
		},
		AuthTokens: make(map[int]string),
	}
	for p := 1; p <= playerCount; p++ {
		room.Participants = append(room.Participants, Participant{
			ID:           p,
			UserID:       fmt.Sprintf("user-%d", p),
			Name:         fmt.Sprintf("Player %d", p),
			IsHost:       p == 1,
			HasSubmitted: true,
		})
		for s := 0; s < songsEach; s++ {
			n := p*100 + s
			room.Submissions = append(room.Submissions, SubmissionEntry{
				ParticipantID: p,
				Position:      s + 1,
				Track: Track{
					TrackID:     fmt.Sprintf("track-%d", n),
					Name:        fmt.Sprintf("Song %d", n),
					Artist:      fmt.Sprintf("Artist %d", n),
					ReleaseYear: 1960 + n%60,
					DurationMs:  150000 + n*1000,
					Popularity:  n % 100,
				},
			})
		}
	}
	return room
}

// withRounds materializes one round per submission in submission order and
// opens round one.
func withRounds(room *Room) {
	room.Rounds = nil
	for i := range room.Submissions {
		room.Rounds = append(room.Rounds, RoundEntry{Number: i + 1, SubmissionIndex: i})
	}
	room.Status = statusPlayingRound1
	room.CurrentRound = 1
}

func applySettings(t *testing.T, ts *httptest.Server, roomID string, host testPlayer, settings map[string]any) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/settings", authed(host, map[string]any{
		"settings": settings,
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings update failed with status %d", resp.StatusCode)
	}
}
