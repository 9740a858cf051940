package server

import (
	"net/http"
	"strconv"
	"testing"

	"song-sleuth/internal/config"
)

// TestFullGameFlow drives a three-player game through every phase over the
// HTTP surface: lobby, submitting, both guessing blocks, trivia, favourites,
// and results.
func TestFullGameFlow(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, code := createRoom(t, ts)
	if len(code) != 6 {
		t.Fatalf("expected 6-character room code, got %q", code)
	}

	host := joinPlayer(t, ts, roomID, "Ada")

	// One player is not enough to start.
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/advance", authed(host, nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d for single-player start, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Joining by code reaches the same room.
	ben := joinPlayer(t, ts, code, "Ben")
	cam := joinPlayer(t, ts, roomID, "Cam")
	players := []testPlayer{host, ben, cam}

	applySettings(t, ts, roomID, host, fastSettings(2))

	advanceRoom(t, ts, roomID, host)
	snapshot := fetchSnapshot(t, ts, roomID)
	if snapshot["status"] != statusSubmitting {
		t.Fatalf("expected submitting, got %v", snapshot["status"])
	}

	// Wrong batch size is rejected whole.
	resp = submitBatch(t, ts, roomID, host, testTrackBatch(1, 3))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d for wrong batch size, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Advancing before everyone submitted is rejected.
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/advance", authed(host, nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d before all submitted, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	for i, player := range players {
		resp = submitBatch(t, ts, roomID, player, testTrackBatch(i+1, 2))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit for player %d failed with status %d", i, resp.StatusCode)
		}
	}

	// A second batch from the same player is rejected.
	resp = submitBatch(t, ts, roomID, host, testTrackBatch(9, 2))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d for repeat submission, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	advanceRoom(t, ts, roomID, host)
	snapshot = fetchSnapshot(t, ts, roomID)
	if snapshot["status"] != statusPlayingRound1 {
		t.Fatalf("expected playing_round_1, got %v", snapshot["status"])
	}
	if snapshot["total_rounds"].(float64) != 6 {
		t.Fatalf("expected 6 rounds, got %v", snapshot["total_rounds"])
	}

	// A live round never names the submitter.
	roundDoc := snapshot["round"].(map[string]any)
	if _, leaked := roundDoc["submitted_by"]; leaked {
		t.Fatalf("round leaked submitter before reveal")
	}

	room, ok := srv.store.GetRoom(roomID)
	if !ok {
		t.Fatalf("room not found")
	}

	playGuessBlock := func(upto int) {
		for room.CurrentRound <= upto && room.Status != statusTrivia && room.Status != statusFavourites && room.Status != statusResults {
			owner := room.Submissions[currentRound(room).SubmissionIndex].ParticipantID
			for _, player := range players {
				resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/votes", authed(player, map[string]any{
					"guessed_participant_id": owner,
				}))
				if player.ID == owner {
					if resp.StatusCode != http.StatusBadRequest {
						t.Fatalf("expected %d for self vote, got %d", http.StatusBadRequest, resp.StatusCode)
					}
					continue
				}
				if resp.StatusCode != http.StatusOK {
					t.Fatalf("vote failed with status %d", resp.StatusCode)
				}
				body := decodeBody(t, resp)
				if body["correct"] != true || body["points"].(float64) != float64(guessReward) {
					t.Fatalf("expected graded correct vote, got %v", body)
				}
			}
			advanceRoom(t, ts, roomID, host)
		}
	}

	playGuessBlock(firstHalfEnd(room))
	if room.Status != statusTrivia {
		t.Fatalf("expected trivia after first block, got %s", room.Status)
	}
	if len(room.TriviaQuestions) != 5 {
		t.Fatalf("expected 5 trivia questions, got %d", len(room.TriviaQuestions))
	}

	for room.Status == statusTrivia {
		question := currentQuestion(room)
		for _, player := range players {
			resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/trivia/answers", authed(player, map[string]any{
				"question_number": question.Number,
				"selected":        question.CorrectIndex,
			}))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("trivia answer failed with status %d", resp.StatusCode)
			}
			body := decodeBody(t, resp)
			if body["correct"] != true || body["points"].(float64) != float64(triviaBaseReward) {
				t.Fatalf("expected full trivia reward without a timer, got %v", body)
			}
		}
		// A second answer is a conflict.
		resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/trivia/answers", authed(host, map[string]any{
			"question_number": question.Number,
			"selected":        question.CorrectIndex,
		}))
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected %d for duplicate answer, got %d", http.StatusConflict, resp.StatusCode)
		}
		advanceRoom(t, ts, roomID, host)
	}
	if room.Status != statusPlayingRound2 {
		t.Fatalf("expected playing_round_2 after trivia, got %s", room.Status)
	}

	playGuessBlock(len(room.Rounds))
	if room.Status != statusFavourites {
		t.Fatalf("expected favourites after second block, got %s", room.Status)
	}

	for _, player := range players {
		var picks []int
		for i := range room.Submissions {
			if room.Submissions[i].ParticipantID != player.ID && len(picks) < maxFavouriteSelections {
				picks = append(picks, i)
			}
		}
		resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/favourites", authed(player, map[string]any{
			"submission_indexes": picks,
		}))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("favourites ballot failed with status %d", resp.StatusCode)
		}
	}

	// A second ballot is a conflict.
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/favourites", authed(host, map[string]any{
		"submission_indexes": []int{0, 1, 2},
	}))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected %d for duplicate ballot, got %d", http.StatusConflict, resp.StatusCode)
	}

	advanceRoom(t, ts, roomID, host)
	snapshot = fetchSnapshot(t, ts, roomID)
	if snapshot["status"] != statusResults {
		t.Fatalf("expected results, got %v", snapshot["status"])
	}
	if _, ok := snapshot["leaderboard"]; !ok {
		t.Fatalf("expected leaderboard in results snapshot")
	}
	if _, ok := snapshot["awards"]; !ok {
		t.Fatalf("expected awards in results snapshot")
	}

	// Everyone guessed everything; every player earned guess points for the
	// four rounds they did not own, plus full trivia rewards.
	for _, participant := range room.Participants {
		if participant.Score < 4*guessReward+5*triviaBaseReward {
			t.Fatalf("unexpectedly low score %d for %s", participant.Score, participant.Name)
		}
	}

	// No further advance is possible out of results.
	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/advance", authed(host, nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d advancing out of results, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHostResetReturnsRoomToLobby(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, _ := createRoom(t, ts)
	host := joinPlayer(t, ts, roomID, "Ada")
	ben := joinPlayer(t, ts, roomID, "Ben")
	applySettings(t, ts, roomID, host, fastSettings(1))

	advanceRoom(t, ts, roomID, host)
	for i, player := range []testPlayer{host, ben} {
		resp := submitBatch(t, ts, roomID, player, testTrackBatch(i+1, 1))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit failed with status %d", resp.StatusCode)
		}
	}
	advanceRoom(t, ts, roomID, host)

	// A non-host cannot reset.
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/reset", authed(ben, nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected %d for non-host reset, got %d", http.StatusForbidden, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/reset", authed(host, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset failed with status %d", resp.StatusCode)
	}

	room, _ := srv.store.GetRoom(roomID)
	if room.Status != statusLobby {
		t.Fatalf("expected lobby after reset, got %s", room.Status)
	}
	if len(room.Submissions) != 0 || len(room.Rounds) != 0 || len(room.TriviaQuestions) != 0 || len(room.FavouriteVotes) != 0 {
		t.Fatalf("reset left game state behind")
	}
	for _, participant := range room.Participants {
		if participant.Score != 0 || participant.HasSubmitted {
			t.Fatalf("reset left participant state behind")
		}
	}

	// The room is immediately playable again.
	advanceRoom(t, ts, roomID, host)
	if room.Status != statusSubmitting {
		t.Fatalf("expected submitting after restart, got %s", room.Status)
	}
}

func TestRejoinReclaimsSeat(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, _ := createRoom(t, ts)
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/join", map[string]any{
		"user_id": "user-1",
		"name":    "Ada",
	})
	first := decodeBody(t, resp)

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/join", map[string]any{
		"user_id": "user-1",
		"name":    "Ada Again",
	})
	second := decodeBody(t, resp)

	if first["participant_id"].(float64) != second["participant_id"].(float64) {
		t.Fatalf("rejoin created a new seat")
	}
	room, _ := srv.store.GetRoom(roomID)
	if len(room.Participants) != 1 {
		t.Fatalf("expected a single participant, got %d", len(room.Participants))
	}
	if room.Participants[0].Name != "Ada Again" {
		t.Fatalf("rejoin did not refresh the name")
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, _ := createRoom(t, ts)
	host := joinPlayer(t, ts, roomID, "Ada")
	joinPlayer(t, ts, roomID, "Ben")
	advanceRoom(t, ts, roomID, host)

	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/join", map[string]any{
		"name": "Late",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected %d for late join, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestReconcileRepairsSubmittedFlag(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, _ := createRoom(t, ts)
	host := joinPlayer(t, ts, roomID, "Ada")
	joinPlayer(t, ts, roomID, "Ben")
	applySettings(t, ts, roomID, host, fastSettings(1))
	advanceRoom(t, ts, roomID, host)

	resp := submitBatch(t, ts, roomID, host, testTrackBatch(1, 1))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed with status %d", resp.StatusCode)
	}

	// Simulate a flag that drifted from the stored submissions.
	_, err := srv.store.UpdateRoom(roomID, func(room *Room) error {
		for i := range room.Participants {
			if room.Participants[i].ID == host.ID {
				room.Participants[i].HasSubmitted = false
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update room: %v", err)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/rooms/"+roomID+"/reconcile", authed(host, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile failed with status %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	changed := body["changed"].([]any)
	if len(changed) != 1 || int(changed[0].(float64)) != host.ID {
		t.Fatalf("expected host flag repaired, got %v", changed)
	}

	room, _ := srv.store.GetRoom(roomID)
	for _, participant := range room.Participants {
		want := participant.ID == host.ID
		if participant.HasSubmitted != want {
			t.Fatalf("unexpected flag for %s", participant.Name)
		}
	}
}

func TestDeleteRoomRequiresHost(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	roomID, _ := createRoom(t, ts)
	host := joinPlayer(t, ts, roomID, "Ada")
	ben := joinPlayer(t, ts, roomID, "Ben")

	resp := doRequest(t, ts, http.MethodDelete, "/api/rooms/"+roomID, authed(ben, nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected %d for non-host delete, got %d", http.StatusForbidden, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodDelete, "/api/rooms/"+roomID, authed(host, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed with status %d", resp.StatusCode)
	}
	if _, ok := srv.store.GetRoom(roomID); ok {
		t.Fatalf("room still present after delete")
	}
	resp = doRequest(t, ts, http.MethodGet, "/api/rooms/"+roomID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected %d after delete, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestListRoomsOrdersByCreation(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := createRoom(t, ts)
		ids = append(ids, id)
	}
	resp := doRequest(t, ts, http.MethodGet, "/api/rooms", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var list []map[string]any
	if err := decodeInto(t, resp, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(list))
	}
	for i, summary := range list {
		if summary["ID"] != ids[i] {
			t.Fatalf("room %s out of order at position %s", ids[i], strconv.Itoa(i))
		}
	}
}
