package server

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestBuildPlayOrderIsPermutation(t *testing.T) {
	for _, players := range []int{2, 3, 4, 6} {
		room := newGameRoom(players, 3)
		order := buildPlayOrder(room.Submissions, rand.New(rand.NewSource(int64(players))))
		if !isPermutation(order, len(room.Submissions)) {
			t.Fatalf("order for %d players is not a permutation: %v", players, order)
		}
	}
}

func TestBuildPlayOrderSpreadsParticipants(t *testing.T) {
	room := newGameRoom(4, 3)
	order := buildPlayOrder(room.Submissions, rand.New(rand.NewSource(42)))

	adjacent := 0
	for i := 1; i < len(order); i++ {
		if room.Submissions[order[i]].ParticipantID == room.Submissions[order[i-1]].ParticipantID {
			adjacent++
		}
	}
	// The greedy spread only repeats a participant when it runs out of
	// alternatives, so repeats are confined to a short tail of one
	// participant's leftovers.
	if adjacent > 2 {
		t.Fatalf("expected at most 2 same-participant adjacencies, found %d in %v", adjacent, order)
	}
}

func TestParticipantSpreadRepeatsOnlyWhenForced(t *testing.T) {
	// One participant dominates; repeats are unavoidable at the tail.
	subs := []SubmissionEntry{
		{ParticipantID: 1}, {ParticipantID: 1}, {ParticipantID: 1}, {ParticipantID: 2},
	}
	order := participantSpread([]int{0, 1, 2, 3}, subs)
	if !isPermutation(order, len(subs)) {
		t.Fatalf("spread broke the permutation: %v", order)
	}
	if subs[order[0]].ParticipantID == subs[order[1]].ParticipantID &&
		subs[order[1]].ParticipantID == subs[order[2]].ParticipantID &&
		subs[order[2]].ParticipantID == subs[order[3]].ParticipantID {
		t.Fatalf("spread made no attempt to alternate: %v", order)
	}
}

func TestEnergyHintsWithoutMetadata(t *testing.T) {
	subs := []SubmissionEntry{
		{Track: Track{Name: "a"}},
		{Track: Track{Name: "b"}},
	}
	if _, ok := energyHints(subs); ok {
		t.Fatalf("expected no hints without metadata")
	}
}

func TestEnergyHintsRange(t *testing.T) {
	room := newGameRoom(3, 2)
	hints, ok := energyHints(room.Submissions)
	if !ok {
		t.Fatalf("expected hints with metadata present")
	}
	for i, hint := range hints {
		if hint < 0 || hint > 1 {
			t.Fatalf("hint %d out of range: %f", i, hint)
		}
	}
}

func TestMinMaxNormalizeDegenerate(t *testing.T) {
	out := minMaxNormalize([]float64{3, 3, 3})
	for _, v := range out {
		if v != 0.5 {
			t.Fatalf("degenerate range should map to 0.5, got %v", out)
		}
	}
}

func TestEnergyCurveOrderKeepsSmallBatches(t *testing.T) {
	order := []int{2, 0, 1}
	got := energyCurveOrder(order, []float64{0.1, 0.9, 0.5})
	if len(got) != 3 || got[0] != 2 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("small batch should keep input order, got %v", got)
	}
}

func TestEnergyCurveOrderPeaksLate(t *testing.T) {
	hints := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	order := make([]int, len(hints))
	for i := range order {
		order[i] = i
	}
	out := energyCurveOrder(order, hints)
	if !isPermutation(out, len(hints)) {
		t.Fatalf("curve broke the permutation: %v", out)
	}
	peakAt := -1
	for i, idx := range out {
		if hints[idx] == 1.0 {
			peakAt = i
		}
	}
	if peakAt < len(out)/2 {
		t.Fatalf("peak track landed in the first half at %d: %v", peakAt, out)
	}
	if out[0] == 9 {
		t.Fatalf("highest-energy track must not open the playlist")
	}
}

func TestVarietyFixBreaksAdjacency(t *testing.T) {
	subs := []SubmissionEntry{
		{ParticipantID: 1}, {ParticipantID: 1}, {ParticipantID: 2}, {ParticipantID: 2},
	}
	order := varietyFix([]int{0, 1, 2, 3}, subs, varietyLookahead, varietyPasses)
	if !isPermutation(order, len(subs)) {
		t.Fatalf("variety fix broke the permutation: %v", order)
	}
	for i := 1; i < len(order); i++ {
		if subs[order[i]].ParticipantID == subs[order[i-1]].ParticipantID {
			t.Fatalf("fixable adjacency survived: %v", order)
		}
	}
}

type stubRefiner struct {
	order []int
	err   error
}

func (s stubRefiner) RefineOrder(ctx context.Context, tracks []Track) ([]int, error) {
	return s.order, s.err
}

func TestRefineRoundOrderAppliesSuggestion(t *testing.T) {
	srv := testServer()
	srv.refiner = stubRefiner{order: []int{2, 1, 0}}
	room := newGameRoom(3, 1)
	srv.store.rooms[room.ID] = room
	withRounds(room)

	refined, ok := srv.refineRoundOrder(room.ID)
	if !ok {
		t.Fatalf("expected the suggestion to be applied")
	}
	if !sameOrder(roundOrder(refined), []int{2, 1, 0}) {
		t.Fatalf("expected reversed order, got %v", roundOrder(refined))
	}
	for i, round := range refined.Rounds {
		if round.Number != i+1 {
			t.Fatalf("round numbering broken: %+v", refined.Rounds)
		}
	}
	if refined.CurrentRound != 1 || refined.Rounds[0].StartedAt.IsZero() {
		t.Fatalf("round one was not reopened after the reorder")
	}
}

func TestRefineRoundOrderRejectsBadSuggestions(t *testing.T) {
	for _, stub := range []stubRefiner{
		{err: errors.New("unavailable")},
		{order: []int{0, 0, 1}},
		{order: []int{0, 1}},
		{order: []int{0, 1, 3}},
	} {
		srv := testServer()
		srv.refiner = stub
		room := newGameRoom(3, 1)
		srv.store.rooms[room.ID] = room
		withRounds(room)

		if _, ok := srv.refineRoundOrder(room.ID); ok {
			t.Fatalf("bad suggestion %v was applied", stub.order)
		}
		if !sameOrder(roundOrder(room), []int{0, 1, 2}) {
			t.Fatalf("bad suggestion %v replaced the order: %v", stub.order, roundOrder(room))
		}
	}
}

func TestRefineRoundOrderStandsDownWhenRoundsUnderway(t *testing.T) {
	srv := testServer()
	srv.refiner = stubRefiner{order: []int{2, 1, 0}}
	room := newGameRoom(3, 1)
	srv.store.rooms[room.ID] = room
	withRounds(room)

	room.CurrentRound = 2
	if _, ok := srv.refineRoundOrder(room.ID); ok {
		t.Fatalf("suggestion applied after round one")
	}

	room.CurrentRound = 1
	room.Rounds[0].Votes = append(room.Rounds[0].Votes, VoteEntry{VoterID: 2})
	if _, ok := srv.refineRoundOrder(room.ID); ok {
		t.Fatalf("suggestion applied after voting started")
	}
	if !sameOrder(roundOrder(room), []int{0, 1, 2}) {
		t.Fatalf("stale suggestion replaced the order: %v", roundOrder(room))
	}
}

// slowRefiner stands in for a sluggish external call so the tests can
// observe what else keeps moving while it runs.
type slowRefiner struct {
	delay time.Duration
	order []int
}

func (s slowRefiner) RefineOrder(ctx context.Context, tracks []Track) ([]int, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.order, nil
}

func TestRefineCallDoesNotHoldStoreLock(t *testing.T) {
	srv := testServer()
	srv.refiner = slowRefiner{delay: 600 * time.Millisecond, order: []int{2, 1, 0}}
	room := newGameRoom(3, 1)
	srv.store.rooms[room.ID] = room
	withRounds(room)
	other := &Room{ID: "room-2", Code: "ZZZZ22", Status: statusLobby}
	srv.store.rooms[other.ID] = other

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.refineRoundOrder(room.ID)
	}()

	// Give the goroutine time to reach the external call, then make sure
	// an unrelated room stays reachable while it is in flight.
	time.Sleep(150 * time.Millisecond)
	start := time.Now()
	if _, err := srv.store.UpdateRoom(other.ID, func(*Room) error { return nil }); err != nil {
		t.Fatalf("unrelated room update: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("unrelated room update blocked for %v during the reorder call", elapsed)
	}

	<-done
	if !sameOrder(roundOrder(room), []int{2, 1, 0}) {
		t.Fatalf("slow suggestion was not applied: %v", roundOrder(room))
	}
}

func TestIsPermutation(t *testing.T) {
	if !isPermutation([]int{2, 0, 1}, 3) {
		t.Fatalf("valid permutation rejected")
	}
	if isPermutation([]int{0, 0, 1}, 3) {
		t.Fatalf("duplicate accepted")
	}
	if isPermutation([]int{0, 1}, 3) {
		t.Fatalf("short list accepted")
	}
	if isPermutation([]int{0, 1, 3}, 3) {
		t.Fatalf("out-of-range value accepted")
	}
}

func TestBuildQuizRoundsResetsPlayedFlags(t *testing.T) {
	srv := testServer()
	room := newGameRoom(3, 2)
	room.Submissions[0].Played = true
	if err := srv.buildQuizRounds(room); err != nil {
		t.Fatalf("build rounds: %v", err)
	}
	if len(room.Rounds) != len(room.Submissions) {
		t.Fatalf("expected one round per submission")
	}
	for i, sub := range room.Submissions {
		if sub.Played {
			t.Fatalf("submission %d still marked played", i)
		}
	}
	seen := make([]bool, len(room.Submissions))
	for _, round := range room.Rounds {
		if seen[round.SubmissionIndex] {
			t.Fatalf("submission scheduled twice")
		}
		seen[round.SubmissionIndex] = true
	}
}

func TestPlaylistTracksCachesOrder(t *testing.T) {
	srv := testServer()
	room := newGameRoom(3, 2)
	srv.store.rooms[room.ID] = room

	first, err := srv.playlistTracks(room.ID)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if len(first) != len(room.Submissions) {
		t.Fatalf("expected every track exported, got %d", len(first))
	}
	cached := append([]int(nil), room.PlaylistOrder...)

	second, err := srv.playlistTracks(room.ID)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if !sameOrder(room.PlaylistOrder, cached) {
		t.Fatalf("cached order changed between exports")
	}
	for i := range first {
		if second[i] != first[i] {
			t.Fatalf("exported tracks changed between exports")
		}
	}
}

// countingRefiner records how often the external heuristic is consulted.
type countingRefiner struct {
	calls int
	order []int
}

func (c *countingRefiner) RefineOrder(ctx context.Context, tracks []Track) ([]int, error) {
	c.calls++
	return c.order, nil
}

func TestPlaylistTracksRefinesOnlyFreshOrders(t *testing.T) {
	srv := testServer()
	stub := &countingRefiner{order: []int{5, 4, 3, 2, 1, 0}}
	srv.refiner = stub
	room := newGameRoom(3, 2)
	srv.store.rooms[room.ID] = room

	if _, err := srv.playlistTracks(room.ID); err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("expected one refine call, got %d", stub.calls)
	}
	if !isPermutation(room.PlaylistOrder, len(room.Submissions)) {
		t.Fatalf("refined order is not a permutation: %v", room.PlaylistOrder)
	}

	if _, err := srv.playlistTracks(room.ID); err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("cache hit still consulted the refiner: %d calls", stub.calls)
	}
}

func TestPlaylistTracksWithoutSubmissions(t *testing.T) {
	srv := testServer()
	room := &Room{ID: "room-9", Code: "AAAA22", Status: statusLobby}
	srv.store.rooms[room.ID] = room
	if _, err := srv.playlistTracks(room.ID); err == nil {
		t.Fatalf("expected an error with no submissions")
	}
}
