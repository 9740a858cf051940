package server

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"
)

const (
	energyWeightPopularity = 0.5
	energyWeightDuration   = 0.2
	energyWeightRecency    = 0.3

	varietyLookahead = 5
	varietyPasses    = 3
)

// orderRefiner is an optional external heuristic that suggests a nicer
// listening order. Strictly best-effort: any failure or invalid suggestion
// leaves the existing order untouched.
type orderRefiner interface {
	RefineOrder(ctx context.Context, tracks []Track) ([]int, error)
}

// energyHints derives a [0,1] energy score per submission from catalogue
// metadata, min-max normalized over the batch. Returns false when no
// submission carries any usable metadata.
func energyHints(subs []SubmissionEntry) ([]float64, bool) {
	if len(subs) == 0 {
		return nil, false
	}
	any := false
	for _, sub := range subs {
		if sub.Track.Popularity > 0 || sub.Track.DurationMs > 0 || sub.Track.ReleaseYear > 0 {
			any = true
			break
		}
	}
	if !any {
		return nil, false
	}

	popularity := make([]float64, len(subs))
	duration := make([]float64, len(subs))
	recency := make([]float64, len(subs))
	for i, sub := range subs {
		popularity[i] = float64(sub.Track.Popularity)
		duration[i] = float64(sub.Track.DurationMs)
		recency[i] = float64(sub.Track.ReleaseYear)
	}
	normPop := minMaxNormalize(popularity)
	normDur := minMaxNormalize(duration)
	normRec := minMaxNormalize(recency)

	hints := make([]float64, len(subs))
	for i := range subs {
		hints[i] = energyWeightPopularity*normPop[i] +
			energyWeightDuration*(1-normDur[i]) +
			energyWeightRecency*normRec[i]
	}
	return hints, true
}

// minMaxNormalize maps values onto [0,1], defaulting to 0.5 when the range
// is degenerate.
func minMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// energyCurveOrder arranges indexes into a listening arc: a quiet opening,
// a build, the peak, then a descending cooldown. Fewer than four tracks
// keep their input order.
func energyCurveOrder(order []int, hints []float64) []int {
	n := len(order)
	if n < 4 {
		return order
	}
	sorted := make([]int, n)
	copy(sorted, order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return hints[sorted[i]] < hints[sorted[j]]
	})

	lowEnd := n / 4
	midEnd := n / 2
	peakCount := n / 5
	if peakCount < 1 {
		peakCount = 1
	}
	peakStart := n - peakCount
	if peakStart < midEnd {
		peakStart = midEnd
	}

	out := make([]int, 0, n)
	out = append(out, sorted[:lowEnd]...)
	out = append(out, sorted[lowEnd:midEnd]...)
	out = append(out, sorted[peakStart:]...)
	cooldown := make([]int, 0, peakStart-midEnd)
	for i := peakStart - 1; i >= midEnd; i-- {
		cooldown = append(cooldown, sorted[i])
	}
	out = append(out, cooldown...)
	return out
}

// participantSpread greedily re-emits the order so no two consecutive
// tracks come from the same participant, repeating only when no
// alternative remains.
func participantSpread(order []int, subs []SubmissionEntry) []int {
	remaining := make([]int, len(order))
	copy(remaining, order)
	out := make([]int, 0, len(order))
	lastParticipant := -1
	for len(remaining) > 0 {
		picked := -1
		for i, idx := range remaining {
			if subs[idx].ParticipantID != lastParticipant {
				picked = i
				break
			}
		}
		if picked < 0 {
			picked = 0
		}
		idx := remaining[picked]
		out = append(out, idx)
		lastParticipant = subs[idx].ParticipantID
		remaining = append(remaining[:picked], remaining[picked+1:]...)
	}
	return out
}

// varietyFix is a bounded local-swap pass over an already-built order. It
// looks ahead a few positions to break up any remaining same-participant
// adjacency without disturbing neighbours it has already fixed. Best
// effort: a participant who dominates the batch can still repeat.
func varietyFix(order []int, subs []SubmissionEntry, lookahead, passes int) []int {
	out := make([]int, len(order))
	copy(out, order)
	for pass := 0; pass < passes; pass++ {
		swapped := false
		for i := 1; i < len(out); i++ {
			if subs[out[i]].ParticipantID != subs[out[i-1]].ParticipantID {
				continue
			}
			limit := i + lookahead
			if limit > len(out)-1 {
				limit = len(out) - 1
			}
			for j := i + 1; j <= limit; j++ {
				if subs[out[j]].ParticipantID == subs[out[i-1]].ParticipantID {
					continue
				}
				if j+1 <= len(out)-1 && subs[out[i]].ParticipantID == subs[out[j+1]].ParticipantID {
					continue
				}
				out[i], out[j] = out[j], out[i]
				swapped = true
				break
			}
		}
		if !swapped {
			break
		}
	}
	return out
}

// buildPlayOrder runs the in-memory ordering pipeline and returns a
// permutation of the submission indexes. Runs under the store lock, so it
// never calls out; the external refine step happens afterwards, unlocked.
func buildPlayOrder(subs []SubmissionEntry, rng *rand.Rand) []int {
	order := rng.Perm(len(subs))
	hints, ok := energyHints(subs)
	if ok {
		order = energyCurveOrder(order, hints)
	}
	order = participantSpread(order, subs)
	return varietyFix(order, subs, varietyLookahead, varietyPasses)
}

// refineSuggestion runs the external reorder call. Never called under the
// store lock; callers re-check room state before applying the result. The
// suggestion is used only if it is a valid permutation of the input.
func (s *Server) refineSuggestion(tracks []Track) []int {
	if s.refiner == nil || len(tracks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	suggestion, err := s.refiner.RefineOrder(ctx, tracks)
	if err != nil || !isPermutation(suggestion, len(tracks)) {
		return nil
	}
	return suggestion
}

// applySuggestion maps a refiner suggestion back onto submission indexes
// and re-runs the variety pass, which always has the last word.
func applySuggestion(baseline, suggestion []int, subs []SubmissionEntry) []int {
	order := make([]int, len(baseline))
	for i, pos := range suggestion {
		order[i] = baseline[pos]
	}
	return varietyFix(order, subs, varietyLookahead, varietyPasses)
}

// refineRoundOrder consults the external heuristic after rounds are built.
// The call runs between two store round-trips so the lock is never held
// across it, and the suggestion is dropped unless the room is still
// sitting on an untouched round one with the same order it started with.
func (s *Server) refineRoundOrder(roomID string) (*Room, bool) {
	if s.refiner == nil {
		return nil, false
	}
	var baseline []int
	var tracks []Track
	if _, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != statusPlayingRound1 || room.CurrentRound != 1 {
			return errors.New("rounds already underway")
		}
		baseline = roundOrder(room)
		for _, idx := range baseline {
			tracks = append(tracks, room.Submissions[idx].Track)
		}
		return nil
	}); err != nil {
		return nil, false
	}
	suggestion := s.refineSuggestion(tracks)
	if suggestion == nil {
		return nil, false
	}
	room, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != statusPlayingRound1 || room.CurrentRound != 1 {
			return errors.New("rounds already underway")
		}
		if round := currentRound(room); round != nil && len(round.Votes) > 0 {
			return errors.New("voting already started")
		}
		if !sameOrder(roundOrder(room), baseline) {
			return errors.New("rounds changed")
		}
		for i, submissionIndex := range applySuggestion(baseline, suggestion, room.Submissions) {
			room.Rounds[i] = RoundEntry{Number: i + 1, SubmissionIndex: submissionIndex}
		}
		openRound(room, 1, time.Time{})
		return s.persistQuizRounds(room)
	})
	if err != nil {
		return nil, false
	}
	return room, true
}

func roundOrder(room *Room) []int {
	order := make([]int, len(room.Rounds))
	for i, round := range room.Rounds {
		order[i] = round.SubmissionIndex
	}
	return order
}

func sameOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isPermutation(values []int, n int) bool {
	if len(values) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range values {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// buildQuizRounds discards any prior rounds and materializes one guessing
// round per submission in freshly shuffled play order.
func (s *Server) buildQuizRounds(room *Room) error {
	order := buildPlayOrder(room.Submissions, s.rng)
	rounds := make([]RoundEntry, len(order))
	for i, submissionIndex := range order {
		rounds[i] = RoundEntry{
			Number:          i + 1,
			SubmissionIndex: submissionIndex,
		}
	}
	for i := range room.Submissions {
		room.Submissions[i].Played = false
	}
	room.Rounds = rounds
	room.CurrentRound = 0
	return s.persistQuizRounds(room)
}
