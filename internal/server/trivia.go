package server

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

const (
	triviaOptionCount  = 4
	maxFactQuestionLen = 280
	maxFactOptionLen   = 120
)

// generateTriviaQuestions builds the room's question set from submitted
// track metadata plus any validated fact records. Generation is idempotent:
// an existing non-empty set short-circuits.
func generateTriviaQuestions(room *Room, rng *rand.Rand) bool {
	if len(room.TriviaQuestions) > 0 {
		return false
	}
	var pool []TriviaQuestionEntry
	pool = append(pool, whoPerformedQuestions(room.Submissions, rng)...)
	pool = append(pool, releaseOrderQuestions(room.Submissions, rng)...)
	pool = append(pool, durationQuestions(room.Submissions, rng)...)
	pool = append(pool, popularityQuestion(room.Submissions, rng)...)
	pool = append(pool, decadeQuestions(room.Submissions, rng)...)
	pool = append(pool, songByArtistQuestions(room.Submissions, rng)...)
	pool = append(pool, factQuestions(room.Submissions)...)

	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	count := room.Settings.TriviaQuestionCount
	if count <= 0 || count > len(pool) {
		count = len(pool)
	}
	pool = pool[:count]
	for i := range pool {
		pool[i].Number = i + 1
	}
	room.TriviaQuestions = pool
	room.CurrentQuestion = 0
	return true
}

// ensureTriviaQuestions generates and persists the question set if the
// room does not have one yet. Reports whether anything was created.
func (s *Server) ensureTriviaQuestions(room *Room) bool {
	if !generateTriviaQuestions(room, s.rng) {
		return false
	}
	logPersistError("trivia questions", s.persistTriviaQuestions(room))
	return true
}

// whoPerformedQuestions asks which artist performed a submitted song.
// Needs at least four distinct artists to build honest options.
func whoPerformedQuestions(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	artists := distinctArtists(subs)
	if len(artists) < triviaOptionCount {
		return nil
	}
	var out []TriviaQuestionEntry
	for i, sub := range subs {
		options := []string{sub.Track.Artist}
		for _, artist := range shuffledStrings(artists, rng) {
			if len(options) == triviaOptionCount {
				break
			}
			if artist != sub.Track.Artist {
				options = append(options, artist)
			}
		}
		if len(options) < triviaOptionCount {
			continue
		}
		options, correct := shuffleOptions(options, 0, rng)
		out = append(out, TriviaQuestionEntry{
			Kind:            questionKindData,
			Prompt:          fmt.Sprintf("Who performed %q?", sub.Track.Name),
			Options:         options,
			CorrectIndex:    correct,
			Explanation:     fmt.Sprintf("%q is by %s.", sub.Track.Name, sub.Track.Artist),
			SubmissionIndex: i,
		})
	}
	return out
}

// releaseOrderQuestions covers oldest and newest release across the batch.
func releaseOrderQuestions(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	indexed := indexesWithDistinct(subs, func(sub SubmissionEntry) (int, bool) {
		return sub.Track.ReleaseYear, sub.Track.ReleaseYear > 0
	})
	if len(indexed) < triviaOptionCount {
		return nil
	}
	sort.Slice(indexed, func(i, j int) bool {
		return subs[indexed[i]].Track.ReleaseYear < subs[indexed[j]].Track.ReleaseYear
	})
	oldest := indexed[0]
	newest := indexed[len(indexed)-1]
	var out []TriviaQuestionEntry
	if q, ok := superlativeQuestion(subs, indexed, oldest, rng,
		"Which of these songs was released first?",
		fmt.Sprintf("%q came out in %d.", subs[oldest].Track.Name, subs[oldest].Track.ReleaseYear)); ok {
		out = append(out, q)
	}
	if q, ok := superlativeQuestion(subs, indexed, newest, rng,
		"Which of these songs is the most recent release?",
		fmt.Sprintf("%q came out in %d.", subs[newest].Track.Name, subs[newest].Track.ReleaseYear)); ok {
		out = append(out, q)
	}
	return out
}

// durationQuestions covers the longest and shortest submitted tracks.
func durationQuestions(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	indexed := indexesWithDistinct(subs, func(sub SubmissionEntry) (int, bool) {
		return sub.Track.DurationMs, sub.Track.DurationMs > 0
	})
	if len(indexed) < triviaOptionCount {
		return nil
	}
	sort.Slice(indexed, func(i, j int) bool {
		return subs[indexed[i]].Track.DurationMs < subs[indexed[j]].Track.DurationMs
	})
	shortest := indexed[0]
	longest := indexed[len(indexed)-1]
	var out []TriviaQuestionEntry
	if q, ok := superlativeQuestion(subs, indexed, longest, rng,
		"Which of these songs runs the longest?",
		fmt.Sprintf("%q runs %s.", subs[longest].Track.Name, formatDuration(subs[longest].Track.DurationMs))); ok {
		out = append(out, q)
	}
	if q, ok := superlativeQuestion(subs, indexed, shortest, rng,
		"Which of these songs is the shortest?",
		fmt.Sprintf("%q runs %s.", subs[shortest].Track.Name, formatDuration(subs[shortest].Track.DurationMs))); ok {
		out = append(out, q)
	}
	return out
}

func popularityQuestion(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	indexed := indexesWithDistinct(subs, func(sub SubmissionEntry) (int, bool) {
		return sub.Track.Popularity, sub.Track.Popularity > 0
	})
	if len(indexed) < triviaOptionCount {
		return nil
	}
	sort.Slice(indexed, func(i, j int) bool {
		return subs[indexed[i]].Track.Popularity < subs[indexed[j]].Track.Popularity
	})
	top := indexed[len(indexed)-1]
	q, ok := superlativeQuestion(subs, indexed, top, rng,
		"Which of these songs is the most popular right now?",
		fmt.Sprintf("%q has the highest popularity score of the batch.", subs[top].Track.Name))
	if !ok {
		return nil
	}
	return []TriviaQuestionEntry{q}
}

// decadeQuestions only needs a single dated track.
func decadeQuestions(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	var out []TriviaQuestionEntry
	for i, sub := range subs {
		if sub.Track.ReleaseYear <= 0 {
			continue
		}
		decade := sub.Track.ReleaseYear / 10 * 10
		options := make([]string, 0, triviaOptionCount)
		correctLabel := fmt.Sprintf("%ds", decade)
		options = append(options, correctLabel)
		for offset := 1; len(options) < triviaOptionCount; offset++ {
			candidate := decade - offset*10
			if rng.Intn(2) == 0 {
				candidate = decade + offset*10
			}
			label := fmt.Sprintf("%ds", candidate)
			if !containsString(options, label) {
				options = append(options, label)
			}
		}
		shuffled, correct := shuffleOptions(options, 0, rng)
		out = append(out, TriviaQuestionEntry{
			Kind:            questionKindData,
			Prompt:          fmt.Sprintf("In which decade was %q released?", sub.Track.Name),
			Options:         shuffled,
			CorrectIndex:    correct,
			Explanation:     fmt.Sprintf("%q was released in %d.", sub.Track.Name, sub.Track.ReleaseYear),
			SubmissionIndex: i,
		})
	}
	return out
}

// songByArtistQuestions is the reverse lookup: name the song by a given
// artist among songs by other artists.
func songByArtistQuestions(subs []SubmissionEntry, rng *rand.Rand) []TriviaQuestionEntry {
	if len(distinctArtists(subs)) < triviaOptionCount {
		return nil
	}
	var out []TriviaQuestionEntry
	for i, sub := range subs {
		options := []string{sub.Track.Name}
		for _, j := range rng.Perm(len(subs)) {
			if len(options) == triviaOptionCount {
				break
			}
			other := subs[j]
			if other.Track.Artist == sub.Track.Artist || containsString(options, other.Track.Name) {
				continue
			}
			options = append(options, other.Track.Name)
		}
		if len(options) < triviaOptionCount {
			continue
		}
		shuffled, correct := shuffleOptions(options, 0, rng)
		out = append(out, TriviaQuestionEntry{
			Kind:            questionKindData,
			Prompt:          fmt.Sprintf("Which of these songs is by %s?", sub.Track.Artist),
			Options:         shuffled,
			CorrectIndex:    correct,
			Explanation:     fmt.Sprintf("%s performed %q.", sub.Track.Artist, sub.Track.Name),
			SubmissionIndex: i,
		})
	}
	return out
}

// factQuestions maps pre-generated fact records into the shared four-option
// shape, dropping anything malformed.
func factQuestions(subs []SubmissionEntry) []TriviaQuestionEntry {
	var out []TriviaQuestionEntry
	for i, sub := range subs {
		for _, fact := range sub.TriviaFacts {
			if !validFactRecord(fact) {
				continue
			}
			out = append(out, TriviaQuestionEntry{
				Kind:            questionKindFact,
				Prompt:          fact.Question,
				Options:         fact.Options,
				CorrectIndex:    fact.Correct,
				Explanation:     fact.Citation,
				SubmissionIndex: i,
			})
		}
	}
	return out
}

func validFactRecord(fact FactRecord) bool {
	if len(fact.Options) != triviaOptionCount {
		return false
	}
	if fact.Correct < 0 || fact.Correct >= len(fact.Options) {
		return false
	}
	if fact.Citation == "" {
		return false
	}
	if fact.Question == "" || len(fact.Question) > maxFactQuestionLen {
		return false
	}
	for _, option := range fact.Options {
		if option == "" || len(option) > maxFactOptionLen {
			return false
		}
	}
	return true
}

// gradeTriviaAnswer records one answer for the current question. A nil
// selection is an explicit "no answer" and scores zero; a correct answer
// earns the base reward decayed by elapsed time when a timer is set.
func gradeTriviaAnswer(room *Room, participantID, questionNumber int, selected *int, now time.Time) (*TriviaAnswerEntry, error) {
	if room.Status != statusTrivia {
		return nil, errors.New("room is not in trivia")
	}
	question := currentQuestion(room)
	if question == nil {
		return nil, errors.New("no active question")
	}
	if questionNumber != question.Number {
		return nil, errors.New("answer is not for the current question")
	}
	var participant *Participant
	for i := range room.Participants {
		if room.Participants[i].ID == participantID {
			participant = &room.Participants[i]
			break
		}
	}
	if participant == nil {
		return nil, errors.New("participant not found")
	}
	if participant.IsSpectator {
		return nil, errors.New("spectators cannot answer")
	}
	for _, answer := range question.Answers {
		if answer.ParticipantID == participantID {
			return nil, fmt.Errorf("%w: already answered this question", errConflict)
		}
	}
	if selected != nil && (*selected < 0 || *selected >= len(question.Options)) {
		return nil, errors.New("selected option out of range")
	}

	entry := TriviaAnswerEntry{
		ParticipantID: participantID,
		Selected:      selected,
	}
	if selected != nil && *selected == question.CorrectIndex {
		entry.Correct = true
		elapsed := now.Sub(question.AskedAt)
		limit := time.Duration(room.Settings.TriviaSeconds) * time.Second
		entry.Points = triviaDecayedPoints(triviaBaseReward, elapsed, limit)
		participant.Score += entry.Points
	}
	question.Answers = append(question.Answers, entry)
	return &question.Answers[len(question.Answers)-1], nil
}

// triviaDecayedPoints shrinks the reward linearly over the question timer.
// No timer means full points; past the deadline means zero. The result
// never goes up as elapsed time grows.
func triviaDecayedPoints(base int, elapsed, limit time.Duration) int {
	if limit <= 0 {
		return base
	}
	if elapsed <= 0 {
		return base
	}
	if elapsed >= limit {
		return 0
	}
	remaining := limit - elapsed
	points := int(int64(base) * int64(remaining) / int64(limit))
	if points < 0 {
		points = 0
	}
	return points
}

func questionComplete(room *Room, question *TriviaQuestionEntry) bool {
	if question == nil {
		return false
	}
	answered := make(map[int]struct{}, len(question.Answers))
	for _, answer := range question.Answers {
		answered[answer.ParticipantID] = struct{}{}
	}
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		if _, ok := answered[participant.ID]; !ok {
			return false
		}
	}
	return true
}

// fillMissingAnswers records a no-answer row for everyone who let the
// question timer lapse.
func fillMissingAnswers(room *Room, question *TriviaQuestionEntry) []TriviaAnswerEntry {
	if question == nil {
		return nil
	}
	answered := make(map[int]struct{}, len(question.Answers))
	for _, answer := range question.Answers {
		answered[answer.ParticipantID] = struct{}{}
	}
	var filled []TriviaAnswerEntry
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		if _, ok := answered[participant.ID]; ok {
			continue
		}
		entry := TriviaAnswerEntry{ParticipantID: participant.ID}
		question.Answers = append(question.Answers, entry)
		filled = append(filled, entry)
	}
	return filled
}

func distinctArtists(subs []SubmissionEntry) []string {
	seen := make(map[string]struct{})
	var artists []string
	for _, sub := range subs {
		if _, ok := seen[sub.Track.Artist]; ok {
			continue
		}
		seen[sub.Track.Artist] = struct{}{}
		artists = append(artists, sub.Track.Artist)
	}
	return artists
}

// indexesWithDistinct returns submission indexes whose extracted value is
// present and unique within the batch, so superlative questions have a
// single defensible answer.
func indexesWithDistinct(subs []SubmissionEntry, extract func(SubmissionEntry) (int, bool)) []int {
	counts := make(map[int]int)
	for _, sub := range subs {
		if value, ok := extract(sub); ok {
			counts[value]++
		}
	}
	var indexes []int
	for i, sub := range subs {
		value, ok := extract(sub)
		if ok && counts[value] == 1 {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// superlativeQuestion builds a "which of these..." question whose options
// are track names, with the answer at a shuffled position.
func superlativeQuestion(subs []SubmissionEntry, indexed []int, answer int, rng *rand.Rand, prompt, explanation string) (TriviaQuestionEntry, bool) {
	options := []string{subs[answer].Track.Name}
	for _, j := range rng.Perm(len(indexed)) {
		if len(options) == triviaOptionCount {
			break
		}
		idx := indexed[j]
		if idx == answer || containsString(options, subs[idx].Track.Name) {
			continue
		}
		options = append(options, subs[idx].Track.Name)
	}
	if len(options) < triviaOptionCount {
		return TriviaQuestionEntry{}, false
	}
	shuffled, correct := shuffleOptions(options, 0, rng)
	return TriviaQuestionEntry{
		Kind:            questionKindData,
		Prompt:          prompt,
		Options:         shuffled,
		CorrectIndex:    correct,
		Explanation:     explanation,
		SubmissionIndex: answer,
	}, true
}

// shuffleOptions permutes options and reports where the correct one landed.
func shuffleOptions(options []string, correct int, rng *rand.Rand) ([]string, int) {
	out := make([]string, len(options))
	copy(out, options)
	correctValue := out[correct]
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	for i, option := range out {
		if option == correctValue {
			return out, i
		}
	}
	return out, 0
}

func shuffledStrings(values []string, rng *rand.Rand) []string {
	out := make([]string, len(values))
	copy(out, values)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func formatDuration(ms int) string {
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
