package server

import "sort"

const (
	guessReward         = 100
	triviaBaseReward    = 100
	favouriteVotePoints = 50
	awardBonus          = 150
)

const (
	awardBestGuesser    = "best_guesser"
	awardCrowdPleaser   = "crowd_pleaser"
	awardTriviaChampion = "trivia_champion"
)

type Award struct {
	Kind    string `json:"kind"`
	Winners []int  `json:"winners"`
	Bonus   int    `json:"bonus"`
}

type LeaderboardEntry struct {
	ParticipantID int    `json:"participant_id"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

func correctGuessCount(room *Room, participantID int) int {
	count := 0
	for _, round := range room.Rounds {
		for _, vote := range round.Votes {
			if vote.VoterID == participantID && vote.Correct {
				count++
			}
		}
	}
	return count
}

func favouriteVotesReceived(room *Room, participantID int) int {
	tally := favouriteTally(room)
	total := 0
	for i, sub := range room.Submissions {
		if sub.ParticipantID == participantID {
			total += tally[i]
		}
	}
	return total
}

func triviaPoints(room *Room, participantID int) int {
	total := 0
	for _, question := range room.TriviaQuestions {
		for _, answer := range question.Answers {
			if answer.ParticipantID == participantID {
				total += answer.Points
			}
		}
	}
	return total
}

// computeAwards evaluates every award independently. A tie yields multiple
// simultaneous winners, each taking the full bonus.
func computeAwards(room *Room) []Award {
	var awards []Award
	if winners := topBy(room, correctGuessCount); len(winners) > 0 {
		awards = append(awards, Award{Kind: awardBestGuesser, Winners: winners, Bonus: awardBonus})
	}
	if room.Settings.FavouritesEnabled {
		if winners := crowdPleaserWinners(room); len(winners) > 0 {
			awards = append(awards, Award{Kind: awardCrowdPleaser, Winners: winners, Bonus: awardBonus})
		}
	}
	if room.Settings.TriviaEnabled {
		if winners := topBy(room, triviaPoints); len(winners) > 0 {
			awards = append(awards, Award{Kind: awardTriviaChampion, Winners: winners, Bonus: awardBonus})
		}
	}
	return awards
}

// topBy returns every non-spectator tied for the highest positive value.
func topBy(room *Room, metric func(*Room, int) int) []int {
	best := 0
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		if value := metric(room, participant.ID); value > best {
			best = value
		}
	}
	if best <= 0 {
		return nil
	}
	var winners []int
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		if metric(room, participant.ID) == best {
			winners = append(winners, participant.ID)
		}
	}
	return winners
}

// crowdPleaserWinners maps the most-voted submissions (a tie-preserving
// set) to their owners.
func crowdPleaserWinners(room *Room) []int {
	seen := make(map[int]struct{})
	var winners []int
	for _, idx := range mostVotedSubmissions(room) {
		owner := room.Submissions[idx].ParticipantID
		if _, dup := seen[owner]; dup {
			continue
		}
		seen[owner] = struct{}{}
		winners = append(winners, owner)
	}
	return winners
}

// applyAwards folds favourite-vote points and award bonuses into the
// participant scores, exactly once per game. Guessing and trivia points are
// already on the scores because those are graded immediately.
func (s *Server) applyAwards(room *Room) {
	if room.AwardsApplied {
		return
	}
	for i := range room.Participants {
		participant := &room.Participants[i]
		if participant.IsSpectator {
			continue
		}
		participant.Score += favouriteVotesReceived(room, participant.ID) * favouriteVotePoints
	}
	for _, award := range computeAwards(room) {
		for _, winner := range award.Winners {
			if participant, ok := s.store.FindParticipant(room, winner); ok {
				participant.Score += award.Bonus
			}
		}
	}
	room.AwardsApplied = true
	if err := s.persistScores(room); err != nil {
		logPersistError("apply awards", err)
	}
}

// leaderboard sorts participants by final score, breaking ties by join
// order so two level players always appear in a stable order.
func leaderboard(room *Room) []LeaderboardEntry {
	var entries []LeaderboardEntry
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			ParticipantID: participant.ID,
			Name:          participant.Name,
			Score:         participant.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}
