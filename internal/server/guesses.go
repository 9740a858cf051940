package server

import (
	"errors"
	"fmt"
)

// castGuessVote records one vote for the current round and grades it on the
// spot. The submitter of the round's song is never an eligible voter, and a
// second vote from the same participant is a conflict, not an overwrite.
func castGuessVote(room *Room, voterID, guessedID int) (*VoteEntry, error) {
	if room.Status != statusPlayingRound1 && room.Status != statusPlayingRound2 {
		return nil, errors.New("room is not in a guessing round")
	}
	round := currentRound(room)
	if round == nil {
		return nil, errors.New("no active round")
	}
	if round.SubmissionIndex < 0 || round.SubmissionIndex >= len(room.Submissions) {
		return nil, errors.New("round has no submission")
	}
	submission := &room.Submissions[round.SubmissionIndex]

	var voter *Participant
	for i := range room.Participants {
		if room.Participants[i].ID == voterID {
			voter = &room.Participants[i]
			break
		}
	}
	if voter == nil {
		return nil, errors.New("participant not found")
	}
	if voter.IsSpectator {
		return nil, errors.New("spectators cannot vote")
	}
	if submission.ParticipantID == voterID {
		return nil, errors.New("cannot vote on your own song")
	}
	for _, vote := range round.Votes {
		if vote.VoterID == voterID {
			return nil, fmt.Errorf("%w: already voted this round", errConflict)
		}
	}
	guessedFound := false
	for _, participant := range room.Participants {
		if participant.ID == guessedID && !participant.IsSpectator {
			guessedFound = true
			break
		}
	}
	if !guessedFound {
		return nil, errors.New("guessed participant not found")
	}

	entry := VoteEntry{
		VoterID:   voterID,
		GuessedID: guessedID,
		Correct:   guessedID == submission.ParticipantID,
	}
	if entry.Correct {
		entry.Points = guessReward
		voter.Score += guessReward
	}
	round.Votes = append(round.Votes, entry)
	return &round.Votes[len(round.Votes)-1], nil
}

func eligibleVoterIDs(room *Room, round *RoundEntry) []int {
	if round == nil || round.SubmissionIndex < 0 || round.SubmissionIndex >= len(room.Submissions) {
		return nil
	}
	owner := room.Submissions[round.SubmissionIndex].ParticipantID
	var ids []int
	for _, participant := range room.Participants {
		if participant.IsSpectator || participant.ID == owner {
			continue
		}
		ids = append(ids, participant.ID)
	}
	return ids
}

func roundComplete(room *Room, round *RoundEntry) bool {
	if round == nil {
		return false
	}
	voted := make(map[int]struct{}, len(round.Votes))
	for _, vote := range round.Votes {
		voted[vote.VoterID] = struct{}{}
	}
	for _, id := range eligibleVoterIDs(room, round) {
		if _, ok := voted[id]; !ok {
			return false
		}
	}
	return true
}

// fillMissingVotes records a no-answer vote for every eligible voter who
// never voted. Used when the round deadline fires; timeout voters are never
// retried.
func fillMissingVotes(room *Room, round *RoundEntry) []VoteEntry {
	if round == nil {
		return nil
	}
	voted := make(map[int]struct{}, len(round.Votes))
	for _, vote := range round.Votes {
		voted[vote.VoterID] = struct{}{}
	}
	var filled []VoteEntry
	for _, id := range eligibleVoterIDs(room, round) {
		if _, ok := voted[id]; ok {
			continue
		}
		entry := VoteEntry{VoterID: id, NoAnswer: true}
		round.Votes = append(round.Votes, entry)
		filled = append(filled, entry)
	}
	return filled
}
