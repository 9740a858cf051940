package server

import (
	"errors"
	"fmt"
)

const maxFavouriteSelections = 3

// castFavouriteVotes records one whole ballot: exactly maxFavouriteSelections
// distinct submissions, none of them the voter's own. The ballot is all or
// nothing; a second ballot from the same voter is a conflict.
func castFavouriteVotes(room *Room, voterID int, submissionIndexes []int) ([]FavouriteVoteEntry, error) {
	if room.Status != statusFavourites {
		return nil, errors.New("room is not in the favourites round")
	}
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
	for _, existing := range room.FavouriteVotes {
		if existing.VoterID == voterID {
			return nil, fmt.Errorf("%w: favourites already cast", errConflict)
		}
	}
	if len(submissionIndexes) != maxFavouriteSelections {
		return nil, fmt.Errorf("pick exactly %d favourites", maxFavouriteSelections)
	}
	seen := make(map[int]struct{}, len(submissionIndexes))
	for _, idx := range submissionIndexes {
		if idx < 0 || idx >= len(room.Submissions) {
			return nil, errors.New("unknown submission")
		}
		if _, dup := seen[idx]; dup {
			return nil, errors.New("duplicate favourite selection")
		}
		seen[idx] = struct{}{}
		if room.Submissions[idx].ParticipantID == voterID {
			return nil, errors.New("cannot vote for your own song")
		}
	}

	entries := make([]FavouriteVoteEntry, 0, len(submissionIndexes))
	for _, idx := range submissionIndexes {
		entry := FavouriteVoteEntry{VoterID: voterID, SubmissionIndex: idx}
		room.FavouriteVotes = append(room.FavouriteVotes, entry)
		entries = append(entries, entry)
	}
	return entries, nil
}

// favouriteTally counts votes received per submission index.
func favouriteTally(room *Room) map[int]int {
	tally := make(map[int]int)
	for _, vote := range room.FavouriteVotes {
		tally[vote.SubmissionIndex]++
	}
	return tally
}

// mostVotedSubmissions returns every submission tied for the highest vote
// count. Ties are preserved as a set, never broken arbitrarily.
func mostVotedSubmissions(room *Room) []int {
	tally := favouriteTally(room)
	best := 0
	for _, count := range tally {
		if count > best {
			best = count
		}
	}
	if best == 0 {
		return nil
	}
	var winners []int
	for i := range room.Submissions {
		if tally[i] == best {
			winners = append(winners, i)
		}
	}
	return winners
}

func favouritesComplete(room *Room) bool {
	voted := make(map[int]struct{})
	for _, vote := range room.FavouriteVotes {
		voted[vote.VoterID] = struct{}{}
	}
	for _, participant := range room.Participants {
		if participant.IsSpectator {
			continue
		}
		if _, ok := voted[participant.ID]; !ok {
			return false
		}
	}
	return activeParticipantCount(room) > 0
}
