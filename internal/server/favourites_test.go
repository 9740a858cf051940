package server

import (
	"errors"
	"testing"
)

func favouritesRoom() *Room {
	room := newGameRoom(3, 2)
	room.Status = statusFavourites
	return room
}

func othersSubmissions(room *Room, voterID, count int) []int {
	var picks []int
	for i := range room.Submissions {
		if room.Submissions[i].ParticipantID != voterID && len(picks) < count {
			picks = append(picks, i)
		}
	}
	return picks
}

func TestCastFavouriteVotesHappyPath(t *testing.T) {
	room := favouritesRoom()
	picks := othersSubmissions(room, 1, maxFavouriteSelections)
	entries, err := castFavouriteVotes(room, 1, picks)
	if err != nil {
		t.Fatalf("ballot: %v", err)
	}
	if len(entries) != maxFavouriteSelections {
		t.Fatalf("expected %d entries, got %d", maxFavouriteSelections, len(entries))
	}
	if len(room.FavouriteVotes) != maxFavouriteSelections {
		t.Fatalf("ballot not stored")
	}
}

func TestCastFavouriteVotesRejectsWrongCount(t *testing.T) {
	room := favouritesRoom()
	picks := othersSubmissions(room, 1, 2)
	if _, err := castFavouriteVotes(room, 1, picks); err == nil {
		t.Fatalf("expected short ballot to be rejected")
	}
	if len(room.FavouriteVotes) != 0 {
		t.Fatalf("rejected ballot left entries behind")
	}
}

func TestCastFavouriteVotesRejectsOwnSong(t *testing.T) {
	room := favouritesRoom()
	var own int
	for i := range room.Submissions {
		if room.Submissions[i].ParticipantID == 1 {
			own = i
			break
		}
	}
	picks := othersSubmissions(room, 1, 2)
	picks = append(picks, own)
	if _, err := castFavouriteVotes(room, 1, picks); err == nil {
		t.Fatalf("expected own-song pick to be rejected")
	}
	if len(room.FavouriteVotes) != 0 {
		t.Fatalf("rejected ballot left entries behind")
	}
}

func TestCastFavouriteVotesRejectsDuplicatesAndSecondBallot(t *testing.T) {
	room := favouritesRoom()
	picks := othersSubmissions(room, 1, 2)
	picks = append(picks, picks[0])
	if _, err := castFavouriteVotes(room, 1, picks); err == nil {
		t.Fatalf("expected duplicate selection to be rejected")
	}

	good := othersSubmissions(room, 1, maxFavouriteSelections)
	if _, err := castFavouriteVotes(room, 1, good); err != nil {
		t.Fatalf("ballot: %v", err)
	}
	_, err := castFavouriteVotes(room, 1, good)
	if !errors.Is(err, errConflict) {
		t.Fatalf("expected conflict for second ballot, got %v", err)
	}
}

func TestCastFavouriteVotesWrongPhase(t *testing.T) {
	room := newGameRoom(3, 2)
	picks := othersSubmissions(room, 1, maxFavouriteSelections)
	if _, err := castFavouriteVotes(room, 1, picks); err == nil {
		t.Fatalf("expected ballot outside favourites to be rejected")
	}
}

func TestMostVotedSubmissionsPreservesTies(t *testing.T) {
	room := favouritesRoom()
	// Submission 0 and 2 get two votes each, submission 4 one.
	room.FavouriteVotes = []FavouriteVoteEntry{
		{VoterID: 1, SubmissionIndex: 2},
		{VoterID: 1, SubmissionIndex: 4},
		{VoterID: 2, SubmissionIndex: 0},
		{VoterID: 2, SubmissionIndex: 2},
		{VoterID: 3, SubmissionIndex: 0},
	}
	winners := mostVotedSubmissions(room)
	if len(winners) != 2 || winners[0] != 0 || winners[1] != 2 {
		t.Fatalf("expected tied winners [0 2], got %v", winners)
	}
}

func TestMostVotedSubmissionsEmptyWithoutVotes(t *testing.T) {
	room := favouritesRoom()
	if winners := mostVotedSubmissions(room); winners != nil {
		t.Fatalf("expected no winners without votes, got %v", winners)
	}
}

func TestFavouritesComplete(t *testing.T) {
	room := favouritesRoom()
	if favouritesComplete(room) {
		t.Fatalf("no ballots yet, should be incomplete")
	}
	for _, participant := range room.Participants {
		picks := othersSubmissions(room, participant.ID, maxFavouriteSelections)
		if _, err := castFavouriteVotes(room, participant.ID, picks); err != nil {
			t.Fatalf("ballot for %d: %v", participant.ID, err)
		}
	}
	if !favouritesComplete(room) {
		t.Fatalf("all ballots in, should be complete")
	}
}
