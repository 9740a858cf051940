package server

import (
	"errors"
	"fmt"
	"time"
)

// validateSubmissionBatch checks a whole batch against the room settings.
// Any failure rejects the batch before a single entry is stored.
func validateSubmissionBatch(room *Room, participant *Participant, picks []TrackPick, now time.Time) error {
	if room.Status != statusSubmitting {
		return errors.New("room is not accepting submissions")
	}
	if participant == nil {
		return errors.New("participant not found")
	}
	if participant.IsSpectator {
		return errors.New("spectators cannot submit songs")
	}
	if participant.HasSubmitted {
		return errors.New("songs already submitted")
	}
	settings := room.Settings
	if len(picks) != settings.SongsRequired {
		return fmt.Errorf("expected %d songs, got %d", settings.SongsRequired, len(picks))
	}

	christmas := 0
	recent := 0
	chameleons := 0
	seen := make(map[string]struct{}, len(picks))
	for _, pick := range picks {
		if pick.TrackID == "" || pick.Name == "" || pick.Artist == "" {
			return errors.New("every song needs a track id, name, and artist")
		}
		if _, dup := seen[pick.TrackID]; dup {
			return fmt.Errorf("duplicate song in batch: %s", pick.Name)
		}
		seen[pick.TrackID] = struct{}{}
		if pick.IsChristmas {
			christmas++
		}
		if pick.ReleaseYear == now.Year() {
			recent++
		}
		if pick.IsChameleon {
			chameleons++
		}
	}
	if christmas < settings.ChristmasSongsRequired {
		return fmt.Errorf("need at least %d christmas songs, got %d", settings.ChristmasSongsRequired, christmas)
	}
	if recent < settings.RecentSongsRequired {
		return fmt.Errorf("need at least %d songs from %d, got %d", settings.RecentSongsRequired, now.Year(), recent)
	}
	if settings.ChameleonMode && chameleons != 1 {
		return errors.New("chameleon mode needs exactly one disguised song")
	}
	if !settings.ChameleonMode && chameleons != 0 {
		return errors.New("disguised songs are not enabled for this room")
	}
	if !settings.AllowDuplicateSongs {
		for _, existing := range room.Submissions {
			if _, clash := seen[existing.Track.TrackID]; clash {
				return fmt.Errorf("%q was already submitted by another player", existing.Track.Name)
			}
		}
	}
	return nil
}

// acceptSubmissionBatch appends the validated batch in submission order and
// flips the participant's submitted flag. Callers must have validated first.
func acceptSubmissionBatch(room *Room, participant *Participant, picks []TrackPick) []SubmissionEntry {
	entries := make([]SubmissionEntry, 0, len(picks))
	for i, pick := range picks {
		entry := SubmissionEntry{
			ParticipantID: participant.ID,
			Position:      i + 1,
			Track:         pick.Track,
			IsChristmas:   pick.IsChristmas,
			IsChameleon:   pick.IsChameleon,
		}
		room.Submissions = append(room.Submissions, entry)
		entries = append(entries, entry)
	}
	participant.HasSubmitted = true
	return entries
}

func submissionsByParticipant(room *Room, participantID int) []int {
	var indexes []int
	for i := range room.Submissions {
		if room.Submissions[i].ParticipantID == participantID {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// reconcileSubmittedFlags recomputes each player's submitted flag from the
// submissions actually held and returns the ids whose flag changed. This is
// the repair path for flags that drifted from the stored rows.
func reconcileSubmittedFlags(room *Room) []int {
	var changed []int
	for i := range room.Participants {
		participant := &room.Participants[i]
		if participant.IsSpectator {
			continue
		}
		actual := len(submissionsByParticipant(room, participant.ID)) >= room.Settings.SongsRequired
		if participant.HasSubmitted != actual {
			participant.HasSubmitted = actual
			changed = append(changed, participant.ID)
		}
	}
	return changed
}

// removeParticipantState drops the departed participant's submissions. Only
// legal before rounds are built, while submission indexes may still shift.
func removeParticipantState(room *Room, participantID int) {
	kept := room.Submissions[:0]
	for _, sub := range room.Submissions {
		if sub.ParticipantID != participantID {
			kept = append(kept, sub)
		}
	}
	room.Submissions = kept
}

func findSubmissionIndex(room *Room, dbID uint, trackID string) int {
	for i := range room.Submissions {
		if dbID != 0 && room.Submissions[i].DBID == dbID {
			return i
		}
		if dbID == 0 && trackID != "" && room.Submissions[i].Track.TrackID == trackID {
			return i
		}
	}
	return -1
}
