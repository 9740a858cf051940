package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"song-sleuth/internal/db"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Every persist helper is a no-op with a nil *gorm.DB so the engine and its
// tests can run against the in-memory view alone.

func (s *Server) persistRoom(room *Room) error {
	if s.db == nil {
		return nil
	}
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return err
	}
	record := db.Room{
		Code:     room.Code,
		Status:   room.Status,
		Settings: datatypes.JSON(settings),
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	room.DBID = record.ID
	newID := fmt.Sprintf("room-%d", record.ID)
	if room.ID != newID {
		s.store.UpdateRoomID(room, newID)
	}
	return s.persistEvent(room, "room_created", EventPayload{
		RoomID: room.ID,
		Code:   room.Code,
	})
}

func (s *Server) persistSettings(room *Room) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return err
	}
	if err := s.db.Model(&db.Room{}).Where("id = ?", room.DBID).
		Update("settings", datatypes.JSON(settings)).Error; err != nil {
		return err
	}
	return s.persistEvent(room, "settings_updated", EventPayload{})
}

func (s *Server) persistParticipant(room *Room, participant *Participant) error {
	if s.db == nil {
		return nil
	}
	if participant.DBID != 0 {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	record := db.Participant{
		RoomID:      room.DBID,
		UserID:      participant.UserID,
		DisplayName: participant.Name,
		IsHost:      participant.IsHost,
		IsSpectator: participant.IsSpectator,
		JoinedAt:    participant.JoinedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.findParticipantDBID(room.DBID, participant.UserID)
			if lookupErr == nil && existing != 0 {
				participant.DBID = existing
				return nil
			}
		}
		return err
	}
	participant.DBID = record.ID
	return s.persistEvent(room, "participant_joined", EventPayload{
		ParticipantName: participant.Name,
		ParticipantID:   participant.ID,
	})
}

func (s *Server) persistStatus(room *Room, eventType string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	updates := map[string]any{
		"status":        room.Status,
		"current_round": room.CurrentRound,
	}
	if err := s.db.Model(&db.Room{}).Where("id = ?", room.DBID).Updates(updates).Error; err != nil {
		return err
	}
	return s.persistEvent(room, eventType, payload)
}

// persistSubmissions writes a whole accepted batch plus the submitted flag
// in one transaction, so a rejected or failed batch leaves no rows behind.
func (s *Server) persistSubmissions(room *Room, participant *Participant, entries []SubmissionEntry) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 || participant.DBID == 0 {
		return errors.New("room or participant not persisted")
	}
	records := make([]db.Submission, len(entries))
	for i, entry := range entries {
		var facts datatypes.JSON
		if len(entry.TriviaFacts) > 0 {
			data, err := json.Marshal(entry.TriviaFacts)
			if err != nil {
				return err
			}
			facts = datatypes.JSON(data)
		}
		records[i] = db.Submission{
			RoomID:        room.DBID,
			ParticipantID: participant.DBID,
			Position:      entry.Position,
			TrackID:       entry.Track.TrackID,
			Name:          entry.Track.Name,
			Artist:        entry.Track.Artist,
			Album:         entry.Track.Album,
			ArtworkURL:    entry.Track.ArtworkURL,
			PreviewURL:    entry.Track.PreviewURL,
			ReleaseYear:   entry.Track.ReleaseYear,
			DurationMs:    entry.Track.DurationMs,
			Popularity:    entry.Track.Popularity,
			IsChristmas:   entry.IsChristmas,
			IsChameleon:   entry.IsChameleon,
			TriviaFacts:   facts,
		}
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&records).Error; err != nil {
			return err
		}
		return tx.Model(&db.Participant{}).Where("id = ?", participant.DBID).
			Update("has_submitted", true).Error
	})
	if err != nil {
		return err
	}
	for i := range entries {
		idx := findSubmissionIndex(room, 0, entries[i].Track.TrackID)
		if idx >= 0 {
			room.Submissions[idx].DBID = records[i].ID
		}
	}
	return s.persistEvent(room, "songs_submitted", EventPayload{
		ParticipantID: participant.ID,
		Count:         len(entries),
	})
}

// persistQuizRounds replaces the room's round set: old votes and rounds go
// first, then the fresh set, all in one transaction.
func (s *Server) persistQuizRounds(room *Room) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	records := make([]db.QuizRound, len(room.Rounds))
	for i, round := range room.Rounds {
		submissionDBID := uint(0)
		if round.SubmissionIndex >= 0 && round.SubmissionIndex < len(room.Submissions) {
			submissionDBID = room.Submissions[round.SubmissionIndex].DBID
		}
		records[i] = db.QuizRound{
			RoomID:       room.DBID,
			Number:       round.Number,
			SubmissionID: submissionDBID,
		}
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var oldIDs []uint
		if err := tx.Model(&db.QuizRound{}).Where("room_id = ?", room.DBID).Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("quiz_round_id IN ?", oldIDs).Delete(&db.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&db.QuizRound{}).Error; err != nil {
				return err
			}
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return err
	}
	for i := range room.Rounds {
		room.Rounds[i].DBID = records[i].ID
	}
	return s.persistEvent(room, "rounds_scheduled", EventPayload{Count: len(records)})
}

func (s *Server) persistVote(room *Room, round *RoundEntry, vote *VoteEntry) error {
	if s.db == nil {
		return nil
	}
	if round.DBID == 0 {
		return errors.New("round not persisted")
	}
	voter, ok := s.store.FindParticipant(room, vote.VoterID)
	if !ok || voter.DBID == 0 {
		return errors.New("participant not found")
	}
	record := db.Vote{
		QuizRoundID: round.DBID,
		VoterID:     voter.DBID,
		Correct:     vote.Correct,
		Points:      vote.Points,
	}
	if !vote.NoAnswer {
		if guessed, ok := s.store.FindParticipant(room, vote.GuessedID); ok && guessed.DBID != 0 {
			record.GuessedParticipantID = &guessed.DBID
		}
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already voted this round", errConflict)
		}
		return err
	}
	vote.DBID = record.ID
	if vote.Correct {
		if err := s.db.Model(&db.Participant{}).Where("id = ?", voter.DBID).
			Update("score", gorm.Expr("score + ?", vote.Points)).Error; err != nil {
			return err
		}
	}
	return s.persistEvent(room, "vote_cast", EventPayload{
		ParticipantID: vote.VoterID,
		RoundNumber:   round.Number,
		Correct:       vote.Correct,
		Points:        vote.Points,
	})
}

func (s *Server) persistTriviaQuestions(room *Room) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	for i := range room.TriviaQuestions {
		question := &room.TriviaQuestions[i]
		if question.DBID != 0 {
			continue
		}
		options, err := json.Marshal(question.Options)
		if err != nil {
			return err
		}
		record := db.TriviaQuestion{
			RoomID:       room.DBID,
			Number:       question.Number,
			Kind:         question.Kind,
			Prompt:       question.Prompt,
			Options:      datatypes.JSON(options),
			CorrectIndex: question.CorrectIndex,
			Explanation:  question.Explanation,
		}
		if question.SubmissionIndex >= 0 && question.SubmissionIndex < len(room.Submissions) {
			if dbID := room.Submissions[question.SubmissionIndex].DBID; dbID != 0 {
				record.SubmissionID = &dbID
			}
		}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			return err
		}
		question.DBID = record.ID
	}
	return s.persistEvent(room, "trivia_generated", EventPayload{Count: len(room.TriviaQuestions)})
}

func (s *Server) persistTriviaAnswer(room *Room, question *TriviaQuestionEntry, answer *TriviaAnswerEntry) error {
	if s.db == nil {
		return nil
	}
	if question.DBID == 0 {
		return errors.New("question not persisted")
	}
	participant, ok := s.store.FindParticipant(room, answer.ParticipantID)
	if !ok || participant.DBID == 0 {
		return errors.New("participant not found")
	}
	record := db.TriviaAnswer{
		QuestionID:    question.DBID,
		ParticipantID: participant.DBID,
		SelectedIndex: answer.Selected,
		Correct:       answer.Correct,
		Points:        answer.Points,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already answered this question", errConflict)
		}
		return err
	}
	answer.DBID = record.ID
	if answer.Points > 0 {
		if err := s.db.Model(&db.Participant{}).Where("id = ?", participant.DBID).
			Update("score", gorm.Expr("score + ?", answer.Points)).Error; err != nil {
			return err
		}
	}
	return s.persistEvent(room, "trivia_answered", EventPayload{
		ParticipantID:  answer.ParticipantID,
		QuestionNumber: question.Number,
		Correct:        answer.Correct,
		Points:         answer.Points,
	})
}

// persistFavouriteVotes writes one ballot atomically.
func (s *Server) persistFavouriteVotes(room *Room, voterID int, entries []FavouriteVoteEntry) error {
	if s.db == nil {
		return nil
	}
	voter, ok := s.store.FindParticipant(room, voterID)
	if !ok || voter.DBID == 0 {
		return errors.New("participant not found")
	}
	records := make([]db.FavouriteVote, len(entries))
	for i, entry := range entries {
		submissionDBID := uint(0)
		if entry.SubmissionIndex >= 0 && entry.SubmissionIndex < len(room.Submissions) {
			submissionDBID = room.Submissions[entry.SubmissionIndex].DBID
		}
		records[i] = db.FavouriteVote{
			RoomID:       room.DBID,
			VoterID:      voter.DBID,
			SubmissionID: submissionDBID,
		}
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: favourites already cast", errConflict)
		}
		return err
	}
	return s.persistEvent(room, "favourites_cast", EventPayload{
		ParticipantID: voterID,
		Count:         len(entries),
	})
}

func (s *Server) persistScores(room *Room) error {
	if s.db == nil {
		return nil
	}
	for _, participant := range room.Participants {
		if participant.DBID == 0 {
			continue
		}
		if err := s.db.Model(&db.Participant{}).Where("id = ?", participant.DBID).
			Update("score", participant.Score).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) persistPlaylistOrder(room *Room) error {
	if s.db == nil {
		return nil
	}
	if room.DBID == 0 {
		return nil
	}
	summary, err := json.Marshal(room.PlaylistOrder)
	if err != nil {
		return err
	}
	return s.db.Model(&db.Room{}).Where("id = ?", room.DBID).
		Update("playlist_summary", datatypes.JSON(summary)).Error
}

func (s *Server) persistReset(room *Room) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	if err := db.ResetGameState(s.db, room.DBID); err != nil {
		return err
	}
	return s.persistStatus(room, "room_reset", EventPayload{Status: room.Status})
}

func (s *Server) persistDelete(room *Room) error {
	if s.db == nil {
		return nil
	}
	if room.DBID == 0 {
		return nil
	}
	return db.DeleteRoom(s.db, room.DBID)
}

func (s *Server) persistEvent(room *Room, eventType string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	if err := s.ensureRoomDBID(room); err != nil {
		return err
	}
	if room.DBID == 0 {
		return errors.New("room not found")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		RoomID:        room.DBID,
		ParticipantID: s.resolveEventParticipantID(room, payload),
		Type:          eventType,
		Payload:       datatypes.JSON(data),
		CreatedAt:     time.Now().UTC(),
	}
	return s.db.Create(&event).Error
}

func (s *Server) resolveEventParticipantID(room *Room, payload EventPayload) *uint {
	if payload.ParticipantID <= 0 {
		return nil
	}
	participant, found := s.store.FindParticipant(room, payload.ParticipantID)
	if found && participant.DBID != 0 {
		value := participant.DBID
		return &value
	}
	return nil
}

func (s *Server) ensureRoomDBID(room *Room) error {
	if s.db == nil || room.DBID != 0 {
		return nil
	}
	var record db.Room
	if err := s.db.Where("code = ?", room.Code).First(&record).Error; err != nil {
		return nil
	}
	room.DBID = record.ID
	return nil
}

func (s *Server) findParticipantDBID(roomDBID uint, userID string) (uint, error) {
	var record db.Participant
	if err := s.db.Where("room_id = ? AND user_id = ?", roomDBID, userID).First(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func logPersistError(action string, err error) {
	if err != nil {
		log.Printf("persist %s: %v", action, err)
	}
}
