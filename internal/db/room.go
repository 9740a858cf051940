package db

import (
	"errors"

	"gorm.io/gorm"
)

// ResetGameState deletes all per-game child rows for a room in dependency
// order and zeroes participant scores and submitted flags. Used by the
// reset-to-lobby edge; safe to run more than once.
func ResetGameState(conn *gorm.DB, roomID uint) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		var roundIDs []uint
		if err := tx.Model(&QuizRound{}).Where("room_id = ?", roomID).Pluck("id", &roundIDs).Error; err != nil {
			return err
		}
		if len(roundIDs) > 0 {
			if err := tx.Where("quiz_round_id IN ?", roundIDs).Delete(&Vote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&QuizRound{}).Error; err != nil {
			return err
		}
		var questionIDs []uint
		if err := tx.Model(&TriviaQuestion{}).Where("room_id = ?", roomID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&TriviaAnswer{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&TriviaQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&FavouriteVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Participant{}).Where("room_id = ?", roomID).
			Updates(map[string]any{"score": 0, "has_submitted": false}).Error; err != nil {
			return err
		}
		return tx.Model(&Room{}).Where("id = ?", roomID).
			Updates(map[string]any{"current_round": 0, "playlist_summary": nil}).Error
	})
}

// DeleteRoom removes a room and every child row, children first so no
// orphan can survive a partial failure.
func DeleteRoom(conn *gorm.DB, roomID uint) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		if err := resetInTx(tx, roomID); err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&Event{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&Room{}).Error
	})
}

func resetInTx(tx *gorm.DB, roomID uint) error {
	var roundIDs []uint
	if err := tx.Model(&QuizRound{}).Where("room_id = ?", roomID).Pluck("id", &roundIDs).Error; err != nil {
		return err
	}
	if len(roundIDs) > 0 {
		if err := tx.Where("quiz_round_id IN ?", roundIDs).Delete(&Vote{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("room_id = ?", roomID).Delete(&QuizRound{}).Error; err != nil {
		return err
	}
	var questionIDs []uint
	if err := tx.Model(&TriviaQuestion{}).Where("room_id = ?", roomID).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).Delete(&TriviaAnswer{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("room_id = ?", roomID).Delete(&TriviaQuestion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("room_id = ?", roomID).Delete(&FavouriteVote{}).Error; err != nil {
		return err
	}
	return tx.Where("room_id = ?", roomID).Delete(&Submission{}).Error
}

// RemoveParticipant deletes one participant and cascades their submissions,
// votes, answers, and favourite ballots.
func RemoveParticipant(conn *gorm.DB, roomID, participantID uint) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	return conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("voter_id = ?", participantID).Delete(&Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("participant_id = ?", participantID).Delete(&TriviaAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ? AND voter_id = ?", roomID, participantID).Delete(&FavouriteVote{}).Error; err != nil {
			return err
		}
		var submissionIDs []uint
		if err := tx.Model(&Submission{}).Where("participant_id = ?", participantID).Pluck("id", &submissionIDs).Error; err != nil {
			return err
		}
		if len(submissionIDs) > 0 {
			if err := tx.Where("room_id = ? AND submission_id IN ?", roomID, submissionIDs).Delete(&FavouriteVote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("participant_id = ?", participantID).Delete(&Submission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", participantID).Delete(&Participant{}).Error
	})
}

// ReconcileSubmittedFlags recomputes has_submitted for every participant in
// the room from actual submission counts. Idempotent; safe to run at any
// time. Returns the participant IDs whose flag changed.
func ReconcileSubmittedFlags(conn *gorm.DB, roomID uint, songsRequired int) ([]uint, error) {
	if conn == nil {
		return nil, errors.New("db connection is nil")
	}
	var participants []Participant
	if err := conn.Where("room_id = ?", roomID).Find(&participants).Error; err != nil {
		return nil, err
	}
	var changed []uint
	for i := range participants {
		p := &participants[i]
		var count int64
		if err := conn.Model(&Submission{}).Where("participant_id = ?", p.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		should := songsRequired > 0 && count >= int64(songsRequired)
		if p.HasSubmitted == should {
			continue
		}
		if err := conn.Model(&Participant{}).Where("id = ?", p.ID).
			Update("has_submitted", should).Error; err != nil {
			return nil, err
		}
		changed = append(changed, p.ID)
	}
	return changed, nil
}
