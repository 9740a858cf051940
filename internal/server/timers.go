package server

import (
	"errors"
	"time"
)

// Deadlines are authoritative on the server: when a guess or trivia timer
// fires, everyone who has not answered gets a recorded no-answer row and
// the game moves on. Client-side countdowns are advisory display only.

func (s *Server) schedulePhaseTimer(room *Room) {
	duration := s.phaseDuration(room)
	if duration <= 0 {
		s.cancelPhaseTimer(room.ID)
		return
	}
	marker := phaseMarker(room)
	s.timersMu.Lock()
	if existing, ok := s.timers[room.ID]; ok {
		existing.Stop()
	}
	roomID := room.ID
	expectedStatus := room.Status
	timer := time.AfterFunc(duration, func() {
		s.autoAdvance(roomID, expectedStatus, marker)
	})
	s.timers[roomID] = timer
	s.timersMu.Unlock()
}

func (s *Server) cancelPhaseTimer(roomID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Server) phaseDuration(room *Room) time.Duration {
	if room == nil {
		return 0
	}
	switch room.Status {
	case statusPlayingRound1, statusPlayingRound2:
		return time.Duration(room.Settings.GuessSeconds) * time.Second
	case statusTrivia:
		return time.Duration(room.Settings.TriviaSeconds) * time.Second
	default:
		return 0
	}
}

// phaseMarker identifies the exact round or question a timer was armed
// for, so a timer that outlives its phase can tell and stand down.
func phaseMarker(room *Room) int {
	switch room.Status {
	case statusTrivia:
		return room.CurrentQuestion
	default:
		return room.CurrentRound
	}
}

func (s *Server) autoAdvance(roomID, expectedStatus string, expectedMarker int) {
	now := time.Now().UTC()
	var filledVotes []VoteEntry
	var filledAnswers []TriviaAnswerEntry
	var round *RoundEntry
	var question *TriviaQuestionEntry
	room, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != expectedStatus || phaseMarker(room) != expectedMarker {
			return errors.New("phase changed")
		}
		switch room.Status {
		case statusPlayingRound1, statusPlayingRound2:
			round = currentRound(room)
			filledVotes = fillMissingVotes(room, round)
		case statusTrivia:
			question = currentQuestion(room)
			filledAnswers = fillMissingAnswers(room, question)
		}
		_, err := s.advanceStatus(room, transitionAuto, now)
		return err
	})
	if err != nil {
		return
	}
	for i := range filledVotes {
		if round != nil {
			logPersistError("timeout vote", s.persistVote(room, round, &filledVotes[i]))
		}
	}
	for i := range filledAnswers {
		if question != nil {
			logPersistError("timeout answer", s.persistTriviaAnswer(room, question, &filledAnswers[i]))
		}
	}
	logPersistError("auto advance", s.persistStatus(room, "status_advanced", EventPayload{
		Status: room.Status,
		Reason: "timer",
	}))
	s.broadcastRoom(room)
	s.schedulePhaseTimer(room)
}
