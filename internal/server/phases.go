package server

import (
	"errors"
	"time"
)

type transitionMode int

const (
	transitionPreview transitionMode = iota
	transitionManual
	transitionAuto
)

type statusTransition struct {
	advance func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error)
}

// statusTransitions is the legal forward edge out of each status. Anything
// not listed here is rejected; the only other legal move is the explicit
// reset-to-lobby edge, which is valid from every status.
var statusTransitions = map[string]statusTransition{
	statusLobby: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if activeParticipantCount(room) < 2 {
				return "", errors.New("need at least two players")
			}
			applyStatus(room, statusSubmitting, mode, at)
			return statusSubmitting, nil
		},
	},
	statusSubmitting: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if !allSubmitted(room) {
				return "", errors.New("waiting for submissions")
			}
			if mode != transitionPreview {
				// Rounds are always rebuilt here, never reused, so a replay
				// can never see stale ordering or votes.
				if err := s.buildQuizRounds(room); err != nil {
					return "", err
				}
				openRound(room, 1, at)
			}
			applyStatus(room, statusPlayingRound1, mode, at)
			return statusPlayingRound1, nil
		},
	},
	statusPlayingRound1: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if len(room.Rounds) == 0 {
				return "", errors.New("no rounds scheduled")
			}
			boundary := firstHalfEnd(room)
			if room.CurrentRound < boundary {
				if mode != transitionPreview {
					closeRound(room, at)
					openRound(room, room.CurrentRound+1, at)
				}
				applyStatus(room, statusPlayingRound1, mode, at)
				return statusPlayingRound1, nil
			}
			next := statusPlayingRound2
			if room.Settings.TriviaEnabled {
				next = statusTrivia
			}
			if mode != transitionPreview {
				closeRound(room, at)
				if next == statusTrivia {
					s.ensureTriviaQuestions(room)
					room.CurrentQuestion = 0
					openQuestion(room, 1, at)
				} else {
					openRound(room, boundary+1, at)
				}
			}
			applyStatus(room, next, mode, at)
			return next, nil
		},
	},
	statusTrivia: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if room.CurrentQuestion < len(room.TriviaQuestions) {
				if mode != transitionPreview {
					openQuestion(room, room.CurrentQuestion+1, at)
				}
				applyStatus(room, statusTrivia, mode, at)
				return statusTrivia, nil
			}
			if mode != transitionPreview {
				openRound(room, firstHalfEnd(room)+1, at)
			}
			applyStatus(room, statusPlayingRound2, mode, at)
			return statusPlayingRound2, nil
		},
	},
	statusPlayingRound2: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if room.CurrentRound < len(room.Rounds) {
				if mode != transitionPreview {
					closeRound(room, at)
					openRound(room, room.CurrentRound+1, at)
				}
				applyStatus(room, statusPlayingRound2, mode, at)
				return statusPlayingRound2, nil
			}
			next := statusResults
			if room.Settings.FavouritesEnabled {
				next = statusFavourites
			}
			if mode != transitionPreview {
				closeRound(room, at)
				if next == statusResults {
					s.applyAwards(room)
				}
			}
			applyStatus(room, next, mode, at)
			return next, nil
		},
	},
	statusFavourites: {
		advance: func(s *Server, room *Room, mode transitionMode, at time.Time) (string, error) {
			if mode != transitionPreview {
				s.applyAwards(room)
			}
			applyStatus(room, statusResults, mode, at)
			return statusResults, nil
		},
	},
}

func (s *Server) nextStatus(room *Room) (string, bool, error) {
	next, err := s.advanceStatus(room, transitionPreview, time.Time{})
	if err != nil || next == "" {
		return "", false, err
	}
	return next, true, nil
}

func (s *Server) advanceStatus(room *Room, mode transitionMode, at time.Time) (string, error) {
	if room == nil {
		return "", errors.New("room not found")
	}
	transition, ok := statusTransitions[room.Status]
	if !ok {
		return "", errors.New("no next status")
	}
	return transition.advance(s, room, mode, at)
}

// resetToLobby is the one edge legal from every status. It discards all
// per-game state so a replay starts clean.
func (s *Server) resetToLobby(room *Room, at time.Time) {
	room.Rounds = nil
	room.TriviaQuestions = nil
	room.FavouriteVotes = nil
	room.Submissions = nil
	room.PlaylistOrder = nil
	room.CurrentRound = 0
	room.CurrentQuestion = 0
	room.AwardsApplied = false
	for i := range room.Participants {
		room.Participants[i].Score = 0
		room.Participants[i].HasSubmitted = false
	}
	setStatusAt(room, statusLobby, at)
}

// firstHalfEnd is the last round number played in the first playing block.
func firstHalfEnd(room *Room) int {
	return (len(room.Rounds) + 1) / 2
}

func currentRound(room *Room) *RoundEntry {
	if room.CurrentRound <= 0 || room.CurrentRound > len(room.Rounds) {
		return nil
	}
	return &room.Rounds[room.CurrentRound-1]
}

func currentQuestion(room *Room) *TriviaQuestionEntry {
	if room.CurrentQuestion <= 0 || room.CurrentQuestion > len(room.TriviaQuestions) {
		return nil
	}
	return &room.TriviaQuestions[room.CurrentQuestion-1]
}

func openRound(room *Room, number int, at time.Time) {
	if number <= 0 || number > len(room.Rounds) {
		return
	}
	room.CurrentRound = number
	round := &room.Rounds[number-1]
	if round.StartedAt.IsZero() {
		round.StartedAt = nonZero(at)
	}
}

func closeRound(room *Room, at time.Time) {
	round := currentRound(room)
	if round == nil {
		return
	}
	if round.EndedAt.IsZero() {
		round.EndedAt = nonZero(at)
	}
	if round.SubmissionIndex >= 0 && round.SubmissionIndex < len(room.Submissions) {
		room.Submissions[round.SubmissionIndex].Played = true
	}
}

func openQuestion(room *Room, number int, at time.Time) {
	if number <= 0 || number > len(room.TriviaQuestions) {
		return
	}
	room.CurrentQuestion = number
	question := &room.TriviaQuestions[number-1]
	if question.AskedAt.IsZero() {
		question.AskedAt = nonZero(at)
	}
}

func activeParticipantCount(room *Room) int {
	count := 0
	for _, participant := range room.Participants {
		if !participant.IsSpectator {
			count++
		}
	}
	return count
}

func allSubmitted(room *Room) bool {
	if activeParticipantCount(room) == 0 {
		return false
	}
	for _, participant := range room.Participants {
		if !participant.IsSpectator && !participant.HasSubmitted {
			return false
		}
	}
	return true
}

func setStatus(room *Room, status string) {
	setStatusAt(room, status, time.Now().UTC())
}

func setStatusAt(room *Room, status string, at time.Time) {
	room.Status = status
	room.StatusChangedAt = nonZero(at)
}

func applyStatus(room *Room, status string, mode transitionMode, at time.Time) {
	if mode == transitionPreview {
		return
	}
	setStatusAt(room, status, at)
}

func nonZero(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}
