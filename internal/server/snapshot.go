package server

// snapshot is the single room document served over GET and pushed over the
// change feed. It only exposes what the current status is allowed to show:
// a round's submitter stays hidden until the round ends, a question's
// answer until the question ends.
func (s *Server) snapshot(room *Room) map[string]any {
	participants := make([]map[string]any, 0, len(room.Participants))
	for _, participant := range room.Participants {
		participants = append(participants, map[string]any{
			"id":            participant.ID,
			"name":          participant.Name,
			"score":         participant.Score,
			"is_host":       participant.IsHost,
			"is_spectator":  participant.IsSpectator,
			"has_submitted": participant.HasSubmitted,
		})
	}

	doc := map[string]any{
		"id":           room.ID,
		"code":         room.Code,
		"status":       room.Status,
		"status_since": room.StatusChangedAt,
		"settings":     room.Settings,
		"participants": participants,
		"total_rounds": len(room.Rounds),
	}

	switch room.Status {
	case statusLobby:
		doc["intro"] = room.IntroLine
	case statusPlayingRound1, statusPlayingRound2:
		if round := currentRound(room); round != nil {
			doc["round"] = roundDoc(room, round, false)
		}
	case statusTrivia:
		if question := currentQuestion(room); question != nil {
			doc["question"] = questionDoc(room, question, questionComplete(room, question))
		}
		doc["total_questions"] = len(room.TriviaQuestions)
	case statusFavourites:
		doc["submissions"] = submissionDocs(room)
		doc["favourites_complete"] = favouritesComplete(room)
	case statusResults:
		doc["leaderboard"] = leaderboard(room)
		doc["awards"] = computeAwards(room)
		doc["outro"] = room.OutroLine
		rounds := make([]map[string]any, 0, len(room.Rounds))
		for i := range room.Rounds {
			rounds = append(rounds, roundDoc(room, &room.Rounds[i], true))
		}
		doc["rounds"] = rounds
	}
	return doc
}

func roundDoc(room *Room, round *RoundEntry, revealed bool) map[string]any {
	doc := map[string]any{
		"number":      round.Number,
		"votes":       len(round.Votes),
		"voters_left": len(eligibleVoterIDs(room, round)) - len(round.Votes),
	}
	if round.SubmissionIndex >= 0 && round.SubmissionIndex < len(room.Submissions) {
		sub := room.Submissions[round.SubmissionIndex]
		doc["track"] = map[string]any{
			"name":        sub.Track.Name,
			"artist":      sub.Track.Artist,
			"artwork_url": sub.Track.ArtworkURL,
			"preview_url": sub.Track.PreviewURL,
		}
		if revealed || !round.EndedAt.IsZero() {
			doc["submitted_by"] = sub.ParticipantID
			doc["is_chameleon"] = sub.IsChameleon
		}
	}
	if revealed {
		votes := make([]map[string]any, 0, len(round.Votes))
		for _, vote := range round.Votes {
			votes = append(votes, map[string]any{
				"voter":     vote.VoterID,
				"guessed":   vote.GuessedID,
				"correct":   vote.Correct,
				"points":    vote.Points,
				"no_answer": vote.NoAnswer,
			})
		}
		doc["vote_detail"] = votes
	}
	return doc
}

func questionDoc(room *Room, question *TriviaQuestionEntry, revealed bool) map[string]any {
	doc := map[string]any{
		"number":   question.Number,
		"kind":     question.Kind,
		"prompt":   question.Prompt,
		"options":  question.Options,
		"asked_at": question.AskedAt,
		"answers":  len(question.Answers),
	}
	if revealed {
		doc["correct_index"] = question.CorrectIndex
		doc["explanation"] = question.Explanation
	}
	return doc
}

func submissionDocs(room *Room) []map[string]any {
	docs := make([]map[string]any, 0, len(room.Submissions))
	for i, sub := range room.Submissions {
		docs = append(docs, map[string]any{
			"index":       i,
			"name":        sub.Track.Name,
			"artist":      sub.Track.Artist,
			"artwork_url": sub.Track.ArtworkURL,
			"owner":       sub.ParticipantID,
		})
	}
	return docs
}
