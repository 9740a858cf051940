package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"song-sleuth/internal/db"
)

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings *RoomSettings `json:"settings"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := readJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	settings := defaultSettings(s.cfg)
	if req.Settings != nil {
		settings = *req.Settings
	}
	if err := validateSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room := s.store.CreateRoom(settings)
	room.IntroLine = staticIntroLine(room)
	logPersistError("room", s.persistRoom(room))
	if s.narrative.configured() {
		go s.refreshIntroLine(room.ID, 0)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   room.ID,
		"code": room.Code,
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListRoomSummaries())
}

func (s *Server) handleCatalogueSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	tracks, err := s.catalogue.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalogue search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// handleRoomSubroutes dispatches /api/rooms/{idOrCode}[/action].
func (s *Server) handleRoomSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	room, ok := s.store.GetRoom(segments[0])
	if !ok {
		code, err := validateRoomCode(segments[0])
		if err == nil {
			room, ok = s.store.FindRoomByCode(code)
		}
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	action := ""
	if len(segments) > 1 {
		action = strings.Join(segments[1:], "/")
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		room, _ = s.store.UpdateRoom(room.ID, func(room *Room) error { return nil })
		writeJSON(w, http.StatusOK, s.snapshot(room))
	case r.Method == http.MethodDelete && action == "":
		s.handleDeleteRoom(w, r, room)
	case r.Method == http.MethodPost && action == "join":
		s.handleJoin(w, r, room)
	case r.Method == http.MethodPost && action == "settings":
		s.handleUpdateSettings(w, r, room)
	case r.Method == http.MethodPost && action == "advance":
		s.handleAdvance(w, r, room)
	case r.Method == http.MethodPost && action == "reset":
		s.handleReset(w, r, room)
	case r.Method == http.MethodPost && action == "submissions":
		s.handleSubmitTracks(w, r, room)
	case r.Method == http.MethodPost && action == "votes":
		s.handleCastVote(w, r, room)
	case r.Method == http.MethodPost && action == "trivia/generate":
		s.handleGenerateTrivia(w, r, room)
	case r.Method == http.MethodPost && action == "trivia/answers":
		s.handleTriviaAnswer(w, r, room)
	case r.Method == http.MethodPost && action == "favourites":
		s.handleFavourites(w, r, room)
	case r.Method == http.MethodGet && action == "playlist":
		s.handlePlaylist(w, r, room)
	case r.Method == http.MethodPost && action == "reconcile":
		s.handleReconcile(w, r, room)
	case r.Method == http.MethodPost && action == "participants/remove":
		s.handleRemoveParticipant(w, r, room)
	default:
		http.NotFound(w, r)
	}
}

type authedRequest struct {
	ParticipantID int    `json:"participant_id"`
	Token         string `json:"token"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		UserID    string `json:"user_id"`
		Name      string `json:"name"`
		Spectator bool   `json:"spectator"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validateName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := resolveUserID(req.UserID)
	room, participant, err := s.store.AddParticipant(room.ID, userID, name, req.Spectator)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	token := issueAuthToken(room, participant.ID)
	logPersistError("participant", s.persistParticipant(room, participant))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"participant_id": participant.ID,
		"user_id":        userID,
		"token":          token,
		"is_host":        participant.IsHost,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		Settings RoomSettings `json:"settings"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateSettings(req.Settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		if room.Status != statusLobby {
			return errors.New("settings are locked once the game starts")
		}
		room.Settings = req.Settings
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("settings", s.persistSettings(room))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, s.snapshot(room))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, room *Room) {
	var req authedRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Leaving the submitting phase is the one moment ordering depends on
	// catalogue metadata, so backfill it before taking the transition.
	if room.Status == statusSubmitting {
		s.enrichRoomSubmissions(room.ID)
	}

	now := time.Now().UTC()
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		_, err := s.advanceStatus(room, transitionManual, now)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("status", s.persistStatus(room, "status_advanced", EventPayload{
		Status:        room.Status,
		ParticipantID: req.ParticipantID,
	}))
	// Freshly built rounds get one shot at an external reorder. The call
	// runs outside the store lock and stands down if voting has started.
	if room.Status == statusPlayingRound1 && room.CurrentRound == 1 {
		if refined, ok := s.refineRoundOrder(room.ID); ok {
			room = refined
		}
	}
	if room.Status == statusResults {
		room, _ = s.store.UpdateRoom(room.ID, func(room *Room) error {
			if room.OutroLine == "" {
				room.OutroLine = staticOutroLine(room)
			}
			return nil
		})
		if s.narrative.configured() {
			leaderName := ""
			if entries := leaderboard(room); len(entries) > 0 {
				leaderName = entries[0].Name
			}
			go s.refreshOutroLine(room.ID, leaderName)
		}
	}
	s.schedulePhaseTimer(room)
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, s.snapshot(room))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, room *Room) {
	var req authedRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := time.Now().UTC()
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		s.resetToLobby(room, now)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.cancelPhaseTimer(room.ID)
	logPersistError("reset", s.persistReset(room))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, s.snapshot(room))
}

func (s *Server) handleSubmitTracks(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		Tracks []TrackPick `json:"tracks"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sanitizePicks(req.Tracks); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now().UTC()
	var participant *Participant
	var entries []SubmissionEntry
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		var err error
		participant, err = authParticipant(room, req.ParticipantID, req.Token)
		if err != nil {
			return err
		}
		if err := validateSubmissionBatch(room, participant, req.Tracks, now); err != nil {
			return err
		}
		entries = acceptSubmissionBatch(room, participant, req.Tracks)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("submissions", s.persistSubmissions(room, participant, entries))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":      len(entries),
		"has_submitted": true,
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		GuessedParticipantID int `json:"guessed_participant_id"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var vote *VoteEntry
	var round *RoundEntry
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if _, err := authParticipant(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		var err error
		vote, err = castGuessVote(room, req.ParticipantID, req.GuessedParticipantID)
		if err != nil {
			return err
		}
		round = currentRound(room)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("vote", s.persistVote(room, round, vote))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"correct": vote.Correct,
		"points":  vote.Points,
	})
}

func (s *Server) handleGenerateTrivia(w http.ResponseWriter, r *http.Request, room *Room) {
	var req authedRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created := false
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		created = s.ensureTriviaQuestions(room)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated": created,
		"count":     len(room.TriviaQuestions),
	})
}

func (s *Server) handleTriviaAnswer(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		QuestionNumber int  `json:"question_number"`
		Selected       *int `json:"selected"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := time.Now().UTC()
	var answer *TriviaAnswerEntry
	var question *TriviaQuestionEntry
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if _, err := authParticipant(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		var err error
		answer, err = gradeTriviaAnswer(room, req.ParticipantID, req.QuestionNumber, req.Selected, now)
		if err != nil {
			return err
		}
		question = currentQuestion(room)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("trivia answer", s.persistTriviaAnswer(room, question, answer))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"correct": answer.Correct,
		"points":  answer.Points,
	})
}

func (s *Server) handleFavourites(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		SubmissionIndexes []int `json:"submission_indexes"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var entries []FavouriteVoteEntry
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if _, err := authParticipant(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		var err error
		entries, err = castFavouriteVotes(room, req.ParticipantID, req.SubmissionIndexes)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	logPersistError("favourites", s.persistFavouriteVotes(room, req.ParticipantID, entries))
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": len(entries),
	})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request, room *Room) {
	tracks, err := s.playlistTracks(room.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":   room.Code,
		"tracks": tracks,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, room *Room) {
	var req authedRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var changed []int
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		changed = reconcileSubmittedFlags(room)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if s.db != nil && room.DBID != 0 {
		if _, err := db.ReconcileSubmittedFlags(s.db, room.DBID, room.Settings.SongsRequired); err != nil {
			logPersistError("reconcile", err)
		}
	}
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
	})
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request, room *Room) {
	var req struct {
		authedRequest
		TargetID int `json:"target_id"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var removedDBID uint
	room, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		if err := requireHost(room, req.ParticipantID, req.Token); err != nil {
			return err
		}
		if req.TargetID == room.HostID {
			return errors.New("the host cannot be removed")
		}
		if room.Status != statusLobby && room.Status != statusSubmitting {
			return errors.New("players can only be removed before the rounds start")
		}
		for i := range room.Participants {
			if room.Participants[i].ID != req.TargetID {
				continue
			}
			removedDBID = room.Participants[i].DBID
			room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
			removeParticipantState(room, req.TargetID)
			delete(room.AuthTokens, req.TargetID)
			return nil
		}
		return errors.New("participant not found")
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if s.db != nil && removedDBID != 0 {
		logPersistError("remove participant", db.RemoveParticipant(s.db, room.DBID, removedDBID))
	}
	s.broadcastRoom(room)
	writeJSON(w, http.StatusOK, s.snapshot(room))
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request, room *Room) {
	var req authedRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.store.UpdateRoom(room.ID, func(room *Room) error {
		return requireHost(room, req.ParticipantID, req.Token)
	}); err != nil {
		writeFailure(w, err)
		return
	}
	s.cancelPhaseTimer(room.ID)
	logPersistError("delete room", s.persistDelete(room))
	s.store.RemoveRoom(room.ID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
