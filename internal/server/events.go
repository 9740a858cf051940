package server

type EventPayload struct {
	RoomID          string `json:"room_id,omitempty"`
	Code            string `json:"code,omitempty"`
	ParticipantName string `json:"participant,omitempty"`
	ParticipantID   int    `json:"participant_id,omitempty"`
	RoundNumber     int    `json:"round_number,omitempty"`
	QuestionNumber  int    `json:"question_number,omitempty"`
	Status          string `json:"status,omitempty"`
	Reason          string `json:"reason,omitempty"`
	TrackName       string `json:"track,omitempty"`
	Count           int    `json:"count,omitempty"`
	Correct         bool   `json:"correct,omitempty"`
	Points          int    `json:"points,omitempty"`
}
