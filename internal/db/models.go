package db

import (
	"time"

	"gorm.io/datatypes"
)

type Room struct {
	ID              uint           `gorm:"primaryKey"`
	Code            string         `gorm:"size:12;uniqueIndex;not null"`
	Status          string         `gorm:"size:32;not null"`
	CurrentRound    int            `gorm:"not null;default:0"`
	Settings        datatypes.JSON `gorm:"type:jsonb;not null"`
	PlaylistSummary datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
	Participants    []Participant
	QuizRounds      []QuizRound
	TriviaQuestions []TriviaQuestion
	FavouriteVotes  []FavouriteVote
	Events          []Event
}

type Participant struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       uint      `gorm:"index;not null;uniqueIndex:idx_participants_room_user"`
	UserID       string    `gorm:"size:64;not null;uniqueIndex:idx_participants_room_user"`
	DisplayName  string    `gorm:"size:64;not null"`
	Score        int       `gorm:"not null;default:0"`
	IsHost       bool      `gorm:"not null;default:false"`
	HasSubmitted bool      `gorm:"not null;default:false"`
	IsSpectator  bool      `gorm:"not null;default:false"`
	JoinedAt     time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Submissions  []Submission
}

type Submission struct {
	ID            uint   `gorm:"primaryKey"`
	RoomID        uint   `gorm:"index;not null"`
	ParticipantID uint   `gorm:"index;not null;uniqueIndex:idx_submissions_participant_position"`
	Position      int    `gorm:"not null;uniqueIndex:idx_submissions_participant_position"`
	TrackID       string `gorm:"size:64;not null;index"`
	Name          string `gorm:"size:256;not null"`
	Artist        string `gorm:"size:256;not null"`
	Album         string `gorm:"size:256"`
	ArtworkURL    string `gorm:"size:512"`
	PreviewURL    string `gorm:"size:512"`
	ReleaseYear   int
	DurationMs    int
	Popularity    int
	IsChristmas   bool           `gorm:"not null;default:false"`
	IsChameleon   bool           `gorm:"not null;default:false"`
	Played        bool           `gorm:"not null;default:false"`
	TriviaFacts   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

type QuizRound struct {
	ID           uint `gorm:"primaryKey"`
	RoomID       uint `gorm:"index;not null;uniqueIndex:idx_quiz_rounds_room_number"`
	Number       int  `gorm:"not null;uniqueIndex:idx_quiz_rounds_room_number"`
	SubmissionID uint `gorm:"index;not null"`
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	Votes        []Vote
}

type Vote struct {
	ID                   uint      `gorm:"primaryKey"`
	QuizRoundID          uint      `gorm:"index;not null;uniqueIndex:idx_votes_round_voter"`
	VoterID              uint      `gorm:"index;not null;uniqueIndex:idx_votes_round_voter"`
	GuessedParticipantID *uint     `gorm:"index"`
	Correct              bool      `gorm:"not null;default:false"`
	Points               int       `gorm:"not null;default:0"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

type TriviaQuestion struct {
	ID           uint           `gorm:"primaryKey"`
	RoomID       uint           `gorm:"index;not null;uniqueIndex:idx_trivia_questions_room_number"`
	Number       int            `gorm:"not null;uniqueIndex:idx_trivia_questions_room_number"`
	Kind         string         `gorm:"size:16;not null"`
	Prompt       string         `gorm:"size:512;not null"`
	Options      datatypes.JSON `gorm:"type:jsonb;not null"`
	CorrectIndex int            `gorm:"not null"`
	Explanation  string         `gorm:"size:512"`
	SubmissionID *uint          `gorm:"index"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
	Answers      []TriviaAnswer
}

type TriviaAnswer struct {
	ID            uint `gorm:"primaryKey"`
	QuestionID    uint `gorm:"index;not null;uniqueIndex:idx_trivia_answers_question_participant"`
	ParticipantID uint `gorm:"index;not null;uniqueIndex:idx_trivia_answers_question_participant"`
	SelectedIndex *int
	Correct       bool      `gorm:"not null;default:false"`
	Points        int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type FavouriteVote struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       uint      `gorm:"index;not null;uniqueIndex:idx_favourite_votes_room_voter_submission"`
	VoterID      uint      `gorm:"index;not null;uniqueIndex:idx_favourite_votes_room_voter_submission"`
	SubmissionID uint      `gorm:"index;not null;uniqueIndex:idx_favourite_votes_room_voter_submission"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Event struct {
	ID            uint           `gorm:"primaryKey"`
	RoomID        uint           `gorm:"index;not null"`
	ParticipantID *uint          `gorm:"index"`
	Type          string         `gorm:"size:64;not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"not null"`
}
