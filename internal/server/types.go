package server

import "time"

const (
	statusLobby         = "lobby"
	statusSubmitting    = "submitting"
	statusPlayingRound1 = "playing_round_1"
	statusTrivia        = "trivia"
	statusPlayingRound2 = "playing_round_2"
	statusFavourites    = "favourites"
	statusResults       = "results"
)

const (
	questionKindData = "data"
	questionKindFact = "fact"
)

type RoomSummary struct {
	ID           string
	Code         string
	Status       string
	Participants int
}

type Room struct {
	ID              string
	DBID            uint
	Code            string
	Status          string
	StatusChangedAt time.Time
	CurrentRound    int
	CurrentQuestion int
	AwardsApplied   bool
	HostID          int
	Settings        RoomSettings
	AuthTokens      map[int]string
	Participants    []Participant
	IntroLine       string
	OutroLine       string
	Submissions     []SubmissionEntry
	Rounds          []RoundEntry
	TriviaQuestions []TriviaQuestionEntry
	FavouriteVotes  []FavouriteVoteEntry
	PlaylistOrder   []int
}

type Participant struct {
	ID           int
	DBID         uint
	UserID       string
	Name         string
	Score        int
	IsHost       bool
	HasSubmitted bool
	IsSpectator  bool
	JoinedAt     time.Time
}

// Track is the catalogue-facing shape of one song pick.
type Track struct {
	TrackID     string `json:"track_id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	ArtworkURL  string `json:"artwork_url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ReleaseYear int    `json:"release_year,omitempty"`
	DurationMs  int    `json:"duration_ms,omitempty"`
	Popularity  int    `json:"popularity,omitempty"`
}

// TrackPick is one entry of a submission batch as received from a player.
type TrackPick struct {
	Track
	IsChristmas bool `json:"is_christmas,omitempty"`
	IsChameleon bool `json:"is_chameleon,omitempty"`
}

type SubmissionEntry struct {
	DBID          uint
	ParticipantID int
	Position      int
	Track         Track
	IsChristmas   bool
	IsChameleon   bool
	Played        bool
	TriviaFacts   []FactRecord
}

type RoundEntry struct {
	Number          int
	DBID            uint
	SubmissionIndex int
	StartedAt       time.Time
	EndedAt         time.Time
	Votes           []VoteEntry
}

type VoteEntry struct {
	DBID      uint
	VoterID   int
	GuessedID int
	Correct   bool
	Points    int
	NoAnswer  bool
}

type TriviaQuestionEntry struct {
	Number          int
	DBID            uint
	Kind            string
	Prompt          string
	Options         []string
	CorrectIndex    int
	Explanation     string
	SubmissionIndex int
	AskedAt         time.Time
	Answers         []TriviaAnswerEntry
}

type TriviaAnswerEntry struct {
	DBID          uint
	ParticipantID int
	Selected      *int
	Correct       bool
	Points        int
}

type FavouriteVoteEntry struct {
	DBID            uint
	VoterID         int
	SubmissionIndex int
}

// FactRecord is a pre-generated, externally sourced trivia fact about a
// submitted track. Records are validated before use; malformed ones are
// dropped silently.
type FactRecord struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
	Citation string   `json:"citation"`
}
