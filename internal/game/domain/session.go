package domain

import (
	"strings"
	"time"

	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
	"github.com/Plabrum/trackstar/internal/platform/id"
)

// SessionState describes the lifecycle state of a game session.
type SessionState string

const (
	// StateLobby is the pre-game state where players join.
	StateLobby SessionState = "lobby"
	// StatePlaying indicates a round's track is playing.
	StatePlaying SessionState = "playing"
	// StateBuzzed indicates a player won the buzz race (buzz-race mode only).
	StateBuzzed SessionState = "buzzed"
	// StateSubmitted indicates every eligible player answered (submission mode only).
	StateSubmitted SessionState = "submitted"
	// StateReveal indicates the round outcome is shown before advancing.
	StateReveal SessionState = "reveal"
	// StateFinished is the terminal state.
	StateFinished SessionState = "finished"
)

// Valid reports whether the state is a known lifecycle state.
func (s SessionState) Valid() bool {
	switch s {
	case StateLobby, StatePlaying, StateBuzzed, StateSubmitted, StateReveal, StateFinished:
		return true
	}
	return false
}

// Terminal reports whether the state accepts no further gameplay events.
func (s SessionState) Terminal() bool {
	return s == StateFinished
}

// Mode selects which round lifecycle variant a session runs.
type Mode string

const (
	// ModeBuzz is the buzz-race mode: first player to signal answers aloud.
	ModeBuzz Mode = "buzz"
	// ModeSubmission is the simultaneous-submission mode: every player
	// answers in free text before any verdict is shown.
	ModeSubmission Mode = "submission"
)

// Valid reports whether the mode is known.
func (m Mode) Valid() bool {
	return m == ModeBuzz || m == ModeSubmission
}

// Role identifies who is issuing a command against a session.
type Role string

const (
	// RoleHost controls playback, judging, and lifecycle transitions.
	RoleHost Role = "host"
	// RolePlayer buzzes in or submits answers.
	RolePlayer Role = "player"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleHost || r == RolePlayer
}

// Difficulty is a named popularity band used to bias track selection.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyHard      Difficulty = "hard"
	DifficultyLegendary Difficulty = "legendary"
)

// Valid reports whether the difficulty is known.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyLegendary:
		return true
	}
	return false
}

// Session is one game instance from lobby to finished.
//
// CurrentRound is monotonically non-decreasing and never exceeds TotalRounds
// except in the finished state. RoundStartedAt is the persisted authority for
// elapsed-time computation; playback device timing is advisory only.
type Session struct {
	ID             string
	PackID         string
	State          SessionState
	Mode           Mode
	Difficulty     Difficulty
	CurrentRound   int
	TotalRounds    int
	AllowHostPlay  bool
	RoundStartedAt *time.Time // nil outside of an active round
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateSessionInput describes the configuration needed to open a lobby.
type CreateSessionInput struct {
	PackID        string
	Mode          Mode
	Difficulty    Difficulty
	TotalRounds   int
	AllowHostPlay bool
}

// NewSession creates a lobby-state session with a generated ID and timestamps.
func NewSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.PackID = strings.TrimSpace(input.PackID)
	if input.PackID == "" {
		return Session{}, apperrors.New(apperrors.CodeSessionPackRequired, "pack id is required")
	}
	if !input.Mode.Valid() {
		return Session{}, apperrors.WithMetadata(apperrors.CodeSessionInvalidMode, "unknown game mode", map[string]string{"Mode": string(input.Mode)})
	}
	if !input.Difficulty.Valid() {
		return Session{}, apperrors.WithMetadata(apperrors.CodeSessionInvalidBand, "unknown difficulty", map[string]string{"Difficulty": string(input.Difficulty)})
	}
	if input.TotalRounds < 1 {
		return Session{}, apperrors.New(apperrors.CodeSessionInvalidRounds, "total rounds must be at least 1")
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:            sessionID,
		PackID:        input.PackID,
		State:         StateLobby,
		Mode:          input.Mode,
		Difficulty:    input.Difficulty,
		CurrentRound:  0,
		TotalRounds:   input.TotalRounds,
		AllowHostPlay: input.AllowHostPlay,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}
