// Package storage defines the persistence collaborator contract for the
// session orchestrator.
//
// Implementations must provide transactional multi-row writes and an atomic
// "update if still null" primitive for buzz arbitration; the orchestrator
// never compensates for partial writes.
package storage

import (
	"context"
	"errors"

	"github.com/Plabrum/trackstar/internal/game/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrBuzzTaken indicates a conditional buzz write lost the race: the round
// already has a buzzer. Expected under concurrency, not a system fault.
var ErrBuzzTaken = errors.New("round already has a buzzer")

// ErrDuplicateAnswer indicates a player already answered this round.
var ErrDuplicateAnswer = errors.New("answer already submitted for this round")

// SessionStore persists session records.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// PlayerStore persists player records and scores.
type PlayerStore interface {
	PutPlayer(ctx context.Context, player domain.Player) error
	GetPlayer(ctx context.Context, sessionID, playerID string) (domain.Player, error)
	ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error)
	// AddPlayerScore adjusts a player's score by delta, which may be negative.
	AddPlayerScore(ctx context.Context, sessionID, playerID string, delta float64) error
	// ResetScores zeroes every player score for the session.
	ResetScores(ctx context.Context, sessionID string) error
}

// RoundStore persists round records.
type RoundStore interface {
	PutRound(ctx context.Context, round domain.Round) error
	GetRound(ctx context.Context, sessionID string, number int) (domain.Round, error)
	ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error)
	// ClaimBuzz assigns the round's buzzer in a single conditional write.
	// It returns ErrBuzzTaken when the buzzer field is already set and
	// ErrNotFound when the round does not exist.
	ClaimBuzz(ctx context.Context, sessionID string, number int, playerID string, elapsedSeconds float64) error
	// SetRoundVerdict records the host's judgment for a buzzed round.
	SetRoundVerdict(ctx context.Context, sessionID string, number int, verdict bool, points float64) error
	// UsedTrackIDs returns every track id already played in the session.
	UsedTrackIDs(ctx context.Context, sessionID string) ([]string, error)
	DeleteRounds(ctx context.Context, sessionID string) error
}

// AnswerStore persists simultaneous-submission answers.
type AnswerStore interface {
	// InsertAnswer creates the answer row, returning ErrDuplicateAnswer when
	// the (session, round, player) row already exists.
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswers(ctx context.Context, sessionID string, round int) ([]domain.Answer, error)
	CountAnswers(ctx context.Context, sessionID string, round int) (int, error)
	// FinalizeAnswer records the effective verdict and points, and flips the
	// applied flag guarding score application.
	FinalizeAnswer(ctx context.Context, sessionID string, round int, playerID string, verdict bool, points float64) error
	DeleteAnswers(ctx context.Context, sessionID string) error
}

// CatalogStore persists the static pack/track catalog.
type CatalogStore interface {
	PutPack(ctx context.Context, pack domain.Pack) error
	GetPack(ctx context.Context, packID string) (domain.Pack, error)
	ListPacks(ctx context.Context) ([]domain.Pack, error)
	PutTrack(ctx context.Context, track domain.Track) error
	GetTrack(ctx context.Context, trackID string) (domain.Track, error)
	// ListTracksInBand returns the pack's tracks whose popularity falls in
	// [minPopularity, maxPopularity], excluding the given track ids.
	ListTracksInBand(ctx context.Context, packID string, minPopularity, maxPopularity int, excludeIDs []string) ([]domain.Track, error)
}

// Store is the full persistence surface the orchestrator depends on.
type Store interface {
	SessionStore
	PlayerStore
	RoundStore
	AnswerStore
	CatalogStore

	// InTx runs fn against a transactional view of the store. A non-nil
	// error from fn rolls back every write fn performed.
	InTx(ctx context.Context, fn func(Store) error) error
}
