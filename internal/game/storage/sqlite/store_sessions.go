package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
)

// PutSession creates or replaces the session row.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID := strings.TrimSpace(session.ID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO sessions (id, pack_id, state, mode, difficulty, current_round, total_rounds, allow_host_play, round_started_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    pack_id = excluded.pack_id,
    state = excluded.state,
    mode = excluded.mode,
    difficulty = excluded.difficulty,
    current_round = excluded.current_round,
    total_rounds = excluded.total_rounds,
    allow_host_play = excluded.allow_host_play,
    round_started_at = excluded.round_started_at,
    updated_at = excluded.updated_at
`,
		sessionID,
		session.PackID,
		string(session.State),
		string(session.Mode),
		string(session.Difficulty),
		session.CurrentRound,
		session.TotalRounds,
		boolToInt(session.AllowHostPlay),
		toNullMillis(session.RoundStartedAt),
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads a session by id, returning storage.ErrNotFound when absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, pack_id, state, mode, difficulty, current_round, total_rounds, allow_host_play, round_started_at, created_at, updated_at
FROM sessions
WHERE id = ?
`, sessionID)

	var (
		session        domain.Session
		state          string
		mode           string
		difficulty     string
		allowHostPlay  int64
		roundStartedAt sql.NullInt64
		createdAt      int64
		updatedAt      int64
	)
	err := row.Scan(
		&session.ID,
		&session.PackID,
		&state,
		&mode,
		&difficulty,
		&session.CurrentRound,
		&session.TotalRounds,
		&allowHostPlay,
		&roundStartedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	session.State = domain.SessionState(state)
	session.Mode = domain.Mode(mode)
	session.Difficulty = domain.Difficulty(difficulty)
	session.AllowHostPlay = allowHostPlay != 0
	session.RoundStartedAt = fromNullMillis(roundStartedAt)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
