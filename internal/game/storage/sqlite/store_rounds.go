package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
)

// PutRound creates or replaces the round row.
func (s *Store) PutRound(ctx context.Context, round domain.Round) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID := strings.TrimSpace(round.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if round.Number < 1 {
		return fmt.Errorf("round number must be positive")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO rounds (session_id, number, track_id, buzzed_player_id, verdict, points, elapsed_seconds, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, number) DO UPDATE SET
    track_id = excluded.track_id,
    buzzed_player_id = excluded.buzzed_player_id,
    verdict = excluded.verdict,
    points = excluded.points,
    elapsed_seconds = excluded.elapsed_seconds,
    started_at = excluded.started_at
`,
		sessionID,
		round.Number,
		round.TrackID,
		toNullString(round.BuzzedPlayerID),
		toNullBool(round.Verdict),
		toNullFloat(round.Points),
		toNullFloat(round.ElapsedSeconds),
		toMillis(round.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("put round: %w", err)
	}
	return nil
}

// GetRound loads one round, returning storage.ErrNotFound when absent.
func (s *Store) GetRound(ctx context.Context, sessionID string, number int) (domain.Round, error) {
	if err := ctx.Err(); err != nil {
		return domain.Round{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Round{}, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Round{}, fmt.Errorf("session id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT session_id, number, track_id, buzzed_player_id, verdict, points, elapsed_seconds, started_at
FROM rounds
WHERE session_id = ? AND number = ?
`, sessionID, number)

	round, err := scanRound(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Round{}, storage.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("get round: %w", err)
	}
	return round, nil
}

// ListRounds returns every round of the session in play order.
func (s *Store) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT session_id, number, track_id, buzzed_player_id, verdict, points, elapsed_seconds, started_at
FROM rounds
WHERE session_id = ?
ORDER BY number ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

// ClaimBuzz assigns the round's buzzer in a single conditional write so that
// exactly one concurrent caller wins.
func (s *Store) ClaimBuzz(ctx context.Context, sessionID string, number int, playerID string, elapsedSeconds float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID = strings.TrimSpace(sessionID)
	playerID = strings.TrimSpace(playerID)
	if sessionID == "" || playerID == "" {
		return fmt.Errorf("session id and player id are required")
	}

	result, err := s.q.ExecContext(ctx, `
UPDATE rounds
SET buzzed_player_id = ?, elapsed_seconds = ?
WHERE session_id = ? AND number = ? AND buzzed_player_id IS NULL
`, playerID, elapsedSeconds, sessionID, number)
	if err != nil {
		return fmt.Errorf("claim buzz: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim buzz rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows means either a lost race or a missing round.
	var found int
	row := s.q.QueryRowContext(ctx, `SELECT 1 FROM rounds WHERE session_id = ? AND number = ?`, sessionID, number)
	if err := row.Scan(&found); err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check round: %w", err)
	}
	return storage.ErrBuzzTaken
}

// SetRoundVerdict records the host's judgment for a buzzed round.
func (s *Store) SetRoundVerdict(ctx context.Context, sessionID string, number int, verdict bool, points float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	result, err := s.q.ExecContext(ctx, `
UPDATE rounds SET verdict = ?, points = ? WHERE session_id = ? AND number = ?
`, boolToInt(verdict), points, sessionID, number)
	if err != nil {
		return fmt.Errorf("set round verdict: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set round verdict rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UsedTrackIDs returns every track id already played in the session.
func (s *Store) UsedTrackIDs(ctx context.Context, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.q.QueryContext(ctx, `SELECT track_id FROM rounds WHERE session_id = ? ORDER BY number ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list used track ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track ids: %w", err)
	}
	return ids, nil
}

// DeleteRounds removes every round of the session.
func (s *Store) DeleteRounds(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM rounds WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete rounds: %w", err)
	}
	return nil
}

func scanRound(row rowScanner) (domain.Round, error) {
	var (
		round          domain.Round
		buzzedPlayerID sql.NullString
		verdict        sql.NullInt64
		points         sql.NullFloat64
		elapsedSeconds sql.NullFloat64
		startedAt      int64
	)
	err := row.Scan(
		&round.SessionID,
		&round.Number,
		&round.TrackID,
		&buzzedPlayerID,
		&verdict,
		&points,
		&elapsedSeconds,
		&startedAt,
	)
	if err != nil {
		return domain.Round{}, err
	}
	round.BuzzedPlayerID = fromNullString(buzzedPlayerID)
	round.Verdict = fromNullBool(verdict)
	round.Points = fromNullFloat(points)
	round.ElapsedSeconds = fromNullFloat(elapsedSeconds)
	round.StartedAt = fromMillis(startedAt)
	return round, nil
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func toNullBool(value *bool) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: boolToInt(*value), Valid: true}
}

func fromNullBool(value sql.NullInt64) *bool {
	if !value.Valid {
		return nil
	}
	v := value.Int64 != 0
	return &v
}

func toNullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func fromNullFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
