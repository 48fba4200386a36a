package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
)

// PutPlayer creates or replaces the player row.
func (s *Store) PutPlayer(ctx context.Context, player domain.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	playerID := strings.TrimSpace(player.ID)
	sessionID := strings.TrimSpace(player.SessionID)
	if playerID == "" {
		return fmt.Errorf("player id is required")
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO players (id, session_id, display_name, score, is_host, joined_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, id) DO UPDATE SET
    display_name = excluded.display_name,
    score = excluded.score,
    is_host = excluded.is_host
`,
		playerID,
		sessionID,
		player.DisplayName,
		player.Score,
		boolToInt(player.IsHost),
		toMillis(player.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("put player: %w", err)
	}
	return nil
}

// GetPlayer loads one player in a session, returning storage.ErrNotFound when
// absent.
func (s *Store) GetPlayer(ctx context.Context, sessionID, playerID string) (domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return domain.Player{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Player{}, err
	}

	sessionID = strings.TrimSpace(sessionID)
	playerID = strings.TrimSpace(playerID)
	if sessionID == "" || playerID == "" {
		return domain.Player{}, fmt.Errorf("session id and player id are required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, session_id, display_name, score, is_host, joined_at
FROM players
WHERE session_id = ? AND id = ?
`, sessionID, playerID)

	player, err := scanPlayer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Player{}, storage.ErrNotFound
		}
		return domain.Player{}, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

// ListPlayers returns the session roster in join order.
func (s *Store) ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error) {
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
SELECT id, session_id, display_name, score, is_host, joined_at
FROM players
WHERE session_id = ?
ORDER BY joined_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return players, nil
}

// AddPlayerScore adjusts a player's score by delta, which may be negative.
func (s *Store) AddPlayerScore(ctx context.Context, sessionID, playerID string, delta float64) error {
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
UPDATE players SET score = score + ? WHERE session_id = ? AND id = ?
`, delta, sessionID, playerID)
	if err != nil {
		return fmt.Errorf("add player score: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add player score rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ResetScores zeroes every player score for the session.
func (s *Store) ResetScores(ctx context.Context, sessionID string) error {
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

	if _, err := s.q.ExecContext(ctx, `UPDATE players SET score = 0 WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (domain.Player, error) {
	var (
		player   domain.Player
		isHost   int64
		joinedAt int64
	)
	err := row.Scan(
		&player.ID,
		&player.SessionID,
		&player.DisplayName,
		&player.Score,
		&isHost,
		&joinedAt,
	)
	if err != nil {
		return domain.Player{}, err
	}
	player.IsHost = isHost != 0
	player.JoinedAt = fromMillis(joinedAt)
	return player, nil
}
