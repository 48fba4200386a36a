package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
)

// InsertAnswer creates the answer row. The primary key on
// (session_id, round_number, player_id) makes submissions first-write-wins;
// a duplicate insert returns storage.ErrDuplicateAnswer.
func (s *Store) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	sessionID := strings.TrimSpace(answer.SessionID)
	playerID := strings.TrimSpace(answer.PlayerID)
	if sessionID == "" || playerID == "" {
		return fmt.Errorf("session id and player id are required")
	}
	if answer.RoundNumber < 1 {
		return fmt.Errorf("round number must be positive")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO answers (session_id, round_number, player_id, text, auto_verdict, final_verdict, points, elapsed_seconds, applied, submitted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		sessionID,
		answer.RoundNumber,
		playerID,
		answer.Text,
		boolToInt(answer.AutoVerdict),
		toNullBool(answer.FinalVerdict),
		answer.Points,
		answer.ElapsedSeconds,
		boolToInt(answer.Applied),
		toMillis(answer.SubmittedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateAnswer
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// ListAnswers returns every answer of the round in submission order.
func (s *Store) ListAnswers(ctx context.Context, sessionID string, round int) ([]domain.Answer, error) {
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
SELECT session_id, round_number, player_id, text, auto_verdict, final_verdict, points, elapsed_seconds, applied, submitted_at
FROM answers
WHERE session_id = ? AND round_number = ?
ORDER BY submitted_at ASC, player_id ASC
`, sessionID, round)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var (
			answer       domain.Answer
			autoVerdict  int64
			finalVerdict sql.NullInt64
			applied      int64
			submittedAt  int64
		)
		err := rows.Scan(
			&answer.SessionID,
			&answer.RoundNumber,
			&answer.PlayerID,
			&answer.Text,
			&autoVerdict,
			&finalVerdict,
			&answer.Points,
			&answer.ElapsedSeconds,
			&applied,
			&submittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answer.AutoVerdict = autoVerdict != 0
		answer.FinalVerdict = fromNullBool(finalVerdict)
		answer.Applied = applied != 0
		answer.SubmittedAt = fromMillis(submittedAt)
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// CountAnswers returns how many players have answered the round.
func (s *Store) CountAnswers(ctx context.Context, sessionID string, round int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, fmt.Errorf("session id is required")
	}

	var count int
	row := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers WHERE session_id = ? AND round_number = ?`, sessionID, round)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}

// FinalizeAnswer records the effective verdict and points and flips the
// applied flag. Rows already applied are left untouched so retried
// finalization never double-counts points.
func (s *Store) FinalizeAnswer(ctx context.Context, sessionID string, round int, playerID string, verdict bool, points float64) error {
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
UPDATE answers
SET final_verdict = ?, points = ?, applied = 1
WHERE session_id = ? AND round_number = ? AND player_id = ? AND applied = 0
`, boolToInt(verdict), points, sessionID, round, playerID)
	if err != nil {
		return fmt.Errorf("finalize answer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize answer rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteAnswers removes every answer of the session.
func (s *Store) DeleteAnswers(ctx context.Context, sessionID string) error {
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

	if _, err := s.q.ExecContext(ctx, `DELETE FROM answers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	return nil
}
