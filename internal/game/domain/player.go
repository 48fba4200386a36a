package domain

import (
	"strings"
	"time"

	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
	"github.com/Plabrum/trackstar/internal/platform/id"
)

// Player belongs to exactly one session.
//
// Score is signed and can go negative. At most one player per session carries
// IsHost, the record created when host-play is enabled at game start.
type Player struct {
	ID          string
	SessionID   string
	DisplayName string
	Score       float64
	IsHost      bool
	JoinedAt    time.Time
}

// NewPlayer creates a player record for a session.
func NewPlayer(sessionID, displayName string, isHost bool, now func() time.Time, idGenerator func() (string, error)) (Player, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Player{}, apperrors.New(apperrors.CodeNotFound, "session id is required")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Player{}, apperrors.New(apperrors.CodePlayerEmptyDisplayName, "display name is required")
	}

	playerID, err := idGenerator()
	if err != nil {
		return Player{}, apperrors.Wrap(apperrors.CodeUnknown, "generate player id", err)
	}

	return Player{
		ID:          playerID,
		SessionID:   sessionID,
		DisplayName: displayName,
		Score:       0,
		IsHost:      isHost,
		JoinedAt:    now().UTC(),
	}, nil
}
