package service

import (
	"context"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/auth"
	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/storage"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// CreateSessionInput configures a new lobby.
type CreateSessionInput struct {
	PackID        string            `json:"pack_id"`
	Mode          domain.Mode       `json:"mode"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	TotalRounds   int               `json:"total_rounds"`
	AllowHostPlay bool              `json:"allow_host_play"`
	HostName      string            `json:"host_name"`
}

// CreateSession opens a lobby and mints the host's credentials. The host
// always gets a player record carrying the host flag; it only competes when
// host play is enabled.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	hostName := strings.TrimSpace(input.HostName)
	if hostName == "" {
		hostName = "Host"
	}

	session, err := domain.NewSession(domain.CreateSessionInput{
		PackID:        input.PackID,
		Mode:          input.Mode,
		Difficulty:    input.Difficulty,
		TotalRounds:   input.TotalRounds,
		AllowHostPlay: input.AllowHostPlay,
	}, s.now, s.newID)
	if err != nil {
		return Credentials{}, err
	}

	host, err := domain.NewPlayer(session.ID, hostName, true, s.now, s.newID)
	if err != nil {
		return Credentials{}, err
	}

	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetPack(ctx, session.PackID); err != nil {
			return mapStorageErr(err)
		}
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}
		return tx.PutPlayer(ctx, host)
	})
	if err != nil {
		return Credentials{}, err
	}

	token, err := auth.Mint(session.ID, host.ID, domain.RoleHost, s.tokens)
	if err != nil {
		return Credentials{}, apperrors.Wrap(apperrors.CodeUnknown, "mint host token", err)
	}

	return Credentials{Session: session, Player: host, Token: token}, nil
}

// JoinSession adds a player to a lobby and mints their credentials.
func (s *Service) JoinSession(ctx context.Context, sessionID, displayName string) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	player, err := domain.NewPlayer(sessionID, displayName, false, s.now, s.newID)
	if err != nil {
		return Credentials{}, err
	}

	var session domain.Session
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		session, err = tx.GetSession(ctx, player.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}
		if session.State != domain.StateLobby {
			return apperrors.New(apperrors.CodeSessionJoinAfterStart, "game already started")
		}

		players, err := tx.ListPlayers(ctx, session.ID)
		if err != nil {
			return err
		}
		nonHost := 0
		for _, existing := range players {
			if strings.EqualFold(existing.DisplayName, player.DisplayName) {
				return apperrors.WithMetadata(apperrors.CodePlayerNameTaken, "display name is taken", map[string]string{"DisplayName": player.DisplayName})
			}
			if !existing.IsHost {
				nonHost++
			}
		}
		if s.lobby.MaxPlayers > 0 && nonHost >= s.lobby.MaxPlayers {
			return apperrors.New(apperrors.CodeSessionFullLobby, "lobby is full")
		}

		return tx.PutPlayer(ctx, player)
	})
	if err != nil {
		return Credentials{}, err
	}

	token, err := auth.Mint(session.ID, player.ID, domain.RolePlayer, s.tokens)
	if err != nil {
		return Credentials{}, apperrors.Wrap(apperrors.CodeUnknown, "mint player token", err)
	}

	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventPlayerJoined,
		SessionID: session.ID,
		State:     string(session.State),
		PlayerID:  player.ID,
	})

	return Credentials{Session: session, Player: player, Token: token}, nil
}

// ListPacks returns the track catalog's packs for lobby setup.
func (s *Service) ListPacks(ctx context.Context) ([]domain.Pack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListPacks(ctx)
}

// GetState returns the derived state fragment for the caller's role.
func (s *Service) GetState(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	session, err := s.store.GetSession(ctx, actor.SessionID)
	if err != nil {
		return Snapshot{}, mapStorageErr(err)
	}
	return s.snapshot(ctx, s.store, session, actor)
}
