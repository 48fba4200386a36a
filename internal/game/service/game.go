package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/rules"
	"github.com/Plabrum/trackstar/internal/game/storage"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// StartGame moves a lobby into its first round. Host only.
func (s *Service) StartGame(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var (
		snap  Snapshot
		track domain.Track
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		next, err := machineFor(session).NextState(session.State, rules.EventStart, rules.Params{})
		if err != nil {
			return err
		}

		players, err := tx.ListPlayers(ctx, session.ID)
		if err != nil {
			return err
		}
		nonHost := 0
		for _, player := range players {
			if !player.IsHost {
				nonHost++
			}
		}
		// Host play waives the minimum: the host can run a solo game.
		if !session.AllowHostPlay && nonHost < s.lobby.MinPlayers {
			return apperrors.WithMetadata(
				apperrors.CodeInsufficientPlayers,
				fmt.Sprintf("need at least %d players to start", s.lobby.MinPlayers),
				map[string]string{"PlayerCount": fmt.Sprintf("%d", nonHost)},
			)
		}

		track, err = s.selector(tx).ForStart(ctx, session.PackID, session.Difficulty)
		if err != nil {
			return err
		}

		startedAt := s.now().UTC()
		if err := tx.PutRound(ctx, domain.Round{
			SessionID: session.ID,
			Number:    1,
			TrackID:   track.ID,
			StartedAt: startedAt,
		}); err != nil {
			return err
		}

		session.State = next
		session.CurrentRound = 1
		session.RoundStartedAt = &startedAt
		session.UpdatedAt = startedAt
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.playTrack(ctx, track.ID)
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventRoundStart,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     1,
		TrackID:   track.ID,
	})
	return snap, nil
}

// Reveal transitions playing to reveal when the host shows the answer with
// no buzz or with answers outstanding. Host only.
func (s *Service) Reveal(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		next, err := machineFor(session).NextState(session.State, rules.EventReveal, rules.Params{})
		if err != nil {
			return err
		}

		session.State = next
		session.UpdatedAt = s.now().UTC()
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.pausePlayback(ctx)
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventReveal,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     snap.Session.CurrentRound,
	})
	return snap, nil
}

// AdvanceRound moves reveal to the next round, or finishes the game when
// rounds are exhausted. Host only.
func (s *Service) AdvanceRound(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var (
		snap     Snapshot
		track    domain.Track
		finished bool
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		roundsRemain := session.CurrentRound < session.TotalRounds
		next, err := machineFor(session).NextState(session.State, rules.EventAdvance, rules.Params{RoundsRemain: roundsRemain})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if next == domain.StateFinished {
			finished = true
			session.State = next
			session.RoundStartedAt = nil
			session.UpdatedAt = now
			if err := tx.PutSession(ctx, session); err != nil {
				return err
			}
			snap, err = s.snapshot(ctx, tx, session, actor)
			return err
		}

		used, err := tx.UsedTrackIDs(ctx, session.ID)
		if err != nil {
			return err
		}
		track, err = s.selector(tx).ForAdvance(ctx, session.PackID, session.Difficulty, used)
		if err != nil {
			return err
		}

		number := session.CurrentRound + 1
		if err := tx.PutRound(ctx, domain.Round{
			SessionID: session.ID,
			Number:    number,
			TrackID:   track.ID,
			StartedAt: now,
		}); err != nil {
			return err
		}

		session.State = next
		session.CurrentRound = number
		session.RoundStartedAt = &now
		session.UpdatedAt = now
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	if finished {
		s.pausePlayback(ctx)
		s.publish(ctx, pubsub.Event{
			Type:      pubsub.EventGameEnd,
			SessionID: snap.Session.ID,
			State:     string(snap.Session.State),
			Players:   snap.Players,
		})
		return snap, nil
	}

	s.playTrack(ctx, track.ID)
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventRoundStart,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     snap.Session.CurrentRound,
		TrackID:   track.ID,
	})
	return snap, nil
}

// ResetGame clears a finished session's rounds, answers and scores and
// re-enters round 1 against a new pack. Players are preserved. Host only.
func (s *Service) ResetGame(ctx context.Context, actor Actor, newPackID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	newPackID = strings.TrimSpace(newPackID)
	if newPackID == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeSessionPackRequired, "pack id is required")
	}

	var (
		snap  Snapshot
		track domain.Track
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		next, err := machineFor(session).NextState(session.State, rules.EventReset, rules.Params{})
		if err != nil {
			return err
		}
		if _, err := tx.GetPack(ctx, newPackID); err != nil {
			return mapStorageErr(err)
		}

		if err := tx.DeleteAnswers(ctx, session.ID); err != nil {
			return err
		}
		if err := tx.DeleteRounds(ctx, session.ID); err != nil {
			return err
		}
		if err := tx.ResetScores(ctx, session.ID); err != nil {
			return err
		}

		session.PackID = newPackID
		track, err = s.selector(tx).ForStart(ctx, session.PackID, session.Difficulty)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.PutRound(ctx, domain.Round{
			SessionID: session.ID,
			Number:    1,
			TrackID:   track.ID,
			StartedAt: now,
		}); err != nil {
			return err
		}

		session.State = next
		session.CurrentRound = 1
		session.RoundStartedAt = &now
		session.UpdatedAt = now
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	// The round start alone does not tell subscribers that scores and
	// rounds were wiped; announce the rebuilt session first.
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventStateChange,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Players:   snap.Players,
	})
	s.playTrack(ctx, track.ID)
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventRoundStart,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     1,
		TrackID:   track.ID,
	})
	return snap, nil
}

// EndGame force-finishes the session from any non-terminal state. Host only.
func (s *Service) EndGame(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		next, err := machineFor(session).NextState(session.State, rules.EventEnd, rules.Params{})
		if err != nil {
			return err
		}

		session.State = next
		session.RoundStartedAt = nil
		session.UpdatedAt = s.now().UTC()
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.pausePlayback(ctx)
	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventGameEnd,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Players:   snap.Players,
	})
	return snap, nil
}
