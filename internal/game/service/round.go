package service

import (
	"context"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/match"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/rules"
	"github.com/Plabrum/trackstar/internal/game/storage"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// Buzz claims the current round for the caller. Exactly one concurrent
// caller wins; losers get an already-buzzed error, never overwritten state.
func (s *Service) Buzz(ctx context.Context, actor Actor) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}
		if session.Mode != domain.ModeBuzz {
			return apperrors.New(apperrors.CodeSessionWrongMode, "session does not run buzz rounds")
		}
		if err := requireContestant(actor, session); err != nil {
			return err
		}

		next, err := machineFor(session).NextState(session.State, rules.EventBuzz, rules.Params{})
		if err != nil {
			// A race loser whose rival's buzz already committed observes
			// the buzzed state here, before the conditional claim runs.
			if session.State == domain.StateBuzzed {
				return apperrors.New(apperrors.CodeAlreadyBuzzed, "another player already buzzed")
			}
			return err
		}

		elapsed := s.elapsedSince(session.RoundStartedAt)
		if err := tx.ClaimBuzz(ctx, session.ID, session.CurrentRound, actor.PlayerID, elapsed); err != nil {
			return mapStorageErr(err)
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
		Type:      pubsub.EventBuzz,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     snap.Session.CurrentRound,
		PlayerID:  actor.PlayerID,
	})
	return snap, nil
}

// JudgeAnswer records the host's verdict for the buzzed player, awards
// points from the stored buzz elapsed time, and moves to reveal. Host only.
func (s *Service) JudgeAnswer(ctx context.Context, actor Actor, correct bool) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var (
		snap     Snapshot
		buzzerID string
		points   float64
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}

		next, err := machineFor(session).NextState(session.State, rules.EventJudge, rules.Params{})
		if err != nil {
			return err
		}

		round, err := tx.GetRound(ctx, session.ID, session.CurrentRound)
		if err != nil {
			return mapStorageErr(err)
		}
		if round.BuzzedPlayerID == nil {
			return apperrors.New(apperrors.CodeInvalidState, "round has no buzzed player to judge")
		}
		buzzerID = *round.BuzzedPlayerID

		elapsed := 0.0
		if round.ElapsedSeconds != nil {
			elapsed = *round.ElapsedSeconds
		}
		points = s.scoring.Points(elapsed, correct)

		if err := tx.AddPlayerScore(ctx, session.ID, buzzerID, points); err != nil {
			return mapStorageErr(err)
		}
		if err := tx.SetRoundVerdict(ctx, session.ID, round.Number, correct, points); err != nil {
			return mapStorageErr(err)
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

	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventRoundResult,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     snap.Session.CurrentRound,
		PlayerID:  buzzerID,
		Verdict:   &correct,
		Points:    &points,
	})
	return snap, nil
}

// SubmitAnswer records a player's answer in simultaneous-submission mode.
// The fuzzy matcher produces an automatic verdict against the track artist;
// points stay provisional until the host finalizes.
func (s *Service) SubmitAnswer(ctx context.Context, actor Actor, text string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Snapshot{}, apperrors.New(apperrors.CodeAnswerEmptyText, "answer text is required")
	}

	var (
		snap         Snapshot
		allSubmitted bool
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}
		if session.Mode != domain.ModeSubmission {
			return apperrors.New(apperrors.CodeSessionWrongMode, "session does not run submission rounds")
		}
		if err := requireContestant(actor, session); err != nil {
			return err
		}
		if session.State != domain.StatePlaying {
			return apperrors.WithMetadata(
				apperrors.CodeInvalidState,
				"answers are only accepted while a track plays",
				map[string]string{"State": string(session.State)},
			)
		}

		round, err := tx.GetRound(ctx, session.ID, session.CurrentRound)
		if err != nil {
			return mapStorageErr(err)
		}
		track, err := tx.GetTrack(ctx, round.TrackID)
		if err != nil {
			return mapStorageErr(err)
		}

		elapsed := s.elapsedSince(session.RoundStartedAt)
		auto := match.IsMatch(text, track.Artist)
		if err := tx.InsertAnswer(ctx, domain.Answer{
			SessionID:      session.ID,
			RoundNumber:    round.Number,
			PlayerID:       actor.PlayerID,
			Text:           text,
			AutoVerdict:    auto,
			Points:         s.scoring.Points(elapsed, auto),
			ElapsedSeconds: elapsed,
			SubmittedAt:    s.now().UTC(),
		}); err != nil {
			return mapStorageErr(err)
		}

		players, err := tx.ListPlayers(ctx, session.ID)
		if err != nil {
			return err
		}
		count, err := tx.CountAnswers(ctx, session.ID, round.Number)
		if err != nil {
			return err
		}
		if eligible := contestants(session, players); count >= len(eligible) {
			next, err := machineFor(session).NextState(session.State, rules.EventAllSubmitted, rules.Params{})
			if err != nil {
				return err
			}
			session.State = next
			session.UpdatedAt = s.now().UTC()
			if err := tx.PutSession(ctx, session); err != nil {
				return err
			}
			allSubmitted = true
		}

		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	if allSubmitted {
		s.pausePlayback(ctx)
		s.publish(ctx, pubsub.Event{
			Type:      pubsub.EventAllAnswersSubmitted,
			SessionID: snap.Session.ID,
			State:     string(snap.Session.State),
			Round:     snap.Session.CurrentRound,
		})
	}
	return snap, nil
}

// FinalizeJudgments applies each answer's effective verdict exactly once and
// moves to reveal. The effective verdict is the host override when present,
// else the automatic one. Safe to retry: a call that lands after a completed
// finalization returns the current state without touching scores. Host only.
func (s *Service) FinalizeJudgments(ctx context.Context, actor Actor, overrides map[string]bool) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := requireHost(actor); err != nil {
		return Snapshot{}, err
	}

	var (
		snap      Snapshot
		finalized []domain.Answer
		retried   bool
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		session, err := tx.GetSession(ctx, actor.SessionID)
		if err != nil {
			return mapStorageErr(err)
		}
		if session.Mode != domain.ModeSubmission {
			return apperrors.New(apperrors.CodeSessionWrongMode, "session does not run submission rounds")
		}

		if session.State == domain.StateReveal {
			answers, err := tx.ListAnswers(ctx, session.ID, session.CurrentRound)
			if err != nil {
				return err
			}
			if len(answers) > 0 && allApplied(answers) {
				retried = true
				snap, err = s.snapshot(ctx, tx, session, actor)
				return err
			}
		}

		next, err := machineFor(session).NextState(session.State, rules.EventFinalize, rules.Params{})
		if err != nil {
			return err
		}

		answers, err := tx.ListAnswers(ctx, session.ID, session.CurrentRound)
		if err != nil {
			return err
		}
		for _, answer := range answers {
			if answer.Applied {
				continue
			}
			verdict := answer.AutoVerdict
			if override, ok := overrides[answer.PlayerID]; ok {
				verdict = override
			}
			points := s.scoring.Points(answer.ElapsedSeconds, verdict)
			if err := tx.FinalizeAnswer(ctx, session.ID, answer.RoundNumber, answer.PlayerID, verdict, points); err != nil {
				return mapStorageErr(err)
			}
			if err := tx.AddPlayerScore(ctx, session.ID, answer.PlayerID, points); err != nil {
				return mapStorageErr(err)
			}
		}

		session.State = next
		session.UpdatedAt = s.now().UTC()
		if err := tx.PutSession(ctx, session); err != nil {
			return err
		}

		finalized, err = tx.ListAnswers(ctx, session.ID, session.CurrentRound)
		if err != nil {
			return err
		}
		snap, err = s.snapshot(ctx, tx, session, actor)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	if retried {
		return snap, nil
	}

	s.publish(ctx, pubsub.Event{
		Type:      pubsub.EventAnswersFinalized,
		SessionID: snap.Session.ID,
		State:     string(snap.Session.State),
		Round:     snap.Session.CurrentRound,
		Answers:   finalized,
		Players:   snap.Players,
	})
	return snap, nil
}

func allApplied(answers []domain.Answer) bool {
	for _, answer := range answers {
		if !answer.Applied {
			return false
		}
	}
	return true
}
