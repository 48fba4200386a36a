// Package service implements the session orchestrator.
//
// Every operation is a single transaction against the store: role and state
// are re-validated inside the transaction, score mutations commit together
// with the state transition that triggers them, and a failure rolls the whole
// operation back. Event fan-out and playback commands run after commit and
// are best effort.
package service

import (
	"context"
	"log"
	"time"

	"github.com/Plabrum/trackstar/internal/game/auth"
	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/playback"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/rules"
	"github.com/Plabrum/trackstar/internal/game/score"
	"github.com/Plabrum/trackstar/internal/game/storage"
	"github.com/Plabrum/trackstar/internal/game/tracks"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
	"github.com/Plabrum/trackstar/internal/platform/id"
)

// LobbyConfig bounds how many players may join a session.
type LobbyConfig struct {
	MinPlayers int `env:"TRACKSTAR_LOBBY_MIN_PLAYERS" envDefault:"2"`
	MaxPlayers int `env:"TRACKSTAR_LOBBY_MAX_PLAYERS" envDefault:"12"`
}

// DefaultLobbyConfig returns the lobby bounds used when none are configured.
func DefaultLobbyConfig() LobbyConfig {
	return LobbyConfig{MinPlayers: 2, MaxPlayers: 12}
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	SessionID string
	PlayerID  string
	Role      domain.Role
}

// Credentials is returned from CreateSession and JoinSession: the persisted
// records plus a signed token for subsequent commands.
type Credentials struct {
	Session domain.Session `json:"session"`
	Player  domain.Player  `json:"player"`
	Token   string         `json:"token"`
}

// Snapshot is the derived state fragment returned by every command.
type Snapshot struct {
	Session domain.Session  `json:"session"`
	Players []domain.Player `json:"players"`
	Round   *domain.Round   `json:"round,omitempty"`
	Answers []domain.Answer `json:"answers,omitempty"`
	Actions []rules.Action  `json:"actions"`
}

// Options bundles the orchestrator's collaborators. Store is required;
// everything else has a working default.
type Options struct {
	Publisher   pubsub.Publisher
	Device      playback.Device
	Scoring     score.Config
	Tokens      auth.Config
	Lobby       LobbyConfig
	Logger      *log.Logger
	Now         func() time.Time
	IDGenerator func() (string, error)
	// Intn supplies randomness for track selection; nil uses math/rand.
	Intn func(n int) int
}

// Service coordinates every game command against the store.
type Service struct {
	store     storage.Store
	publisher pubsub.Publisher
	device    playback.Device
	scoring   score.Config
	tokens    auth.Config
	lobby     LobbyConfig
	logger    *log.Logger
	now       func() time.Time
	newID     func() (string, error)
	intn      func(n int) int
}

// New creates the orchestrator.
func New(store storage.Store, options Options) (*Service, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "store is required")
	}
	if options.Publisher == nil {
		options.Publisher = pubsub.NewBroker()
	}
	if options.Device == nil {
		options.Device = playback.NopDevice{}
	}
	if options.Scoring == (score.Config{}) {
		options.Scoring = score.DefaultConfig()
	}
	if options.Lobby == (LobbyConfig{}) {
		options.Lobby = DefaultLobbyConfig()
	}
	if options.Logger == nil {
		options.Logger = log.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.IDGenerator == nil {
		options.IDGenerator = id.NewID
	}

	return &Service{
		store:     store,
		publisher: options.Publisher,
		device:    options.Device,
		scoring:   options.Scoring,
		tokens:    options.Tokens,
		lobby:     options.Lobby,
		logger:    options.Logger,
		now:       options.Now,
		newID:     options.IDGenerator,
		intn:      options.Intn,
	}, nil
}

// selector builds a track selector bound to the given store view, so that
// selection inside a transaction reads the transaction's state.
func (s *Service) selector(store storage.Store) *tracks.Selector {
	return tracks.NewSelector(store, s.intn)
}

// machineFor returns the lifecycle machine matching the session's mode.
func machineFor(session domain.Session) rules.Machine {
	return rules.ForMode(session.Mode)
}

// requireHost rejects callers without the host role.
func requireHost(actor Actor) error {
	if actor.Role != domain.RoleHost {
		return apperrors.New(apperrors.CodeUnauthorizedRole, "this action is host only")
	}
	return nil
}

// requireContestant rejects callers that may not buzz or answer: players
// always may, the host only when host play is enabled.
func requireContestant(actor Actor, session domain.Session) error {
	if actor.Role == domain.RolePlayer {
		return nil
	}
	if actor.Role == domain.RoleHost && session.AllowHostPlay {
		return nil
	}
	return apperrors.New(apperrors.CodeUnauthorizedRole, "this action is player only")
}

// contestants returns the players eligible to buzz or answer this session:
// every non-host player, plus the host record when host play is enabled.
func contestants(session domain.Session, players []domain.Player) []domain.Player {
	var out []domain.Player
	for _, player := range players {
		if player.IsHost && !session.AllowHostPlay {
			continue
		}
		out = append(out, player)
	}
	return out
}

// elapsedSince computes elapsed seconds against the persisted round-start
// timestamp. Playback device timing never feeds this value.
func (s *Service) elapsedSince(startedAt *time.Time) float64 {
	if startedAt == nil {
		return 0
	}
	elapsed := s.now().UTC().Sub(startedAt.UTC()).Seconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// publish fans out an event after a committed mutation. Failures degrade
// latency for subscribers, never the operation.
func (s *Service) publish(ctx context.Context, event pubsub.Event) {
	s.publisher.Publish(ctx, event)
}

// playTrack instructs the playback device. Advisory only.
func (s *Service) playTrack(ctx context.Context, trackID string) {
	if err := s.device.Play(ctx, trackID); err != nil {
		s.logger.Printf("playback device play %s: %v", trackID, err)
	}
}

// pausePlayback instructs the playback device. Advisory only.
func (s *Service) pausePlayback(ctx context.Context) {
	if err := s.device.Pause(ctx); err != nil {
		s.logger.Printf("playback device pause: %v", err)
	}
}

// snapshot assembles the derived state fragment for the caller's role from
// one consistent store view.
func (s *Service) snapshot(ctx context.Context, store storage.Store, session domain.Session, actor Actor) (Snapshot, error) {
	players, err := store.ListPlayers(ctx, session.ID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Session: session, Players: players}

	var round *domain.Round
	if session.CurrentRound > 0 {
		got, err := store.GetRound(ctx, session.ID, session.CurrentRound)
		if err == nil {
			round = &got
			snap.Round = round
		} else if err != storage.ErrNotFound {
			return Snapshot{}, err
		}
	}

	var answers []domain.Answer
	if session.Mode == domain.ModeSubmission && session.CurrentRound > 0 {
		answers, err = store.ListAnswers(ctx, session.ID, session.CurrentRound)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Answers = visibleAnswers(session, actor, answers)
	}

	snap.Actions = machineFor(session).AvailableActions(session.State, actor.Role, s.rulesContext(session, players, round, answers, actor))
	return snap, nil
}

// visibleAnswers hides other players' submissions from player callers until
// the round reaches reveal. Players only learn that an opponent answered and
// when; text, verdicts and points stay hidden. The host always sees all.
func visibleAnswers(session domain.Session, actor Actor, answers []domain.Answer) []domain.Answer {
	if actor.Role == domain.RoleHost {
		return answers
	}
	if session.State == domain.StateReveal || session.State == domain.StateFinished {
		return answers
	}

	out := make([]domain.Answer, 0, len(answers))
	for _, answer := range answers {
		if answer.PlayerID == actor.PlayerID {
			out = append(out, answer)
			continue
		}
		out = append(out, domain.Answer{
			SessionID:   answer.SessionID,
			RoundNumber: answer.RoundNumber,
			PlayerID:    answer.PlayerID,
			SubmittedAt: answer.SubmittedAt,
		})
	}
	return out
}

// rulesContext distills session facts into the state machine's inputs.
func (s *Service) rulesContext(session domain.Session, players []domain.Player, round *domain.Round, answers []domain.Answer, actor Actor) rules.Context {
	eligible := contestants(session, players)

	callerAnswered := false
	for _, answer := range answers {
		if answer.PlayerID == actor.PlayerID {
			callerAnswered = true
			break
		}
	}

	minPlayers := s.lobby.MinPlayers
	nonHost := 0
	for _, player := range players {
		if !player.IsHost {
			nonHost++
		}
	}

	return rules.Context{
		PlayerCount:         nonHost,
		MinPlayers:          minPlayers,
		MaxPlayers:          s.lobby.MaxPlayers,
		AllowHostPlay:       session.AllowHostPlay,
		RoundHasBuzz:        round != nil && round.BuzzedPlayerID != nil,
		CallerHasAnswered:   callerAnswered,
		AllPlayersSubmitted: len(eligible) > 0 && len(answers) >= len(eligible),
		RoundsRemain:        session.CurrentRound < session.TotalRounds,
	}
}

// mapStorageErr lifts storage sentinels into typed application errors.
func mapStorageErr(err error) error {
	switch err {
	case storage.ErrNotFound:
		return apperrors.New(apperrors.CodeNotFound, "record not found")
	case storage.ErrBuzzTaken:
		return apperrors.New(apperrors.CodeAlreadyBuzzed, "another player already buzzed")
	case storage.ErrDuplicateAnswer:
		return apperrors.New(apperrors.CodeAlreadySubmitted, "answer already submitted for this round")
	}
	return err
}
