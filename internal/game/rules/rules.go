// Package rules implements the round lifecycle state machines.
//
// Two variants share one contract, selected once per session by mode. The
// machines are pure: AvailableActions is advisory output for rendering, and
// the orchestrator re-validates every rule against persisted state before
// mutating anything.
package rules

import (
	"fmt"

	"github.com/Plabrum/trackstar/internal/game/domain"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

// Event names a lifecycle transition trigger.
type Event string

const (
	EventStart        Event = "start"
	EventBuzz         Event = "buzz"
	EventAllSubmitted Event = "all_submitted"
	EventJudge        Event = "judge"
	EventFinalize     Event = "finalize"
	EventReveal       Event = "reveal"
	EventAdvance      Event = "advance"
	EventEnd          Event = "end"
	EventReset        Event = "reset"
)

// ActionName identifies a command a client may issue.
type ActionName string

const (
	ActionStartGame         ActionName = "start_game"
	ActionBuzz              ActionName = "buzz"
	ActionSubmitAnswer      ActionName = "submit_answer"
	ActionJudgeAnswer       ActionName = "judge_answer"
	ActionFinalizeJudgments ActionName = "finalize_judgments"
	ActionReveal            ActionName = "reveal"
	ActionAdvanceRound      ActionName = "advance_round"
	ActionResetGame         ActionName = "reset_game"
	ActionEndGame           ActionName = "end_game"
)

// Action describes one command and its current eligibility. Label is UI text
// and never authoritative.
type Action struct {
	Name           ActionName `json:"name"`
	Label          string     `json:"label"`
	Enabled        bool       `json:"enabled"`
	DisabledReason string     `json:"disabledReason,omitempty"`
}

// Context carries the session facts eligibility rules depend on.
type Context struct {
	PlayerCount         int
	MinPlayers          int
	MaxPlayers          int
	AllowHostPlay       bool
	RoundHasBuzz        bool
	CallerHasAnswered   bool
	AllPlayersSubmitted bool
	RoundsRemain        bool
}

// Params carries per-event inputs for NextState.
type Params struct {
	// RoundsRemain selects reveal→playing over reveal→finished on advance.
	RoundsRemain bool
}

// Machine is the shared contract both mode variants implement.
type Machine interface {
	// AvailableActions returns the commands the given role may issue from
	// the given state, with eligibility encoded per action.
	AvailableActions(state domain.SessionState, role domain.Role, ctx Context) []Action
	// NextState maps a legal (state, event) pair to the following state.
	NextState(state domain.SessionState, event Event, params Params) (domain.SessionState, error)
}

// ForMode returns the machine variant for a session mode.
func ForMode(mode domain.Mode) Machine {
	if mode == domain.ModeSubmission {
		return submissionMachine{}
	}
	return buzzMachine{}
}

// invalidTransition builds the typed error for an illegal (state, event) pair.
func invalidTransition(state domain.SessionState, event Event) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvalidState,
		fmt.Sprintf("event %s is not legal in state %s", event, state),
		map[string]string{"State": string(state), "Event": string(event)},
	)
}

// startAction gates game start on the configured lobby bounds. The minimum
// drops to zero when the host plays, because the host already holds a player
// record and can carry a round alone.
func startAction(ctx Context) Action {
	action := Action{Name: ActionStartGame, Label: "Start game", Enabled: true}
	minPlayers := ctx.MinPlayers
	if ctx.AllowHostPlay {
		minPlayers = 0
	}
	switch {
	case ctx.PlayerCount < minPlayers:
		action.Enabled = false
		action.DisabledReason = fmt.Sprintf("need at least %d players", minPlayers)
	case ctx.MaxPlayers > 0 && ctx.PlayerCount > ctx.MaxPlayers:
		action.Enabled = false
		action.DisabledReason = fmt.Sprintf("lobby is limited to %d players", ctx.MaxPlayers)
	}
	return action
}

// endAction is offered to the host from every non-terminal state.
func endAction() Action {
	return Action{Name: ActionEndGame, Label: "End game", Enabled: true}
}

// advanceAction labels the reveal exit according to remaining rounds.
func advanceAction(ctx Context) Action {
	label := "Next round"
	if !ctx.RoundsRemain {
		label = "Finish game"
	}
	return Action{Name: ActionAdvanceRound, Label: label, Enabled: true}
}
