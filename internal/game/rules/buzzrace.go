package rules

import "github.com/Plabrum/trackstar/internal/game/domain"

// buzzMachine is the buzz-race variant: the first player to signal wins the
// right to answer aloud and the host judges a single verdict.
type buzzMachine struct{}

func (buzzMachine) NextState(state domain.SessionState, event Event, params Params) (domain.SessionState, error) {
	if event == EventEnd && !state.Terminal() {
		return domain.StateFinished, nil
	}

	switch state {
	case domain.StateLobby:
		if event == EventStart {
			return domain.StatePlaying, nil
		}
	case domain.StatePlaying:
		switch event {
		case EventBuzz:
			return domain.StateBuzzed, nil
		case EventReveal:
			// Host reveals manually when playback ends with no buzz.
			return domain.StateReveal, nil
		}
	case domain.StateBuzzed:
		if event == EventJudge {
			return domain.StateReveal, nil
		}
	case domain.StateReveal:
		if event == EventAdvance {
			if params.RoundsRemain {
				return domain.StatePlaying, nil
			}
			return domain.StateFinished, nil
		}
	case domain.StateFinished:
		if event == EventReset {
			return domain.StatePlaying, nil
		}
	}
	return state, invalidTransition(state, event)
}

func (buzzMachine) AvailableActions(state domain.SessionState, role domain.Role, ctx Context) []Action {
	var actions []Action
	host := role == domain.RoleHost
	playing := role == domain.RolePlayer || (host && ctx.AllowHostPlay)

	switch state {
	case domain.StateLobby:
		if host {
			actions = append(actions, startAction(ctx))
		}
	case domain.StatePlaying:
		if playing {
			buzz := Action{Name: ActionBuzz, Label: "Buzz", Enabled: true}
			if ctx.RoundHasBuzz {
				buzz.Enabled = false
				buzz.DisabledReason = "another player already buzzed"
			}
			actions = append(actions, buzz)
		}
		if host {
			actions = append(actions, Action{Name: ActionReveal, Label: "Reveal answer", Enabled: true})
		}
	case domain.StateBuzzed:
		if host {
			actions = append(actions, Action{Name: ActionJudgeAnswer, Label: "Judge answer", Enabled: true})
		}
	case domain.StateReveal:
		if host {
			actions = append(actions, advanceAction(ctx))
		}
	case domain.StateFinished:
		if host {
			actions = append(actions, Action{Name: ActionResetGame, Label: "Play again", Enabled: true})
		}
	}

	if host && !state.Terminal() {
		actions = append(actions, endAction())
	}
	return actions
}
