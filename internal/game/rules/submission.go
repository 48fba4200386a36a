package rules

import "github.com/Plabrum/trackstar/internal/game/domain"

// submissionMachine is the simultaneous-submission variant: every player
// answers independently, then the host finalizes all verdicts at once.
type submissionMachine struct{}

func (submissionMachine) NextState(state domain.SessionState, event Event, params Params) (domain.SessionState, error) {
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
		case EventAllSubmitted:
			return domain.StateSubmitted, nil
		case EventReveal:
			// Host reveals manually when some players never answer.
			return domain.StateReveal, nil
		}
	case domain.StateSubmitted:
		if event == EventFinalize {
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

func (submissionMachine) AvailableActions(state domain.SessionState, role domain.Role, ctx Context) []Action {
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
			submit := Action{Name: ActionSubmitAnswer, Label: "Submit answer", Enabled: true}
			if ctx.CallerHasAnswered {
				submit.Enabled = false
				submit.DisabledReason = "answer already submitted"
			}
			actions = append(actions, submit)
		}
		if host {
			actions = append(actions, Action{Name: ActionReveal, Label: "Reveal answer", Enabled: true})
		}
	case domain.StateSubmitted:
		if host {
			finalize := Action{Name: ActionFinalizeJudgments, Label: "Finalize judgments", Enabled: true}
			if !ctx.AllPlayersSubmitted {
				finalize.Enabled = false
				finalize.DisabledReason = "waiting for all answers"
			}
			actions = append(actions, finalize)
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
