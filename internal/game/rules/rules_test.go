package rules

import (
	"errors"
	"testing"

	"github.com/Plabrum/trackstar/internal/game/domain"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

func TestForModeSelectsVariant(t *testing.T) {
	if _, ok := ForMode(domain.ModeBuzz).(buzzMachine); !ok {
		t.Fatal("expected buzz machine for buzz mode")
	}
	if _, ok := ForMode(domain.ModeSubmission).(submissionMachine); !ok {
		t.Fatal("expected submission machine for submission mode")
	}
}

func TestBuzzMachineTransitions(t *testing.T) {
	machine := ForMode(domain.ModeBuzz)

	tests := []struct {
		name   string
		state  domain.SessionState
		event  Event
		params Params
		want   domain.SessionState
	}{
		{"start", domain.StateLobby, EventStart, Params{}, domain.StatePlaying},
		{"buzz accepted", domain.StatePlaying, EventBuzz, Params{}, domain.StateBuzzed},
		{"reveal without buzz", domain.StatePlaying, EventReveal, Params{}, domain.StateReveal},
		{"judge", domain.StateBuzzed, EventJudge, Params{}, domain.StateReveal},
		{"advance with rounds left", domain.StateReveal, EventAdvance, Params{RoundsRemain: true}, domain.StatePlaying},
		{"advance exhausted", domain.StateReveal, EventAdvance, Params{}, domain.StateFinished},
		{"end from lobby", domain.StateLobby, EventEnd, Params{}, domain.StateFinished},
		{"end from buzzed", domain.StateBuzzed, EventEnd, Params{}, domain.StateFinished},
		{"reset", domain.StateFinished, EventReset, Params{}, domain.StatePlaying},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := machine.NextState(tt.state, tt.event, tt.params)
			if err != nil {
				t.Fatalf("next state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("next state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuzzMachineRejectsIllegalTransitions(t *testing.T) {
	machine := ForMode(domain.ModeBuzz)

	illegal := []struct {
		state domain.SessionState
		event Event
	}{
		{domain.StatePlaying, EventStart},
		{domain.StateLobby, EventBuzz},
		{domain.StateReveal, EventBuzz},
		{domain.StatePlaying, EventJudge},
		{domain.StateFinished, EventEnd},
		{domain.StatePlaying, EventReset},
		{domain.StatePlaying, EventAllSubmitted},
		{domain.StatePlaying, EventFinalize},
	}
	for _, tt := range illegal {
		_, err := machine.NextState(tt.state, tt.event, Params{})
		if err == nil {
			t.Fatalf("expected error for %s in %s", tt.event, tt.state)
		}
		if got := apperrors.CodeOf(err); got != apperrors.CodeInvalidState {
			t.Fatalf("code = %s, want %s", got, apperrors.CodeInvalidState)
		}
	}
}

func TestSubmissionMachineTransitions(t *testing.T) {
	machine := ForMode(domain.ModeSubmission)

	tests := []struct {
		name   string
		state  domain.SessionState
		event  Event
		params Params
		want   domain.SessionState
	}{
		{"start", domain.StateLobby, EventStart, Params{}, domain.StatePlaying},
		{"all submitted", domain.StatePlaying, EventAllSubmitted, Params{}, domain.StateSubmitted},
		{"reveal with missing answers", domain.StatePlaying, EventReveal, Params{}, domain.StateReveal},
		{"finalize", domain.StateSubmitted, EventFinalize, Params{}, domain.StateReveal},
		{"advance with rounds left", domain.StateReveal, EventAdvance, Params{RoundsRemain: true}, domain.StatePlaying},
		{"advance exhausted", domain.StateReveal, EventAdvance, Params{}, domain.StateFinished},
		{"end from submitted", domain.StateSubmitted, EventEnd, Params{}, domain.StateFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := machine.NextState(tt.state, tt.event, tt.params)
			if err != nil {
				t.Fatalf("next state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("next state = %s, want %s", got, tt.want)
			}
		})
	}

	// Buzz events belong to the other variant.
	if _, err := machine.NextState(domain.StatePlaying, EventBuzz, Params{}); err == nil {
		t.Fatal("expected buzz to be illegal in submission mode")
	}
	if _, err := machine.NextState(domain.StateBuzzed, EventJudge, Params{}); err == nil {
		t.Fatal("expected judge to be illegal in submission mode")
	}
}

func TestLobbyStartGating(t *testing.T) {
	machine := ForMode(domain.ModeBuzz)

	tests := []struct {
		name       string
		ctx        Context
		wantEnable bool
	}{
		{"too few players", Context{PlayerCount: 1, MinPlayers: 2, MaxPlayers: 8}, false},
		{"enough players", Context{PlayerCount: 2, MinPlayers: 2, MaxPlayers: 8}, true},
		{"host play waives minimum", Context{PlayerCount: 0, MinPlayers: 2, MaxPlayers: 8, AllowHostPlay: true}, true},
		{"over capacity", Context{PlayerCount: 9, MinPlayers: 2, MaxPlayers: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := machine.AvailableActions(domain.StateLobby, domain.RoleHost, tt.ctx)
			start := findAction(t, actions, ActionStartGame)
			if start.Enabled != tt.wantEnable {
				t.Fatalf("start enabled = %v (%s), want %v", start.Enabled, start.DisabledReason, tt.wantEnable)
			}
		})
	}

	// Players never see the start action.
	actions := machine.AvailableActions(domain.StateLobby, domain.RolePlayer, Context{PlayerCount: 3, MinPlayers: 2})
	for _, action := range actions {
		if action.Name == ActionStartGame {
			t.Fatal("players must not be offered start_game")
		}
	}
}

func TestBuzzDisabledAfterRace(t *testing.T) {
	machine := ForMode(domain.ModeBuzz)

	actions := machine.AvailableActions(domain.StatePlaying, domain.RolePlayer, Context{RoundHasBuzz: true})
	buzz := findAction(t, actions, ActionBuzz)
	if buzz.Enabled {
		t.Fatal("expected buzz to be disabled once a round has a buzzer")
	}
	if buzz.DisabledReason == "" {
		t.Fatal("expected a disabled reason")
	}

	actions = machine.AvailableActions(domain.StatePlaying, domain.RolePlayer, Context{})
	if !findAction(t, actions, ActionBuzz).Enabled {
		t.Fatal("expected buzz to be enabled with no buzzer")
	}
}

func TestFinalizeDisabledUntilAllSubmitted(t *testing.T) {
	machine := ForMode(domain.ModeSubmission)

	actions := machine.AvailableActions(domain.StateSubmitted, domain.RoleHost, Context{AllPlayersSubmitted: false})
	finalize := findAction(t, actions, ActionFinalizeJudgments)
	if finalize.Enabled {
		t.Fatal("expected finalize to be disabled before all answers arrive")
	}

	actions = machine.AvailableActions(domain.StateSubmitted, domain.RoleHost, Context{AllPlayersSubmitted: true})
	if !findAction(t, actions, ActionFinalizeJudgments).Enabled {
		t.Fatal("expected finalize to be enabled once all answers arrive")
	}
}

func TestHostPlayOffersPlayerActionsToHost(t *testing.T) {
	buzz := ForMode(domain.ModeBuzz)
	actions := buzz.AvailableActions(domain.StatePlaying, domain.RoleHost, Context{AllowHostPlay: true})
	findAction(t, actions, ActionBuzz)

	actions = buzz.AvailableActions(domain.StatePlaying, domain.RoleHost, Context{})
	for _, action := range actions {
		if action.Name == ActionBuzz {
			t.Fatal("host must not buzz when host-play is disabled")
		}
	}
}

func TestEndGameOfferedUntilTerminal(t *testing.T) {
	machine := ForMode(domain.ModeSubmission)

	for _, state := range []domain.SessionState{domain.StateLobby, domain.StatePlaying, domain.StateSubmitted, domain.StateReveal} {
		actions := machine.AvailableActions(state, domain.RoleHost, Context{})
		findAction(t, actions, ActionEndGame)
	}

	actions := machine.AvailableActions(domain.StateFinished, domain.RoleHost, Context{})
	for _, action := range actions {
		if action.Name == ActionEndGame {
			t.Fatal("end_game must not be offered in finished state")
		}
	}
	findAction(t, actions, ActionResetGame)
}

func TestInvalidTransitionErrorIsTyped(t *testing.T) {
	machine := ForMode(domain.ModeBuzz)
	_, err := machine.NextState(domain.StateLobby, EventJudge, Params{})
	if !errors.Is(err, apperrors.New(apperrors.CodeInvalidState, "")) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func findAction(t *testing.T, actions []Action, name ActionName) Action {
	t.Helper()
	for _, action := range actions {
		if action.Name == name {
			return action
		}
	}
	t.Fatalf("action %s not found in %v", name, actions)
	return Action{}
}
