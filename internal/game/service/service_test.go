package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Plabrum/trackstar/internal/game/auth"
	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/pubsub"
	"github.com/Plabrum/trackstar/internal/game/storage/sqlite"
	apperrors "github.com/Plabrum/trackstar/internal/platform/errors"
)

type fixture struct {
	svc    *Service
	broker *pubsub.Broker
	now    *time.Time
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.PutPack(ctx, domain.Pack{ID: "pack-1", Name: "Indie Mix"}); err != nil {
		t.Fatalf("PutPack() error = %v", err)
	}
	for i := 0; i < 6; i++ {
		track := domain.Track{
			ID:         fmt.Sprintf("track-%d", i+1),
			PackID:     "pack-1",
			Title:      fmt.Sprintf("Song %d", i+1),
			Artist:     fmt.Sprintf("Artist %d", i+1),
			Popularity: 50 + 5*i,
		}
		if err := store.PutTrack(ctx, track); err != nil {
			t.Fatalf("PutTrack() error = %v", err)
		}
	}

	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	broker := pubsub.NewBroker()
	counter := 0
	svc, err := New(store, Options{
		Publisher: broker,
		Tokens: auth.Config{
			Secret: []byte("test-secret"),
			Issuer: "trackstar",
			TTL:    time.Hour,
			Now:    func() time.Time { return now },
		},
		Lobby: LobbyConfig{MinPlayers: 2, MaxPlayers: 4},
		Now:   func() time.Time { return now },
		IDGenerator: func() (string, error) {
			counter++
			return fmt.Sprintf("id-%04d", counter), nil
		},
		Intn: func(n int) int { return 0 },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{svc: svc, broker: broker, now: &now}
}

func (f *fixture) createSession(t *testing.T, mode domain.Mode, allowHostPlay bool) (Actor, Credentials) {
	t.Helper()

	creds, err := f.svc.CreateSession(context.Background(), CreateSessionInput{
		PackID:        "pack-1",
		Mode:          mode,
		Difficulty:    domain.DifficultyMedium,
		TotalRounds:   3,
		AllowHostPlay: allowHostPlay,
		HostName:      "Quinn",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	host := Actor{SessionID: creds.Session.ID, PlayerID: creds.Player.ID, Role: domain.RoleHost}
	return host, creds
}

func (f *fixture) joinPlayer(t *testing.T, sessionID, name string) Actor {
	t.Helper()

	creds, err := f.svc.JoinSession(context.Background(), sessionID, name)
	if err != nil {
		t.Fatalf("JoinSession(%s) error = %v", name, err)
	}
	return Actor{SessionID: sessionID, PlayerID: creds.Player.ID, Role: domain.RolePlayer}
}

func TestCreateSessionMintsHostToken(t *testing.T) {
	f := newFixture(t)

	host, creds := f.createSession(t, domain.ModeBuzz, false)
	if creds.Session.State != domain.StateLobby {
		t.Errorf("State = %s, want lobby", creds.Session.State)
	}
	if !creds.Player.IsHost {
		t.Error("host player record missing host flag")
	}

	claims, err := auth.Verify(creds.Token, f.svc.tokens)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Role != domain.RoleHost || claims.SessionID != host.SessionID || claims.PlayerID != host.PlayerID {
		t.Errorf("claims = %+v, want host of %s", claims, host.SessionID)
	}
}

func TestCreateSessionUnknownPack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSession(context.Background(), CreateSessionInput{
		PackID:      "missing",
		Mode:        domain.ModeBuzz,
		Difficulty:  domain.DifficultyMedium,
		TotalRounds: 3,
	})
	if code := apperrors.CodeOf(err); code != apperrors.CodeNotFound {
		t.Fatalf("CodeOf(err) = %s, want %s", code, apperrors.CodeNotFound)
	}
}

func TestJoinSessionRules(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)

	f.joinPlayer(t, host.SessionID, "Ada")

	_, err := f.svc.JoinSession(context.Background(), host.SessionID, "ada")
	if code := apperrors.CodeOf(err); code != apperrors.CodePlayerNameTaken {
		t.Fatalf("duplicate name code = %s, want %s", code, apperrors.CodePlayerNameTaken)
	}

	f.joinPlayer(t, host.SessionID, "Grace")
	if _, err := f.svc.StartGame(context.Background(), host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	_, err = f.svc.JoinSession(context.Background(), host.SessionID, "Late")
	if code := apperrors.CodeOf(err); code != apperrors.CodeSessionJoinAfterStart {
		t.Fatalf("late join code = %s, want %s", code, apperrors.CodeSessionJoinAfterStart)
	}
}

func TestJoinSessionFullLobby(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)

	for i := 0; i < 4; i++ {
		f.joinPlayer(t, host.SessionID, fmt.Sprintf("Player %d", i+1))
	}

	_, err := f.svc.JoinSession(context.Background(), host.SessionID, "One Too Many")
	if code := apperrors.CodeOf(err); code != apperrors.CodeSessionFullLobby {
		t.Fatalf("full lobby code = %s, want %s", code, apperrors.CodeSessionFullLobby)
	}
}

func TestStartGameRequiresPlayers(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)

	f.joinPlayer(t, host.SessionID, "Ada")
	_, err := f.svc.StartGame(context.Background(), host)
	if code := apperrors.CodeOf(err); code != apperrors.CodeInsufficientPlayers {
		t.Fatalf("one player code = %s, want %s", code, apperrors.CodeInsufficientPlayers)
	}

	f.joinPlayer(t, host.SessionID, "Grace")
	snap, err := f.svc.StartGame(context.Background(), host)
	if err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	if snap.Session.State != domain.StatePlaying {
		t.Errorf("State = %s, want playing", snap.Session.State)
	}
	if snap.Session.CurrentRound != 1 {
		t.Errorf("CurrentRound = %d, want 1", snap.Session.CurrentRound)
	}
	if snap.Round == nil || snap.Round.TrackID == "" {
		t.Fatal("round 1 missing after start")
	}
	if snap.Session.RoundStartedAt == nil {
		t.Fatal("RoundStartedAt not set")
	}
}

func TestStartGameHostPlaySolo(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, true)

	snap, err := f.svc.StartGame(context.Background(), host)
	if err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	if snap.Session.State != domain.StatePlaying {
		t.Errorf("State = %s, want playing", snap.Session.State)
	}
}

func TestStartGameNonHostRejected(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	player := f.joinPlayer(t, host.SessionID, "Ada")

	_, err := f.svc.StartGame(context.Background(), player)
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnauthorizedRole {
		t.Fatalf("CodeOf(err) = %s, want %s", code, apperrors.CodeUnauthorizedRole)
	}
}

func TestBuzzAndJudgeFlow(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	grace := f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	f.advance(3 * time.Second)
	snap, err := f.svc.Buzz(ctx, ada)
	if err != nil {
		t.Fatalf("Buzz() error = %v", err)
	}
	if snap.Session.State != domain.StateBuzzed {
		t.Errorf("State = %s, want buzzed", snap.Session.State)
	}
	if snap.Round.BuzzedPlayerID == nil || *snap.Round.BuzzedPlayerID != ada.PlayerID {
		t.Errorf("BuzzedPlayerID = %v, want %s", snap.Round.BuzzedPlayerID, ada.PlayerID)
	}
	if snap.Round.ElapsedSeconds == nil || *snap.Round.ElapsedSeconds != 3 {
		t.Errorf("ElapsedSeconds = %v, want 3", snap.Round.ElapsedSeconds)
	}

	if _, err := f.svc.Buzz(ctx, grace); apperrors.CodeOf(err) != apperrors.CodeAlreadyBuzzed {
		t.Fatalf("Buzz() after race error = %v, want already buzzed", err)
	}

	snap, err = f.svc.JudgeAnswer(ctx, host, true)
	if err != nil {
		t.Fatalf("JudgeAnswer() error = %v", err)
	}
	if snap.Session.State != domain.StateReveal {
		t.Errorf("State = %s, want reveal", snap.Session.State)
	}
	for _, player := range snap.Players {
		if player.ID == ada.PlayerID && player.Score != 7 {
			t.Errorf("winner score = %v, want 7", player.Score)
		}
		if player.ID == grace.PlayerID && player.Score != 0 {
			t.Errorf("bystander score = %v, want 0", player.Score)
		}
	}
}

func TestBuzzConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	ctx := context.Background()

	actors := make([]Actor, 4)
	for i := range actors {
		actors[i] = f.joinPlayer(t, host.SessionID, fmt.Sprintf("Player %d", i+1))
	}
	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor Actor) {
			defer wg.Done()
			_, errs[i] = f.svc.Buzz(ctx, actor)
		}(i, actor)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch code := apperrors.CodeOf(err); {
		case err == nil:
			wins++
		case code == apperrors.CodeAlreadyBuzzed:
		default:
			t.Fatalf("Buzz(%d) error = %v, want already buzzed", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}

	snap, err := f.svc.GetState(ctx, host)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if snap.Session.State != domain.StateBuzzed {
		t.Errorf("State = %s, want buzzed", snap.Session.State)
	}
	if snap.Round.BuzzedPlayerID == nil {
		t.Fatal("BuzzedPlayerID = nil after winning buzz")
	}
}

func TestAdvanceNeverRepeatsTracks(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	f.joinPlayer(t, host.SessionID, "Ada")
	f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	snap, err := f.svc.StartGame(ctx, host)
	if err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}

	seen := map[string]bool{snap.Round.TrackID: true}
	for round := 2; round <= 3; round++ {
		if _, err := f.svc.Reveal(ctx, host); err != nil {
			t.Fatalf("Reveal() round %d error = %v", round-1, err)
		}
		snap, err = f.svc.AdvanceRound(ctx, host)
		if err != nil {
			t.Fatalf("AdvanceRound() to round %d error = %v", round, err)
		}
		if snap.Session.CurrentRound != round {
			t.Fatalf("CurrentRound = %d, want %d", snap.Session.CurrentRound, round)
		}
		if seen[snap.Round.TrackID] {
			t.Fatalf("track %s repeated in round %d", snap.Round.TrackID, round)
		}
		seen[snap.Round.TrackID] = true
	}

	if _, err := f.svc.Reveal(ctx, host); err != nil {
		t.Fatalf("final Reveal() error = %v", err)
	}
	snap, err = f.svc.AdvanceRound(ctx, host)
	if err != nil {
		t.Fatalf("final AdvanceRound() error = %v", err)
	}
	if snap.Session.State != domain.StateFinished {
		t.Errorf("State = %s, want finished", snap.Session.State)
	}
	if snap.Session.CurrentRound != 3 {
		t.Errorf("CurrentRound = %d, want 3 after finish", snap.Session.CurrentRound)
	}
}

func TestSubmissionFlow(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeSubmission, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	grace := f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	snap, err := f.svc.StartGame(ctx, host)
	if err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	trackID := snap.Round.TrackID

	artist, err := trackArtistFor(trackID)
	if err != nil {
		t.Fatalf("track lookup error = %v", err)
	}

	f.advance(2 * time.Second)
	snap, err = f.svc.SubmitAnswer(ctx, ada, artist)
	if err != nil {
		t.Fatalf("SubmitAnswer(ada) error = %v", err)
	}
	if snap.Session.State != domain.StatePlaying {
		t.Errorf("State after first answer = %s, want playing", snap.Session.State)
	}

	if _, err := f.svc.SubmitAnswer(ctx, ada, "second try"); apperrors.CodeOf(err) != apperrors.CodeAlreadySubmitted {
		t.Fatalf("duplicate submit error = %v, want already submitted", err)
	}

	f.advance(2 * time.Second)
	snap, err = f.svc.SubmitAnswer(ctx, grace, "no idea")
	if err != nil {
		t.Fatalf("SubmitAnswer(grace) error = %v", err)
	}
	if snap.Session.State != domain.StateSubmitted {
		t.Errorf("State after last answer = %s, want submitted", snap.Session.State)
	}

	// Host accepts grace's answer despite the failed auto match.
	snap, err = f.svc.FinalizeJudgments(ctx, host, map[string]bool{grace.PlayerID: true})
	if err != nil {
		t.Fatalf("FinalizeJudgments() error = %v", err)
	}
	if snap.Session.State != domain.StateReveal {
		t.Errorf("State = %s, want reveal", snap.Session.State)
	}

	scores := map[string]float64{}
	for _, player := range snap.Players {
		scores[player.ID] = player.Score
	}
	// Ada answered correctly at 2s, grace was overridden correct at 4s.
	if scores[ada.PlayerID] != 8 {
		t.Errorf("ada score = %v, want 8", scores[ada.PlayerID])
	}
	if scores[grace.PlayerID] != 6 {
		t.Errorf("grace score = %v, want 6", scores[grace.PlayerID])
	}

	// Retried finalization observes the finished round and leaves scores alone.
	retried, err := f.svc.FinalizeJudgments(ctx, host, nil)
	if err != nil {
		t.Fatalf("retried FinalizeJudgments() error = %v", err)
	}
	for _, player := range retried.Players {
		if player.Score != scores[player.ID] {
			t.Errorf("player %s score changed on retry: %v -> %v", player.ID, scores[player.ID], player.Score)
		}
	}
}

func TestSubmittedAnswersHiddenUntilReveal(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeSubmission, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	grace := f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	snap, err := f.svc.StartGame(ctx, host)
	if err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	artist, err := trackArtistFor(snap.Round.TrackID)
	if err != nil {
		t.Fatalf("track lookup error = %v", err)
	}

	f.advance(2 * time.Second)
	if _, err := f.svc.SubmitAnswer(ctx, ada, artist); err != nil {
		t.Fatalf("SubmitAnswer(ada) error = %v", err)
	}

	snap, err = f.svc.GetState(ctx, grace)
	if err != nil {
		t.Fatalf("GetState(grace) error = %v", err)
	}
	if len(snap.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(snap.Answers))
	}
	hidden := snap.Answers[0]
	if hidden.PlayerID != ada.PlayerID {
		t.Errorf("answer PlayerID = %s, want %s", hidden.PlayerID, ada.PlayerID)
	}
	if hidden.Text != "" || hidden.AutoVerdict || hidden.Points != 0 {
		t.Errorf("opponent answer leaked mid-round: text=%q autoVerdict=%v points=%v",
			hidden.Text, hidden.AutoVerdict, hidden.Points)
	}

	snap, err = f.svc.GetState(ctx, host)
	if err != nil {
		t.Fatalf("GetState(host) error = %v", err)
	}
	if snap.Answers[0].Text != artist {
		t.Errorf("host view text = %q, want %q", snap.Answers[0].Text, artist)
	}

	f.advance(time.Second)
	snap, err = f.svc.SubmitAnswer(ctx, grace, "no idea")
	if err != nil {
		t.Fatalf("SubmitAnswer(grace) error = %v", err)
	}
	for _, answer := range snap.Answers {
		if answer.PlayerID == grace.PlayerID && answer.Text != "no idea" {
			t.Errorf("own answer redacted: text = %q", answer.Text)
		}
		if answer.PlayerID == ada.PlayerID && answer.Text != "" {
			t.Errorf("opponent answer leaked after submitting: text = %q", answer.Text)
		}
	}

	if _, err := f.svc.FinalizeJudgments(ctx, host, nil); err != nil {
		t.Fatalf("FinalizeJudgments() error = %v", err)
	}
	snap, err = f.svc.GetState(ctx, grace)
	if err != nil {
		t.Fatalf("GetState(grace) after reveal error = %v", err)
	}
	for _, answer := range snap.Answers {
		if answer.PlayerID == ada.PlayerID && answer.Text != artist {
			t.Errorf("revealed answer text = %q, want %q", answer.Text, artist)
		}
	}
}

func TestSubmitAnswerWrongMode(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, ada, "anything"); apperrors.CodeOf(err) != apperrors.CodeSessionWrongMode {
		t.Fatalf("SubmitAnswer() in buzz mode error = %v, want wrong mode", err)
	}
	if _, err := f.svc.Buzz(ctx, host); apperrors.CodeOf(err) != apperrors.CodeUnauthorizedRole {
		t.Fatalf("host Buzz() without host play error = %v, want unauthorized role", err)
	}
}

func TestEndAndResetGame(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	f.advance(time.Second)
	if _, err := f.svc.Buzz(ctx, ada); err != nil {
		t.Fatalf("Buzz() error = %v", err)
	}
	if _, err := f.svc.JudgeAnswer(ctx, host, true); err != nil {
		t.Fatalf("JudgeAnswer() error = %v", err)
	}

	snap, err := f.svc.EndGame(ctx, host)
	if err != nil {
		t.Fatalf("EndGame() error = %v", err)
	}
	if snap.Session.State != domain.StateFinished {
		t.Errorf("State = %s, want finished", snap.Session.State)
	}

	if _, err := f.svc.EndGame(ctx, host); apperrors.CodeOf(err) != apperrors.CodeInvalidState {
		t.Fatalf("EndGame() on finished error = %v, want invalid state", err)
	}

	snap, err = f.svc.ResetGame(ctx, host, "pack-1")
	if err != nil {
		t.Fatalf("ResetGame() error = %v", err)
	}
	if snap.Session.State != domain.StatePlaying {
		t.Errorf("State = %s, want playing", snap.Session.State)
	}
	if snap.Session.CurrentRound != 1 {
		t.Errorf("CurrentRound = %d, want 1", snap.Session.CurrentRound)
	}
	for _, player := range snap.Players {
		if player.Score != 0 {
			t.Errorf("player %s score = %v after reset, want 0", player.DisplayName, player.Score)
		}
	}
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	ada := f.joinPlayer(t, host.SessionID, "Ada")
	ctx := context.Background()

	events, cancel := f.broker.Subscribe(host.SessionID)
	defer cancel()

	f.joinPlayer(t, host.SessionID, "Grace")
	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	if _, err := f.svc.Buzz(ctx, ada); err != nil {
		t.Fatalf("Buzz() error = %v", err)
	}

	want := []pubsub.EventType{pubsub.EventPlayerJoined, pubsub.EventRoundStart, pubsub.EventBuzz}
	for _, wantType := range want {
		select {
		case event := <-events:
			if event.Type != wantType {
				t.Fatalf("event = %s, want %s", event.Type, wantType)
			}
		case <-time.After(time.Second):
			t.Fatalf("never received %s", wantType)
		}
	}
}

func TestResetPublishesStateChange(t *testing.T) {
	f := newFixture(t)
	host, _ := f.createSession(t, domain.ModeBuzz, false)
	f.joinPlayer(t, host.SessionID, "Ada")
	f.joinPlayer(t, host.SessionID, "Grace")
	ctx := context.Background()

	if _, err := f.svc.StartGame(ctx, host); err != nil {
		t.Fatalf("StartGame() error = %v", err)
	}
	if _, err := f.svc.EndGame(ctx, host); err != nil {
		t.Fatalf("EndGame() error = %v", err)
	}

	events, cancel := f.broker.Subscribe(host.SessionID)
	defer cancel()

	if _, err := f.svc.ResetGame(ctx, host, "pack-1"); err != nil {
		t.Fatalf("ResetGame() error = %v", err)
	}

	want := []pubsub.EventType{pubsub.EventStateChange, pubsub.EventRoundStart}
	for _, wantType := range want {
		select {
		case event := <-events:
			if event.Type != wantType {
				t.Fatalf("event = %s, want %s", event.Type, wantType)
			}
			if wantType == pubsub.EventStateChange && len(event.Players) == 0 {
				t.Fatal("state change event missing players")
			}
		case <-time.After(time.Second):
			t.Fatalf("never received %s", wantType)
		}
	}
}

// trackArtistFor maps a seeded track id back to its artist name.
func trackArtistFor(trackID string) (string, error) {
	var n int
	if _, err := fmt.Sscanf(trackID, "track-%d", &n); err != nil {
		return "", err
	}
	return fmt.Sprintf("Artist %d", n), nil
}
