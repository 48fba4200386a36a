package domain

import "time"

// Round is one track-guessing cycle within a session, identified by
// (session, number).
//
// BuzzedPlayerID transitions exactly once from nil to a player id; the
// assignment is a conditional write in storage so concurrent buzzes resolve
// to a single winner. Judging fields are set once during the same round and
// never rewritten after the session advances.
type Round struct {
	SessionID      string
	Number         int
	TrackID        string
	BuzzedPlayerID *string
	Verdict        *bool
	Points         *float64
	ElapsedSeconds *float64
	StartedAt      time.Time
}

// Answer is one player's free-text guess in simultaneous-submission mode,
// unique per (session, round, player).
//
// FinalVerdict stays nil until the host finalizes; Applied guards the score
// delta so a retried finalization never double-awards points.
type Answer struct {
	SessionID      string
	RoundNumber    int
	PlayerID       string
	Text           string
	AutoVerdict    bool
	FinalVerdict   *bool
	Points         float64
	ElapsedSeconds float64
	Applied        bool
	SubmittedAt    time.Time
}

// EffectiveVerdict returns the host override when present, else the
// automatic verdict.
func (a Answer) EffectiveVerdict() bool {
	if a.FinalVerdict != nil {
		return *a.FinalVerdict
	}
	return a.AutoVerdict
}
