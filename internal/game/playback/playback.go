// Package playback abstracts the audio device a game session drives.
package playback

import "context"

// Device controls audio playback for a session. Implementations talk to an
// external player; the orchestrator treats playback as best effort and never
// fails a game operation on a device error.
type Device interface {
	// Play starts the given track from the beginning.
	Play(ctx context.Context, trackID string) error
	// Pause halts playback, keeping position.
	Pause(ctx context.Context) error
	// Resume continues after a pause.
	Resume(ctx context.Context) error
	// SetVolume sets playback volume in percent, 0 to 100.
	SetVolume(ctx context.Context, percent int) error
	// Elapsed reports seconds of playback since Play.
	Elapsed(ctx context.Context) (float64, error)
}

// NopDevice is a Device that does nothing. It backs sessions that run
// without an attached player, such as tests and hosts streaming audio out of
// band.
type NopDevice struct{}

func (NopDevice) Play(context.Context, string) error       { return nil }
func (NopDevice) Pause(context.Context) error              { return nil }
func (NopDevice) Resume(context.Context) error             { return nil }
func (NopDevice) SetVolume(context.Context, int) error     { return nil }
func (NopDevice) Elapsed(context.Context) (float64, error) { return 0, nil }

var _ Device = NopDevice{}
