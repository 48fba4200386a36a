// Package tracks selects the next track for a round from the session's
// pack, biased by difficulty and never repeating a track within a session.
package tracks

import (
	"context"
	"math/rand"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
	"github.com/Plabrum/trackstar/internal/platform/errors"
)

// band is an inclusive popularity range on the 0-100 scale.
type band struct {
	min int
	max int
}

func (b band) widen(step int) band {
	widened := band{min: b.min - step, max: b.max + step}
	if widened.min < 0 {
		widened.min = 0
	}
	if widened.max > 100 {
		widened.max = 100
	}
	return widened
}

// bandFor maps a difficulty to its popularity band. Higher popularity means
// more recognizable, so easy skews high and legendary skews low.
func bandFor(difficulty domain.Difficulty) band {
	switch difficulty {
	case domain.DifficultyEasy:
		return band{min: 70, max: 100}
	case domain.DifficultyHard:
		return band{min: 20, max: 60}
	case domain.DifficultyLegendary:
		return band{min: 0, max: 35}
	default:
		return band{min: 45, max: 85}
	}
}

const (
	widenStep    = 15
	widenRetries = 3
)

// Selector draws tracks out of the catalog.
type Selector struct {
	catalog storage.CatalogStore
	intn    func(n int) int
}

// NewSelector creates a Selector backed by the given catalog. The intn
// function supplies randomness; pass nil to use math/rand.
func NewSelector(catalog storage.CatalogStore, intn func(n int) int) *Selector {
	if intn == nil {
		intn = rand.Intn
	}
	return &Selector{catalog: catalog, intn: intn}
}

// ForStart picks the opening track for a session.
func (s *Selector) ForStart(ctx context.Context, packID string, difficulty domain.Difficulty) (domain.Track, error) {
	return s.pick(ctx, packID, difficulty, nil)
}

// ForAdvance picks the next track, excluding every track the session has
// already played.
func (s *Selector) ForAdvance(ctx context.Context, packID string, difficulty domain.Difficulty, usedTrackIDs []string) (domain.Track, error) {
	return s.pick(ctx, packID, difficulty, usedTrackIDs)
}

// pick draws a random unplayed track inside the difficulty band, widening
// the band when the pack runs dry near the edges.
func (s *Selector) pick(ctx context.Context, packID string, difficulty domain.Difficulty, usedTrackIDs []string) (domain.Track, error) {
	if err := ctx.Err(); err != nil {
		return domain.Track{}, err
	}

	current := bandFor(difficulty)
	for attempt := 0; attempt <= widenRetries; attempt++ {
		candidates, err := s.catalog.ListTracksInBand(ctx, packID, current.min, current.max, usedTrackIDs)
		if err != nil {
			return domain.Track{}, err
		}
		if len(candidates) > 0 {
			return candidates[s.intn(len(candidates))], nil
		}
		current = current.widen(widenStep)
	}

	return domain.Track{}, errors.WithMetadata(errors.CodeNoTracksAvailable,
		"no unplayed tracks available for this pack and difficulty",
		map[string]string{
			"pack_id":    packID,
			"difficulty": string(difficulty),
		})
}
