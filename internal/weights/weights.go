package weights

import (
	"math"
	"time"

	"github.com/playlens/pulse/internal/models"
)

// DecayMode selects when decay is applied.
type DecayMode string

const (
	// DecayModeEvent decays the whole vector once per classified question.
	DecayModeEvent DecayMode = "event"
	// DecayModeElapsed decays the vector by elapsed days when it is read;
	// the per-event decay step is skipped so wall-clock time is the only
	// decay axis.
	DecayModeElapsed DecayMode = "elapsed"
)

// Policy is the single configured decay/boost pair. It is injected once and
// used for every update regardless of the submission channel.
type Policy struct {
	DecayFactor float64
	BoostFactor float64
	Mode        DecayMode
}

// DefaultPolicy is the canonical pair used when configuration is silent.
func DefaultPolicy() Policy {
	return Policy{DecayFactor: 0.95, BoostFactor: 0.10, Mode: DecayModeEvent}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Update applies one decay-and-boost step and returns a new vector; prior is
// never mutated. In event mode every pillar decays by DecayFactor; in elapsed
// mode the decay already happened on read, so only the boost applies. Pillars
// in the intent's affected set gain BoostFactor scaled by confidence. All
// values stay in [0,1].
func Update(p Policy, prior models.PillarWeights, intent models.IntentClassification) models.PillarWeights {
	next := make(models.PillarWeights, len(models.AllPillars()))
	for _, pillar := range models.AllPillars() {
		v := prior[pillar]
		if p.Mode != DecayModeElapsed {
			v *= p.DecayFactor
		}
		next[pillar] = clamp01(v)
	}

	confidence := clamp01(intent.Confidence)
	for _, pillar := range intent.AffectedPillars() {
		if !models.IsValidPillar(pillar) {
			continue
		}
		next[pillar] = clamp01(next[pillar] + p.BoostFactor*confidence)
	}
	return next
}

// ApplyElapsed decays a stored vector by DecayFactor^elapsedDays. Only used
// in DecayModeElapsed, lazily on read; the stored row is left untouched so
// concurrent readers agree.
func ApplyElapsed(p Policy, stored models.PillarWeights, updatedAt, now time.Time) models.PillarWeights {
	if p.Mode != DecayModeElapsed {
		return stored.Clone()
	}
	days := now.Sub(updatedAt).Hours() / 24
	if days <= 0 {
		return stored.Clone()
	}
	factor := math.Pow(p.DecayFactor, days)
	next := make(models.PillarWeights, len(stored))
	for pillar, v := range stored {
		next[pillar] = clamp01(v * factor)
	}
	return next
}
