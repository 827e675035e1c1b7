package models

import "time"

// DefaultWeight is the value every pillar starts at for a new user.
const DefaultWeight = 0.5

// PillarWeights is a user's decaying relevance vector: a total mapping from
// every pillar to a value in [0,1]. Always fully populated.
type PillarWeights map[Pillar]float64

// DefaultPillarWeights returns the vector a user starts with.
func DefaultPillarWeights() PillarWeights {
	w := make(PillarWeights, len(AllPillars()))
	for _, p := range AllPillars() {
		w[p] = DefaultWeight
	}
	return w
}

// Clone returns an independent copy.
func (w PillarWeights) Clone() PillarWeights {
	c := make(PillarWeights, len(w))
	for p, v := range w {
		c[p] = v
	}
	return c
}

// Normalized returns a copy with every taxonomy pillar present, filling
// missing entries with the default and dropping anything outside the
// taxonomy. Storage rows written by older code may be partial.
func (w PillarWeights) Normalized() PillarWeights {
	c := make(PillarWeights, len(AllPillars()))
	for _, p := range AllPillars() {
		if v, ok := w[p]; ok {
			c[p] = v
		} else {
			c[p] = DefaultWeight
		}
	}
	return c
}

// UserWeights is the persisted form: the vector plus the instant it was
// last written, needed by the elapsed-time decay mode.
type UserWeights struct {
	UserID    string        `json:"user_id"`
	Weights   PillarWeights `json:"weights"`
	UpdatedAt time.Time     `json:"updated_at"`
}
