package models

// Pillar is one of the fixed analytics topic categories. The set is closed:
// there is no runtime registration, and payloads naming anything else are
// rejected at the classifier boundary.
type Pillar string

const (
	PillarEngagement      Pillar = "engagement"
	PillarRetention       Pillar = "retention"
	PillarMonetization    Pillar = "monetization"
	PillarStore           Pillar = "store"
	PillarUserAcquisition Pillar = "userAcquisition"
	PillarTechHealth      Pillar = "techHealth"
	PillarSocial          Pillar = "social"
)

// AllPillars returns the full taxonomy in a stable order.
func AllPillars() []Pillar {
	return []Pillar{
		PillarEngagement,
		PillarRetention,
		PillarMonetization,
		PillarStore,
		PillarUserAcquisition,
		PillarTechHealth,
		PillarSocial,
	}
}

var pillarSet = func() map[Pillar]struct{} {
	s := make(map[Pillar]struct{}, len(AllPillars()))
	for _, p := range AllPillars() {
		s[p] = struct{}{}
	}
	return s
}()

// IsValidPillar reports whether p names a pillar in the taxonomy.
func IsValidPillar(p Pillar) bool {
	_, ok := pillarSet[p]
	return ok
}

// ParsePillar converts an external pillar name into a Pillar,
// failing with ErrUnknownPillar for anything outside the taxonomy.
func ParsePillar(name string) (Pillar, error) {
	p := Pillar(name)
	if !IsValidPillar(p) {
		return "", NewUnknownPillarError(name)
	}
	return p, nil
}
