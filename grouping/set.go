package grouping

import "github.com/n0-computer/go-willow/common/types"

// AreaOfInterestSet is a set of areas of interest deduplicated by value,
// keyed by fingerprint.
type AreaOfInterestSet map[types.Fingerprint]AreaOfInterest

// NewAreaOfInterestSet builds a set from the given areas.
func NewAreaOfInterestSet(aois ...AreaOfInterest) AreaOfInterestSet {
	set := make(AreaOfInterestSet, len(aois))
	for _, aoi := range aois {
		set.Add(aoi)
	}
	return set
}

// Add inserts an area of interest into the set.
func (s AreaOfInterestSet) Add(aoi AreaOfInterest) {
	s[aoi.Fingerprint()] = aoi
}

// Merge inserts all members of other into the set.
func (s AreaOfInterestSet) Merge(other AreaOfInterestSet) {
	for fp, aoi := range other {
		s[fp] = aoi
	}
}

// Clone returns a shallow copy of the set.
func (s AreaOfInterestSet) Clone() AreaOfInterestSet {
	out := make(AreaOfInterestSet, len(s))
	for fp, aoi := range s {
		out[fp] = aoi
	}
	return out
}

// IntersectsArea reports whether any member's area overlaps area.
func (s AreaOfInterestSet) IntersectsArea(area Area) bool {
	for _, aoi := range s {
		if aoi.Area.Intersects(area) {
			return true
		}
	}
	return false
}
