// Package grouping implements the willow grouping model: areas are
// rectangles over (subspace, path prefix, time range) within a namespace,
// and areas of interest additionally cap how much history they cover.
package grouping

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/blake3"

	"github.com/n0-computer/go-willow/common/types"
)

// Timestamp is a willow timestamp, microseconds since the unix epoch.
type Timestamp uint64

// TimestampMax marks an open range end.
const TimestampMax = Timestamp(math.MaxUint64)

// TimeRange is a half-open range of timestamps. An End of TimestampMax
// means the range is open-ended.
type TimeRange struct {
	Start Timestamp
	End   Timestamp
}

// FullTimeRange returns the range covering all timestamps.
func FullTimeRange() TimeRange {
	return TimeRange{Start: 0, End: TimestampMax}
}

// OpenTimeRange returns the open-ended range starting at start.
func OpenTimeRange(start Timestamp) TimeRange {
	return TimeRange{Start: start, End: TimestampMax}
}

// IsEmpty reports whether the range contains no timestamps.
func (r TimeRange) IsEmpty() bool {
	return r.End <= r.Start
}

// Intersection returns the overlap of two ranges.
func (r TimeRange) Intersection(other TimeRange) (TimeRange, bool) {
	out := TimeRange{Start: max(r.Start, other.Start), End: min(r.End, other.End)}
	if out.IsEmpty() {
		return TimeRange{}, false
	}
	return out, true
}

// Includes reports whether other is entirely contained in r.
func (r TimeRange) Includes(other TimeRange) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// IncludesTime reports whether t falls within r.
func (r TimeRange) IncludesTime(t Timestamp) bool {
	return r.Start <= t && t < r.End
}

// Path addresses an entry as a list of byte-string components.
type Path [][]byte

// PathFrom builds a path from string components.
func PathFrom(components ...string) Path {
	p := make(Path, len(components))
	for i, c := range components {
		p[i] = []byte(c)
	}
	return p
}

// Equal reports component-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether every component of p matches the start of other.
// The empty path is a prefix of every path.
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	for i, c := range p {
		out[i] = bytes.Clone(c)
	}
	return out
}

// String renders the path with / separators, for logging.
func (p Path) String() string {
	var b bytes.Buffer
	for _, c := range p {
		b.WriteByte('/')
		b.Write(c)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Area is a rectangle over (subspace, path prefix, time range) within a
// namespace. The zero Subspace with AnySubspace set covers all subspaces.
type Area struct {
	Subspace    types.SubspaceID
	AnySubspace bool
	Path        Path
	Times       TimeRange
}

// FullArea covers every subspace, path and time.
func FullArea() Area {
	return Area{AnySubspace: true, Times: FullTimeRange()}
}

// SubspaceArea covers everything within a single subspace.
func SubspaceArea(subspace types.SubspaceID) Area {
	return Area{Subspace: subspace, Times: FullTimeRange()}
}

// Intersection returns the overlap of two areas, if any.
func (a Area) Intersection(other Area) (Area, bool) {
	out := Area{}
	switch {
	case a.AnySubspace:
		out.Subspace, out.AnySubspace = other.Subspace, other.AnySubspace
	case other.AnySubspace:
		out.Subspace = a.Subspace
	case a.Subspace == other.Subspace:
		out.Subspace = a.Subspace
	default:
		return Area{}, false
	}
	switch {
	case a.Path.IsPrefixOf(other.Path):
		out.Path = other.Path
	case other.Path.IsPrefixOf(a.Path):
		out.Path = a.Path
	default:
		return Area{}, false
	}
	times, ok := a.Times.Intersection(other.Times)
	if !ok {
		return Area{}, false
	}
	out.Times = times
	return out, true
}

// Intersects reports whether the two areas overlap.
func (a Area) Intersects(other Area) bool {
	_, ok := a.Intersection(other)
	return ok
}

// Includes reports whether other is fully contained in a.
func (a Area) Includes(other Area) bool {
	if !a.AnySubspace {
		if other.AnySubspace || a.Subspace != other.Subspace {
			return false
		}
	}
	return a.Path.IsPrefixOf(other.Path) && a.Times.Includes(other.Times)
}

// Fingerprint is the blake3 digest of the canonical encoding of the area,
// used to key deduplicated sets.
func (a Area) Fingerprint() types.Fingerprint {
	var b bytes.Buffer
	a.encode(&b)
	return types.Fingerprint(blake3.Sum256(b.Bytes()))
}

func (a Area) encode(b *bytes.Buffer) {
	if a.AnySubspace {
		b.WriteByte(0)
	} else {
		b.WriteByte(1)
		b.Write(a.Subspace[:])
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(a.Path)))
	b.Write(n[:])
	for _, c := range a.Path {
		binary.BigEndian.PutUint64(n[:], uint64(len(c)))
		b.Write(n[:])
		b.Write(c)
	}
	binary.BigEndian.PutUint64(n[:], uint64(a.Times.Start))
	b.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(a.Times.End))
	b.Write(n[:])
}

// String renders the area for logging.
func (a Area) String() string {
	subspace := "*"
	if !a.AnySubspace {
		subspace = a.Subspace.ShortString()
	}
	return fmt.Sprintf("area(%s %s [%d..%d))", subspace, a.Path, a.Times.Start, a.Times.End)
}

// AreaOfInterest is an area plus optional caps on the number and total
// size of entries it covers. Zero caps mean unlimited.
type AreaOfInterest struct {
	Area     Area
	MaxCount uint64
	MaxSize  uint64
}

// NewAreaOfInterest wraps an area with unlimited caps.
func NewAreaOfInterest(area Area) AreaOfInterest {
	return AreaOfInterest{Area: area}
}

// Intersects reports whether the two areas of interest overlap. Caps are
// ignored, only the areas matter.
func (a AreaOfInterest) Intersects(other AreaOfInterest) bool {
	return a.Area.Intersects(other.Area)
}

// Fingerprint is the blake3 digest of the canonical encoding, used to key
// deduplicated sets.
func (a AreaOfInterest) Fingerprint() types.Fingerprint {
	var b bytes.Buffer
	a.Area.encode(&b)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], a.MaxCount)
	b.Write(n[:])
	binary.BigEndian.PutUint64(n[:], a.MaxSize)
	b.Write(n[:])
	return types.Fingerprint(blake3.Sum256(b.Bytes()))
}
