// Package filter implements the positive/negative CAN-ID filter sets and
// the per-ID rate limiter that gate which frames the router forwards.
package filter

import "github.com/Simsys/espcand/internal/proto"

// Instant is a free-running millisecond clock value. Comparisons must use
// dist rather than plain subtraction so a single wraparound never produces
// a false reading (spec.md §4.4).
type Instant uint32

func dist(a, b Instant) uint32 {
	d1 := uint32(a - b)
	d2 := uint32(b - a)
	if d1 < d2 {
		return d1
	}
	return d2
}

const idTimesCap = 16

// unsetID marks a slot that has never observed an identifier.
const unsetID = ^uint32(0)

// IdTimes is a fixed-capacity, first-come table remembering the last time
// each of up to idTimesCap distinct identifiers was seen. CheckInstant
// reports whether enough time has elapsed since that identifier's last
// observation for it to pass the rate limiter; an identifier's first
// observation always passes.
type IdTimes struct {
	ids     [idTimesCap]uint32
	instant [idTimesCap]Instant
}

// NewIdTimes returns an IdTimes with every slot unassigned.
func NewIdTimes() IdTimes {
	t := IdTimes{}
	for i := range t.ids {
		t.ids[i] = unsetID
	}
	return t
}

// CheckInstant looks up id's slot (claiming a free one on first sight) and
// reports whether at least duration milliseconds have elapsed since its
// last recorded instant, updating that slot's instant when it reports
// true. A never-before-seen id always passes. A zero duration always
// passes without touching the table.
func (t *IdTimes) CheckInstant(id uint32, instant Instant, duration uint32) bool {
	if duration == 0 {
		return true
	}
	for i := range t.ids {
		if t.ids[i] == unsetID {
			t.ids[i] = id
			t.instant[i] = instant
			return true
		}
		if t.ids[i] == id {
			if dist(instant, t.instant[i]) >= duration {
				t.instant[i] = instant
				return true
			}
			return false
		}
	}
	// Table full of other identifiers: silently reject, matching upstream
	// (corelib/src/filter/utils.rs: "silently ignore ids, when id-buffer is
	// full").
	return false
}

// PrePFilter is the wire/storage form of a positive filter entry: a
// pattern plus a minimum re-forward interval, with no rate-limiter state.
type PrePFilter struct {
	Extended bool
	Duration uint32
	Ones     uint32
	Zeros    uint32
}

// PFilter is a live positive filter: frames matching Ones/Zeros are
// forwarded no more often than once per Duration milliseconds per
// distinct id.
type PFilter struct {
	Extended bool
	Duration uint32
	Ones     uint32
	Zeros    uint32
	idTimes  IdTimes
}

// NewPFilter builds a PFilter from a parsed pre-filter, with fresh
// rate-limiter state.
func NewPFilter(pre PrePFilter) PFilter {
	return PFilter{
		Extended: pre.Extended,
		Duration: pre.Duration,
		Ones:     pre.Ones,
		Zeros:    pre.Zeros,
		idTimes:  NewIdTimes(),
	}
}

// ToPrePFilter strips the rate-limiter state back to the storable form.
func (f PFilter) ToPrePFilter() PrePFilter {
	return PrePFilter{Extended: f.Extended, Duration: f.Duration, Ones: f.Ones, Zeros: f.Zeros}
}

func matchesMask(id uint32, ones, zeros uint32) bool {
	return id&ones == ones && ^id&zeros == zeros
}

func check(id uint32, extended bool, wantExtended bool, ones, zeros uint32) bool {
	if extended != wantExtended {
		return false
	}
	return matchesMask(id, ones, zeros)
}

// Check reports whether id should be forwarded: the width check rejects
// first (spec.md §4.5 step 1), then the rate-limit probe runs against
// IdTimes with its side effects (step 2), and only if that probe allows
// does the ternary mask test apply (step 3). With a non-zero Duration the
// probe runs — and can claim or rate-limit a table slot — for every
// width-matching id whether or not it goes on to match the mask; with a
// zero Duration it always allows. This is the documented contract,
// not an optimization, so a flood of non-matching same-width ids can
// legitimately exhaust the table ahead of an id that would have matched.
func (f *PFilter) Check(id uint32, extended bool, instant Instant) bool {
	if extended != f.Extended {
		return false
	}
	if !f.idTimes.CheckInstant(id, instant, f.Duration) {
		return false
	}
	return matchesMask(id, f.Ones, f.Zeros)
}

// ParsePrePFilter parses "<duration>,<pattern>" into a PrePFilter.
func ParsePrePFilter(deser *proto.Deser) (PrePFilter, error) {
	duration, err := deser.GetU32()
	if err != nil {
		return PrePFilter{}, err
	}
	pattern, err := deser.GetSlice()
	if err != nil {
		return PrePFilter{}, err
	}
	extended, ones, zeros, err := ParsePattern(pattern[1:])
	if err != nil {
		return PrePFilter{}, err
	}
	return PrePFilter{Extended: extended, Duration: duration, Ones: ones, Zeros: zeros}, nil
}

// Serialize writes "<duration>,<pattern>".
func (p PrePFilter) Serialize(ser *proto.Ser) error {
	if err := ser.AddUint(p.Duration); err != nil {
		return err
	}
	if err := ser.AddByte(','); err != nil {
		return err
	}
	return EmitPattern(ser, p.Extended, p.Ones, p.Zeros)
}

// NFilter is a negative filter: frames matching Ones/Zeros are dropped
// unconditionally, with no rate limiting involved.
type NFilter struct {
	Extended bool
	Ones     uint32
	Zeros    uint32
}

// Check reports whether id matches this filter's pattern.
func (f NFilter) Check(id uint32, extended bool) bool {
	return check(id, extended, f.Extended, f.Ones, f.Zeros)
}

// ParseNFilter parses a bare "<pattern>" field into an NFilter.
func ParseNFilter(deser *proto.Deser) (NFilter, error) {
	pattern, err := deser.GetSlice()
	if err != nil {
		return NFilter{}, err
	}
	extended, ones, zeros, err := ParsePattern(pattern[1:])
	if err != nil {
		return NFilter{}, err
	}
	return NFilter{Extended: extended, Ones: ones, Zeros: zeros}, nil
}

// Serialize writes the bare pattern.
func (f NFilter) Serialize(ser *proto.Ser) error {
	return EmitPattern(ser, f.Extended, f.Ones, f.Zeros)
}

const filtersCap = 10

// PFilters is a fixed-capacity set of positive filters. An empty set
// passes every frame, matching the "no positive filters configured"
// default of spec.md §4.4.
type PFilters struct {
	items []PFilter
}

// NewPFilters returns an empty positive filter set.
func NewPFilters() *PFilters {
	return &PFilters{items: make([]PFilter, 0, filtersCap)}
}

// Add appends a filter, reporting BufIsFull if the set is already at
// capacity.
func (s *PFilters) Add(f PFilter) error {
	if len(s.items) >= filtersCap {
		return proto.BufIsFull
	}
	s.items = append(s.items, f)
	return nil
}

// Clear empties the set.
func (s *PFilters) Clear() { s.items = s.items[:0] }

// Items returns the live filter slice for iteration/mutation by the
// router (rate-limiter state lives inside each PFilter).
func (s *PFilters) Items() []PFilter { return s.items }

// Check reports whether id should be forwarded: true if the set is empty,
// or if any member filter both matches and currently allows it through.
func (s *PFilters) Check(id uint32, extended bool, instant Instant) bool {
	if len(s.items) == 0 {
		return true
	}
	for i := range s.items {
		if s.items[i].Check(id, extended, instant) {
			return true
		}
	}
	return false
}

// NFilters is a fixed-capacity set of negative filters. An empty set
// drops nothing.
type NFilters struct {
	items []NFilter
}

// NewNFilters returns an empty negative filter set.
func NewNFilters() *NFilters {
	return &NFilters{items: make([]NFilter, 0, filtersCap)}
}

// Add appends a filter, reporting BufIsFull if the set is already at
// capacity.
func (s *NFilters) Add(f NFilter) error {
	if len(s.items) >= filtersCap {
		return proto.BufIsFull
	}
	s.items = append(s.items, f)
	return nil
}

// Clear empties the set.
func (s *NFilters) Clear() { s.items = s.items[:0] }

// Items returns the live filter slice for iteration.
func (s *NFilters) Items() []NFilter { return s.items }

// Check reports whether id should be dropped: true if any member filter
// matches, false if the set is empty or none matches.
func (s *NFilters) Check(id uint32, extended bool) bool {
	for i := range s.items {
		if s.items[i].Check(id, extended) {
			return true
		}
	}
	return false
}
