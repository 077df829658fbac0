package model

import "strings"

// IndexCollision records a city+sequence key claimed by two different shows.
// The first registration is kept.
type IndexCollision struct {
	Key      string `json:"key"`
	Sequence int    `json:"sequence"`
	Kept     string `json:"kept"`
	Dropped  string `json:"dropped"`
}

type seqMap struct {
	order []int
	ids   map[int]string
}

func (m *seqMap) get(seq int) (string, bool) {
	id, ok := m.ids[seq]
	return id, ok
}

func (m *seqMap) first() (string, bool) {
	if len(m.order) == 0 {
		return "", false
	}
	return m.ids[m.order[0]], true
}

// ShowIndex maps normalized city -> sequence -> show_id, with a parallel
// map keyed by lower-cased city code. It is populated once by the
// consolidator and only read afterwards, so concurrent lookups are safe.
type ShowIndex struct {
	cities     []string
	byCity     map[string]*seqMap
	byCode     map[string]*seqMap
	ids        []string
	known      map[string]struct{}
	collisions []IndexCollision
}

// NewShowIndex returns an empty index.
func NewShowIndex() *ShowIndex {
	return &ShowIndex{
		byCity: make(map[string]*seqMap),
		byCode: make(map[string]*seqMap),
		known:  make(map[string]struct{}),
	}
}

// Add registers a show. city is the normalized city key, code the city code.
// Returns false when the city+sequence key was already claimed by another show.
func (x *ShowIndex) Add(city, code string, seq int, showID string) bool {
	if _, ok := x.known[showID]; !ok {
		x.known[showID] = struct{}{}
		x.ids = append(x.ids, showID)
	}

	ok := true
	if city != "" {
		if _, seen := x.byCity[city]; !seen {
			x.cities = append(x.cities, city)
		}
		ok = x.put(x.byCity, city, seq, showID, true)
	}
	if code != "" {
		// A code clash mirrors the city clash; record it only when there is no city.
		x.put(x.byCode, strings.ToLower(code), seq, showID, city == "")
	}
	return ok
}

func (x *ShowIndex) put(m map[string]*seqMap, key string, seq int, showID string, record bool) bool {
	sm, ok := m[key]
	if !ok {
		sm = &seqMap{ids: make(map[int]string)}
		m[key] = sm
	}
	if kept, taken := sm.ids[seq]; taken {
		if kept != showID {
			if record {
				x.collisions = append(x.collisions, IndexCollision{Key: key, Sequence: seq, Kept: kept, Dropped: showID})
			}
			return false
		}
		return true
	}
	sm.ids[seq] = showID
	sm.order = append(sm.order, seq)
	return true
}

// Lookup resolves a city key and sequence. When the exact sequence is absent
// it falls back to the first sequence registered for that city.
func (x *ShowIndex) Lookup(city string, seq int) (string, bool) {
	return lookup(x.byCity, city, seq)
}

// LookupCode is Lookup keyed by city code (case-insensitive).
func (x *ShowIndex) LookupCode(code string, seq int) (string, bool) {
	return lookup(x.byCode, strings.ToLower(code), seq)
}

// Sequence resolves a city key and sequence without falling back.
func (x *ShowIndex) Sequence(city string, seq int) (string, bool) {
	if sm, ok := x.byCity[city]; ok {
		return sm.get(seq)
	}
	return "", false
}

// CodeSequence is Sequence keyed by city code (case-insensitive).
func (x *ShowIndex) CodeSequence(code string, seq int) (string, bool) {
	if sm, ok := x.byCode[strings.ToLower(code)]; ok {
		return sm.get(seq)
	}
	return "", false
}

func lookup(m map[string]*seqMap, key string, seq int) (string, bool) {
	sm, ok := m[key]
	if !ok {
		return "", false
	}
	if id, ok := sm.get(seq); ok {
		return id, true
	}
	return sm.first()
}

// Has reports whether showID was indexed.
func (x *ShowIndex) Has(showID string) bool {
	_, ok := x.known[showID]
	return ok
}

// IDs returns indexed show ids in registration order.
func (x *ShowIndex) IDs() []string {
	return append([]string(nil), x.ids...)
}

// Cities returns city keys in first-seen order.
func (x *ShowIndex) Cities() []string {
	return append([]string(nil), x.cities...)
}

// Collisions returns every city+sequence key claimed more than once.
func (x *ShowIndex) Collisions() []IndexCollision {
	return append([]IndexCollision(nil), x.collisions...)
}

// Len returns the number of indexed shows.
func (x *ShowIndex) Len() int {
	return len(x.ids)
}
