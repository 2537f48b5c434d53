package search

import "github.com/hailam/corvid/internal/chess"

// KingPawnEntry caches the pawn/passed-pawn terms of the evaluator keyed by
// king-pawn Zobrist key (§4.G king-pawn cache). Score is the combined
// passed-pawn Scorepair. AttackSpan/Passed are written only by StoreSpans,
// which nothing in the package calls, and no evaluation term reads them.
type KingPawnEntry struct {
	Key        uint64
	Score      chess.Scorepair
	AttackSpan [chess.ColorNB]chess.Bitboard
	Passed     [chess.ColorNB]chess.Bitboard
}

// KingPawnCache is an always-replace hash table for pawn-structure terms,
// one entry per index, with a power-of-two entry count that fits in the
// requested megabytes. Grounded on the teacher's pawnhash.go, extended with
// the attack-span/passed fields §4.G names; the evaluator stores and probes
// only Score.
type KingPawnCache struct {
	entries []KingPawnEntry
	mask    uint64
}

// NewKingPawnCache creates a cache with room for roughly sizeMB megabytes.
func NewKingPawnCache(sizeMB int) *KingPawnCache {
	const entrySize = 8 + 4 + 16 + 16
	numEntries := (sizeMB * 1024 * 1024) / entrySize
	size := 1
	for size*2 <= numEntries {
		size *= 2
	}
	if size < 1 {
		size = 1
	}
	return &KingPawnCache{
		entries: make([]KingPawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe returns the cached passed-pawn Scorepair for key, if present.
func (c *KingPawnCache) Probe(key uint64) (chess.Scorepair, bool) {
	e := &c.entries[key&c.mask]
	if e.Key == key {
		return e.Score, true
	}
	return 0, false
}

// Store records the passed-pawn Scorepair for key, overwriting whatever
// occupied the slot.
func (c *KingPawnCache) Store(key uint64, score chess.Scorepair) {
	e := &c.entries[key&c.mask]
	e.Key = key
	e.Score = score
}

// StoreSpans records the attack-span/passed-pawn bitboards alongside an
// already-stored score; it does nothing if key no longer owns the slot.
func (c *KingPawnCache) StoreSpans(key uint64, attackSpan, passed [chess.ColorNB]chess.Bitboard) {
	e := &c.entries[key&c.mask]
	if e.Key != key {
		return
	}
	e.AttackSpan = attackSpan
	e.Passed = passed
}

// Clear empties the cache.
func (c *KingPawnCache) Clear() {
	for i := range c.entries {
		c.entries[i] = KingPawnEntry{}
	}
}
