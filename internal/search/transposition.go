package search

import "github.com/hailam/corvid/internal/chess"

// Bound classifies how an Entry's score relates to the true value of the
// position, mirroring alpha-beta's fail-soft bookkeeping (§4.F).
type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower
	BoundUpper
)

// Entry is one 16-byte transposition table slot: a 64-bit verification key,
// search score and static eval, search depth, a packed generation/bound
// byte, and the best move found. Four of these make up a Cluster (§4.F).
type Entry struct {
	Key      uint64
	Score    int16
	Eval     int16
	Depth    uint8
	genBound uint8
	BestMove chess.Move
}

func (e *Entry) generation() uint8 { return e.genBound & 0xFC }
func (e *Entry) bound() Bound      { return Bound(e.genBound & 0x3) }

// ClusterSize is the number of entries sharing one cache line's worth of
// table (§4.F: "4 entries per cluster").
const ClusterSize = 4

// Cluster is the unit of replacement: a probe scans all four entries before
// deciding which to overwrite.
type Cluster [ClusterSize]Entry

// TranspositionTable is a clustered hash table indexed by the high bits of
// key*clusterCount (Knuth multiplicative hashing), replacing within a
// cluster by minimizing depth - ((259+gen-entry.gen)&0xFC), per §4.F.
type TranspositionTable struct {
	clusters   []Cluster
	generation uint8
}

// NewTranspositionTable allocates a table sized to roughly sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// Resize reallocates the table, discarding all entries.
func (tt *TranspositionTable) Resize(sizeMB int) {
	clusterBytes := ClusterSize * 16
	numClusters := (sizeMB * 1024 * 1024) / clusterBytes
	if numClusters < 1 {
		numClusters = 1
	}
	tt.clusters = make([]Cluster, numClusters)
	tt.generation = 0
}

// index maps a 64-bit key onto a cluster using the high 64 bits of the
// 128-bit product key*clusterCount, so table size need not be a power of
// two (Knuth multiplicative hashing, §4.F).
func (tt *TranspositionTable) index(key uint64) uint64 {
	hi, _ := mul64Hi(key, uint64(len(tt.clusters)))
	return hi
}

func mul64Hi(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xFFFFFFFF
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) | w0
	return hi, lo
}

// NewSearch advances the generation counter; called once per search so
// replacement can distinguish this search's entries from stale ones.
func (tt *TranspositionTable) NewSearch() {
	tt.generation += 4
}

// Probe looks up key's cluster and returns the matching entry, if any. The
// returned pointer is live in the table and may be passed to Store to avoid
// a second cluster scan.
func (tt *TranspositionTable) Probe(key uint64) (*Entry, bool) {
	cluster := &tt.clusters[tt.index(key)]
	for i := range cluster {
		e := &cluster[i]
		if e.Key == key {
			e.genBound = tt.generation | (e.genBound & 0x3)
			return e, true
		}
	}
	return nil, false
}

// Store writes an entry into key's cluster, replacing whichever of the four
// slots minimizes depth - ((259+generation-entry.generation)&0xFC), per
// §4.F's aging replacement scheme. A deeper exact entry for the same key is
// never overwritten by a much shallower non-exact result.
func (tt *TranspositionTable) Store(key uint64, score, eval int16, depth uint8, bound Bound, best chess.Move) {
	cluster := &tt.clusters[tt.index(key)]

	var replace *Entry
	replaceValue := 1 << 30
	for i := range cluster {
		e := &cluster[i]
		if e.Key == key || e.Key == 0 {
			replace = e
			break
		}
		value := int(e.Depth) - ((259 + int(tt.generation) - int(e.generation())) & 0xFC)
		if value < replaceValue {
			replaceValue = value
			replace = e
		}
	}

	sameKey := replace.Key == key

	// The best move is kept current independently of the depth guard below:
	// a shallower search that nonetheless found a move is still worth
	// remembering for move ordering even when its score isn't trusted enough
	// to overwrite the entry.
	if best != chess.NoMove {
		replace.BestMove = best
	} else if sameKey {
		best = replace.BestMove
	}

	if sameKey && bound != BoundExact && int(depth) < int(replace.Depth)-3 {
		return
	}

	replace.Key = key
	replace.Score = score
	replace.Eval = eval
	replace.Depth = depth
	replace.genBound = tt.generation | uint8(bound)
	replace.BestMove = best
}

// Clear empties the table without reallocating.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = Cluster{}
	}
	tt.generation = 0
}

// HashFull estimates occupancy in permille by sampling the first 250
// clusters' first slot, matching the UCI `info hashfull` convention.
func (tt *TranspositionTable) HashFull() int {
	sample := 250
	if sample > len(tt.clusters) {
		sample = len(tt.clusters)
	}
	if sample == 0 {
		return 0
	}
	used := 0
	for i := 0; i < sample; i++ {
		if tt.clusters[i][0].generation() == tt.generation && tt.clusters[i][0].Key != 0 {
			used++
		}
	}
	return used * 1000 / sample
}

// AdjustScoreToTT converts a ply-relative mate score into the
// position-independent form stored in the table.
func AdjustScoreToTT(score, ply int) int16 {
	if score >= int(chess.MateFound) {
		score += ply
	} else if score <= -int(chess.MateFound) {
		score -= ply
	}
	return int16(score)
}

// AdjustScoreFromTT converts a stored mate score back into a ply-relative
// score for use at the current node.
func AdjustScoreFromTT(score int16, ply int) int {
	s := int(score)
	if s >= int(chess.MateFound) {
		s -= ply
	} else if s <= -int(chess.MateFound) {
		s += ply
	}
	return s
}
