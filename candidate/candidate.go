// Package candidate implements the per-context candidate slab: a reusable
// working array of (token id, logit, probability) triples that the sampler
// chain transforms in place before a terminal sampler picks a token.
package candidate

import "sort"

// Entry is one vocabulary entry's current standing in a sampling step.
type Entry struct {
	ID    int32
	Logit float32
	Prob  float32
}

// Slab is a reusable, fixed-capacity candidate array. Capacity equals the
// model's vocabulary size; it is allocated once per context and reloaded
// from a fresh logits row on every sampler-chain invocation rather than
// reallocated.
type Slab struct {
	Entries []Entry
	// Sorted reports whether Entries is currently sorted by descending
	// logit. Samplers that require sorted input check this flag instead
	// of re-sorting defensively; samplers that leave the order intact
	// must not clear it, and samplers that reorder must set it
	// themselves (via Sort) or clear it if they only partially reorder.
	Sorted bool
}

// NewSlab allocates a slab with the given vocabulary capacity.
func NewSlab(vocabSize int) *Slab {
	return &Slab{Entries: make([]Entry, vocabSize)}
}

// LoadFromLogits resets the slab from a raw logit row: entry i gets ID=i,
// Logit=logits[i], Prob=0. The slab is marked unsorted; probabilities are
// left at zero until a sampler (typically a softmax/temperature stage)
// fills them in.
func (s *Slab) LoadFromLogits(logits []float32) {
	if cap(s.Entries) < len(logits) {
		s.Entries = make([]Entry, len(logits))
	} else {
		s.Entries = s.Entries[:len(logits)]
	}
	for i, l := range logits {
		s.Entries[i] = Entry{ID: int32(i), Logit: l, Prob: 0}
	}
	s.Sorted = false
}

// Len reports the number of live candidates.
func (s *Slab) Len() int { return len(s.Entries) }

// Sort orders entries by descending logit and sets Sorted.
func (s *Slab) Sort() {
	sort.Slice(s.Entries, func(i, j int) bool {
		return s.Entries[i].Logit > s.Entries[j].Logit
	})
	s.Sorted = true
}

// Truncate keeps only the first n entries (used by top-k style filters).
// The caller is responsible for having sorted the slab first if the
// truncation is meant to keep the highest-scoring entries.
func (s *Slab) Truncate(n int) {
	if n < len(s.Entries) {
		s.Entries = s.Entries[:n]
	}
}

// ArgMax returns the index of the entry with the highest logit.
func (s *Slab) ArgMax() int {
	best := 0
	for i := 1; i < len(s.Entries); i++ {
		if s.Entries[i].Logit > s.Entries[best].Logit {
			best = i
		}
	}
	return best
}
