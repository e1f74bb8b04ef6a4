package sampler

import (
	"llamaworker/candidate"
	"llamaworker/token"
)

// TopK is a non-terminal sampler that sorts the candidate slab by
// descending logit and keeps only the K highest.
type TopK struct {
	K int
}

func (s TopK) Sample(_ SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	if !cand.Sorted {
		cand.Sort()
	}
	if s.K > 0 {
		cand.Truncate(s.K)
	}
	return token.Token{}, false, nil
}
