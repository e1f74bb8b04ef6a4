package sampler

import (
	"llamaworker/candidate"
	"llamaworker/token"
)

// TopP is a non-terminal sampler that keeps the smallest prefix of the
// (sorted, probability-weighted) candidate slab whose cumulative
// probability mass reaches P ("nucleus sampling"). It requires Prob to
// already be populated; if the slab hasn't seen a probability-producing
// sampler yet, it applies a temperature-1 softmax first.
type TopP struct {
	P float32
}

func (s TopP) Sample(_ SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	if !hasProbabilities(cand) {
		Softmax(1.0).apply(cand)
	}
	if !cand.Sorted {
		cand.Sort()
	}
	var cum float32
	keep := len(cand.Entries)
	for i, e := range cand.Entries {
		cum += e.Prob
		if cum >= s.P {
			keep = i + 1
			break
		}
	}
	cand.Truncate(keep)
	return token.Token{}, false, nil
}
