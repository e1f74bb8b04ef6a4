package sampler

import (
	"math"

	"llamaworker/candidate"
	"llamaworker/token"
)

// Temperature is a non-terminal sampler that scales logits by 1/t and
// converts them to a probability distribution via softmax. A temperature
// of 0 collapses to a one-hot distribution at the current arg-max, which
// is the deterministic-greedy-via-probabilistic-terminal case: a chain
// ending in Temperature{0} followed by a probabilistic terminal behaves
// exactly like greedy sampling.
type Temperature struct {
	Value float32
}

func (t Temperature) Sample(_ SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	if t.Value <= 0 {
		best := cand.ArgMax()
		negInf := float32(math.Inf(-1))
		for i := range cand.Entries {
			if i == best {
				cand.Entries[i].Prob = 1
			} else {
				cand.Entries[i].Prob = 0
				cand.Entries[i].Logit = negInf
			}
		}
		return token.Token{}, false, nil
	}
	for i := range cand.Entries {
		cand.Entries[i].Logit /= t.Value
	}
	Softmax(1).apply(cand)
	return token.Token{}, false, nil
}

// Softmax is the shared logit->probability conversion used by Temperature
// and by Probabilistic when it needs to seed probabilities itself.
type Softmax float32

func (s Softmax) apply(cand *candidate.Slab) {
	t := float32(s)
	if t <= 0 {
		t = 1
	}
	maxLogit := float32(math.Inf(-1))
	for _, e := range cand.Entries {
		if e.Logit > maxLogit {
			maxLogit = e.Logit
		}
	}
	var sum float32
	for i, e := range cand.Entries {
		p := float32(math.Exp(float64((e.Logit - maxLogit) / t)))
		cand.Entries[i].Prob = p
		sum += p
	}
	if sum == 0 {
		return
	}
	for i := range cand.Entries {
		cand.Entries[i].Prob /= sum
	}
}
