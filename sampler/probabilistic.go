package sampler

import (
	"llamaworker/candidate"
	"llamaworker/token"
)

// Probabilistic is a terminal sampler that draws a weighted random token
// using the engine's native PRNG, seeded from the context's params. It is
// the chain's implicit default terminal when the caller's chain doesn't
// end in one.
type Probabilistic struct{}

func (Probabilistic) Sample(ctx SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	if !hasProbabilities(cand) {
		Softmax(1.0).apply(cand)
	}
	id := ctx.Engine.SampleProbabilistic(ctx.Native, cand)
	return token.Token{ID: id, Text: token.NormalizeText(ctx.Engine.TokenToText(ctx.Model, id))}, true, nil
}

func hasProbabilities(cand *candidate.Slab) bool {
	for _, e := range cand.Entries {
		if e.Prob != 0 {
			return true
		}
	}
	return false
}
