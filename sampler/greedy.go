package sampler

import (
	"llamaworker/candidate"
	"llamaworker/token"
)

// Greedy is a terminal sampler that picks the highest-logit candidate via
// the engine's native greedy sampler.
type Greedy struct{}

func (Greedy) Sample(ctx SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	id := ctx.Engine.SampleGreedy(ctx.Native, cand)
	return token.Token{ID: id, Text: token.NormalizeText(ctx.Engine.TokenToText(ctx.Model, id))}, true, nil
}
