package sampler

import (
	"llamaworker/candidate"
	"llamaworker/token"
)

// RepetitionPenalty is a non-terminal sampler that scales the logit of
// any candidate id seen in the last LastN tokens of the buffer by
// Penalty: a positive logit is divided by it, a negative one multiplied
// (Penalty > 1 discourages repeats; 1 is a no-op).
type RepetitionPenalty struct {
	Penalty float32
	LastN   int
}

func (s RepetitionPenalty) Sample(ctx SampleContext, cand *candidate.Slab) (token.Token, bool, error) {
	if s.Penalty <= 1 {
		return token.Token{}, false, nil
	}
	window := ctx.Tokens
	if s.LastN > 0 && len(window) > s.LastN {
		window = window[len(window)-s.LastN:]
	}
	seen := make(map[int32]struct{}, len(window))
	for _, id := range window {
		seen[id] = struct{}{}
	}
	for i, e := range cand.Entries {
		if _, ok := seen[e.ID]; ok {
			if e.Logit > 0 {
				cand.Entries[i].Logit = e.Logit / s.Penalty
			} else {
				cand.Entries[i].Logit = e.Logit * s.Penalty
			}
		}
	}
	cand.Sorted = false
	return token.Token{}, false, nil
}
