// Package sampler implements the ordered, composable sampler chain that
// turns a logits row into a chosen token. A Sampler is either a
// non-terminal transformation over the candidate slab (rewriting logits,
// sorting, filtering, biasing) or a terminal that picks a token id.
package sampler

import (
	"llamaworker/candidate"
	"llamaworker/internal/engine"
	"llamaworker/llmerr"
	"llamaworker/token"
)

// SampleContext is the read-only context a Sampler needs: the native
// engine and context handle for terminals that sample natively, the
// model handle for token-text lookups, and the token buffer accumulated
// so far (for samplers like repetition penalty that look at history).
type SampleContext struct {
	Engine engine.Engine
	Model  engine.Model
	Native engine.Context
	Tokens []int32
}

// Sampler transforms the candidate slab. A non-terminal sampler returns
// ok=false having mutated cand in place. A terminal sampler returns
// ok=true with the chosen Token; no sampler may follow a terminal one in
// a chain.
type Sampler interface {
	Sample(ctx SampleContext, cand *candidate.Slab) (tok token.Token, ok bool, err error)
}

// ScratchAllocator is the optional capability a Sampler implements when it
// needs native scratch memory allocated before a generate loop and
// released after, on every exit path. The engine.Engine passed to Allocate
// and Release is the same one in SampleContext; this indirection exists so
// a sampler can hold scratch state without needing to carry its own
// engine reference.
type ScratchAllocator interface {
	Allocate(ctx SampleContext) error
	Release(ctx SampleContext)
}

// Chain runs an ordered sampler list against a freshly loaded candidate
// slab and returns the chosen token. If the chain doesn't end in a
// terminal sampler, Probabilistic{} is applied as the default terminal.
func Chain(ctx SampleContext, chain []Sampler, cand *candidate.Slab) (token.Token, error) {
	for i, s := range chain {
		tok, ok, err := s.Sample(ctx, cand)
		if err != nil {
			return token.Token{}, err
		}
		if ok {
			if i != len(chain)-1 {
				return token.Token{}, misuseError(chain, i)
			}
			return tok, nil
		}
	}
	tok, _, err := (Probabilistic{}).Sample(ctx, cand)
	return tok, err
}

func misuseError(chain []Sampler, terminalAt int) error {
	unused := make([]string, 0, len(chain)-terminalAt-1)
	for i := terminalAt + 1; i < len(chain); i++ {
		unused = append(unused, samplerName(chain[i]))
	}
	return llmerr.New(llmerr.SamplerMisuse, "terminal sampler "+samplerName(chain[terminalAt])+
		" is not last; unused trailing samplers: "+joinNames(unused))
}

func samplerName(s Sampler) string {
	switch s.(type) {
	case Greedy:
		return "greedy"
	case Probabilistic:
		return "probabilistic"
	case TopK:
		return "top-k"
	case TopP:
		return "top-p"
	case Temperature:
		return "temperature"
	case RepetitionPenalty:
		return "repetition-penalty"
	default:
		return "unknown"
	}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// AllocateAll invokes Allocate on every sampler in chain that implements
// ScratchAllocator, in order. On the first failure it releases everything
// already allocated and returns the error.
func AllocateAll(ctx SampleContext, chain []Sampler) error {
	allocated := make([]ScratchAllocator, 0, len(chain))
	for _, s := range chain {
		a, ok := s.(ScratchAllocator)
		if !ok {
			continue
		}
		if err := a.Allocate(ctx); err != nil {
			ReleaseAll(ctx, allocated)
			return err
		}
		allocated = append(allocated, a)
	}
	return nil
}

// ReleaseAll releases every already-allocated ScratchAllocator, regardless
// of the order AllocateAll built the list in, and regardless of earlier
// failures elsewhere in the generate loop.
func ReleaseAll(ctx SampleContext, allocated []ScratchAllocator) {
	for _, a := range allocated {
		a.Release(ctx)
	}
}

// AllocatorsIn collects the ScratchAllocator-capable samplers in chain, in
// order, without allocating anything. Used by the generate loop, once
// AllocateAll has succeeded, to release every allocator on each exit path
// (a failing AllocateAll releases what it had allocated itself).
func AllocatorsIn(chain []Sampler) []ScratchAllocator {
	out := make([]ScratchAllocator, 0, len(chain))
	for _, s := range chain {
		if a, ok := s.(ScratchAllocator); ok {
			out = append(out, a)
		}
	}
	return out
}
