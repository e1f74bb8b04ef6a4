package worker

import (
	"llamaworker/llmerr"
	"llamaworker/sampler"
	"llamaworker/token"
)

// runGenerate drives the sampler chain one token at a time until the
// context fills up or a sampler emits the model's EOS id, calling emit for
// every token produced. cancelled reports whether the caller stopped
// generation early; when true, err is always nil and no Generate-done is
// emitted by the caller.
func (w *Worker) runGenerate(cs *contextState, chain []sampler.Sampler, emit func(token.Token), cancel <-chan struct{}) (cancelled bool, err error) {
	if cs.needsIngesting() {
		return false, llmerr.New(llmerr.StateViolation, "generate called with un-ingested tokens pending")
	}
	if len(cs.logits) == 0 {
		return false, llmerr.New(llmerr.StateViolation, "generate called before any tokens were ingested")
	}

	sctx := sampler.SampleContext{Engine: w.engine, Model: cs.model, Native: cs.native, Tokens: cs.tokens}
	allocators := sampler.AllocatorsIn(chain)
	if err := sampler.AllocateAll(sctx, chain); err != nil {
		return false, err
	}
	defer sampler.ReleaseAll(sctx, allocators)

	eos := w.engine.EOSID(cs.model)

	for len(cs.logits) < cs.params.ContextSizeTokens {
		cs.candidates.LoadFromLogits(cs.logits[len(cs.logits)-1])
		sctx.Tokens = cs.tokens

		tok, err := sampler.Chain(sctx, chain, cs.candidates)
		if err != nil {
			return false, err
		}

		select {
		case <-cancel:
			return true, nil
		default:
		}

		cs.tokens = append(cs.tokens, tok.ID)
		emit(tok)
		if tok.ID == eos {
			break
		}

		cs.batch.Reset()
		cs.batch.Add(tok.ID, int32(len(cs.logits)), []int32{seqID}, true)
		if err := w.engine.Decode(cs.native, cs.batch); err != nil {
			return false, err
		}
		row, err := w.engine.GetLogitsRow(cs.native, 0, cs.vocabSize)
		if err != nil {
			return false, err
		}
		cs.logits = append(cs.logits, row)
	}
	return false, nil
}
