package worker

import (
	"llamaworker/candidate"
	"llamaworker/internal/engine"
	"llamaworker/llmerr"
)

// seqID is the sequence id every batch and every KV-cache operation in this
// module uses. The source this design is grounded on hard-codes the value
// 1 for every batch; it is not documented why 0 is avoided. Preserved as a
// named constant rather than changed.
const seqID = int32(1)

// modelState is the worker's record of one loaded model.
type modelState struct {
	id     uint32
	native engine.Model
	path   string
}

// contextState is the per-context holder of the token buffer, logits
// buffer, and the reusable batch and candidate slabs. It is owned
// exclusively by the worker goroutine; nothing outside internal/worker
// ever touches its fields.
type contextState struct {
	id        uint32
	modelID   uint32
	native    engine.Context
	model     engine.Model
	params    engine.ContextParams
	vocabSize int

	tokens []int32
	logits [][]float32

	batch      *engine.Batch
	candidates *candidate.Slab
}

func newContextState(id, modelID uint32, native engine.Context, model engine.Model, params engine.ContextParams, vocabSize int) *contextState {
	return &contextState{
		id:         id,
		modelID:    modelID,
		native:     native,
		model:      model,
		params:     params,
		vocabSize:  vocabSize,
		batch:      engine.NewBatch(params.BatchSizeTokens),
		candidates: candidate.NewSlab(vocabSize),
	}
}

// needsIngesting reports whether any tokens are pending a decode call.
func (cs *contextState) needsIngesting() bool {
	return len(cs.logits) < len(cs.tokens)
}

// tokenize appends text's tokenization to the token buffer. On a context's
// very first tokenize call (empty token buffer) it asks the engine to
// prepend BOS; later calls don't re-prepend. It returns the appended
// slice and the index it starts at.
func (cs *contextState) tokenize(eng engine.Engine, text string) ([]int32, int, error) {
	addBOS := len(cs.tokens) == 0
	// Worst case one token per byte plus the BOS marker.
	buf := make([]int32, len(text)+2)
	n, err := eng.Tokenize(cs.model, text, addBOS, buf)
	if err != nil {
		return nil, 0, err
	}
	if len(cs.tokens)+n > cs.params.ContextSizeTokens {
		return nil, 0, llmerr.New(llmerr.InvalidArgument, "tokenize would exceed the context window")
	}
	start := len(cs.tokens)
	appended := append([]int32(nil), buf[:n]...)
	cs.tokens = append(cs.tokens, appended...)
	return appended, start, nil
}

// edit truncates the token (and, if needed, logits) buffers to newLength,
// pruning the native KV cache to match. hasLength distinguishes "no
// length given" (no-op) from "shrink to zero".
func (cs *contextState) edit(eng engine.Engine, newLength int, hasLength bool) error {
	if !hasLength || newLength == len(cs.tokens) {
		return nil
	}
	if newLength > len(cs.tokens) {
		return llmerr.New(llmerr.InvalidArgument, "edit length exceeds current token buffer length")
	}
	cs.tokens = cs.tokens[:newLength]
	if len(cs.logits) > newLength {
		cs.logits = cs.logits[:newLength]
		if err := eng.KVCacheSeqRemove(cs.native, seqID, int32(newLength), -1); err != nil {
			return err
		}
	}
	return nil
}

// free releases the native context. The caller is responsible for having
// already checked that no generate/ingest call is in flight.
func (cs *contextState) free(eng engine.Engine) error {
	return eng.FreeContext(cs.native)
}
