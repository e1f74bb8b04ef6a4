// Package engine is the native primitives façade: thin value-level bindings
// to the llama.cpp inference library, consumed everywhere else in this
// module only through the Engine interface so the worker and its tests
// never depend on cgo being available.
//
// Engine abstracts over two concrete implementations: the real binding in
// binding.go (build tag "llama", linked against libllama through the cgo
// LDFLAGS directive at the top of that file) and the stub in binding_stub.go (default build,
// returns llmerr.NativeLoadFailure for everything). Tests use the fake
// implementation in the sibling enginetest package instead of either.
package engine

import (
	"llamaworker/candidate"
)

// Model is an opaque reference to loaded model weights, as returned by
// Engine.LoadModel. Callers never dereference it.
type Model interface{}

// Context is an opaque reference to an inference context bound to one
// Model, as returned by Engine.NewContext.
type Context interface{}

// ModelParams mirrors the native model_default_params surface.
type ModelParams struct {
	GPULayers int
	MainGPU   int
	VocabOnly bool
	MMap      bool
	MLock     bool
}

// ContextParams mirrors the native context_default_params surface.
type ContextParams struct {
	Seed              uint32
	ContextSizeTokens int
	BatchSizeTokens   int
	RopeFreqBase      float32
	RopeFreqScale     float32
	MulMatQ           bool
	F16KV             bool
	ComputeAllLogits  bool
	EmbeddingOnly     bool
}

// Batch is the reusable fixed-capacity staging area for a single decode
// call. It is owned by the caller (the worker's per-context state) and
// reset/refilled on every ingest or generate iteration rather than
// reallocated.
type Batch struct {
	Token      []int32
	Pos        []int32
	SeqID      [][]int32
	NSeqID     []int32
	LogitsFlag []bool
	n          int
}

// NewBatch allocates a batch slab with the given capacity.
func NewBatch(capacity int) *Batch {
	return &Batch{
		Token:      make([]int32, capacity),
		Pos:        make([]int32, capacity),
		SeqID:      make([][]int32, capacity),
		NSeqID:     make([]int32, capacity),
		LogitsFlag: make([]bool, capacity),
	}
}

// Reset clears the batch's logical length without releasing the backing
// arrays.
func (b *Batch) Reset() { b.n = 0 }

// Add appends one token slot to the batch. seqIDs is typically the
// single-element slice []int32{seqID}; this module only ever uses a
// single sequence, so it pins this to {1} everywhere.
func (b *Batch) Add(tok, pos int32, seqIDs []int32, wantLogits bool) {
	b.Token[b.n] = tok
	b.Pos[b.n] = pos
	b.SeqID[b.n] = seqIDs
	b.NSeqID[b.n] = int32(len(seqIDs))
	b.LogitsFlag[b.n] = wantLogits
	b.n++
}

// Len reports the number of token slots currently populated.
func (b *Batch) Len() int { return b.n }

// Engine is the native façade's surface. Every method call that can fail
// returns an *llmerr.Error (see package llmerr) already classified into one
// of the closed error kinds.
type Engine interface {
	// LoadModel loads model weights from path. onProgress, if non-nil, is
	// invoked with a fraction in [0,1] as the native loader reports
	// progress; it may be called from a goroutine other than the caller's.
	LoadModel(path string, params ModelParams, onProgress func(fraction float32)) (Model, error)
	FreeModel(m Model) error

	NewContext(m Model, params ContextParams) (Context, error)
	FreeContext(c Context) error

	// Tokenize appends the tokenization of text into out (which must have
	// capacity for the worst case) and returns the number of tokens
	// written.
	Tokenize(m Model, text string, addBOS bool, out []int32) (int, error)

	Decode(c Context, batch *Batch) error

	// GetLogitsRow copies the logits for the ith token of the most recent
	// decode call into Go-owned memory and returns it. The native backing
	// store may be overwritten by the next decode call, so callers must
	// not retain a slice across decode calls without copying.
	GetLogitsRow(c Context, i int, vocabSize int) ([]float32, error)

	KVCacheSeqRemove(c Context, seqID int32, p0, p1 int32) error

	SampleGreedy(c Context, cand *candidate.Slab) int32
	SampleProbabilistic(c Context, cand *candidate.Slab) int32

	VocabSize(m Model) int
	EOSID(m Model) int32
	TokenToText(m Model, id int32) string
}
