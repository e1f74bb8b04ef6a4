// Package enginetest provides a deterministic, pure-Go fake of
// engine.Engine so internal/worker and sampler tests can exercise the
// ingest driver, context-state invariants and sampler chain without a real
// GGUF model file or a C toolchain.
package enginetest

import (
	"math/rand"
	"strings"
	"sync"

	"llamaworker/candidate"
	"llamaworker/internal/engine"
	"llamaworker/llmerr"
)

const (
	// BOSID and EOSID are the fake vocabulary's special tokens.
	BOSID = int32(1)
	EOSID = int32(2)
	// VocabSize is deliberately small so test assertions stay readable.
	VocabSize = 64
)

// Engine is a fake engine.Engine. The zero value is ready to use.
type Engine struct {
	mu   sync.Mutex
	next int
	ctxs map[*fakeContext]*contextHistory

	// FailDecodeAt, if >= 0, makes the next Decode call whose absolute
	// start position equals this value fail with NativeCallFailure. Used
	// to exercise decode failure mid-ingest, where the logits/tokens
	// position counters fall out of sync and a caller must retry ingest
	// from the desynchronized point.
	FailDecodeAt int
}

type fakeModel struct{ id int }
type fakeContext struct {
	id    int
	model *fakeModel
}

// contextHistory tracks, per context, the token history decode has seen so
// far, only so GetLogitsRow can compute a deterministic, history-dependent
// logits row.
type contextHistory struct {
	tokens []int32
}

// New constructs a ready-to-use fake engine.
func New() *Engine {
	return &Engine{FailDecodeAt: -1, ctxs: map[*fakeContext]*contextHistory{}}
}

func (e *Engine) LoadModel(path string, _ engine.ModelParams, onProgress func(float32)) (engine.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, llmerr.New(llmerr.NativeLoadFailure, "empty model path")
	}
	if onProgress != nil {
		onProgress(0.5)
		onProgress(1.0)
	}
	e.mu.Lock()
	e.next++
	m := &fakeModel{id: e.next}
	e.mu.Unlock()
	return m, nil
}

func (e *Engine) FreeModel(m engine.Model) error {
	if _, ok := m.(*fakeModel); !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a fake model handle")
	}
	return nil
}

func (e *Engine) NewContext(m engine.Model, _ engine.ContextParams) (engine.Context, error) {
	fm, ok := m.(*fakeModel)
	if !ok {
		return nil, llmerr.New(llmerr.UnknownHandle, "not a fake model handle")
	}
	e.mu.Lock()
	e.next++
	c := &fakeContext{id: e.next, model: fm}
	e.ctxs[c] = &contextHistory{}
	e.mu.Unlock()
	return c, nil
}

func (e *Engine) FreeContext(c engine.Context) error {
	fc, ok := c.(*fakeContext)
	if !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a fake context handle")
	}
	e.mu.Lock()
	delete(e.ctxs, fc)
	e.mu.Unlock()
	return nil
}

// Tokenize splits text on whitespace into deterministic ids in
// [3, VocabSize), derived from a simple rolling hash so the same word
// always maps to the same id within a test run. addBOS prepends BOSID.
func (e *Engine) Tokenize(_ engine.Model, text string, addBOS bool, out []int32) (int, error) {
	n := 0
	if addBOS {
		if n >= len(out) {
			return 0, llmerr.NativeCall("tokenize output buffer too small", -1)
		}
		out[n] = BOSID
		n++
	}
	for _, word := range strings.Fields(text) {
		if n >= len(out) {
			return 0, llmerr.NativeCall("tokenize output buffer too small", -1)
		}
		out[n] = wordID(word)
		n++
	}
	return n, nil
}

func wordID(word string) int32 {
	h := uint32(2166136261)
	for i := 0; i < len(word); i++ {
		h ^= uint32(word[i])
		h *= 16777619
	}
	return 3 + int32(h%(VocabSize-3))
}

func (e *Engine) Decode(c engine.Context, batch *engine.Batch) error {
	fc, ok := c.(*fakeContext)
	if !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a fake context handle")
	}
	e.mu.Lock()
	hist := e.ctxs[fc]
	e.mu.Unlock()
	if hist == nil {
		return llmerr.New(llmerr.UnknownHandle, "context already freed")
	}
	if e.FailDecodeAt >= 0 && len(hist.tokens) == e.FailDecodeAt {
		return llmerr.NativeCall("injected decode failure", 1)
	}
	for i := 0; i < batch.Len(); i++ {
		hist.tokens = append(hist.tokens, batch.Token[i])
	}
	return nil
}

// GetLogitsRow returns a row where the next-greedy-token id is
// deterministic: 3 + (last seen token id + 1) mod (vocabSize - 3), which
// keeps it clear of the special ids below 3, scored highest. This makes greedy-sampling tests
// reproducible without depending on a real model's weights.
func (e *Engine) GetLogitsRow(c engine.Context, i int, vocabSize int) ([]float32, error) {
	fc, ok := c.(*fakeContext)
	if !ok {
		return nil, llmerr.New(llmerr.UnknownHandle, "not a fake context handle")
	}
	e.mu.Lock()
	hist := e.ctxs[fc]
	e.mu.Unlock()
	if hist == nil {
		return nil, llmerr.New(llmerr.UnknownHandle, "context already freed")
	}
	row := make([]float32, vocabSize)
	last := int32(0)
	if len(hist.tokens) > 0 {
		last = hist.tokens[len(hist.tokens)-1]
	}
	favored := 3 + (last+1)%(int32(vocabSize)-3)
	for id := range row {
		row[id] = -1.0
	}
	row[favored] = 10.0
	return row, nil
}

func (e *Engine) KVCacheSeqRemove(c engine.Context, seqID int32, p0, p1 int32) error {
	fc, ok := c.(*fakeContext)
	if !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a fake context handle")
	}
	e.mu.Lock()
	hist := e.ctxs[fc]
	e.mu.Unlock()
	if hist == nil {
		return llmerr.New(llmerr.UnknownHandle, "context already freed")
	}
	if p0 >= 0 && int(p0) <= len(hist.tokens) {
		hist.tokens = hist.tokens[:p0]
	}
	return nil
}

func (e *Engine) SampleGreedy(_ engine.Context, cand *candidate.Slab) int32 {
	if cand.Len() == 0 {
		return EOSID
	}
	return cand.Entries[cand.ArgMax()].ID
}

func (e *Engine) SampleProbabilistic(_ engine.Context, cand *candidate.Slab) int32 {
	if cand.Len() == 0 {
		return EOSID
	}
	total := float32(0)
	for _, entry := range cand.Entries {
		total += entry.Prob
	}
	if total <= 0 {
		return cand.Entries[cand.ArgMax()].ID
	}
	r := rand.Float32() * total
	var acc float32
	for _, entry := range cand.Entries {
		acc += entry.Prob
		if r <= acc {
			return entry.ID
		}
	}
	return cand.Entries[len(cand.Entries)-1].ID
}

func (e *Engine) VocabSize(engine.Model) int { return VocabSize }

func (e *Engine) EOSID(engine.Model) int32 { return EOSID }

func (e *Engine) TokenToText(_ engine.Model, id int32) string {
	if id == BOSID {
		return ""
	}
	if id == EOSID {
		return ""
	}
	return "▁tok" + itoa(id)
}

func itoa(id int32) string {
	if id == 0 {
		return "0"
	}
	neg := id < 0
	if neg {
		id = -id
	}
	var buf [12]byte
	pos := len(buf)
	for id > 0 {
		pos--
		buf[pos] = byte('0' + id%10)
		id /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

var _ engine.Engine = (*Engine)(nil)
