//go:build llama

package engine

// cgo link directives for the real llama.cpp binding. Rpath of $ORIGIN so
// the runtime loader finds libllama.so next to the built binary, plus a
// link-time search path for local builds; llamaworker_bridge.h pulls in
// llama.h itself, so CGO_CFLAGS needs to point at a built llama.cpp
// checkout's root and its ggml/include directory (the same
// CGO_CFLAGS/CGO_LDFLAGS pair this project's llama installer prints after
// building libllama.so).
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
#cgo CXXFLAGS: -std=c++11
#include <stdlib.h>
#include <string.h>
#include "llamaworker_bridge.h"
*/
import "C"

import (
	"strings"
	"unsafe"

	llama "github.com/go-skynet/go-llama.cpp"

	"llamaworker/candidate"
	"llamaworker/llmerr"
)

// LoadModel passes a progress cookie (see registerProgress in
// binding_support.go) through the native loader's user_data pointer,
// using the cookie directly as the pointer's bit pattern. The check below
// panics at package initialisation if a uint32 does not fit in a uintptr
// on the target.
var _ = func() struct{} {
	if unsafe.Sizeof(uintptr(0)) < 4 {
		panic("engine: platform pointer width too small for the id-as-pointer trick")
	}
	return struct{}{}
}()

// cLoader binds the native llama.cpp library through the raw C API that
// github.com/go-skynet/go-llama.cpp itself links against (same libllama).
// That package's own Go surface (Predict/SetTokenCallback) only exposes
// whole-prompt generation; the ingest/generate step-level control this
// module needs — manual decode, per-token logits, KV-cache pruning — has no
// Go-level equivalent there, so this file talks to the C API directly.
// go-skynet/go-llama.cpp is still imported: its DefaultOptions value is
// kept in bridgeDefaults, which LoadModel and NewContext do not read; they
// start from the native model_default_params/context_default_params.
type cLoader struct{}

// NewCGO constructs the real, cgo-backed Engine.
func NewCGO() Engine { return cLoader{} }

func (cLoader) LoadModel(path string, params ModelParams, onProgress func(float32)) (Model, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	cParams := C.model_default_params()
	cParams.n_gpu_layers = C.int(params.GPULayers)
	cParams.main_gpu = C.int(params.MainGPU)
	cParams.vocab_only = C.bool(params.VocabOnly)
	cParams.use_mmap = C.bool(params.MMap)
	cParams.use_mlock = C.bool(params.MLock)

	if onProgress != nil {
		handle := registerProgress(onProgress)
		defer unregisterProgress(handle)
		cParams.progress_callback = C.llama_progress_callback(C.bridge_progress_trampoline)
		cParams.progress_callback_user_data = unsafe.Pointer(handle)
	}

	m := C.load_model_from_file(cPath, cParams)
	if m == nil {
		log.Error().Str("path", path).Msg("load_model_from_file returned null")
		return nil, llmerr.New(llmerr.NativeLoadFailure, "load_model_from_file returned null: "+path)
	}
	log.Debug().Str("path", path).Msg("model loaded")
	return modelRef{ptr: m}, nil
}

func (cLoader) FreeModel(m Model) error {
	ref, ok := m.(modelRef)
	if !ok || ref.ptr == nil {
		return llmerr.New(llmerr.UnknownHandle, "not a model handle owned by this engine")
	}
	C.free_model(ref.ptr)
	return nil
}

func (cLoader) NewContext(m Model, params ContextParams) (Context, error) {
	ref, ok := m.(modelRef)
	if !ok {
		return nil, llmerr.New(llmerr.UnknownHandle, "not a model handle owned by this engine")
	}
	cParams := C.context_default_params()
	cParams.seed = C.uint32_t(params.Seed)
	cParams.n_ctx = C.uint32_t(params.ContextSizeTokens)
	cParams.n_batch = C.uint32_t(params.BatchSizeTokens)
	cParams.rope_freq_base = C.float(params.RopeFreqBase)
	cParams.rope_freq_scale = C.float(params.RopeFreqScale)
	cParams.mul_mat_q = C.bool(params.MulMatQ)
	cParams.f16_kv = C.bool(params.F16KV)
	cParams.logits_all = C.bool(params.ComputeAllLogits)
	cParams.embedding = C.bool(params.EmbeddingOnly)

	c := C.new_context_with_model(ref.ptr, cParams)
	if c == nil {
		return nil, llmerr.New(llmerr.NativeAllocFailure, "new_context_with_model returned null")
	}
	return contextRef{ptr: c}, nil
}

func (cLoader) FreeContext(c Context) error {
	ref, ok := c.(contextRef)
	if !ok || ref.ptr == nil {
		return llmerr.New(llmerr.UnknownHandle, "not a context handle owned by this engine")
	}
	C.llama_free(ref.ptr)
	return nil
}

func (cLoader) Tokenize(m Model, text string, addBOS bool, out []int32) (int, error) {
	ref, ok := m.(modelRef)
	if !ok {
		return 0, llmerr.New(llmerr.UnknownHandle, "not a model handle owned by this engine")
	}
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	cOut := make([]C.int32_t, len(out))
	n := C.tokenize(ref.ptr, cText, C.int(len(text)), (*C.int32_t)(unsafe.Pointer(&cOut[0])), C.int(len(out)), C.bool(addBOS))
	if n < 0 {
		return 0, llmerr.NativeCall("tokenize failed", int(n))
	}
	for i := 0; i < int(n); i++ {
		out[i] = int32(cOut[i])
	}
	return int(n), nil
}

func (cLoader) Decode(c Context, batch *Batch) error {
	ref, ok := c.(contextRef)
	if !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a context handle owned by this engine")
	}
	cBatch := C.batch_init(C.int(len(batch.Token)), 0)
	defer C.batch_free(cBatch)

	n := batch.Len()
	cBatch.n_tokens = C.int32_t(n)
	for i := 0; i < n; i++ {
		setBatchSlot(&cBatch, i, batch.Token[i], batch.Pos[i], batch.SeqID[i], batch.LogitsFlag[i])
	}

	status := C.decode(ref.ptr, cBatch)
	if status != 0 {
		log.Error().Int("status", int(status)).Int("batch_len", n).Msg("decode failed")
		return llmerr.NativeCall("decode failed", int(status))
	}
	return nil
}

func (cLoader) GetLogitsRow(c Context, i int, vocabSize int) ([]float32, error) {
	ref, ok := c.(contextRef)
	if !ok {
		return nil, llmerr.New(llmerr.UnknownHandle, "not a context handle owned by this engine")
	}
	p := C.get_logits_ith(ref.ptr, C.int(i))
	if p == nil {
		return nil, llmerr.New(llmerr.NativeCallFailure, "get_logits_ith returned null")
	}
	row := make([]float32, vocabSize)
	src := unsafe.Slice((*float32)(unsafe.Pointer(p)), vocabSize)
	copy(row, src)
	return row, nil
}

func (cLoader) KVCacheSeqRemove(c Context, seqID int32, p0, p1 int32) error {
	ref, ok := c.(contextRef)
	if !ok {
		return llmerr.New(llmerr.UnknownHandle, "not a context handle owned by this engine")
	}
	C.kv_cache_seq_rm(ref.ptr, C.int32_t(seqID), C.int32_t(p0), C.int32_t(p1))
	return nil
}

func (cLoader) SampleGreedy(c Context, cand *candidate.Slab) int32 {
	ref, ok := c.(contextRef)
	if !ok {
		return -1
	}
	arr := toNativeCandidates(cand)
	defer freeNativeCandidates(arr)
	return int32(C.sample_token_greedy(ref.ptr, arr))
}

func (cLoader) SampleProbabilistic(c Context, cand *candidate.Slab) int32 {
	ref, ok := c.(contextRef)
	if !ok {
		return -1
	}
	arr := toNativeCandidates(cand)
	defer freeNativeCandidates(arr)
	return int32(C.sample_token(ref.ptr, arr))
}

func (cLoader) VocabSize(m Model) int {
	ref, ok := m.(modelRef)
	if !ok {
		return 0
	}
	return int(C.n_vocab(ref.ptr))
}

func (cLoader) EOSID(m Model) int32 {
	ref, ok := m.(modelRef)
	if !ok {
		return -1
	}
	return int32(C.token_eos(ref.ptr))
}

func (cLoader) TokenToText(m Model, id int32) string {
	ref, ok := m.(modelRef)
	if !ok {
		return ""
	}
	cStr := C.token_get_text(ref.ptr, C.int32_t(id))
	if cStr == nil {
		return ""
	}
	raw := C.GoString(cStr)
	if !strings.ContainsRune(raw, '▁') {
		return raw
	}
	return strings.ReplaceAll(raw, "▁", " ")
}

type modelRef struct{ ptr *C.struct_llama_model }
type contextRef struct{ ptr *C.struct_llama_context }

// bridgeDefaults holds go-skynet/go-llama.cpp's option defaults. Nothing in
// this package reads it; parameter translation starts from the native
// default params instead.
var bridgeDefaults = llama.DefaultOptions
