//go:build !llama

package engine

// This file provides a no-CGO stub for the real engine. It is compiled when
// the "llama" build tag is NOT set, keeping default builds and CI CGO-free.
// The real binding lives in binding.go (tagged "llama").

import (
	"llamaworker/candidate"
	"llamaworker/llmerr"
)

type stub struct{}

// NewCGO returns an Engine that fails every call with NativeLoadFailure.
// Production binaries that need real inference must be built with -tags
// llama; this avoids silently falling back to mocked behavior.
func NewCGO() Engine { return stub{} }

func (stub) LoadModel(string, ModelParams, func(float32)) (Model, error) {
	return nil, llmerr.New(llmerr.NativeLoadFailure, "engine not built with llama support (missing -tags llama)")
}

func (stub) FreeModel(Model) error { return notBuilt() }

func (stub) NewContext(Model, ContextParams) (Context, error) {
	return nil, notBuilt()
}

func (stub) FreeContext(Context) error { return notBuilt() }

func (stub) Tokenize(Model, string, bool, []int32) (int, error) { return 0, notBuilt() }

func (stub) Decode(Context, *Batch) error { return notBuilt() }

func (stub) GetLogitsRow(Context, int, int) ([]float32, error) { return nil, notBuilt() }

func (stub) KVCacheSeqRemove(Context, int32, int32, int32) error { return notBuilt() }

func (stub) SampleGreedy(Context, *candidate.Slab) int32 { return -1 }

func (stub) SampleProbabilistic(Context, *candidate.Slab) int32 { return -1 }

func (stub) VocabSize(Model) int { return 0 }

func (stub) EOSID(Model) int32 { return -1 }

func (stub) TokenToText(Model, int32) string { return "" }

func notBuilt() error {
	return llmerr.New(llmerr.NativeLoadFailure, "engine not built with llama support (missing -tags llama)")
}
