//go:build llama

package engine

/*
#include <stdlib.h>
#include "llamaworker_bridge.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"llamaworker/candidate"
)

// progressTable maps the cookie LoadModel passes as the native loader's
// user_data to that call's Go progress callback. A Go func value cannot
// itself be passed through a C pointer, so every LoadModel with a
// callback goes through this table. Keyed by a small
// monotonic cookie rather than the request id, since the request id lives
// one layer up in the worker and LoadModel here only sees a plain
// callback.
var (
	progressMu    sync.Mutex
	progressNext  uintptr = 1
	progressTable        = map[uintptr]func(float32){}
)

func registerProgress(cb func(float32)) uintptr {
	progressMu.Lock()
	defer progressMu.Unlock()
	h := progressNext
	progressNext++
	progressTable[h] = cb
	return h
}

func unregisterProgress(h uintptr) {
	progressMu.Lock()
	defer progressMu.Unlock()
	delete(progressTable, h)
}

//export bridgeProgressCallback
func bridgeProgressCallback(fraction C.float, userData unsafe.Pointer) {
	h := uintptr(userData)
	progressMu.Lock()
	cb := progressTable[h]
	progressMu.Unlock()
	if cb != nil {
		cb(float32(fraction))
	}
}

// setBatchSlot writes one token's fields into the native batch at index i.
// seqIDs is pinned to {1} everywhere this module calls it (see seqID in
// contextstate.go) but the helper stays general over the slice length.
func setBatchSlot(cBatch *C.struct_llama_batch, i int, tok, pos int32, seqIDs []int32, wantLogits bool) {
	tokenSlice := unsafe.Slice((*C.int32_t)(unsafe.Pointer(cBatch.token)), i+1)
	tokenSlice[i] = C.int32_t(tok)

	posSlice := unsafe.Slice((*C.int32_t)(unsafe.Pointer(cBatch.pos)), i+1)
	posSlice[i] = C.int32_t(pos)

	nSeqSlice := unsafe.Slice((*C.int32_t)(unsafe.Pointer(cBatch.n_seq_id)), i+1)
	nSeqSlice[i] = C.int32_t(len(seqIDs))

	seqIDPtrs := unsafe.Slice((**C.int32_t)(unsafe.Pointer(cBatch.seq_id)), i+1)
	row := (*C.int32_t)(C.malloc(C.size_t(len(seqIDs)) * C.size_t(unsafe.Sizeof(C.int32_t(0)))))
	rowSlice := unsafe.Slice(row, len(seqIDs))
	for j, id := range seqIDs {
		rowSlice[j] = C.int32_t(id)
	}
	seqIDPtrs[i] = row

	logitsSlice := unsafe.Slice((*C.int8_t)(unsafe.Pointer(cBatch.logits)), i+1)
	if wantLogits {
		logitsSlice[i] = 1
	} else {
		logitsSlice[i] = 0
	}
}

// toNativeCandidates copies a candidate slab into a native
// llama_token_data_array for the duration of one sampler call. The native
// samplers (sample_token_greedy, sample_token) may reorder the array in
// place; that reordering stays in the native copy, and cand is left as it
// was (nothing is copied back).
func toNativeCandidates(cand *candidate.Slab) C.struct_llama_token_data_array {
	n := cand.Len()
	data := (*C.struct_llama_token_data)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.struct_llama_token_data{}))))
	slice := unsafe.Slice(data, n)
	for i, e := range cand.Entries {
		slice[i] = C.struct_llama_token_data{
			id:    C.int32_t(e.ID),
			logit: C.float(e.Logit),
			p:     C.float(e.Prob),
		}
	}
	arr := C.struct_llama_token_data_array{
		data:     data,
		size:     C.size_t(n),
		sorted:   C.bool(cand.Sorted),
	}
	// The array owns `data` for the duration of the call; callers free it
	// via freeNativeCandidates once the native sampler returns.
	return arr
}

// freeNativeCandidates releases the C memory allocated by
// toNativeCandidates. Must be called exactly once per toNativeCandidates
// call, on every exit path.
func freeNativeCandidates(arr C.struct_llama_token_data_array) {
	C.free(unsafe.Pointer(arr.data))
}
