package worker

import (
	"llamaworker/internal/engine"
	"llamaworker/sampler"
	"llamaworker/token"
)

// control is the closed tagged-union of requests the worker accepts on its
// inbox. Every concrete control carries a request id via baseControl; the
// worker's run loop dispatches on the concrete type with a type switch,
// the direct Go rendering of a tagged sum variant.
type control interface {
	id() uint32
}

type baseControl struct{ reqID uint32 }

func (c baseControl) id() uint32 { return c.reqID }

type loadModelControl struct {
	baseControl
	path       string
	params     engine.ModelParams
	onProgress func(float32)
	reply      chan loadModelResult
}

type loadModelResult struct {
	model uint32
	err   error
}

type freeModelControl struct {
	baseControl
	model uint32
	reply chan error
}

type newContextControl struct {
	baseControl
	model  uint32
	params engine.ContextParams
	reply  chan newContextResult
}

type newContextResult struct {
	ctx uint32
	err error
}

type freeContextControl struct {
	baseControl
	ctx   uint32
	reply chan error
}

type tokenizeControl struct {
	baseControl
	ctx   uint32
	text  string
	reply chan tokenizeResult
}

type tokenizeResult struct {
	tokens []int32
	start  int
	err    error
}

type editControl struct {
	baseControl
	ctx       uint32
	newLength int
	hasLength bool
	reply     chan error
}

type ingestControl struct {
	baseControl
	ctx    uint32
	events chan ingestEvent
	cancel chan struct{}
}

type ingestEvent struct {
	done bool
	err  error
}

type generateControl struct {
	baseControl
	ctx    uint32
	chain  []sampler.Sampler
	events chan generateEvent
	cancel chan struct{}
}

type generateEvent struct {
	tok  token.Token
	done bool
	err  error
}

type exitControl struct {
	baseControl
	reply chan struct{}
}
