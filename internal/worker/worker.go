// Package worker implements the isolated worker: a single goroutine that
// is the sole owner of every native handle, the per-context state
// registry, the ingest driver and the generate loop. Callers never touch
// a contextState or the native engine directly; they only ever hold the
// small opaque ids this package hands out.
package worker

import (
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"

	"llamaworker/internal/engine"
	"llamaworker/llmerr"
	"llamaworker/token"
)

var log = zerolog.Nop()

// SetLogger installs the structured logger used by the worker. Unset,
// every log call is a no-op, matching httpapi.SetLogger's install-or-noop
// shape in the project this package's logging discipline is modeled on.
func SetLogger(l zerolog.Logger) { log = l }

// Worker is the single-threaded executor owning every native handle. All
// of its exported methods are safe to call concurrently from many
// goroutines; the calls themselves are serialized onto one inbox channel
// and executed one at a time on the worker's own goroutine.
type Worker struct {
	engine engine.Engine
	inbox  chan control
	ids    *idGenerator
	closed atomic.Bool

	models           map[uint32]*modelState
	contexts         map[uint32]*contextState
	contextsForModel map[uint32]map[uint32]struct{}

	exited chan struct{}
}

// New constructs a Worker over the given native façade and starts its
// goroutine. The caller must call Exit to release the goroutine.
func New(eng engine.Engine) *Worker {
	w := &Worker{
		engine:           eng,
		inbox:            make(chan control, 64),
		ids:              newIDGenerator(),
		models:           map[uint32]*modelState{},
		contexts:         map[uint32]*contextState{},
		contextsForModel: map[uint32]map[uint32]struct{}{},
		exited:           make(chan struct{}),
	}
	go w.run()
	return w
}

// newID issues a fresh, never-zero small opaque id, selected uniformly at
// random over the wire protocol's id space; ids are never native
// addresses. Every control's request id and every model/context handle
// this package hands out is minted this way.
func (w *Worker) newID() uint32 {
	return w.ids.next()
}

func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for c := range w.inbox {
		switch v := c.(type) {
		case loadModelControl:
			w.handleLoadModel(v)
		case freeModelControl:
			w.handleFreeModel(v)
		case newContextControl:
			w.handleNewContext(v)
		case freeContextControl:
			w.handleFreeContext(v)
		case tokenizeControl:
			w.handleTokenize(v)
		case editControl:
			w.handleEdit(v)
		case ingestControl:
			w.handleIngest(v)
		case generateControl:
			w.handleGenerate(v)
		case exitControl:
			close(w.exited)
			close(v.reply)
			return
		default:
			log.Error().Msgf("worker: unhandled control type %T", c)
		}
	}
}

func (w *Worker) handleLoadModel(c loadModelControl) {
	log.Debug().Uint32("req", c.reqID).Str("path", c.path).Msg("load_model accepted")
	// c.onProgress runs inline on this goroutine, synchronously, every time
	// the native loader reports progress; it must never block waiting on
	// anything that itself needs this goroutine to make progress. Callers
	// are expected to hand the worker a non-blocking relay (see
	// Client.LoadModel) rather than their own callback directly.
	native, err := w.engine.LoadModel(c.path, c.params, c.onProgress)
	if err != nil {
		log.Error().Uint32("req", c.reqID).Err(err).Msg("load_model failed")
		c.reply <- loadModelResult{err: err}
		return
	}
	id := w.newID()
	w.models[id] = &modelState{id: id, native: native, path: c.path}
	w.contextsForModel[id] = map[uint32]struct{}{}
	c.reply <- loadModelResult{model: id}
}

func (w *Worker) handleFreeModel(c freeModelControl) {
	m, ok := w.models[c.model]
	if !ok {
		c.reply <- llmerr.New(llmerr.UnknownHandle, "unknown model handle")
		return
	}
	if live := w.contextsForModel[c.model]; len(live) > 0 {
		c.reply <- llmerr.New(llmerr.HandleStillReferenced, "model still has live contexts")
		return
	}
	if err := w.engine.FreeModel(m.native); err != nil {
		c.reply <- err
		return
	}
	delete(w.models, c.model)
	delete(w.contextsForModel, c.model)
	c.reply <- nil
}

func (w *Worker) handleNewContext(c newContextControl) {
	m, ok := w.models[c.model]
	if !ok {
		c.reply <- newContextResult{err: llmerr.New(llmerr.UnknownHandle, "unknown model handle")}
		return
	}
	native, err := w.engine.NewContext(m.native, c.params)
	if err != nil {
		c.reply <- newContextResult{err: err}
		return
	}
	id := w.newID()
	vocab := w.engine.VocabSize(m.native)
	w.contexts[id] = newContextState(id, c.model, native, m.native, c.params, vocab)
	w.contextsForModel[c.model][id] = struct{}{}
	c.reply <- newContextResult{ctx: id}
}

func (w *Worker) handleFreeContext(c freeContextControl) {
	cs, ok := w.contexts[c.ctx]
	if !ok {
		c.reply <- llmerr.New(llmerr.UnknownHandle, "unknown context handle")
		return
	}
	if err := cs.free(w.engine); err != nil {
		c.reply <- err
		return
	}
	delete(w.contexts, c.ctx)
	if live := w.contextsForModel[cs.modelID]; live != nil {
		delete(live, c.ctx)
	}
	c.reply <- nil
}

func (w *Worker) handleTokenize(c tokenizeControl) {
	cs, ok := w.contexts[c.ctx]
	if !ok {
		c.reply <- tokenizeResult{err: llmerr.New(llmerr.UnknownHandle, "unknown context handle")}
		return
	}
	appended, start, err := cs.tokenize(w.engine, c.text)
	c.reply <- tokenizeResult{tokens: appended, start: start, err: err}
}

func (w *Worker) handleEdit(c editControl) {
	cs, ok := w.contexts[c.ctx]
	if !ok {
		c.reply <- llmerr.New(llmerr.UnknownHandle, "unknown context handle")
		return
	}
	c.reply <- cs.edit(w.engine, c.newLength, c.hasLength)
}

func (w *Worker) handleIngest(c ingestControl) {
	cs, ok := w.contexts[c.ctx]
	if !ok {
		c.events <- ingestEvent{err: llmerr.New(llmerr.UnknownHandle, "unknown context handle")}
		close(c.events)
		return
	}
	cancelled, err := w.runIngest(cs, c.cancel)
	if cancelled {
		close(c.events)
		return
	}
	if err != nil {
		c.events <- ingestEvent{err: err}
		close(c.events)
		return
	}
	c.events <- ingestEvent{done: true}
	close(c.events)
}

func (w *Worker) handleGenerate(c generateControl) {
	cs, ok := w.contexts[c.ctx]
	if !ok {
		c.events <- generateEvent{err: llmerr.New(llmerr.UnknownHandle, "unknown context handle")}
		close(c.events)
		return
	}
	cancelled, err := w.runGenerate(cs, c.chain, func(tok token.Token) {
		c.events <- generateEvent{tok: tok}
	}, c.cancel)
	if cancelled {
		close(c.events)
		return
	}
	if err != nil {
		c.events <- generateEvent{err: err}
		close(c.events)
		return
	}
	c.events <- generateEvent{done: true}
	close(c.events)
}
