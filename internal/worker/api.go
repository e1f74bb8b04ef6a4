package worker

import (
	"sync"

	"llamaworker/internal/engine"
	"llamaworker/llmerr"
	"llamaworker/sampler"
	"llamaworker/token"
)

// errExited is returned by every public method once Exit has completed.
func errExited() error {
	return llmerr.New(llmerr.StateViolation, "worker has exited")
}

// LoadModel loads model weights from path and returns the worker-issued
// model id. onProgress, if non-nil, is invoked with a fraction in [0,1] as
// the native loader reports progress.
func (w *Worker) LoadModel(path string, params engine.ModelParams, onProgress func(float32)) (uint32, error) {
	if w.closed.Load() {
		return 0, errExited()
	}
	reply := make(chan loadModelResult, 1)
	w.inbox <- loadModelControl{baseControl: baseControl{reqID: w.newID()}, path: path, params: params, onProgress: onProgress, reply: reply}
	res := <-reply
	return res.model, res.err
}

// FreeModel frees a loaded model. It fails with llmerr.HandleStillReferenced
// while any context still references the model.
func (w *Worker) FreeModel(model uint32) error {
	if w.closed.Load() {
		return errExited()
	}
	reply := make(chan error, 1)
	w.inbox <- freeModelControl{baseControl: baseControl{reqID: w.newID()}, model: model, reply: reply}
	return <-reply
}

// NewContext creates an inference context bound to model.
func (w *Worker) NewContext(model uint32, params engine.ContextParams) (uint32, error) {
	if w.closed.Load() {
		return 0, errExited()
	}
	reply := make(chan newContextResult, 1)
	w.inbox <- newContextControl{baseControl: baseControl{reqID: w.newID()}, model: model, params: params, reply: reply}
	res := <-reply
	return res.ctx, res.err
}

// FreeContext releases a context and its native resources.
func (w *Worker) FreeContext(ctx uint32) error {
	if w.closed.Load() {
		return errExited()
	}
	reply := make(chan error, 1)
	w.inbox <- freeContextControl{baseControl: baseControl{reqID: w.newID()}, ctx: ctx, reply: reply}
	return <-reply
}

// Tokenize appends text's tokenization to ctx's token buffer and returns
// the appended tokens and their start index.
func (w *Worker) Tokenize(ctx uint32, text string) ([]int32, int, error) {
	if w.closed.Load() {
		return nil, 0, errExited()
	}
	reply := make(chan tokenizeResult, 1)
	w.inbox <- tokenizeControl{baseControl: baseControl{reqID: w.newID()}, ctx: ctx, text: text, reply: reply}
	res := <-reply
	return res.tokens, res.start, res.err
}

// Edit truncates ctx's token buffer to newLength. A nil newLength is a
// no-op, matching "newLength absent" in the control taxonomy.
func (w *Worker) Edit(ctx uint32, newLength *int) error {
	if w.closed.Load() {
		return errExited()
	}
	reply := make(chan error, 1)
	c := editControl{baseControl: baseControl{reqID: w.newID()}, ctx: ctx, reply: reply}
	if newLength != nil {
		c.newLength = *newLength
		c.hasLength = true
	}
	w.inbox <- c
	return <-reply
}

// IngestStream is the streaming handle returned by Ingest. Receiving the
// stream back from Ingest is itself the handshake: the cancel channel
// already exists before the worker begins processing the call.
type IngestStream struct {
	events     chan ingestEvent
	cancel     chan struct{}
	cancelOnce sync.Once
}

// Cancel signals the worker to stop ingesting at its next yield point. It
// is safe to call more than once and from any goroutine.
func (s *IngestStream) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

// Wait blocks until ingest finishes, is cancelled, or fails. A cancelled
// ingest returns (true, nil); logits.length <= tokens.length still holds
// afterward, so a subsequent Ingest resumes cleanly from wherever it left
// off.
func (s *IngestStream) Wait() (cancelled bool, err error) {
	for ev := range s.events {
		if ev.err != nil {
			return false, ev.err
		}
		if ev.done {
			return false, nil
		}
	}
	return true, nil
}

// Ingest advances ctx's logits buffer up to its token buffer, decoding in
// batches of up to the context's batch width.
func (w *Worker) Ingest(ctx uint32) (*IngestStream, error) {
	if w.closed.Load() {
		return nil, errExited()
	}
	stream := &IngestStream{events: make(chan ingestEvent, 1), cancel: make(chan struct{})}
	w.inbox <- ingestControl{baseControl: baseControl{reqID: w.newID()}, ctx: ctx, events: stream.events, cancel: stream.cancel}
	return stream, nil
}

// GenerateStream is the streaming handle returned by Generate.
type GenerateStream struct {
	events     chan generateEvent
	cancel     chan struct{}
	cancelOnce sync.Once
}

// Cancel signals the worker to stop generating at its next yield point.
func (s *GenerateStream) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

// Next returns the next generated token, or ok=false when generation has
// finished (err is nil for a clean stop, non-nil for a failure, and both
// nil for a caller-initiated cancellation).
func (s *GenerateStream) Next() (tok token.Token, ok bool, err error) {
	ev, open := <-s.events
	if !open {
		return token.Token{}, false, nil
	}
	if ev.err != nil {
		return token.Token{}, false, ev.err
	}
	if ev.done {
		return token.Token{}, false, nil
	}
	return ev.tok, true, nil
}

// Generate runs chain against ctx until the context fills up or a
// terminal sampler emits EOS.
func (w *Worker) Generate(ctx uint32, chain []sampler.Sampler) (*GenerateStream, error) {
	if w.closed.Load() {
		return nil, errExited()
	}
	stream := &GenerateStream{events: make(chan generateEvent, 8), cancel: make(chan struct{})}
	w.inbox <- generateControl{baseControl: baseControl{reqID: w.newID()}, ctx: ctx, chain: chain, events: stream.events, cancel: stream.cancel}
	return stream, nil
}

// Exit stops the worker goroutine. It blocks until the worker has drained
// its inbox and terminated. Calling any other method after Exit returns
// returns llmerr.StateViolation.
func (w *Worker) Exit() {
	if w.closed.Swap(true) {
		return
	}
	reply := make(chan struct{})
	w.inbox <- exitControl{baseControl: baseControl{reqID: w.newID()}, reply: reply}
	<-reply
}
