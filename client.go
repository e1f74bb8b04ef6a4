// Package llamaworker is the client façade: the module's public surface
// over the isolated worker in internal/worker. It mints request ids (by
// delegating to the worker, which owns id issuance), correlates
// responses, and renders the worker's streaming Ingest/Generate calls as
// context.Context-cancellable stream values instead of raw channels.
//
// Everything below this package — internal/worker, internal/engine,
// candidate, token — is an implementation detail; callers only ever hold
// the opaque ModelHandle/ContextHandle values this package hands out.
package llamaworker

import (
	"context"

	"llamaworker/internal/engine"
	"llamaworker/internal/worker"
	"llamaworker/sampler"
)

// ModelHandle is an opaque reference to a loaded model, returned by
// LoadModel. It carries no native pointer; the worker goroutine is the
// only thing that ever resolves it to native state.
type ModelHandle uint32

// ContextHandle is an opaque reference to an inference context bound to
// exactly one ModelHandle, returned by NewContext.
type ContextHandle uint32

// Client is the public entry point: one Client owns one isolated worker
// goroutine and every native handle it has created. A Client is safe for
// concurrent use; all calls are serialized onto the worker's inbox.
type Client struct {
	w *worker.Worker
}

// Open starts a new worker goroutine over eng and returns a Client bound
// to it. eng is almost always engine.NewCGO() in production and a fake
// implementation (package internal/engine/enginetest) in tests. The
// caller must call Close to release the goroutine.
func Open(eng engine.Engine) *Client {
	return &Client{w: worker.New(eng)}
}

// Close stops the worker goroutine, blocking until it has drained its
// inbox and terminated. Every native handle still open at Close time is
// leaked at the OS level (the process is expected to be exiting); callers
// that need a clean shutdown should FreeContext/FreeModel everything
// first.
func (c *Client) Close() {
	c.w.Exit()
}

// LoadModel loads model weights from path and returns a handle to them.
// onProgress, if non-nil, is invoked with a fraction in [0,1] as the
// native loader reports progress. The native callback re-enters on the
// worker's own locked OS thread, so it only ever enqueues onto a
// buffered channel; a dedicated goroutine owned by this call drains that
// channel and runs onProgress on its own stack, never the worker's. That
// hop is what makes it safe for onProgress to call back into this Client
// (e.g. to Tokenize) without deadlocking the worker it would otherwise be
// blocking.
func (c *Client) LoadModel(ctx context.Context, path string, params engine.ModelParams, onProgress func(fraction float32)) (ModelHandle, error) {
	var relay func(float32)
	if onProgress != nil {
		progress := make(chan float32, 32)
		drained := make(chan struct{})
		relay = func(f float32) {
			select {
			case progress <- f:
			default:
			}
		}
		go func() {
			defer close(drained)
			for f := range progress {
				select {
				case <-ctx.Done():
				default:
					onProgress(f)
				}
			}
		}()
		defer func() {
			close(progress)
			<-drained
		}()
	}
	id, err := c.w.LoadModel(path, params, relay)
	return ModelHandle(id), err
}

// FreeModel frees a loaded model. It fails with llmerr.HandleStillReferenced
// while any context still references the model; callers must FreeContext
// every context created from it first.
func (c *Client) FreeModel(model ModelHandle) error {
	return c.w.FreeModel(uint32(model))
}

// NewContext creates an inference context bound to model.
func (c *Client) NewContext(model ModelHandle, params engine.ContextParams) (ContextHandle, error) {
	id, err := c.w.NewContext(uint32(model), params)
	return ContextHandle(id), err
}

// FreeContext releases a context and its native resources.
func (c *Client) FreeContext(ctx ContextHandle) error {
	return c.w.FreeContext(uint32(ctx))
}

// Tokenize appends text's tokenization to ctx's token buffer and returns
// the appended token ids and the index they start at. The very first
// Tokenize call on a fresh context also prepends the model's BOS token.
func (c *Client) Tokenize(ctx ContextHandle, text string) ([]int32, int, error) {
	return c.w.Tokenize(uint32(ctx), text)
}

// Edit truncates ctx's token buffer to newLength, pruning the logits
// buffer and the native KV cache to match if necessary. A nil newLength
// is a no-op.
func (c *Client) Edit(ctx ContextHandle, newLength *int) error {
	return c.w.Edit(uint32(ctx), newLength)
}

// ResolveSamplers is a convenience that resolves a sampler.Registry
// against an ordered list of sampler.Spec, for callers driving Generate
// from a loaded sampler preset (internal/config.LoadSamplerPreset) rather
// than building a []sampler.Sampler chain in code.
func ResolveSamplers(reg sampler.Registry, specs []sampler.Spec) ([]sampler.Sampler, error) {
	return reg.Resolve(specs)
}
