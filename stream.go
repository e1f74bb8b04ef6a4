package llamaworker

import (
	"context"

	"llamaworker/internal/worker"
	"llamaworker/sampler"
	"llamaworker/token"
)

// watchCancel closes stream cancellation whenever ctx is done, stopping
// itself once the stream has already finished on its own (signalled by
// closing done). It lets a caller impose a timeout or cancellation on a
// stream purely via context, without the worker's own cancel channel
// knowing anything about contexts; that channel is single-shot, so this
// only ever needs to fire once.
func watchCancel(ctx context.Context, cancel func(), done <-chan struct{}) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
}

// IngestStream is the handle returned by Ingest. It has no per-token
// payload — Wait simply blocks until ingest finishes, is cancelled, or
// fails.
type IngestStream struct {
	inner *worker.IngestStream
	done  chan struct{}
}

// Cancel signals the worker to stop ingesting at its next yield point.
func (s *IngestStream) Cancel() { s.inner.Cancel() }

// Wait blocks until ingest finishes, is cancelled, or fails. A cancelled
// ingest returns (true, nil); logits.length <= tokens.length still holds
// afterward, so a subsequent Ingest call resumes cleanly.
func (s *IngestStream) Wait() (cancelled bool, err error) {
	defer close(s.done)
	return s.inner.Wait()
}

// Ingest advances ctx's logits buffer up to its token buffer, decoding in
// batches of up to the context's batch width. Cancelling the supplied
// context signals the same handshake channel a direct Cancel() call
// would.
func (c *Client) Ingest(ctx context.Context, handle ContextHandle) (*IngestStream, error) {
	inner, err := c.w.Ingest(uint32(handle))
	if err != nil {
		return nil, err
	}
	s := &IngestStream{inner: inner, done: make(chan struct{})}
	watchCancel(ctx, s.Cancel, s.done)
	return s, nil
}

// GenerateStream is the handle returned by Generate: a lazy, finite,
// non-restartable sequence of generated tokens.
type GenerateStream struct {
	inner *worker.GenerateStream
	done  chan struct{}
}

// Cancel signals the worker to stop generating at its next yield point.
func (s *GenerateStream) Cancel() { s.inner.Cancel() }

// Next returns the next generated token, or ok=false when generation has
// finished (err is nil for a clean stop or cancellation, non-nil for a
// failure).
func (s *GenerateStream) Next() (tok token.Token, ok bool, err error) {
	tok, ok, err = s.inner.Next()
	if !ok {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	return tok, ok, err
}

// Generate runs chain against handle until the context fills up or a
// terminal sampler emits the model's EOS id. Cancelling the supplied
// context stops generation at the next yield point, the same as calling
// Cancel() on the returned stream.
func (c *Client) Generate(ctx context.Context, handle ContextHandle, chain []sampler.Sampler) (*GenerateStream, error) {
	inner, err := c.w.Generate(uint32(handle), chain)
	if err != nil {
		return nil, err
	}
	s := &GenerateStream{inner: inner, done: make(chan struct{})}
	watchCancel(ctx, s.Cancel, s.done)
	return s, nil
}
