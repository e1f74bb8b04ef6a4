package worker

import (
	crand "crypto/rand"
	mrand "math/rand/v2"
	"sync"
)

// idGenerator mints fresh, never-zero 32-bit ids uniformly at random,
// matching the wire protocol's id space (0 < id <= 2^32-1; id 0
// reserved). It is called from every caller goroutine driving the
// public API as well as from the worker's own goroutine when minting
// model/context handles, so access to the underlying source is
// serialized with a mutex.
type idGenerator struct {
	mu  sync.Mutex
	rnd *mrand.ChaCha8
}

// newIDGenerator seeds a ChaCha8 source from crypto/rand so ids are
// unpredictable across process restarts, not just within one.
func newIDGenerator() *idGenerator {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("worker: failed to seed the request id generator: " + err.Error())
	}
	return &idGenerator{rnd: mrand.NewChaCha8(seed)}
}

func (g *idGenerator) next() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id := g.rnd.Uint64()
		if v := uint32(id); v != 0 {
			return v
		}
	}
}
