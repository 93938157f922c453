package pool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hostbridge/wasm-bridge/engine"
	"github.com/hostbridge/wasm-bridge/errors"
)

// Pool hands out guest instances drawn from one compiled module, at most
// size at a time. Checkout and Release are safe for concurrent use; the
// instance between them is not, it belongs to one goroutine for the span
// of one request.
type Pool struct {
	module  *engine.WazeroModule
	slots   chan struct{}
	timeout time.Duration
}

// New builds a pool of size slots over a compiled module. Checkout waits
// at most timeout for a free slot before reporting exhaustion.
func New(module *engine.WazeroModule, size int, timeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	slots := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		slots <- struct{}{}
	}
	return &Pool{module: module, slots: slots, timeout: timeout}
}

// Size returns the slot capacity.
func (p *Pool) Size() int { return cap(p.slots) }

// Idle returns the number of currently free slots.
func (p *Pool) Idle() int { return len(p.slots) }

// Checkout acquires a slot and instantiates a fresh guest. The caller owns
// the instance until Release and must keep all calls against it on one
// goroutine. When every slot is taken for longer than the pool timeout the
// checkout fails with an exhaustion error; a cancelled context fails with
// the context's error.
func (p *Pool) Checkout(ctx context.Context) (*engine.WazeroInstance, error) {
	select {
	case <-p.slots:
	default:
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		select {
		case <-p.slots:
		case <-timer.C:
			Logger().Warn("instance pool exhausted",
				zap.Int("size", cap(p.slots)),
				zap.Duration("timeout", p.timeout))
			return nil, errors.Exhausted("instance pool")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	inst, err := p.module.Instantiate(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}
	return inst, nil
}

// Release closes the instance and frees its slot. Call it exactly once per
// successful Checkout; a nil instance is ignored so error paths can defer
// it unconditionally. Trapped instances take the same path as healthy
// ones: closed and discarded, the next checkout starts clean.
func (p *Pool) Release(ctx context.Context, inst *engine.WazeroInstance) {
	if inst == nil {
		return
	}
	if err := inst.Close(ctx); err != nil {
		Logger().Warn("instance close failed", zap.Error(err))
	}
	p.slots <- struct{}{}
}
