// Package gate bounds the number of simultaneous outbound network calls.
package gate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"searchfetch/internal/telemetry"
)

// Gate is a counting admission gate. Every outbound call (search request,
// content fetch, reader fetch, fallback fetch) acquires a permit first and
// releases it on all paths, so failures never leak capacity.
type Gate struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a Gate with the given permit count.
func New(size int) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a permit is available or the context finishes.
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire permit: %w", err)
	}
	telemetry.ObserveGateWait(time.Since(start))
	return nil
}

// Release returns a permit. It must be called exactly once per successful
// Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Size returns the configured permit count.
func (g *Gate) Size() int {
	return g.size
}
