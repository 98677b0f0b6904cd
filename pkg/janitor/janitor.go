// Package janitor periodically evicts cache entries that have not been read
// for a configured period.
package janitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/models"
)

// Clearer is the part of the cache the janitor drives.
type Clearer interface {
	Clear(ctx context.Context, filter models.ClearFilter) (int64, error)
}

// Janitor runs Clear with an AccessedBefore cutoff on a fixed interval.
type Janitor struct {
	cache    Clearer
	interval time.Duration
	maxIdle  time.Duration
	log      *zap.Logger
	now      func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a Janitor. It does nothing until Start is called.
func New(c Clearer, interval, maxIdle time.Duration, log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{
		cache:    c,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log.Named("janitor"),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Enabled reports whether the janitor has both an interval and an idle limit.
func (j *Janitor) Enabled() bool {
	return j.interval > 0 && j.maxIdle > 0
}

// Sweep evicts entries last accessed more than maxIdle ago.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.maxIdle)
	n, err := j.cache.Clear(ctx, models.ClearFilter{AccessedBefore: cutoff})
	if err != nil {
		j.log.Error("sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		j.log.Info("evicted idle entries", zap.Int64("entries", n), zap.Time("accessed_before", cutoff))
	}
	return n, nil
}

// Start launches the sweep loop. It is a no-op when the janitor is disabled.
func (j *Janitor) Start(ctx context.Context) {
	if !j.Enabled() {
		return
	}
	j.wg.Add(1)
	go j.loop(ctx)
}

// Stop ends the sweep loop and waits for it to return.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.done) })
	j.wg.Wait()
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Sweep(ctx)
		}
	}
}
