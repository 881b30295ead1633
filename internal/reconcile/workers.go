package reconcile

import (
	"context"
	"sync"
	"sync/atomic"

	"staffing/internal/models"

	"go.uber.org/zap"
)

const defaultWorkers = 4

type runStats struct {
	scanned    int32
	recomputes int32
	provisions int32
	failures   int32
}

func (s *runStats) recomputed()  { atomic.AddInt32(&s.recomputes, 1) }
func (s *runStats) provisioned() { atomic.AddInt32(&s.provisions, 1) }
func (s *runStats) fail()        { atomic.AddInt32(&s.failures, 1) }

func (s *runStats) snapshot() Stats {
	return Stats{
		Scanned:     int(atomic.LoadInt32(&s.scanned)),
		Recomputed:  int(atomic.LoadInt32(&s.recomputes)),
		Provisioned: int(atomic.LoadInt32(&s.provisions)),
		Failed:      int(atomic.LoadInt32(&s.failures)),
	}
}

type workerPool struct {
	reconciler *Reconciler
	logger     *zap.Logger
	size       int
}

func newWorkerPool(r *Reconciler, logger *zap.Logger, size int) *workerPool {
	if size <= 0 {
		size = defaultWorkers
	}
	return &workerPool{
		reconciler: r,
		logger:     logger,
		size:       size,
	}
}

func (w *workerPool) run(ctx context.Context, apps []*models.Application) Stats {
	stats := &runStats{}
	appChan := make(chan *models.Application)

	var wg sync.WaitGroup
	for i := 0; i < w.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for app := range appChan {
				atomic.AddInt32(&stats.scanned, 1)
				w.reconciler.repair(ctx, app, stats)
			}
		}()
	}

	w.feed(ctx, apps, appChan)
	wg.Wait()

	return stats.snapshot()
}

func (w *workerPool) feed(ctx context.Context, apps []*models.Application, appChan chan<- *models.Application) {
	defer close(appChan)
	for _, app := range apps {
		select {
		case <-ctx.Done():
			w.logger.Warn("reconcile cancelled before all applications were queued", zap.Error(ctx.Err()))
			return
		case appChan <- app:
		}
	}
}
