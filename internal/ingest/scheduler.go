package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Scheduler feeds queued documents to a fixed pool of pipeline workers.
type Scheduler struct {
	pipeline *Pipeline
	workers  int
	queue    chan string

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler with the given worker count.
func NewScheduler(pipeline *Pipeline, workers, queueDepth int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < workers {
		queueDepth = workers * 16
	}
	return &Scheduler{
		pipeline: pipeline,
		workers:  workers,
		queue:    make(chan string, queueDepth),
	}
}

// Start launches the worker pool. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case docID, ok := <-s.queue:
					if !ok {
						return
					}
					if err := s.pipeline.Process(ctx, docID); err != nil {
						log.Printf("ingest: document %s: %v", docID, err)
					}
				}
			}
		}()
	}
}

// Enqueue queues a document for processing without blocking. It fails
// when the queue is full or the scheduler is stopped.
func (s *Scheduler) Enqueue(docID string) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("scheduler not running")
	}

	select {
	case s.queue <- docID:
		return nil
	default:
		return fmt.Errorf("ingestion queue full")
	}
}

// Stop cancels in-flight work and waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}
