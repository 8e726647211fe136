package progress

import (
	"sync"
	"testing"
)

func TestBatchLifecycle(t *testing.T) {
	var b Batch

	if s := b.Status(); s.Running {
		t.Fatal("fresh batch reports running")
	}
	if !b.Begin(3) {
		t.Fatal("Begin failed on idle batch")
	}
	if b.Begin(5) {
		t.Fatal("Begin succeeded while a run is in flight")
	}

	b.Step("q1")
	b.Step("q2")
	s := b.Status()
	if s.Completed != 2 || s.Total != 3 || !s.Running || s.Current != "q2" {
		t.Errorf("snapshot = %+v", s)
	}

	b.End()
	s = b.Status()
	if s.Running || s.Current != "" {
		t.Errorf("snapshot after End = %+v", s)
	}
	if !b.Begin(1) {
		t.Error("Begin failed after End")
	}
}

func TestBatchConcurrentSteps(t *testing.T) {
	var b Batch
	b.Begin(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Step("item")
		}()
	}
	wg.Wait()

	if s := b.Status(); s.Completed != 100 {
		t.Errorf("completed = %d, want 100", s.Completed)
	}
}
