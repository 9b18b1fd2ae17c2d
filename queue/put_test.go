package queue_test

import (
	"context"
	"testing"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/queue"
	"github.com/lordnynex/qless-core/store/memory"
)

func newEngine() *queue.Engine {
	return queue.New(memory.New(), config.New())
}

func intPtr(n int) *int { return &n }

func TestPut_FreshJobEntersWaiting(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JID != "j1" {
		t.Fatalf("Peek = %+v, want [j1]", jobs)
	}
	if jobs[0].State != job.StateWaiting {
		t.Errorf("state = %s, want waiting", jobs[0].State)
	}
}

func TestPut_WithDelayEntersScheduled(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{Delay: 60}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Not yet due: peek at the put time sees nothing.
	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("Peek before delay elapses = %+v, want empty", jobs)
	}

	// Due: peek after the delay elapses promotes it into work.
	jobs, err = e.Peek(ctx, 161, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JID != "j1" {
		t.Fatalf("Peek after delay = %+v, want [j1]", jobs)
	}
}

func TestPut_WithDependsEntersDependsState(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "parent", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(parent): %v", err)
	}
	if err := e.Put(ctx, 100, "q1", "child", "klass", "{}", job.PutOptions{Depends: []job.JID{"parent"}}); err != nil {
		t.Fatalf("Put(child): %v", err)
	}

	// child must not be dispatchable while parent is incomplete.
	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JID != "parent" {
		t.Fatalf("Peek = %+v, want only [parent]", jobs)
	}

	deps, err := e.DependsAll(ctx, "child")
	if err != nil {
		t.Fatalf("DependsAll: %v", err)
	}
	if len(deps) != 1 || deps[0] != "parent" {
		t.Errorf("DependsAll(child) = %v, want [parent]", deps)
	}
}

func TestPut_DelayAndDependsIsConflict(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "parent", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(parent): %v", err)
	}
	err := e.Put(ctx, 100, "q1", "child", "klass", "{}", job.PutOptions{
		Delay:   60,
		Depends: []job.JID{"parent"},
	})
	if err == nil {
		t.Fatal("Put with both Delay and Depends should fail")
	}
	qerr, ok := err.(*qcore.Error)
	if !ok {
		t.Fatalf("error type = %T, want *qcore.Error", err)
	}
	if qerr.Kind != qcore.Conflict {
		t.Errorf("Kind = %v, want Conflict", qerr.Kind)
	}
}

func TestPut_CompletedDependencyIsSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "parent", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(parent): %v", err)
	}
	popped, err := e.Pop(ctx, 100, "q1", "w1", 1)
	if err != nil || len(popped) != 1 {
		t.Fatalf("Pop: %v %+v", err, popped)
	}
	if err := e.Complete(ctx, 101, "parent", "w1", "q1", "{}", queue.CompleteOptions{}); err != nil {
		t.Fatalf("Complete(parent): %v", err)
	}

	if err := e.Put(ctx, 102, "q1", "child", "klass", "{}", job.PutOptions{Depends: []job.JID{"parent"}}); err != nil {
		t.Fatalf("Put(child): %v", err)
	}

	deps, err := e.DependsAll(ctx, "child")
	if err != nil {
		t.Fatalf("DependsAll: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("DependsAll(child) after completed parent = %v, want empty", deps)
	}
	jobs, err := e.Peek(ctx, 102, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JID != "child" {
		t.Fatalf("Peek = %+v, want [child] (not depends-blocked)", jobs)
	}
}

func TestPut_RepriorityUsesExistingWhenNotSupplied(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{Priority: intPtr(5)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("re-Put: %v", err)
	}

	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Priority != 5 {
		t.Fatalf("Priority after re-Put without override = %+v, want 5", jobs)
	}
}

func TestPut_ReplacingRunningJobReleasesWorkerLease(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Pop(ctx, 100, "q1", "w1", 1); err != nil {
		t.Fatalf("Pop: %v", err)
	}

	// Re-putting a leased job should cancel the lease and put it back to
	// waiting rather than leaving a dangling lock/worker-jobs entry.
	if err := e.Put(ctx, 105, "q1", "j1", "klass2", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("re-Put: %v", err)
	}

	jobs, err := e.Peek(ctx, 105, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Klass != "klass2" || jobs[0].State != job.StateWaiting {
		t.Fatalf("Peek after re-Put of running job = %+v", jobs)
	}
}
