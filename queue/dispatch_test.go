package queue_test

import (
	"context"
	"testing"

	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/queue"
	"github.com/lordnynex/qless-core/recur"
)

func TestPeek_OrdersByPriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "low", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(low): %v", err)
	}
	if err := e.Put(ctx, 101, "q1", "high", "klass", "{}", job.PutOptions{Priority: intPtr(10)}); err != nil {
		t.Fatalf("Put(high): %v", err)
	}
	if err := e.Put(ctx, 102, "q1", "mid", "klass", "{}", job.PutOptions{Priority: intPtr(5)}); err != nil {
		t.Fatalf("Put(mid): %v", err)
	}

	jobs, err := e.Peek(ctx, 103, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Peek = %+v, want 3 jobs", jobs)
	}
	want := []string{"high", "mid", "low"}
	for i, w := range want {
		if jobs[i].JID != w {
			t.Errorf("jobs[%d].JID = %s, want %s (order=%v)", i, jobs[i].JID, w, jobNames(jobs))
		}
	}
}

func jobNames(jobs []*job.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.JID
	}
	return out
}

func TestPop_InstantiatesDueRecurringJobs(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Recur(ctx, 0, "q1", "r1", "klass", "{}", recur.ScheduleInterval, 10, 0, queue.RecurOptions{}); err != nil {
		t.Fatalf("Recur: %v", err)
	}

	popped, err := e.Pop(ctx, 25, "q1", "w1", 10)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	// due at 0, 10, 20 (all <= 25) => 3 spawned instances immediately poppable
	if len(popped) != 3 {
		t.Fatalf("Pop spawned+leased %d jobs, want 3: %+v", len(popped), jobNames(popped))
	}
	want := map[string]bool{"r1-1": true, "r1-2": true, "r1-3": true}
	for _, j := range popped {
		if !want[j.JID] {
			t.Errorf("unexpected spawned jid %s", j.JID)
		}
		if j.State != job.StateRunning {
			t.Errorf("spawned job %s state = %s, want running", j.JID, j.State)
		}
	}
}

func TestPeek_NeverInstallsLease(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Peek(ctx, 100, "q1", 10); err != nil {
		t.Fatalf("Peek: %v", err)
	}

	// Peek must not have leased it: Pop still sees it as a fresh candidate.
	popped, err := e.Pop(ctx, 100, "q1", "w1", 10)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if len(popped) != 1 || popped[0].JID != "j1" {
		t.Fatalf("Pop after Peek = %+v, want [j1] still poppable", popped)
	}
}
