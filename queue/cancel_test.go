package queue_test

import (
	"context"
	"sort"
	"testing"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/job"
)

func TestCancel_RemovesJobEntirely(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Cancel(ctx, 100, "j1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("Peek after Cancel = %+v, want empty", jobs)
	}
}

func TestCancel_RunningJobIsRejected(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Pop(ctx, 100, "q1", "w1", 1); err != nil {
		t.Fatalf("Pop: %v", err)
	}

	err := e.Cancel(ctx, 100, "j1")
	if err == nil {
		t.Fatal("Cancel of a running job should fail")
	}
	qerr, ok := err.(*qcore.Error)
	if !ok || qerr.Kind != qcore.InvalidTransition {
		t.Fatalf("err = %v, want InvalidTransition", err)
	}
}

func TestCancel_RejectedWhenDependentStillPending(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "parent", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(parent): %v", err)
	}
	if err := e.Put(ctx, 100, "q1", "child", "klass", "{}", job.PutOptions{Depends: []job.JID{"parent"}}); err != nil {
		t.Fatalf("Put(child): %v", err)
	}

	err := e.Cancel(ctx, 100, "parent")
	if err == nil {
		t.Fatal("Cancel of a job with a pending dependent should fail")
	}
	qerr, ok := err.(*qcore.Error)
	if !ok || qerr.Kind != qcore.InvalidTransition {
		t.Fatalf("err = %v, want InvalidTransition", err)
	}
}

func TestPause_BlocksPopButNotPeek(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Pause(ctx, "q1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	popped, err := e.Pop(ctx, 100, "q1", "w1", 1)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if len(popped) != 0 {
		t.Fatalf("Pop on a paused queue = %+v, want empty", popped)
	}

	peeked, err := e.Peek(ctx, 100, "q1", 1)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(peeked) != 1 {
		t.Fatalf("Peek on a paused queue = %+v, want [j1]", peeked)
	}

	if err := e.Unpause(ctx, "q1"); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	popped, err = e.Pop(ctx, 100, "q1", "w1", 1)
	if err != nil {
		t.Fatalf("Pop after Unpause: %v", err)
	}
	if len(popped) != 1 {
		t.Fatalf("Pop after Unpause = %+v, want [j1]", popped)
	}
}

func TestTagAddRemoveGet(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.TagAdd(ctx, 100, "j1", "urgent", "billing"); err != nil {
		t.Fatalf("TagAdd: %v", err)
	}

	jids, err := e.TagGet(ctx, "urgent")
	if err != nil {
		t.Fatalf("TagGet: %v", err)
	}
	if len(jids) != 1 || jids[0] != "j1" {
		t.Fatalf("TagGet(urgent) = %v, want [j1]", jids)
	}

	if err := e.TagRemove(ctx, "j1", "urgent"); err != nil {
		t.Fatalf("TagRemove: %v", err)
	}
	jids, err = e.TagGet(ctx, "urgent")
	if err != nil {
		t.Fatalf("TagGet: %v", err)
	}
	if len(jids) != 0 {
		t.Fatalf("TagGet(urgent) after TagRemove = %v, want empty", jids)
	}
}

func TestTrackUntrack(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := e.Track(ctx, "j1"); err != nil {
		t.Fatalf("Track: %v", err)
	}

	tracked, err := e.Tracked(ctx)
	if err != nil {
		t.Fatalf("Tracked: %v", err)
	}
	if len(tracked) != 1 || tracked[0] != "j1" {
		t.Fatalf("Tracked = %v, want [j1]", tracked)
	}

	if err := e.Untrack(ctx, "j1"); err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	tracked, err = e.Tracked(ctx)
	if err != nil {
		t.Fatalf("Tracked: %v", err)
	}
	if len(tracked) != 0 {
		t.Fatalf("Tracked after Untrack = %v, want empty", tracked)
	}
}

func TestDependsOnOff(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "parent", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(parent): %v", err)
	}
	if err := e.Put(ctx, 100, "q1", "child", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put(child): %v", err)
	}

	if err := e.DependsOn(ctx, 100, "child", "parent"); err != nil {
		t.Fatalf("DependsOn: %v", err)
	}
	jobs, err := e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JID < jobs[j].JID })
	if len(jobs) != 1 || jobs[0].JID != "parent" {
		t.Fatalf("Peek after DependsOn = %+v, want only [parent]", jobs)
	}

	if err := e.DependsOff(ctx, 100, "child", "parent"); err != nil {
		t.Fatalf("DependsOff: %v", err)
	}
	jobs, err = e.Peek(ctx, 100, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Peek after DependsOff = %+v, want both jobs released", jobs)
	}
}

func TestUnfail_MovesJobsBackToWaiting(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	if err := e.Put(ctx, 100, "q1", "j1", "klass", "{}", job.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := e.Pop(ctx, 100, "q1", "w1", 1); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if err := e.Fail(ctx, 110, "j1", "w1", "q1", "boom", "bad", nil); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	n, err := e.Unfail(ctx, 120, "boom", "q1", 0)
	if err != nil {
		t.Fatalf("Unfail: %v", err)
	}
	if n != 1 {
		t.Fatalf("Unfail returned %d, want 1", n)
	}

	jobs, err := e.Peek(ctx, 120, "q1", 10)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(jobs) != 1 || jobs[0].State != job.StateWaiting || jobs[0].Remaining != jobs[0].Retries {
		t.Fatalf("Peek after Unfail = %+v, want waiting with remaining restored", jobs)
	}
}
