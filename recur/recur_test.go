package recur_test

import (
	"context"
	"testing"

	"github.com/lordnynex/qless-core/recur"
	"github.com/lordnynex/qless-core/store"
	"github.com/lordnynex/qless-core/store/memory"
)

func TestRegister_PlacesTemplateInQueueRecurIndex(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	tmpl := recur.Template{JID: "r1", Klass: "k", Data: "{}", Queue: "q1", Spec: recur.ScheduleInterval, Interval: 60, Retries: 3}

	if err := recur.Register(ctx, b, tmpl, 100, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	score, ok, err := b.ZScore(ctx, store.QueueRecurKey("q1"), "r1")
	if err != nil {
		t.Fatalf("ZScore: %v", err)
	}
	if !ok || score != 100 {
		t.Fatalf("score = %v, ok=%v, want 100/true", score, ok)
	}

	got, err := recur.Get(ctx, b, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Klass != "k" || got.Interval != 60 {
		t.Fatalf("Get returned %+v", got)
	}
}

func TestUpdate_SpawnsDueInstancesAndAdvancesScore(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	tmpl := recur.Template{JID: "r1", Klass: "k", Data: "{}", Queue: "q1", Spec: recur.ScheduleInterval, Interval: 10, Retries: 2, Priority: 5}
	if err := recur.Register(ctx, b, tmpl, 0, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	spawned, err := recur.Update(ctx, b, "q1", 25, 10)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	// due at 0, 10, 20 (all <= 25) => 3 instances
	if len(spawned) != 3 {
		t.Fatalf("spawned %d instances, want 3: %+v", len(spawned), spawned)
	}
	wantJIDs := []string{"r1-1", "r1-2", "r1-3"}
	for i, s := range spawned {
		if s.JID != wantJIDs[i] {
			t.Errorf("spawned[%d].JID = %s, want %s", i, s.JID, wantJIDs[i])
		}
		if s.Job.Queue != "q1" || s.Job.Retries != 2 {
			t.Errorf("spawned[%d].Job = %+v, unexpected fields", i, s.Job)
		}
	}

	score, ok, err := b.ZScore(ctx, store.QueueRecurKey("q1"), "r1")
	if err != nil || !ok {
		t.Fatalf("ZScore after Update: ok=%v err=%v", ok, err)
	}
	if score != 30 {
		t.Fatalf("score after 3 instantiations of interval 10 starting at 0 = %v, want 30", score)
	}
}

func TestUpdate_RespectsNeedLimit(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	tmpl := recur.Template{JID: "r1", Klass: "k", Data: "{}", Queue: "q1", Spec: recur.ScheduleInterval, Interval: 1, Retries: 1}
	if err := recur.Register(ctx, b, tmpl, 0, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	spawned, err := recur.Update(ctx, b, "q1", 1000, 2)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(spawned) != 2 {
		t.Fatalf("spawned %d instances, want exactly 2 (need cap)", len(spawned))
	}
}

func TestSave_DoesNotResetQueueScore(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	tmpl := recur.Template{JID: "r1", Klass: "k", Data: "{}", Queue: "q1", Spec: recur.ScheduleInterval, Interval: 60, Retries: 3}
	if err := recur.Register(ctx, b, tmpl, 500, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tmpl.Priority = 9
	tmpl.Retries = 7
	if err := recur.Save(ctx, b, tmpl); err != nil {
		t.Fatalf("Save: %v", err)
	}

	score, ok, err := b.ZScore(ctx, store.QueueRecurKey("q1"), "r1")
	if err != nil || !ok || score != 500 {
		t.Fatalf("score after Save = %v (ok=%v), want unchanged 500", score, ok)
	}
	got, err := recur.Get(ctx, b, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Priority != 9 || got.Retries != 7 {
		t.Fatalf("Save did not persist edited fields: %+v", got)
	}
}

func TestUnregister_RemovesTemplateAndQueuePlacement(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	tmpl := recur.Template{JID: "r1", Klass: "k", Data: "{}", Queue: "q1", Spec: recur.ScheduleInterval, Interval: 60, Retries: 3}
	if err := recur.Register(ctx, b, tmpl, 0, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := recur.Unregister(ctx, b, tmpl); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	got, err := recur.Get(ctx, b, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get after Unregister = %+v, want nil", got)
	}
	_, ok, err := b.ZScore(ctx, store.QueueRecurKey("q1"), "r1")
	if err != nil {
		t.Fatalf("ZScore: %v", err)
	}
	if ok {
		t.Fatal("recur zset still contains r1 after Unregister")
	}
}

func TestGet_UnknownTemplateReturnsNil(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	got, err := recur.Get(ctx, b, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get(missing) = %+v, want nil", got)
	}
}
