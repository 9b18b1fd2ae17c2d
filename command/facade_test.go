package command_test

import (
	"context"
	"encoding/json"
	"testing"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/command"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/queue"
	"github.com/lordnynex/qless-core/store/memory"
)

func newFacade() *command.Facade {
	return command.New(queue.New(memory.New(), config.New()))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	ctx := context.Background()
	f := newFacade()
	_, err := f.Dispatch(ctx, "bogus", 0)
	if err == nil {
		t.Fatal("Dispatch of an unknown command should fail")
	}
	qerr, ok := err.(*qcore.Error)
	if !ok || qerr.Kind != qcore.UnknownCommand {
		t.Fatalf("err = %v, want UnknownCommand", err)
	}
}

func TestDispatch_PutThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	jid, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", `{"x":1}`, "0")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if jid != "j1" {
		t.Fatalf("put returned %q, want j1", jid)
	}

	out, err := f.Dispatch(ctx, "get", 100, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var view map[string]interface{}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("get result not valid JSON: %v (%s)", err, out)
	}
	if view["jid"] != "j1" || view["state"] != "waiting" || view["queue"] != "q1" {
		t.Fatalf("get view = %+v, want jid=j1 state=waiting queue=q1", view)
	}
}

func TestDispatch_PeekReturnsJSONArray(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", "{}", "0"); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := f.Dispatch(ctx, "peek", 100, "q1", "10")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	var views []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("peek result not valid JSON array: %v (%s)", err, out)
	}
	if len(views) != 1 || views[0]["jid"] != "j1" {
		t.Fatalf("peek views = %+v, want one entry for j1", views)
	}
}

func TestDispatch_PopCompleteCycle(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", "{}", "0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	out, err := f.Dispatch(ctx, "pop", 100, "q1", "w1", "1")
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	var popped []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &popped); err != nil {
		t.Fatalf("pop result not valid JSON: %v", err)
	}
	if len(popped) != 1 || popped[0]["worker"] != "w1" {
		t.Fatalf("pop result = %+v, want one entry leased to w1", popped)
	}

	jid, err := f.Dispatch(ctx, "complete", 110, "j1", "w1", "q1", `{"ok":true}`)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if jid != "j1" {
		t.Fatalf("complete returned %q, want j1", jid)
	}
}

func TestDispatch_FailThenFailedGroupCounts(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", "{}", "0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.Dispatch(ctx, "pop", 100, "q1", "w1", "1"); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if _, err := f.Dispatch(ctx, "fail", 110, "j1", "w1", "q1", "boom-group", "it broke"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	out, err := f.Dispatch(ctx, "failed", 120)
	if err != nil {
		t.Fatalf("failed (no group): %v", err)
	}
	var counts map[string]int64
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("failed result not valid JSON map: %v (%s)", err, out)
	}
	if counts["boom-group"] != 1 {
		t.Fatalf("failed counts = %+v, want boom-group=1", counts)
	}

	out, err = f.Dispatch(ctx, "failed", 120, "boom-group")
	if err != nil {
		t.Fatalf("failed (with group): %v", err)
	}
	var jids []string
	if err := json.Unmarshal([]byte(out), &jids); err != nil {
		t.Fatalf("failed(group) result not valid JSON array: %v (%s)", err, out)
	}
	if len(jids) != 1 || jids[0] != "j1" {
		t.Fatalf("failed(boom-group) jids = %v, want [j1]", jids)
	}
}

func TestDispatch_TagAddGetTop(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", "{}", "0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.Dispatch(ctx, "tag", 100, "add", "j1", "urgent"); err != nil {
		t.Fatalf("tag add: %v", err)
	}

	out, err := f.Dispatch(ctx, "tag", 100, "get", "urgent")
	if err != nil {
		t.Fatalf("tag get: %v", err)
	}
	var jids []string
	if err := json.Unmarshal([]byte(out), &jids); err != nil {
		t.Fatalf("tag get result not valid JSON: %v", err)
	}
	if len(jids) != 1 || jids[0] != "j1" {
		t.Fatalf("tag get urgent = %v, want [j1]", jids)
	}

	out, err = f.Dispatch(ctx, "tag", 100, "top", "10")
	if err != nil {
		t.Fatalf("tag top: %v", err)
	}
	var top []string
	if err := json.Unmarshal([]byte(out), &top); err != nil {
		t.Fatalf("tag top result not valid JSON: %v", err)
	}
	if len(top) != 1 || top[0] != "urgent" {
		t.Fatalf("tag top = %v, want [urgent]", top)
	}
}

func TestDispatch_TrackListOnOff(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "j1", "klass", "{}", "0"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.Dispatch(ctx, "track", 100, "track", "j1"); err != nil {
		t.Fatalf("track: %v", err)
	}
	out, err := f.Dispatch(ctx, "track", 100)
	if err != nil {
		t.Fatalf("track (list): %v", err)
	}
	var jids []string
	if err := json.Unmarshal([]byte(out), &jids); err != nil {
		t.Fatalf("track list result not valid JSON: %v", err)
	}
	if len(jids) != 1 || jids[0] != "j1" {
		t.Fatalf("tracked = %v, want [j1]", jids)
	}

	if _, err := f.Dispatch(ctx, "track", 100, "untrack", "j1"); err != nil {
		t.Fatalf("untrack: %v", err)
	}
	out, err = f.Dispatch(ctx, "track", 100)
	if err != nil {
		t.Fatalf("track (list after untrack): %v", err)
	}
	var after []string
	if err := json.Unmarshal([]byte(out), &after); err != nil {
		t.Fatalf("track list result not valid JSON: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("tracked after untrack = %v, want []", after)
	}
}

func TestDispatch_DependsOnOffAll(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "put", 100, "q1", "parent", "klass", "{}", "0"); err != nil {
		t.Fatalf("put(parent): %v", err)
	}
	if _, err := f.Dispatch(ctx, "put", 100, "q1", "child", "klass", "{}", "0"); err != nil {
		t.Fatalf("put(child): %v", err)
	}
	if _, err := f.Dispatch(ctx, "depends", 100, "on", "child", "parent"); err != nil {
		t.Fatalf("depends on: %v", err)
	}

	out, err := f.Dispatch(ctx, "depends", 100, "all", "child")
	if err != nil {
		t.Fatalf("depends all: %v", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("depends all result not valid JSON: %v", err)
	}
	if len(ids) != 1 || ids[0] != "parent" {
		t.Fatalf("depends all(child) = %v, want [parent]", ids)
	}

	if _, err := f.Dispatch(ctx, "depends", 100, "off", "child", "parent"); err != nil {
		t.Fatalf("depends off: %v", err)
	}
	out, err = f.Dispatch(ctx, "depends", 100, "all", "child")
	if err != nil {
		t.Fatalf("depends all after off: %v", err)
	}
	if out != "[]" && out != "null" {
		t.Fatalf("depends all(child) after off = %s, want empty", out)
	}
}

func TestDispatch_RecurThenRecurGet(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if err := func() error {
		_, err := f.Dispatch(ctx, "recur", 0, "q1", "r1", "klass", "{}", "interval", "60", "0")
		return err
	}(); err != nil {
		t.Fatalf("recur: %v", err)
	}

	out, err := f.Dispatch(ctx, "recur.get", 0, "r1")
	if err != nil {
		t.Fatalf("recur.get: %v", err)
	}
	var view map[string]interface{}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("recur.get result not valid JSON: %v (%s)", err, out)
	}
	if view["jid"] != "r1" || view["interval"] != 60.0 {
		t.Fatalf("recur.get view = %+v, want jid=r1 interval=60", view)
	}
}

func TestDispatch_ConfigSetGetUnset(t *testing.T) {
	ctx := context.Background()
	f := newFacade()

	if _, err := f.Dispatch(ctx, "config.set", 0, "heartbeat", "30"); err != nil {
		t.Fatalf("config.set: %v", err)
	}
	v, err := f.Dispatch(ctx, "config.get", 0, "heartbeat")
	if err != nil {
		t.Fatalf("config.get: %v", err)
	}
	if v != "30" {
		t.Fatalf("config.get(heartbeat) = %q, want 30", v)
	}

	if _, err := f.Dispatch(ctx, "config.unset", 0, "heartbeat"); err != nil {
		t.Fatalf("config.unset: %v", err)
	}
	v, err = f.Dispatch(ctx, "config.get", 0, "heartbeat")
	if err != nil {
		t.Fatalf("config.get after unset: %v", err)
	}
	if v != "" {
		t.Fatalf("config.get(heartbeat) after unset = %q, want empty", v)
	}
}

func TestDispatch_InvalidArgumentsOnShortPut(t *testing.T) {
	ctx := context.Background()
	f := newFacade()
	_, err := f.Dispatch(ctx, "put", 100, "q1", "j1")
	if err == nil {
		t.Fatal("put with too few args should fail")
	}
	qerr, ok := err.(*qcore.Error)
	if !ok || qerr.Kind != qcore.InvalidArguments {
		t.Fatalf("err = %v, want InvalidArguments", err)
	}
}
