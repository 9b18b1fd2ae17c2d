package command

import (
	"context"
	"encoding/json"
	"strconv"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/queue"
	"github.com/lordnynex/qless-core/recur"
)

// put args: queue, jid, klass, data, delay, [priority, tagsJSON, retries, dependsJSON]
func (f *Facade) put(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 4 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "put requires queue, jid, klass, data")
	}
	qname, jid, klass, data := args[0], args[1], args[2], args[3]
	delay, err := parseFloat(arg(args, 4), "delay")
	if err != nil {
		return "", err
	}
	opts := job.PutOptions{Delay: delay}
	if p := arg(args, 5); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", qcore.NewError(qcore.InvalidArguments, "priority", "must be an integer")
		}
		opts.Priority = &n
	}
	if t := arg(args, 6); t != "" {
		var tags []string
		if err := json.Unmarshal([]byte(t), &tags); err != nil {
			return "", qcore.NewError(qcore.InvalidArguments, "tags", "must be a JSON array of strings")
		}
		opts.Tags = tags
	}
	if r := arg(args, 7); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil {
			return "", qcore.NewError(qcore.InvalidArguments, "retries", "must be an integer")
		}
		opts.Retries = &n
	}
	if d := arg(args, 8); d != "" {
		var deps []string
		if err := json.Unmarshal([]byte(d), &deps); err != nil {
			return "", qcore.NewError(qcore.InvalidArguments, "depends", "must be a JSON array of jids")
		}
		opts.Depends = deps
	}
	if err := f.engine.Put(ctx, now, qname, jid, klass, data, opts); err != nil {
		return "", err
	}
	return jid, nil
}

// complete args: jid, worker, queue, data, [next, nextDelay, nextDependsJSON]
func (f *Facade) complete(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 4 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "complete requires jid, worker, queue, data")
	}
	jid, worker, qname, data := args[0], args[1], args[2], args[3]
	var opts queue.CompleteOptions
	opts.Next = arg(args, 4)
	if opts.Next != "" {
		delay, err := parseFloat(arg(args, 5), "delay")
		if err != nil {
			return "", err
		}
		opts.NextDelay = delay
		if d := arg(args, 6); d != "" {
			var deps []string
			if err := json.Unmarshal([]byte(d), &deps); err != nil {
				return "", qcore.NewError(qcore.InvalidArguments, "depends", "must be a JSON array of jids")
			}
			opts.NextDepends = deps
		}
	}
	if err := f.engine.Complete(ctx, now, jid, worker, qname, data, opts); err != nil {
		return "", err
	}
	return jid, nil
}

// fail args: jid, worker, queue, group, message, [data]
func (f *Facade) fail(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 5 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "fail requires jid, worker, queue, group, message")
	}
	var data *string
	if len(args) > 5 {
		data = &args[5]
	}
	if err := f.engine.Fail(ctx, now, args[0], args[1], args[2], args[3], args[4], data); err != nil {
		return "", err
	}
	return args[0], nil
}

// failed args: [group, [start, count]]. No group lists every known group
// with its current count; a group lists up to count jids (default 25).
// start is accepted positionally but not read: the listing always begins
// at the most recently failed jid.
func (f *Facade) failed(ctx context.Context, args []string) (string, error) {
	group := arg(args, 0)
	if group == "" {
		groups, err := f.engine.FailureGroups(ctx)
		if err != nil {
			return "", err
		}
		counts := make(map[string]int64, len(groups))
		for _, g := range groups {
			n, err := f.engine.FailureCount(ctx, g)
			if err != nil {
				return "", err
			}
			counts[g] = n
		}
		return toJSON(counts)
	}
	limit, err := parseInt(arg(args, 2), "count")
	if err != nil {
		return "", err
	}
	if limit == 0 {
		limit = 25
	}
	jids, err := f.engine.FailureList(ctx, group, limit)
	if err != nil {
		return "", err
	}
	return toJSON(jids)
}

// retry args: jid, queue, worker, [delay]
func (f *Facade) retry(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 3 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "retry requires jid, queue, worker")
	}
	delay, err := parseFloat(arg(args, 3), "delay")
	if err != nil {
		return "", err
	}
	if err := f.engine.Retry(ctx, now, args[0], args[1], args[2], delay); err != nil {
		return "", err
	}
	return args[0], nil
}

// heartbeat args: jid, worker, [data]
func (f *Facade) heartbeat(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "heartbeat requires jid, worker")
	}
	var data *string
	if len(args) > 2 {
		data = &args[2]
	}
	expires, err := f.engine.Heartbeat(ctx, now, args[0], args[1], data)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(expires, 'f', -1, 64), nil
}

// peek args: queue, [count]
func (f *Facade) peek(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 1 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "peek requires queue")
	}
	count, err := parseInt(arg(args, 1), "count")
	if err != nil {
		return "", err
	}
	if count == 0 {
		count = 1
	}
	jobs, err := f.engine.Peek(ctx, now, args[0], count)
	if err != nil {
		return "", err
	}
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toView(j)
	}
	return toJSON(views)
}

// pop args: queue, worker, [count]
func (f *Facade) pop(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "pop requires queue, worker")
	}
	count, err := parseInt(arg(args, 2), "count")
	if err != nil {
		return "", err
	}
	if count == 0 {
		count = 1
	}
	jobs, err := f.engine.Pop(ctx, now, args[0], args[1], count)
	if err != nil {
		return "", err
	}
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toView(j)
	}
	return toJSON(views)
}

func (f *Facade) queues(ctx context.Context) (string, error) {
	names, err := f.engine.Queues(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(names)
}

func (f *Facade) workers(ctx context.Context) (string, error) {
	ws, err := f.engine.Workers(ctx)
	if err != nil {
		return "", err
	}
	out := make(map[string]float64, len(ws))
	for _, sm := range ws {
		out[sm.Member] = sm.Score
	}
	return toJSON(out)
}

// jobs args: queue, state, [limit]
func (f *Facade) jobs(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "jobs requires queue, state")
	}
	limit, err := parseInt(arg(args, 2), "limit")
	if err != nil {
		return "", err
	}
	jids, err := f.engine.JobsByState(ctx, args[0], job.State(args[1]), limit)
	if err != nil {
		return "", err
	}
	return toJSON(jids)
}

// get args: jid
func (f *Facade) get(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "get requires jid")
	}
	j, err := f.engine.Get(ctx, args[0])
	if err != nil {
		return "", err
	}
	if j == nil {
		return "", nil
	}
	return toJSON(toView(j))
}

// length args: queue
func (f *Facade) length(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "length requires queue")
	}
	n, err := f.engine.Length(ctx, args[0])
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// priority args: jid, priority
func (f *Facade) priority(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "priority requires jid, priority")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return "", qcore.NewError(qcore.InvalidArguments, "priority", "must be an integer")
	}
	if err := f.engine.Priority(ctx, args[0], n); err != nil {
		return "", err
	}
	return args[0], nil
}

// track args: [action(track|untrack), jid]. No args lists tracked jids.
func (f *Facade) track(ctx context.Context, args []string) (string, error) {
	action := arg(args, 0)
	switch action {
	case "":
		jids, err := f.engine.Tracked(ctx)
		if err != nil {
			return "", err
		}
		return toJSON(jids)
	case "track":
		return "", f.engine.Track(ctx, arg(args, 1))
	case "untrack":
		return "", f.engine.Untrack(ctx, arg(args, 1))
	default:
		return "", qcore.NewError(qcore.InvalidArguments, "action", "must be track or untrack")
	}
}

// tag args: action(add|remove|get|top), jid-or-tag, [tags...]
func (f *Facade) tag(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "tag requires an action and a target")
	}
	switch args[0] {
	case "add":
		return args[1], f.engine.TagAdd(ctx, now, args[1], args[2:]...)
	case "remove":
		return args[1], f.engine.TagRemove(ctx, args[1], args[2:]...)
	case "get":
		jids, err := f.engine.TagGet(ctx, args[1])
		if err != nil {
			return "", err
		}
		return toJSON(jids)
	case "top":
		n, err := parseInt(args[1], "count")
		if err != nil {
			return "", err
		}
		if n == 0 {
			n = 10
		}
		tags, err := f.engine.TagTop(ctx, n)
		if err != nil {
			return "", err
		}
		return toJSON(tags)
	default:
		return "", qcore.NewError(qcore.InvalidArguments, "action", "must be add, remove, get, or top")
	}
}

// depends args: action(on|off|all), jid, [ids...]
func (f *Facade) depends(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "depends requires an action and a jid")
	}
	switch args[0] {
	case "on":
		return args[1], f.engine.DependsOn(ctx, now, args[1], args[2:]...)
	case "off":
		return args[1], f.engine.DependsOff(ctx, now, args[1], args[2:]...)
	case "all":
		ids, err := f.engine.DependsAll(ctx, args[1])
		if err != nil {
			return "", err
		}
		return toJSON(ids)
	default:
		return "", qcore.NewError(qcore.InvalidArguments, "action", "must be on, off, or all")
	}
}

// stats args: queue, bin
func (f *Facade) stats(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "stats requires queue, bin")
	}
	bin, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", qcore.NewError(qcore.InvalidArguments, "bin", "must be an integer day-bin timestamp")
	}
	wait, run, err := f.engine.Stats(ctx, args[0], bin)
	if err != nil {
		return "", err
	}
	return toJSON(map[string]interface{}{"wait": wait, "run": run})
}

// unfail args: group, queue, [count]
func (f *Facade) unfail(ctx context.Context, now float64, args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "unfail requires group, queue")
	}
	count, err := parseInt(arg(args, 2), "count")
	if err != nil {
		return "", err
	}
	n, err := f.engine.Unfail(ctx, now, args[0], args[1], count)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}

// recur args: queue, jid, klass, data, spec, interval, offset, [priority, tagsJSON, retries]
func (f *Facade) recur(ctx context.Context, now float64, args []string) error {
	if len(args) < 7 {
		return qcore.NewError(qcore.InvalidArguments, "args", "recur requires queue, jid, klass, data, spec, interval, offset")
	}
	interval, err := parseFloat(args[5], "interval")
	if err != nil {
		return err
	}
	offset, err := parseFloat(args[6], "offset")
	if err != nil {
		return err
	}
	var opts queue.RecurOptions
	if p := arg(args, 7); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return qcore.NewError(qcore.InvalidArguments, "priority", "must be an integer")
		}
		opts.Priority = n
	}
	if t := arg(args, 8); t != "" {
		var tags []string
		if err := json.Unmarshal([]byte(t), &tags); err != nil {
			return qcore.NewError(qcore.InvalidArguments, "tags", "must be a JSON array of strings")
		}
		opts.Tags = tags
	}
	if r := arg(args, 9); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil {
			return qcore.NewError(qcore.InvalidArguments, "retries", "must be an integer")
		}
		opts.Retries = n
	}
	return f.engine.Recur(ctx, now, args[0], args[1], args[2], args[3], args[4], interval, offset, opts)
}

func (f *Facade) recurGet(ctx context.Context, args []string) (string, error) {
	if len(args) < 1 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "recur.get requires jid")
	}
	t, err := f.engine.RecurGet(ctx, args[0])
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", nil
	}
	return toJSON(recurView(*t))
}

func recurView(t recur.Template) map[string]interface{} {
	return map[string]interface{}{
		"jid": t.JID, "klass": t.Klass, "data": t.Data, "priority": t.Priority,
		"tags": t.Tags, "queue": t.Queue, "spec": t.Spec, "interval": t.Interval,
		"count": t.Count, "retries": t.Retries,
	}
}

// recur.update args: jid, [priority, interval, retries, data, klass]
func (f *Facade) recurUpdate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return qcore.NewError(qcore.InvalidArguments, "args", "recur.update requires jid")
	}
	var priority *int
	var interval *float64
	var retries *int
	var data, klass *string
	if p := arg(args, 1); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return qcore.NewError(qcore.InvalidArguments, "priority", "must be an integer")
		}
		priority = &n
	}
	if iv := arg(args, 2); iv != "" {
		n, err := strconv.ParseFloat(iv, 64)
		if err != nil {
			return qcore.NewError(qcore.InvalidArguments, "interval", "must be numeric")
		}
		interval = &n
	}
	if r := arg(args, 3); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil {
			return qcore.NewError(qcore.InvalidArguments, "retries", "must be an integer")
		}
		retries = &n
	}
	if d := arg(args, 4); d != "" {
		data = &args[4]
	}
	if k := arg(args, 5); k != "" {
		klass = &args[5]
	}
	return f.engine.RecurUpdate(ctx, args[0], priority, interval, retries, data, klass)
}

func (f *Facade) configGet(args []string) (string, error) {
	cfg := f.configStore()
	if len(args) == 0 {
		return toJSON(cfg.All())
	}
	v, ok := cfg.Get(args[0])
	if !ok {
		return "", nil
	}
	return v, nil
}

func (f *Facade) configSet(args []string) (string, error) {
	if len(args) < 2 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "config.set requires key, value")
	}
	f.configStore().Set(args[0], args[1])
	return "", nil
}

func (f *Facade) configUnset(args []string) (string, error) {
	if len(args) < 1 {
		return "", qcore.NewError(qcore.InvalidArguments, "args", "config.unset requires key")
	}
	f.configStore().Unset(args[0])
	return "", nil
}

func (f *Facade) configStore() *config.Store {
	return f.engine.Config()
}
