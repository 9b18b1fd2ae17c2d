// Package command implements the Command Facade (CF): a thin dispatch
// mapping a command name string to a queue.Engine operation, per spec §6.
// This is the only externally-facing surface the distilled spec defines;
// everything upstream of it (transport, JSON codec at the wire boundary) is
// out of scope per spec §1.
package command

import (
	"context"
	"encoding/json"
	"strconv"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/queue"
)

// Facade dispatches named commands to an underlying queue.Engine.
type Facade struct {
	engine *queue.Engine
}

// New builds a Facade over engine.
func New(engine *queue.Engine) *Facade {
	return &Facade{engine: engine}
}

// Dispatch routes (name, now, args...) to the matching Engine operation, per
// spec §6's command registry. Unknown names produce UnknownCommand. Return
// values are JSON documents for read/structured operations, or bare scalars
// (jid, integer) for simple writes, matching §6's "string or JSON document"
// contract.
func (f *Facade) Dispatch(ctx context.Context, name string, now float64, args ...string) (string, error) {
	switch name {
	case "put":
		return f.put(ctx, now, args)
	case "complete":
		return f.complete(ctx, now, args)
	case "fail":
		return f.fail(ctx, now, args)
	case "failed":
		return f.failed(ctx, args)
	case "retry":
		return f.retry(ctx, now, args)
	case "heartbeat":
		return f.heartbeat(ctx, now, args)
	case "cancel":
		return "", f.engine.Cancel(ctx, now, args...)
	case "pause":
		return "", f.engine.Pause(ctx, args...)
	case "unpause":
		return "", f.engine.Unpause(ctx, args...)
	case "peek":
		return f.peek(ctx, now, args)
	case "pop":
		return f.pop(ctx, now, args)
	case "queues":
		return f.queues(ctx)
	case "workers":
		return f.workers(ctx)
	case "jobs":
		return f.jobs(ctx, args)
	case "get":
		return f.get(ctx, args)
	case "length":
		return f.length(ctx, args)
	case "priority":
		return f.priority(ctx, args)
	case "track":
		return f.track(ctx, args)
	case "tag":
		return f.tag(ctx, now, args)
	case "depends":
		return f.depends(ctx, now, args)
	case "stats":
		return f.stats(ctx, args)
	case "unfail":
		return f.unfail(ctx, now, args)
	case "recur":
		return "", f.recur(ctx, now, args)
	case "unrecur":
		return "", f.engine.Unrecur(ctx, arg(args, 0))
	case "recur.get":
		return f.recurGet(ctx, args)
	case "recur.update":
		return "", f.recurUpdate(ctx, args)
	case "recur.tag":
		return "", f.engine.RecurTag(ctx, arg(args, 0), args[1:]...)
	case "recur.untag":
		return "", f.engine.RecurUntag(ctx, arg(args, 0), args[1:]...)
	case "config.get":
		return f.configGet(args)
	case "config.set":
		return f.configSet(args)
	case "config.unset":
		return f.configUnset(args)
	default:
		return "", qcore.NewError(qcore.UnknownCommand, "command", "no such command: "+name)
	}
}

func arg(args []string, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}

func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseFloat(s string, param string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, qcore.NewError(qcore.InvalidArguments, param, "must be numeric")
	}
	return f, nil
}

func parseInt(s string, param string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, qcore.NewError(qcore.InvalidArguments, param, "must be an integer")
	}
	return n, nil
}

// jobView is the exact wire shape of a returned job document, matching
// spec §6 "return documents must preserve key names exactly as shown in §3".
type jobView struct {
	JID          string             `json:"jid"`
	Klass        string             `json:"klass"`
	Data         string             `json:"data"`
	Priority     int                `json:"priority"`
	Tags         []string           `json:"tags"`
	State        job.State          `json:"state"`
	Queue        string             `json:"queue"`
	Worker       string             `json:"worker"`
	Expires      float64            `json:"expires"`
	Retries      int                `json:"retries"`
	Remaining    int                `json:"remaining"`
	History      []job.HistoryEntry `json:"history"`
	Failure      *job.Failure       `json:"failure,omitempty"`
	Dependencies []string           `json:"dependencies"`
	Dependents   []string           `json:"dependents"`
}

func toView(j *job.Job) jobView {
	v := jobView{
		JID: j.JID, Klass: j.Klass, Data: j.Data, Priority: j.Priority,
		Tags: j.Tags, State: j.State, Queue: j.Queue, Worker: j.WorkerID,
		Expires: j.Expires, Retries: j.Retries, Remaining: j.Remaining,
		History: j.History, Failure: j.Failure,
	}
	for d := range j.Dependencies {
		v.Dependencies = append(v.Dependencies, d)
	}
	for d := range j.Dependents {
		v.Dependents = append(v.Dependents, d)
	}
	return v
}
