// Command qcoreql is a thin CLI over the Command Facade: every subcommand
// parses flags into a (name, now, args...) tuple and prints whatever
// command.Facade.Dispatch returns. It owns the one clock read the core
// itself never performs, and the one transport decision (Redis vs an
// in-process map) the core is deliberately agnostic to.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lordnynex/qless-core/command"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/observability"
	"github.com/lordnynex/qless-core/queue"
	"github.com/lordnynex/qless-core/store"
	"github.com/lordnynex/qless-core/store/memory"
	"github.com/lordnynex/qless-core/store/redisstore"
)

func main() {
	var redisAddr string
	var facade *command.Facade

	root := &cobra.Command{
		Use:   "qcoreql",
		Short: "qcoreql drives a qless-core execution core from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			facade = buildFacade(redisAddr)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&redisAddr, "redis-addr", os.Getenv("QCORE_REDIS_ADDR"), "Redis address (host:port); empty uses an in-process store")

	now := func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	dispatch := func(name string, args ...string) {
		out, err := facade.Dispatch(context.Background(), name, now(), args...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if out != "" {
			fmt.Println(out)
		}
	}

	root.AddCommand(
		putCmd(dispatch),
		completeCmd(dispatch),
		failCmd(dispatch),
		failedCmd(dispatch),
		retryCmd(dispatch),
		heartbeatCmd(dispatch),
		cancelCmd(dispatch),
		pauseCmd(dispatch),
		unpauseCmd(dispatch),
		peekCmd(dispatch),
		popCmd(dispatch),
		queuesCmd(dispatch),
		workersCmd(dispatch),
		jobsCmd(dispatch),
		getCmd(dispatch),
		lengthCmd(dispatch),
		priorityCmd(dispatch),
		trackCmd(dispatch),
		tagCmd(dispatch),
		dependsCmd(dispatch),
		statsCmd(dispatch),
		unfailCmd(dispatch),
		recurCmd(dispatch),
		unrecurCmd(dispatch),
		recurGetCmd(dispatch),
		recurUpdateCmd(dispatch),
		recurTagCmd(dispatch),
		recurUntagCmd(dispatch),
		configCmd(dispatch),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildFacade(redisAddr string) *command.Facade {
	var backend store.Backend
	if redisAddr != "" {
		backend = redisstore.New(goredis.NewClient(&goredis.Options{Addr: redisAddr}))
	} else {
		backend = memory.New()
	}
	cfg := config.New()
	engine := queue.New(backend, cfg,
		queue.WithTracer(observability.NoopTracer()),
		queue.WithMeter(observability.NoopMeter()),
		queue.WithRateLimiters(queue.NewRateLimiters()),
	)
	return command.New(engine)
}

type dispatchFunc func(name string, args ...string)

func putCmd(dispatch dispatchFunc) *cobra.Command {
	var delay float64
	var priority int
	var tags string
	var retries int
	var depends string
	cmd := &cobra.Command{
		Use:   "put <queue> <jid> <klass> <data>",
		Short: "Enqueue a job",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			r := ""
			if retries > 0 {
				r = strconv.Itoa(retries)
			}
			dispatch("put", args[0], args[1], args[2], args[3],
				strconv.FormatFloat(delay, 'f', -1, 64),
				strconv.Itoa(priority), tags, r, depends)
		},
	}
	cmd.Flags().Float64Var(&delay, "delay", 0, "seconds to delay before becoming eligible for pop")
	cmd.Flags().IntVar(&priority, "priority", 0, "job priority")
	cmd.Flags().StringVar(&tags, "tags", "", "JSON array of tags")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry budget (0 uses the default)")
	cmd.Flags().StringVar(&depends, "depends", "", "JSON array of prerequisite jids")
	return cmd
}

func completeCmd(dispatch dispatchFunc) *cobra.Command {
	var next string
	var nextDelay float64
	var nextDepends string
	cmd := &cobra.Command{
		Use:   "complete <jid> <worker> <queue> <data>",
		Short: "Complete a job, optionally advancing it to a next queue",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			call := append([]string{}, args...)
			if next != "" {
				call = append(call, next, strconv.FormatFloat(nextDelay, 'f', -1, 64), nextDepends)
			}
			dispatch("complete", call...)
		},
	}
	cmd.Flags().StringVar(&next, "next", "", "advance to this queue instead of completing terminally")
	cmd.Flags().Float64Var(&nextDelay, "next-delay", 0, "delay before eligible in --next")
	cmd.Flags().StringVar(&nextDepends, "next-depends", "", "JSON array of prerequisite jids in --next")
	return cmd
}

func failCmd(dispatch dispatchFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "fail <jid> <worker> <queue> <group> <message>",
		Short: "Fail a running job into a failure group",
		Args:  cobra.ExactArgs(5),
		Run: func(cmd *cobra.Command, args []string) {
			call := append([]string{}, args...)
			if data != "" {
				call = append(call, data)
			}
			dispatch("fail", call...)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "replacement job data")
	return cmd
}

func failedCmd(dispatch dispatchFunc) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "failed [group]",
		Short: "List failure groups, or the jids within one",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				dispatch("failed")
				return
			}
			dispatch("failed", args[0], "", strconv.Itoa(count))
		},
	}
	cmd.Flags().IntVar(&count, "count", 25, "max jids to list")
	return cmd
}

// jitteredRetryDelay picks a delay for the --attempt convenience flag on
// retryCmd: full jitter over an exponential curve (1s initial, capped at
// 1m), so repeated --attempt retries spread out instead of thundering
// back in lockstep. retry() itself always takes an explicit delay; this
// only saves the caller from computing one by hand.
func jitteredRetryDelay(attempt int) time.Duration {
	const initial = time.Second
	const max = time.Minute
	base := float64(initial) * math.Pow(2, float64(attempt-1))
	if base > float64(max) {
		base = float64(max)
	}
	return time.Duration(rand.Float64() * base)
}

func retryCmd(dispatch dispatchFunc) *cobra.Command {
	var delay float64
	var attempt int
	cmd := &cobra.Command{
		Use:   "retry <jid> <queue> <worker>",
		Short: "Return a running job to its queue for another attempt",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			d := delay
			if !cmd.Flags().Changed("delay") && attempt > 0 {
				d = jitteredRetryDelay(attempt).Seconds()
			}
			dispatch("retry", args[0], args[1], args[2], strconv.FormatFloat(d, 'f', -1, 64))
		},
	}
	cmd.Flags().Float64Var(&delay, "delay", 0, "seconds before the job is eligible again")
	cmd.Flags().IntVar(&attempt, "attempt", 0, "if set and --delay is not, compute a jittered exponential delay for this attempt number")
	return cmd
}

func heartbeatCmd(dispatch dispatchFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "heartbeat <jid> <worker>",
		Short: "Extend a job's lease",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			call := append([]string{}, args...)
			if data != "" {
				call = append(call, data)
			}
			dispatch("heartbeat", call...)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "replacement job data")
	return cmd
}

func cancelCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jid>...",
		Short: "Cancel one or more jobs",
		Args:  cobra.MinimumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("cancel", args...) },
	}
}

func pauseCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <queue>...",
		Short: "Pause queues (pop rejects, peek unaffected)",
		Args:  cobra.MinimumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("pause", args...) },
	}
}

func unpauseCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "unpause <queue>...",
		Short: "Unpause queues",
		Args:  cobra.MinimumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("unpause", args...) },
	}
}

func peekCmd(dispatch dispatchFunc) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "peek <queue>",
		Short: "Preview jobs pop would return, without leasing them",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("peek", args[0], strconv.Itoa(count))
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "max jobs to preview")
	return cmd
}

func popCmd(dispatch dispatchFunc) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "pop <queue> <worker>",
		Short: "Lease jobs from a queue",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("pop", args[0], args[1], strconv.Itoa(count))
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "max jobs to lease")
	return cmd
}

func queuesCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{Use: "queues", Short: "List known queues", Run: func(cmd *cobra.Command, args []string) { dispatch("queues") }}
}

func workersCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{Use: "workers", Short: "List known workers", Run: func(cmd *cobra.Command, args []string) { dispatch("workers") }}
}

func jobsCmd(dispatch dispatchFunc) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs <queue> <state>",
		Short: "List jids in a queue by state (waiting|running|scheduled|depends|complete)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("jobs", args[0], args[1], strconv.Itoa(limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max jids to list (0 = unlimited)")
	return cmd
}

func getCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <jid>",
		Short: "Fetch a job's full record",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("get", args[0]) },
	}
}

func lengthCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "length <queue>",
		Short: "Count waiting jobs in a queue",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("length", args[0]) },
	}
}

func priorityCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "priority <jid> <priority>",
		Short: "Change a job's priority",
		Args:  cobra.ExactArgs(2),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("priority", args[0], args[1]) },
	}
}

func trackCmd(dispatch dispatchFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "track", Short: "Manage tracked jobs"}
	cmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List tracked jids", Run: func(cmd *cobra.Command, args []string) { dispatch("track") }},
		&cobra.Command{Use: "on <jid>", Args: cobra.ExactArgs(1), Run: func(cmd *cobra.Command, args []string) { dispatch("track", "track", args[0]) }},
		&cobra.Command{Use: "off <jid>", Args: cobra.ExactArgs(1), Run: func(cmd *cobra.Command, args []string) { dispatch("track", "untrack", args[0]) }},
	)
	return cmd
}

func tagCmd(dispatch dispatchFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "tag", Short: "Manage job tags"}
	cmd.AddCommand(
		&cobra.Command{Use: "add <jid> <tag>...", Args: cobra.MinimumNArgs(2), Run: func(cmd *cobra.Command, args []string) {
			dispatch("tag", append([]string{"add"}, args...)...)
		}},
		&cobra.Command{Use: "remove <jid> <tag>...", Args: cobra.MinimumNArgs(2), Run: func(cmd *cobra.Command, args []string) {
			dispatch("tag", append([]string{"remove"}, args...)...)
		}},
		&cobra.Command{Use: "get <tag>", Args: cobra.ExactArgs(1), Run: func(cmd *cobra.Command, args []string) {
			dispatch("tag", "get", args[0])
		}},
		&cobra.Command{Use: "top [count]", Args: cobra.MaximumNArgs(1), Run: func(cmd *cobra.Command, args []string) {
			n := "10"
			if len(args) == 1 {
				n = args[0]
			}
			dispatch("tag", "top", n)
		}},
	)
	return cmd
}

func dependsCmd(dispatch dispatchFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "depends", Short: "Manage job dependencies"}
	cmd.AddCommand(
		&cobra.Command{Use: "on <jid> <prereq>...", Args: cobra.MinimumNArgs(2), Run: func(cmd *cobra.Command, args []string) {
			dispatch("depends", append([]string{"on"}, args...)...)
		}},
		&cobra.Command{Use: "off <jid> <prereq>...", Args: cobra.MinimumNArgs(2), Run: func(cmd *cobra.Command, args []string) {
			dispatch("depends", append([]string{"off"}, args...)...)
		}},
		&cobra.Command{Use: "all <jid>", Args: cobra.ExactArgs(1), Run: func(cmd *cobra.Command, args []string) {
			dispatch("depends", "all", args[0])
		}},
	)
	return cmd
}

func statsCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <queue> <bin>",
		Short: "Show wait/run statistics for a queue's day-bin",
		Args:  cobra.ExactArgs(2),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("stats", args[0], args[1]) },
	}
}

func unfailCmd(dispatch dispatchFunc) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "unfail <group> <queue>",
		Short: "Move failed jobs back to waiting",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("unfail", args[0], args[1], strconv.Itoa(count))
		},
	}
	cmd.Flags().IntVar(&count, "count", 25, "max jobs to unfail")
	return cmd
}

func recurCmd(dispatch dispatchFunc) *cobra.Command {
	var priority, retries int
	var tags string
	cmd := &cobra.Command{
		Use:   "recur <queue> <jid> <klass> <data> <interval> <offset>",
		Short: "Register a recurring job template (interval schedule only)",
		Args:  cobra.ExactArgs(6),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("recur", args[0], args[1], args[2], args[3], "interval", args[4], args[5],
				strconv.Itoa(priority), tags, strconv.Itoa(retries))
		},
	}
	cmd.Flags().IntVar(&priority, "priority", 0, "spawned job priority")
	cmd.Flags().StringVar(&tags, "tags", "", "JSON array of tags for spawned jobs")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry budget for spawned jobs")
	return cmd
}

func unrecurCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "unrecur <jid>",
		Short: "Remove a recurring template",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("unrecur", args[0]) },
	}
}

func recurGetCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "recur-get <jid>",
		Short: "Fetch a recurring template",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("recur.get", args[0]) },
	}
}

func recurUpdateCmd(dispatch dispatchFunc) *cobra.Command {
	var priority, interval, retries, data, klass string
	cmd := &cobra.Command{
		Use:   "recur-update <jid>",
		Short: "Edit a recurring template in place",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dispatch("recur.update", args[0], priority, interval, retries, data, klass)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&interval, "interval", "", "new interval in seconds")
	cmd.Flags().StringVar(&retries, "retries", "", "new retry budget")
	cmd.Flags().StringVar(&data, "data", "", "new job data")
	cmd.Flags().StringVar(&klass, "klass", "", "new job class")
	return cmd
}

func recurTagCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "recur-tag <jid> <tag>...",
		Args:  cobra.MinimumNArgs(2),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("recur.tag", args...) },
	}
}

func recurUntagCmd(dispatch dispatchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "recur-untag <jid> <tag>...",
		Args:  cobra.MinimumNArgs(2),
		Run:   func(cmd *cobra.Command, args []string) { dispatch("recur.untag", args...) },
	}
}

func configCmd(dispatch dispatchFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Read or change the live configuration store"}
	cmd.AddCommand(
		&cobra.Command{Use: "get [key]", Args: cobra.MaximumNArgs(1), Run: func(cmd *cobra.Command, args []string) {
			dispatch("config.get", args...)
		}},
		&cobra.Command{Use: "set <key> <value>", Args: cobra.ExactArgs(2), Run: func(cmd *cobra.Command, args []string) {
			dispatch("config.set", args...)
		}},
		&cobra.Command{Use: "unset <key>", Args: cobra.ExactArgs(1), Run: func(cmd *cobra.Command, args []string) {
			dispatch("config.unset", args...)
		}},
	)
	return cmd
}
