package store

import "fmt"

// Key naming conventions, normatively specified in spec §6. All keys are
// prefixed with "ql:", mirroring the teacher's "dispatch:" convention
// (store/redis/keys.go) but following the literal keyspace spec §6 lays out
// so client libraries written against the wire format stay compatible.
const prefix = "ql:"

// JobKey returns the Hash key for a job record: ql:j:<jid>.
func JobKey(jid string) string { return prefix + "j:" + jid }

// DependentsKey returns the Set key of jids depending on jid.
func DependentsKey(jid string) string { return prefix + "j:" + jid + "-dependents" }

// DependenciesKey returns the Set key of jids jid depends on.
func DependenciesKey(jid string) string { return prefix + "j:" + jid + "-dependencies" }

// RecurKey returns the Hash key for a recurring template: ql:r:<jid>.
func RecurKey(jid string) string { return prefix + "r:" + jid }

// QueueWorkKey returns the Sorted Set of waiting jobs for queue.
func QueueWorkKey(queue string) string { return prefix + "q:" + queue + "-work" }

// QueueLocksKey returns the Sorted Set of leased jobs for queue.
func QueueLocksKey(queue string) string { return prefix + "q:" + queue + "-locks" }

// QueueScheduledKey returns the Sorted Set of delayed jobs for queue.
func QueueScheduledKey(queue string) string { return prefix + "q:" + queue + "-scheduled" }

// QueueRecurKey returns the Sorted Set of recurring templates for queue.
func QueueRecurKey(queue string) string { return prefix + "q:" + queue + "-recur" }

// QueueDependsKey returns the Sorted Set of dependency-blocked jobs for queue.
func QueueDependsKey(queue string) string { return prefix + "q:" + queue + "-depends" }

// QueuesKey is the Sorted Set of every known queue name, scored by first-seen time.
const QueuesKey = prefix + "queues"

// TrackedKey is the Set of tracked jids.
const TrackedKey = prefix + "tracked"

// CompletedKey is the Sorted Set of completed jids, scored by completion time.
const CompletedKey = prefix + "completed"

// WorkersKey is the Sorted Set of worker names, scored by last-seen time.
const WorkersKey = prefix + "workers"

// WorkerJobsKey returns the Sorted Set of jids held by worker, scored by lease expiry.
func WorkerJobsKey(worker string) string { return prefix + "w:" + worker + ":jobs" }

// TagKey returns the Sorted Set of jids carrying tag, scored by insertion time.
func TagKey(tag string) string { return prefix + "t:" + tag }

// TagsKey is the Sorted Set of tag names scored by global frequency.
const TagsKey = prefix + "tags"

// FailuresKey is the Set of known failure group names.
const FailuresKey = prefix + "failures"

// FailedGroupKey returns the List of jids in failure group, head = most recent.
func FailedGroupKey(group string) string { return prefix + "f:" + group }

// PausedQueuesKey is the Set of paused queue names.
const PausedQueuesKey = prefix + "paused_queues"

// ConfigKey is the Hash of configuration key/value pairs.
const ConfigKey = prefix + "config"

// DayBin floors t to the midnight timestamp of the day containing it,
// per the GLOSSARY definition (floor(t / 86400) * 86400).
func DayBin(t float64) int64 {
	const day = 86400
	return int64(t/day) * day
}

// StatsWaitKey returns the Hash key for wait-stage statistics.
func StatsWaitKey(bin int64, queue string) string {
	return fmt.Sprintf("%ss:wait:%d:%s", prefix, bin, queue)
}

// StatsRunKey returns the Hash key for run-stage statistics.
func StatsRunKey(bin int64, queue string) string {
	return fmt.Sprintf("%ss:run:%d:%s", prefix, bin, queue)
}

// StatsQueueKey returns the Hash key for the {retries, failed} counters of
// a queue on a given day.
func StatsQueueKey(bin int64, queue string) string {
	return fmt.Sprintf("%ss:stats:%d:%s", prefix, bin, queue)
}

// Pub/Sub channel names, per spec §6.
const (
	ChanLog       = "log"
	ChanPut       = "put"
	ChanPopped    = "popped"
	ChanCompleted = "completed"
	ChanFailed    = "failed"
	ChanStalled   = "stalled"
	ChanCanceled  = "canceled"
	ChanTrack     = "track"
	ChanUntrack   = "untrack"
)

// WorkerChan returns the worker's private lease-revocation channel name.
func WorkerChan(worker string) string { return worker }
