package queue

import "github.com/lordnynex/qless-core/job"

// CompleteOptions carries Complete's optional "continue to next queue"
// arguments, per spec §4.1 complete()'s `[next=q, delay=d, depends=[...]]`.
type CompleteOptions struct {
	Next        job.Queue
	NextDelay   float64
	NextDepends []job.JID
}
