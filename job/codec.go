package job

import (
	"encoding/json"
	"strconv"
)

// ToFields flattens a Job into the string-keyed hash representation stored
// at ql:j:<jid>, following the teacher's jobToMap convention: scalars are
// stored as plain strings, and the JSON-boundary fields (tags, history,
// failure) are JSON-encoded, per spec §6. Dependencies/dependents are not
// part of this hash — they live in their own Set keys (ql:j:<jid>-dependencies,
// ql:j:<jid>-dependents), which are the source of truth the queue package
// reads and writes directly.
func (j *Job) ToFields() map[string]string {
	m := map[string]string{
		"jid":       j.JID,
		"klass":     j.Klass,
		"data":      j.Data,
		"priority":  strconv.Itoa(j.Priority),
		"tags":      marshalJSON(j.Tags),
		"state":     string(j.State),
		"queue":     j.Queue,
		"worker":    j.WorkerID,
		"expires":   strconv.FormatFloat(j.Expires, 'f', -1, 64),
		"retries":   strconv.Itoa(j.Retries),
		"remaining": strconv.Itoa(j.Remaining),
		"history":   marshalJSON(j.History),
	}
	if j.Failure != nil {
		m["failure"] = marshalJSON(j.Failure)
	} else {
		m["failure"] = ""
	}
	return m
}

// FromFields reconstructs a Job from a storage hash. Best-effort parses
// mirror the teacher's mapToJob: malformed numeric fields fall back to
// zero rather than aborting the read, since the hash is trusted internal
// state written only by ToFields. Dependencies/Dependents are left empty;
// the caller overlays them from the Set keys ToFields does not cover.
func FromFields(m map[string]string) *Job {
	if len(m) == 0 {
		return nil
	}
	j := &Job{
		JID:      m["jid"],
		Klass:    m["klass"],
		Data:     m["data"],
		State:    State(m["state"]),
		Queue:    m["queue"],
		WorkerID: m["worker"],
	}
	j.Priority, _ = strconv.Atoi(m["priority"])
	j.Expires, _ = strconv.ParseFloat(m["expires"], 64)
	j.Retries, _ = strconv.Atoi(m["retries"])
	j.Remaining, _ = strconv.Atoi(m["remaining"])
	j.Tags = unmarshalStrings(m["tags"])
	if j.Tags == nil {
		j.Tags = []string{}
	}
	j.History = unmarshalHistory(m["history"])
	if f := m["failure"]; f != "" {
		var fail Failure
		if err := json.Unmarshal([]byte(f), &fail); err == nil {
			j.Failure = &fail
		}
	}
	j.Dependencies = map[JID]struct{}{}
	j.Dependents = map[JID]struct{}{}
	return j
}

func marshalJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func unmarshalHistory(s string) []HistoryEntry {
	if s == "" || s == "null" {
		return nil
	}
	var out []HistoryEntry
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
