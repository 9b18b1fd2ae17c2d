// Package memory implements store.Backend entirely in process memory,
// guarded by a single mutex. It is the reference Storage Abstraction (SA)
// backend used by the bulk of this module's test suite, and it directly
// satisfies the "single writer thread" serialization option of spec §5 —
// every method call is already exclusive.
//
// Grounded on the teacher's store/memory (mutex-guarded map store) and
// olivere-taskqueue's InMemoryStore (mutex-guarded slice store), generalized
// from domain-specific entities to the generic hash/sorted-set/set/list/
// pub-sub primitives store.Backend requires.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lordnynex/qless-core/store"
)

// Store is an in-memory implementation of store.Backend.
type Store struct {
	mu sync.Mutex

	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	sets    map[string]map[string]struct{}
	lists   map[string][]string

	subsMu sync.RWMutex
	subs   map[string][]chan []byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
		sets:   make(map[string]map[string]struct{}),
		lists:  make(map[string][]string),
		subs:   make(map[string][]chan []byte),
	}
}

var _ store.Backend = (*Store)(nil)

// ── Hash ──

func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *Store) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (s *Store) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur := parseInt(h[field])
	cur += delta
	h[field] = formatInt(cur)
	return cur, nil
}

func (s *Store) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.zsets, k)
		delete(s.sets, k)
		delete(s.lists, k)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hashes[key]; ok && len(h) > 0 {
		return true, nil
	}
	return false, nil
}

// ── Sorted set ──

func (s *Store) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (s *Store) ZRem(_ context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z, ok := s.zsets[key]; ok {
		delete(z, member)
	}
	return nil
}

func (s *Store) ZScore(_ context.Context, key string, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		return 0, false, nil
	}
	v, ok := z[member]
	return v, ok, nil
}

func (s *Store) ZIncrBy(_ context.Context, key string, delta float64, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] += delta
	return z[member], nil
}

func (s *Store) sortedMembers(key string) []store.ScoredMember {
	z := s.zsets[key]
	out := make([]store.ScoredMember, 0, len(z))
	for m, sc := range z {
		out = append(out, store.ScoredMember{Member: m, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (s *Store) ZRangeByScoreAsc(_ context.Context, key string, min, max float64, limit int) ([]store.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ScoredMember
	for _, sm := range s.sortedMembers(key) {
		if sm.Score < min || sm.Score > max {
			continue
		}
		out = append(out, sm)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ZRevRange(_ context.Context, key string, limit int) ([]store.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedMembers(key)
	out := make([]store.ScoredMember, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ZRange(_ context.Context, key string, limit int) ([]store.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedMembers(key)
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

// ── Set ──

func (s *Store) SAdd(_ context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *Store) SRem(_ context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *Store) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sets[key])), nil
}

// ── List ──

func (s *Store) LPush(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *Store) RPop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[len(l)-1]
	s.lists[key] = l[:len(l)-1]
	return v, true, nil
}

func (s *Store) LRem(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	out := l[:0:0]
	for _, v := range l {
		if v != value {
			out = append(out, v)
		}
	}
	s.lists[key] = out
	return nil
}

func (s *Store) LRange(_ context.Context, key string, start, stop int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	n := len(l)
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (s *Store) LLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

// ── Pub/Sub ──

// Publish fans payload out to any Subscribe-registered channels. There is
// no durable backlog — exactly like a Redis PUBLISH, a message with no
// live subscriber is dropped, matching spec §7's "publish failures are
// silent" in spirit.
func (s *Store) Publish(_ context.Context, channel string, payload []byte) error {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, ch := range s.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a receiver for channel, for tests that want to
// observe published events. The returned func unregisters it.
func (s *Store) Subscribe(channel string, buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)
	s.subsMu.Lock()
	s.subs[channel] = append(s.subs[channel], ch)
	s.subsMu.Unlock()
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		list := s.subs[channel]
		for i, c := range list {
			if c == ch {
				s.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}
