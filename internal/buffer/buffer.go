// Package buffer holds labeled message fragments per conversation until a
// trigger reaction flushes them into a digest.
package buffer

import (
	"sort"
	"strings"
	"sync"
)

// ChannelWideRoot is the thread-root marker for the whole-channel key.
const ChannelWideRoot = "*"

// Key identifies one buffered conversation: a channel plus the thread root
// timestamp. Standalone messages use their own timestamp as the root.
type Key struct {
	Channel    string
	ThreadRoot string
}

// ChannelWideKey returns the key used by the collect-everything trigger.
// It is distinct from every single-thread key in the same channel.
func ChannelWideKey(channel string) Key {
	return Key{Channel: channel, ThreadRoot: ChannelWideRoot}
}

func (k Key) String() string {
	return k.Channel + ":" + k.ThreadRoot
}

// Fragment is one labeled message captured from a reaction event.
// Immutable once stored.
type Fragment struct {
	Label     string `json:"label"`
	Text      string `json:"text"`
	Timestamp string `json:"ts"`
	Author    string `json:"author"`
}

// KeyStatus is a diagnostic snapshot entry for one non-empty key.
type KeyStatus struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Store is an in-memory fragment buffer keyed by conversation. Contents are
// volatile; losing them only costs a re-trigger against Slack history.
type Store struct {
	mu    sync.Mutex
	items map[Key][]Fragment
}

func NewStore() *Store {
	return &Store{items: map[Key][]Fragment{}}
}

// Add inserts fragment under key unless a fragment with the same
// (timestamp, label) pair is already present. Duplicate reaction events are
// idempotent no-ops. Insertion order is preserved and is not necessarily
// chronological; callers sort at flush time.
func (s *Store) Add(key Key, fragment Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items[key] {
		if existing.Timestamp == fragment.Timestamp && existing.Label == fragment.Label {
			return
		}
	}
	s.items[key] = append(s.items[key], fragment)
}

// List returns all fragments for key in insertion order.
func (s *Store) List(key Key) []Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fragment(nil), s.items[key]...)
}

// Clear empties a single key.
func (s *Store) Clear(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// ListChannel returns the fragments of every key in the channel, including
// the channel-wide key itself. Order across keys is unspecified beyond being
// grouped per key in insertion order.
func (s *Store) ListChannel(channel string) []Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.items))
	for k := range s.items {
		if k.Channel == channel {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.Compare(keys[i].ThreadRoot, keys[j].ThreadRoot) < 0
	})
	var out []Fragment
	for _, k := range keys {
		out = append(out, s.items[k]...)
	}
	return out
}

// ClearChannel empties every key in the channel.
func (s *Store) ClearChannel(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.items {
		if k.Channel == channel {
			delete(s.items, k)
		}
	}
}

// Status returns a (key, count) snapshot of every non-empty key, sorted by
// key for stable output. Read-only.
func (s *Store) Status() []KeyStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KeyStatus, 0, len(s.items))
	for k, frags := range s.items {
		if len(frags) == 0 {
			continue
		}
		out = append(out, KeyStatus{Key: k.String(), Count: len(frags)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
