package realtime

import (
	"sort"
	"sync"
)

// subscriptionSet tracks the channels the client wants delivered
// (e.g. "match:42", "team:7"). The server forgets subscriptions on
// disconnect, so the full set is replayed after every reconnect.
type subscriptionSet struct {
	mu       sync.Mutex
	channels map[string]struct{}
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{channels: make(map[string]struct{})}
}

// add returns true if the channel was not already a member.
func (s *subscriptionSet) add(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel]; ok {
		return false
	}
	s.channels[channel] = struct{}{}
	return true
}

// remove returns true if the channel was a member.
func (s *subscriptionSet) remove(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel]; !ok {
		return false
	}
	delete(s.channels, channel)
	return true
}

// snapshot returns the members sorted, for stable replay and logs.
func (s *subscriptionSet) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (s *subscriptionSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

func (s *subscriptionSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]struct{})
}
