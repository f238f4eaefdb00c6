package service

import (
	"context"
	"strings"
	"sync"

	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/ports"
)

// acceptedOriginsCap bounds the wildcard acceptance cache. The cache only
// short-circuits repeat wildcard matching; it is not a security boundary.
const acceptedOriginsCap = 1000

// originMatcher decides whether a request origin is acceptable. Exact
// entries and wildcard entries come from the configured allow-list; an
// optional custom approver gets the last word on anything else.
type originMatcher struct {
	acceptedOrigins []string
	wildcards       []core.WildcardOrigin
	custom          ports.OriginApprover
	seen            *acceptedOriginSet
}

func newOriginMatcher(acceptedOrigins []string, wildcards []core.WildcardOrigin, custom ports.OriginApprover) *originMatcher {
	return &originMatcher{
		acceptedOrigins: acceptedOrigins,
		wildcards:       wildcards,
		custom:          custom,
		seen:            newAcceptedOriginSet(acceptedOriginsCap),
	}
}

// Accept reports whether origin is allowed, short-circuiting on the first
// check that accepts it.
func (m *originMatcher) Accept(ctx context.Context, origin string) (bool, error) {
	if m.seen.contains(origin) {
		return true, nil
	}

	for _, wildcard := range m.wildcards {
		if strings.HasPrefix(origin, wildcard.Protocol) && strings.HasSuffix(origin, wildcard.Domain) {
			m.seen.add(origin)
			return true, nil
		}
	}

	for _, accepted := range m.acceptedOrigins {
		if accepted == origin || accepted == "https://"+origin {
			return true, nil
		}
	}

	if m.custom != nil {
		return m.custom.ApproveOrigin(ctx, origin)
	}

	return false, nil
}

// acceptedOriginSet is a bounded set with FIFO eviction: once the capacity
// is exceeded, the oldest member is dropped. Concurrent use is safe; two
// racing inserts can at worst evict one member more than strictly needed.
type acceptedOriginSet struct {
	mu       sync.RWMutex
	capacity int
	members  map[string]struct{}
	order    []string
}

func newAcceptedOriginSet(capacity int) *acceptedOriginSet {
	return &acceptedOriginSet{
		capacity: capacity,
		members:  make(map[string]struct{}, capacity),
	}
}

func (s *acceptedOriginSet) contains(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[origin]
	return ok
}

func (s *acceptedOriginSet) add(origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[origin]; ok {
		return
	}

	s.members[origin] = struct{}{}
	s.order = append(s.order, origin)

	if len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
}

func (s *acceptedOriginSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.members)
}
