package freshness

import (
	"context"
	"strings"

	"github.com/aristath/marketdata/internal/domain"
)

// call is one outstanding resolution of a key. result is written once,
// before done is closed. A settled call whose fetched result is still
// being persisted stays registered so late callers share it instead of
// reading durable storage before the write lands.
type call struct {
	done    chan struct{}
	result  *Result
	settled bool // guarded by Service.mu
	waiters int  // guarded by Service.mu; callers currently blocked in await
}

func inFlightKey(category domain.AssetCategory, symbol string) string {
	return string(category) + ":" + strings.ToUpper(strings.TrimSpace(symbol))
}

// begin registers a new call for key, or joins the existing one.
// leader is true when the caller must resolve the key.
func (s *Service) begin(key string) (c *call, leader bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.inFlight[key]; ok {
		existing.waiters++
		return existing, false
	}

	c = &call{done: make(chan struct{})}
	s.inFlight[key] = c
	return c, true
}

// finish publishes the outcome and wakes every waiter
func (s *Service) finish(c *call, result *Result) {
	c.result = result

	s.mu.Lock()
	c.settled = true
	s.mu.Unlock()

	close(c.done)
}

// release clears the registry slot for a settled call
func (s *Service) release(key string, c *call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] == c {
		delete(s.inFlight, key)
	}
}

// await blocks until the call settles or ctx is done. ok is false only when
// the caller gave up; a settled call always yields its outcome, nil included.
func (s *Service) await(ctx context.Context, c *call) (*Result, bool) {
	defer s.leave(c)

	select {
	case <-c.done:
		if c.result == nil {
			return nil, true
		}
		if c.result.Source == SourceFetched {
			return c.result.as(SourceShared), true
		}
		return c.result.as(c.result.Source), true
	case <-ctx.Done():
		return nil, false
	}
}

func (s *Service) leave(c *call) {
	s.mu.Lock()
	c.waiters--
	s.mu.Unlock()
}

// InFlight returns the number of unsettled calls
func (s *Service) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.inFlight {
		if !c.settled {
			n++
		}
	}
	return n
}

// waiting returns how many callers are blocked on the call for key
func (s *Service) waiting(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.inFlight[key]; ok {
		return c.waiters
	}
	return 0
}
