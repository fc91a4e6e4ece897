package oracle

import (
	"context"
	"sync"
)

// Scripted is a Provider that replays a fixed sequence of responses. Once
// the script runs out, the last response repeats.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

// NewScripted builds a scripted provider.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// NewFailing builds a provider whose Propose always returns err.
func NewFailing(err error) *Scripted {
	return &Scripted{err: err}
}

// Propose returns the next scripted response.
func (s *Scripted) Propose(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

// Calls reports how many times Propose ran.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
