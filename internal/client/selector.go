package client

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kelsos/design-survey/internal/config"
)

// Selector picks the endpoint for the next request.
type Selector interface {
	Next() config.Endpoint
	Endpoints() []config.Endpoint
}

// NewSelector builds the selector for a configured policy. rng may be nil for the random policy,
// in which case a randomly seeded source is used.
func NewSelector(policy string, endpoints []config.Endpoint, rng *rand.Rand) (Selector, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	switch policy {
	case config.SelectionRoundRobin:
		return NewRoundRobin(endpoints), nil
	case config.SelectionRandom, "":
		return NewRandom(endpoints, rng), nil
	default:
		return nil, fmt.Errorf("unknown endpoint selection policy: %q", policy)
	}
}

// RoundRobin cycles through the endpoints in configuration order.
type RoundRobin struct {
	mu        sync.Mutex
	endpoints []config.Endpoint
	next      int
}

func NewRoundRobin(endpoints []config.Endpoint) *RoundRobin {
	return &RoundRobin{endpoints: endpoints}
}

func (r *RoundRobin) Next() config.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint := r.endpoints[r.next]
	r.next = (r.next + 1) % len(r.endpoints)
	return endpoint
}

func (r *RoundRobin) Endpoints() []config.Endpoint { return r.endpoints }

// Random picks a uniformly random endpoint on every call.
type Random struct {
	mu        sync.Mutex
	endpoints []config.Endpoint
	rng       *rand.Rand
}

func NewRandom(endpoints []config.Endpoint, rng *rand.Rand) *Random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Random{endpoints: endpoints, rng: rng}
}

func (r *Random) Next() config.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.endpoints[r.rng.IntN(len(r.endpoints))]
}

func (r *Random) Endpoints() []config.Endpoint { return r.endpoints }
