package model

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitConfig configures the per-endpoint circuit breaker.
type CircuitConfig struct {
	// ConsecutiveFailures is the number of consecutive failures before the
	// breaker opens.
	ConsecutiveFailures uint32

	// RecoveryTimeout is how long the breaker stays open before allowing a
	// single half-open probe request.
	RecoveryTimeout time.Duration
}

// DefaultCircuitConfig matches the hot-path LLM circuit breaker settings:
// five consecutive failures trip the breaker, which then recovers after 60s.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		ConsecutiveFailures: 5,
		RecoveryTimeout:     60 * time.Second,
	}
}

// EndpointHealth is a point-in-time snapshot of an endpoint's circuit state.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	State           string    `json:"state"` // closed, open, half-open
	ConsecutiveFail uint32    `json:"consecutive_failures"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
}

type breakerEntry struct {
	cb          *gobreaker.CircuitBreaker
	lastSuccess time.Time
	lastFailure time.Time
}

var errProbeDenied = errors.New("circuit open")

func (r *Registry) breakerFor(name string) *breakerEntry {
	r.breakerMu.Lock()
	defer r.breakerMu.Unlock()

	if r.breakers == nil {
		r.breakers = make(map[string]*breakerEntry)
	}
	if r.breakerCfg == (CircuitConfig{}) {
		r.breakerCfg = DefaultCircuitConfig()
	}
	if entry, ok := r.breakers[name]; ok {
		return entry
	}

	cfg := r.breakerCfg
	entry := &breakerEntry{}
	entry.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	})
	r.breakers[name] = entry
	return entry
}

// SetHealthConfig updates the circuit-breaker configuration used for
// endpoints created from this point forward.
func (r *Registry) SetHealthConfig(cfg CircuitConfig) {
	r.breakerMu.Lock()
	defer r.breakerMu.Unlock()
	r.breakerCfg = cfg
}

// MarkEndpointSuccess records a successful request to an endpoint.
func (r *Registry) MarkEndpointSuccess(name string) {
	entry := r.breakerFor(name)
	_, _ = entry.cb.Execute(func() (interface{}, error) { return nil, nil })
	r.breakerMu.Lock()
	entry.lastSuccess = time.Now()
	r.breakerMu.Unlock()
}

// MarkEndpointFailure records a failed request to an endpoint.
func (r *Registry) MarkEndpointFailure(name string) {
	entry := r.breakerFor(name)
	_, _ = entry.cb.Execute(func() (interface{}, error) { return nil, errors.New("endpoint failure") })
	r.breakerMu.Lock()
	entry.lastFailure = time.Now()
	r.breakerMu.Unlock()
}

// IsEndpointAvailable reports whether calls may currently be attempted
// against the named endpoint: closed or half-open, never open.
func (r *Registry) IsEndpointAvailable(name string) bool {
	entry := r.breakerFor(name)
	if entry.cb.State() != gobreaker.StateOpen {
		return true
	}
	// gobreaker transitions open->half-open lazily on the next Execute call,
	// so probe it directly rather than trusting the cached State().
	_, err := entry.cb.Execute(func() (interface{}, error) { return nil, errProbeDenied })
	return !errors.Is(err, gobreaker.ErrOpenState)
}

// GetEndpointHealth returns a snapshot of the endpoint's circuit state.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	r.breakerMu.Lock()
	entry, ok := r.breakers[name]
	r.breakerMu.Unlock()
	if !ok {
		return nil
	}

	var state string
	switch entry.cb.State() {
	case gobreaker.StateOpen:
		state = "open"
	case gobreaker.StateHalfOpen:
		state = "half-open"
	default:
		state = "closed"
	}

	counts := entry.cb.Counts()
	return &EndpointHealth{
		Available:       entry.cb.State() != gobreaker.StateOpen,
		State:           state,
		ConsecutiveFail: counts.ConsecutiveFailures,
		LastSuccess:     entry.lastSuccess,
		LastFailure:     entry.lastFailure,
	}
}

// GetAvailableFallbackChain returns the fallback chain filtered to only
// available (non-open-circuit) endpoints. If every endpoint is unavailable
// the full chain is returned so callers still attempt something.
func (r *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)
	available := make([]string, 0, len(chain))

	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}

	if len(available) == 0 {
		return chain
	}
	return available
}

// ResetEndpointHealth clears the circuit state for an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	r.breakerMu.Lock()
	defer r.breakerMu.Unlock()
	delete(r.breakers, name)
}
