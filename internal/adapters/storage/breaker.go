package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quotebook/internal/domain"
)

// BreakerState is the state of a Breaker's circuit.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota

	// BreakerOpen fails calls without touching the backend.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

// String returns a human-readable name for the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker. A zero MaxFailures disables it.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive unavailable errors that opens the circuit.
	MaxFailures int

	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration

	// HalfOpenLimit is the number of consecutive successful probes that close
	// the circuit again. It also caps probes in flight.
	HalfOpenLimit int
}

// Breaker wraps a Backend with a circuit breaker. Only domain unavailable
// errors count as failures, and a cancelled caller never does.
//
// State transitions:
//   - Closed → Open: after MaxFailures consecutive failures
//   - Open → HalfOpen: on the first call after Cooldown
//   - HalfOpen → Closed: after HalfOpenLimit consecutive successes
//   - HalfOpen → Open: on any failure
type Breaker struct {
	Backend

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	probes    int
	openedAt  time.Time
	cfg       BreakerConfig
	logger    *slog.Logger

	now func() time.Time
}

// NewBreaker wraps b. A nil logger uses slog.Default().
func NewBreaker(b Backend, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.HalfOpenLimit < 1 {
		cfg.HalfOpenLimit = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Breaker{
		Backend: b,
		cfg:     cfg,
		logger: logger.With(
			slog.String("component", "storage.Breaker"),
			slog.String("driver", b.Name()),
		),
		now: time.Now,
	}
}

// Get reads key from the wrapped backend unless the circuit is open.
func (br *Breaker) Get(ctx context.Context, key string) (string, bool, error) {
	if !br.allow() {
		return "", false, br.openError()
	}

	v, ok, err := br.Backend.Get(ctx, key)
	br.record(err)

	return v, ok, err
}

// Set writes key to the wrapped backend unless the circuit is open.
func (br *Breaker) Set(ctx context.Context, key, value string) error {
	if !br.allow() {
		return br.openError()
	}

	err := br.Backend.Set(ctx, key, value)
	br.record(err)

	return err
}

// Check reports an open circuit without probing; otherwise it defers to the backend.
func (br *Breaker) Check(ctx context.Context) error {
	if br.State() == BreakerOpen {
		return br.openError()
	}

	return br.Backend.Check(ctx)
}

// State returns the current circuit state.
func (br *Breaker) State() BreakerState {
	br.mu.Lock()
	defer br.mu.Unlock()

	return br.state
}

func (br *Breaker) openError() error {
	return domain.NewUnavailableError(br.Name(), "circuit open")
}

func (br *Breaker) allow() bool {
	br.mu.Lock()
	defer br.mu.Unlock()

	switch br.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if br.now().Sub(br.openedAt) < br.cfg.Cooldown {
			return false
		}

		br.transitionLocked(BreakerHalfOpen)
		br.probes = 1

		return true

	case BreakerHalfOpen:
		if br.probes >= br.cfg.HalfOpenLimit {
			return false
		}

		br.probes++

		return true

	default:
		return false
	}
}

// record counts unavailable errors against the circuit, deadline overruns
// included. Cancellation and non-storage errors leave it untouched.
func (br *Breaker) record(err error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if err != nil && (!domain.IsUnavailable(err) || errors.Is(err, context.Canceled)) {
		if br.state == BreakerHalfOpen {
			br.probes--
		}

		return
	}

	if err != nil {
		switch br.state {
		case BreakerClosed:
			br.failures++
			if br.failures >= br.cfg.MaxFailures {
				br.transitionLocked(BreakerOpen)
			}

		case BreakerHalfOpen:
			br.probes--
			br.transitionLocked(BreakerOpen)
		}

		return
	}

	switch br.state {
	case BreakerClosed:
		br.failures = 0

	case BreakerHalfOpen:
		br.probes--
		br.successes++

		if br.successes >= br.cfg.HalfOpenLimit {
			br.transitionLocked(BreakerClosed)
		}
	}
}

// transitionLocked must be called with mu held.
func (br *Breaker) transitionLocked(to BreakerState) {
	if br.state == to {
		return
	}

	from := br.state
	br.state = to
	br.failures = 0
	br.successes = 0

	if to == BreakerOpen {
		br.openedAt = br.now()
		br.probes = 0
	}

	br.logger.Warn("storage circuit state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
