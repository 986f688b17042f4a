package limits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llmgate/internal/config"
	apierr "llmgate/internal/errors"
)

const rpmWindow = 60 * time.Second

// BudgetReader reports spend for a budget period ("daily"/"weekly"/"monthly").
type BudgetReader interface {
	SpentForPeriod(ctx context.Context, period string) (float64, error)
}

// RPMWindow counts requests inside the sliding minute. The local
// implementation is process-wide; a redis one can be shared.
type RPMWindow interface {
	// Allow records the request if the window has room for it.
	Allow(ctx context.Context, limit int) (bool, error)
}

// Manager gates request admission. All checks run under one mutex; the
// volumes here are interactive-gateway scale.
type Manager struct {
	mu sync.Mutex

	window     []time.Time
	rpmBackend RPMWindow

	concurrentTotal     int
	concurrentBySession map[string]int
}

// NewManager builds a limit manager. rpmBackend may be nil to use the
// in-process window.
func NewManager(rpmBackend RPMWindow) *Manager {
	return &Manager{
		rpmBackend:          rpmBackend,
		concurrentBySession: make(map[string]int),
	}
}

// Guard releases the concurrency slots acquired for one request.
type Guard struct {
	m        *Manager
	session  string
	released bool
}

// Release returns the slots. Safe to call more than once.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.m.release(g.session)
}

// CheckAndAcquire admits or rejects one request. Returns a nil guard when
// no limit is configured. Budgets are checked first, then RPM, then
// concurrency. A limit explicitly set to zero blocks everything.
func (m *Manager) CheckAndAcquire(ctx context.Context, session string, cfg *config.LimitsConfig, budgets BudgetReader) (*Guard, *apierr.APIError) {
	if !cfg.Configured() {
		return nil, nil
	}
	if session == "" {
		session = "anonymous"
	}

	if err := m.checkBudgets(ctx, cfg, budgets); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.RPM != nil {
		if *cfg.RPM <= 0 {
			return nil, apierr.RateLimited("rpm limit is <= 0; all requests are blocked")
		}
		if err := m.checkRPMLocked(ctx, *cfg.RPM); err != nil {
			return nil, err
		}
	}

	if cfg.MaxConcurrent != nil {
		if *cfg.MaxConcurrent <= 0 {
			return nil, apierr.RateLimited("max_concurrent is <= 0; all requests are blocked")
		}
		if m.concurrentTotal+1 > *cfg.MaxConcurrent {
			return nil, apierr.RateLimited(fmt.Sprintf("concurrency limit exceeded: %d", *cfg.MaxConcurrent))
		}
	}
	if cfg.MaxConcurrentPerSession != nil {
		if *cfg.MaxConcurrentPerSession <= 0 {
			return nil, apierr.RateLimited("max_concurrent_per_session is <= 0; all requests are blocked")
		}
		if m.concurrentBySession[session]+1 > *cfg.MaxConcurrentPerSession {
			return nil, apierr.RateLimited(fmt.Sprintf("session concurrency limit exceeded: %d", *cfg.MaxConcurrentPerSession))
		}
	}

	m.concurrentTotal++
	m.concurrentBySession[session]++
	return &Guard{m: m, session: session}, nil
}

func (m *Manager) checkBudgets(ctx context.Context, cfg *config.LimitsConfig, budgets BudgetReader) *apierr.APIError {
	type budget struct {
		period string
		limit  *float64
	}
	for _, b := range []budget{
		{"daily", cfg.BudgetDailyUSD},
		{"weekly", cfg.BudgetWeeklyUSD},
		{"monthly", cfg.BudgetMonthlyUSD},
	} {
		if b.limit == nil {
			continue
		}
		if *b.limit <= 0 {
			return apierr.RateLimited(fmt.Sprintf("%s budget is <= 0; all requests are blocked", b.period))
		}
		if budgets == nil {
			continue
		}
		spent, err := budgets.SpentForPeriod(ctx, b.period)
		if err != nil {
			continue
		}
		if spent >= *b.limit {
			return apierr.RateLimited(fmt.Sprintf("%s budget exceeded: spent $%.4f / limit $%.4f", b.period, spent, *b.limit))
		}
	}
	return nil
}

func (m *Manager) checkRPMLocked(ctx context.Context, rpm int) *apierr.APIError {
	if m.rpmBackend != nil {
		ok, err := m.rpmBackend.Allow(ctx, rpm)
		if err == nil {
			if !ok {
				return apierr.RateLimited(fmt.Sprintf("RPM limit exceeded: %d per minute", rpm))
			}
			return nil
		}
		// Backend down: fall through to the local window.
	}

	now := time.Now()
	cutoff := now.Add(-rpmWindow)
	keep := m.window[:0]
	for _, t := range m.window {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	m.window = keep
	if len(m.window) >= rpm {
		return apierr.RateLimited(fmt.Sprintf("RPM limit exceeded: %d per minute", rpm))
	}
	m.window = append(m.window, now)
	return nil
}

func (m *Manager) release(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.concurrentTotal > 0 {
		m.concurrentTotal--
	}
	if n, ok := m.concurrentBySession[session]; ok {
		if n <= 1 {
			delete(m.concurrentBySession, session)
		} else {
			m.concurrentBySession[session] = n - 1
		}
	}
}
