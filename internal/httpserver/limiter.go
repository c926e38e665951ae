package httpserver

import (
	"sync"

	"golang.org/x/time/rate"

	"rpc-gateway/internal/config"
)

// maxLimiters bounds the per-client table; it is reset when exceeded.
const maxLimiters = 10000

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// newLimiterPool returns nil when rate limiting is disabled.
func newLimiterPool(cfg config.RateLimit) *limiterPool {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: cfg.RPS, burst: burst}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	if len(p.m) >= maxLimiters {
		p.m = make(map[string]*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}
