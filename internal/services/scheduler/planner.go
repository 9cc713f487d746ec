package scheduler

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	Interval time.Duration // default: 30 seconds
	// Jitter размазывает владельцев, чтобы они не синкались одной пачкой.
	Jitter time.Duration // default: 0

	Backoff1 time.Duration // default: 1 minute
	Backoff2 time.Duration // default: 2 minutes
	Backoff3 time.Duration // default: 5 minutes
	Backoff4 time.Duration // default: 10 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Interval: 30 * time.Second,

		Backoff1: 1 * time.Minute,
		Backoff2: 2 * time.Minute,
		Backoff3: 5 * time.Minute,
		Backoff4: 10 * time.Minute,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) NextSyncDelay() time.Duration {
	if p.cfg.Jitter <= 0 {
		return p.cfg.Interval
	}
	sec := int(p.cfg.Jitter.Seconds())
	if sec <= 0 {
		return p.cfg.Interval
	}
	return p.cfg.Interval + time.Duration(p.r.Intn(sec+1))*time.Second
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
