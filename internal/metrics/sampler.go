package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"nodeagent/internal/logger"
)

const sampleTimeout = 5 * time.Second

// Sampler keeps the latest snapshot of a Source, refreshed every interval.
type Sampler struct {
	source   Source
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	latest  Snapshot
	have    bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSampler creates a sampler. A nil clock uses wall time.
func NewSampler(source Source, clk clock.Clock, interval time.Duration) *Sampler {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{source: source, clock: clk, interval: interval}
}

// Start takes a first sample and begins the refresh loop.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.sample(ctx)

	ticker := s.clock.Ticker(s.interval)
	s.wg.Add(1)
	go s.run(ctx, ticker)
}

// Stop ends the loop and waits for it.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}

// Latest returns the newest snapshot, and false before the first one succeeded.
func (s *Sampler) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.have
}

func (s *Sampler) run(ctx context.Context, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()

	snap, err := s.source.Sample(sampleCtx)
	if err != nil {
		log := logger.WithComponent("metrics")
		log.Warn().Err(err).Msg("process sample failed")
		return
	}

	s.mu.Lock()
	s.latest = snap
	s.have = true
	s.mu.Unlock()
}
