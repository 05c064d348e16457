package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"momentum-trader/internal/feed"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/models"
)

// Pool owns the set of active monitors, one per tradable ticker. Monitors run
// on goroutines supervised by a panic-catching wait group, so one monitor
// blowing up never takes the others down.
type Pool struct {
	feed   feed.Feed
	orders OrderPlacer
	log    TradeLog
	cfg    Config
	clock  Clock
	logger zerolog.Logger

	mu       sync.Mutex
	monitors map[string]*Monitor
	cancel   context.CancelFunc
	started  bool
	stopped  bool

	wg conc.WaitGroup

	// StopTimeout bounds how long StopAll waits for acknowledgement.
	StopTimeout time.Duration
	// LivenessInterval is the cadence of the stopped-monitor sweep.
	LivenessInterval time.Duration
	// Warmup, when set before Start, supplies historical bars to seed each
	// monitor's price history ahead of its run loop.
	Warmup func(ctx context.Context, symbol string) ([]models.Bar, error)
}

// NewPool creates a monitor pool.
func NewPool(f feed.Feed, om OrderPlacer, log TradeLog, cfg Config, clock Clock, logger zerolog.Logger) *Pool {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pool{
		feed:             f,
		orders:           om,
		log:              log,
		cfg:              cfg,
		clock:            clock,
		logger:           logging.WithComponent(logger, "pool"),
		monitors:         make(map[string]*Monitor),
		StopTimeout:      10 * time.Second,
		LivenessInterval: 30 * time.Second,
	}
}

// Start creates and runs one monitor per ticker. A ticker that fails to start
// does not abort the rest.
func (p *Pool) Start(ctx context.Context, tickers []string) {
	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		cancel()
		return
	}
	p.started = true
	p.cancel = cancel

	for _, ticker := range tickers {
		if ticker == "" {
			p.logger.Warn().Msg("Skipping empty ticker")
			continue
		}
		if _, dup := p.monitors[ticker]; dup {
			p.logger.Warn().Str("ticker", ticker).Msg("Skipping duplicate ticker")
			continue
		}
		m := New(ticker, p.feed, p.orders, p.log, p.cfg, p.clock, p.logger)
		p.monitors[ticker] = m
		warmup := p.Warmup
		p.wg.Go(func() {
			if warmup != nil {
				if bars, err := warmup(runCtx, m.Ticker()); err != nil {
					p.logger.Warn().Str("ticker", m.Ticker()).Err(err).Msg("History warmup failed")
				} else {
					m.Seed(bars)
				}
			}
			m.Run(runCtx)
		})
	}
	count := len(p.monitors)
	p.mu.Unlock()

	p.logger.Info().Int("monitors", count).Msg("Pool started")

	p.wg.Go(func() { p.livenessLoop(runCtx) })
}

// livenessLoop periodically reports monitors that have stopped while still
// registered. Stopped monitors stay stopped; there is no auto-restart.
func (p *Pool) livenessLoop(ctx context.Context) {
	for {
		if !p.clock.Sleep(ctx, p.LivenessInterval) {
			return
		}
		stopped := p.StoppedCount()
		if stopped > 0 {
			p.logger.Warn().Int("stopped", stopped).Int("total", p.Size()).Msg("Stopped monitors detected")
		}
	}
}

// Size returns the number of registered monitors.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.monitors)
}

// StoppedCount returns the number of registered monitors whose run loop has
// exited.
func (p *Pool) StoppedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.monitors {
		if !m.Running() {
			n++
		}
	}
	return n
}

// StopAll signals every monitor to stop and waits, bounded by StopTimeout,
// for them to acknowledge. Idempotent and safe from a signal handler.
func (p *Pool) StopAll() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		if r := p.wg.WaitAndRecover(); r != nil {
			p.logger.Error().Str("panic", r.String()).Msg("Monitor panicked during shutdown")
		}
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("Pool stopped")
	case <-time.After(p.StopTimeout):
		p.logger.Warn().Msg("Pool stop timed out waiting for monitors")
	}
}

// Monitor returns the monitor registered for a ticker, if any.
func (p *Pool) Monitor(ticker string) (*Monitor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.monitors[ticker]
	return m, ok
}
