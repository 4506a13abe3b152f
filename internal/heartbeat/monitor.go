package heartbeat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Checker owns the session and decides staleness itself; the monitor only
// supplies the clock reading.
type Checker interface {
	CheckHeartbeat(ctx context.Context, now time.Time, timeout time.Duration) (bool, error)
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

type Monitor struct {
	target   Checker
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewMonitor(target Checker, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		target:   target,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   opts.Logger.Named("heartbeat"),
	}
}

// Run checks the session every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs a single check.
func (m *Monitor) Tick(ctx context.Context) {
	expired, err := m.target.CheckHeartbeat(ctx, m.now(), m.timeout)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("heartbeat check failed", zap.Error(err))
		}
		return
	}
	if expired {
		m.logger.Info("session expired", zap.Duration("timeout", m.timeout))
	}
}

// Handle stops a monitor started with Start.
type Handle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stop cancels the monitor and waits for its goroutine to return.
func (h *Handle) Stop() {
	h.cancel()
	h.wg.Wait()
}

func (m *Monitor) Start(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		m.Run(ctx)
	}()
	return h
}
