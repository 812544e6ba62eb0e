package button_events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"assistant-voice-trigger/metrics"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 32
)

type registration struct {
	id      HandlerID
	handler Handler
}

type job struct {
	event   ButtonEvent
	id      HandlerID
	handler Handler
}

type dispatcherImpl struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	minPress time.Duration
	now      func() time.Time

	mu        sync.Mutex
	current   byte
	previous  byte
	pressedAt time.Time
	callbacks map[ButtonEvent][]registration
	nextID    HandlerID
	closed    bool

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Config struct {
	Workers   int
	QueueSize int

	// MinPressDuration discards releases of presses shorter than it as
	// contact bounce. Zero keeps every release.
	MinPressDuration time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now is the clock used for press durations, time.Now when nil.
	Now func() time.Time
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Workers < 0 || cfg.QueueSize < 0 || cfg.MinPressDuration < 0 {
		return nil, fmt.Errorf("workers, queue size and min press duration cannot be negative")
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}

	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &dispatcherImpl{
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		minPress:  cfg.MinPressDuration,
		now:       cfg.Now,
		callbacks: make(map[ButtonEvent][]registration),
		jobs:      make(chan job, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	if d.now == nil {
		d.now = time.Now
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)

		go d.worker()
	}

	return d, nil
}

func (d *dispatcherImpl) RegisterCallback(event ButtonEvent, handler Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.callbacks[event] = append(d.callbacks[event], registration{id: d.nextID, handler: handler})

	d.logger.Debug("callback registered", slog.String("event", event.String()), slog.Uint64("id", uint64(d.nextID)))

	return d.nextID
}

func (d *dispatcherImpl) UnregisterCallback(event ButtonEvent, id HandlerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.callbacks[event]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}

		d.callbacks[event] = append(regs[:i:i], regs[i+1:]...)

		return true
	}

	return false
}

// OnReport consumes one raw report. A release transition (button id back to
// idle after a non-idle id) dispatches the event of the released button.
// Reports of the wrong length are ignored.
func (d *dispatcherImpl) OnReport(report []byte) {
	if len(report) != ReportLength {
		d.logger.Debug("ignoring malformed report", slog.Int("length", len(report)))

		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.previous = d.current
	d.current = report[1]
	now := d.now()

	if d.previous == IdleButtonID && d.current != IdleButtonID {
		d.pressedAt = now
	}

	if d.current != IdleButtonID || d.previous == IdleButtonID {
		return
	}

	event := EventFor(d.previous)

	if d.minPress > 0 && now.Sub(d.pressedAt) < d.minPress {
		d.logger.Debug("ignoring bounce",
			slog.String("event", event.String()),
			slog.Duration("pressed", now.Sub(d.pressedAt)),
		)

		return
	}

	d.logger.Info("button released", slog.String("event", event.String()), slog.Int("button_id", int(d.previous)))
	d.metrics.ObserveButtonEvent(event.String())

	if event == Unknown {
		d.logger.Warn("unknown button id", slog.Int("button_id", int(d.previous)))
	}

	// submitted under the lock so job order follows report order
	for _, reg := range d.callbacks[event] {
		select {
		case d.jobs <- job{event: event, id: reg.id, handler: reg.handler}:
		default:
			d.logger.Warn("handler queue full, dropping invocation",
				slog.String("event", event.String()),
				slog.Uint64("id", uint64(reg.id)),
			)
			d.metrics.ObserveJobDropped()
		}
	}
}

func (d *dispatcherImpl) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		d.run(j)
	}
}

func (d *dispatcherImpl) run(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("button handler failed",
				slog.String("event", j.event.String()),
				slog.Uint64("id", uint64(j.id)),
				slog.Any("error", fmt.Errorf("%w: %v", ErrHandlerPanic, rec)),
			)
			d.metrics.ObserveHandlerFailure()
		}
	}()

	err := j.handler(d.ctx, j.event)
	if err != nil {
		d.logger.Error("button handler failed",
			slog.String("event", j.event.String()),
			slog.Uint64("id", uint64(j.id)),
			slog.Any("error", err),
		)
		d.metrics.ObserveHandlerFailure()
	}
}

// Close stops accepting reports, cancels the handler context and waits for
// the workers to drain the queue.
func (d *dispatcherImpl) Close() {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		return
	}

	d.closed = true
	close(d.jobs)

	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
