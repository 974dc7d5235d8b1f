package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crestrock/storefront/internal/model"
)

// PollConfig tunes one poll. Zero durations fall back to the controller's
// options. Callbacks run on the poll goroutine.
type PollConfig struct {
	Interval    time.Duration
	MaxDuration time.Duration

	// OnChange sees the first read and every status change after it.
	OnChange func(order *model.Order)
	// OnTerminal fires at most once, for the first final status read.
	OnTerminal func(order *model.Order)
	// OnWarning receives non-blocking problems such as a failed email.
	OnWarning func(err error)
}

// Poll is a running reconciliation loop for a single order.
type Poll struct {
	orderID   string
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	cancelled bool
	emitted   bool
	last      *model.Order
	ticks     int
	err       error
}

func (p *Poll) OrderID() string { return p.orderID }

// Cancel stops further reads and suppresses any terminal event that has
// not been claimed yet. It may be called from the poll's own callbacks.
func (p *Poll) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.cancel()
}

func (p *Poll) Done() <-chan struct{} { return p.done }

// Wait blocks until the poll ends. It returns the terminal snapshot, or
// the last snapshot read together with ErrPollExhausted, ErrPollCancelled
// or ErrControllerClosed.
func (p *Poll) Wait() (*model.Order, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.err
}

func (p *Poll) Last() *model.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Ticks is the number of reads issued so far.
func (p *Poll) Ticks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

func (p *Poll) countTick() {
	p.mu.Lock()
	p.ticks++
	p.mu.Unlock()
}

// observe records a read. It reports false once the poll is cancelled, in
// which case the read must be dropped.
func (p *Poll) observe(order *model.Order) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return false
	}
	p.last = order
	return true
}

// claimEmit grants the terminal event exactly once, and never after
// Cancel.
func (p *Poll) claimEmit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled || p.emitted {
		return false
	}
	p.emitted = true
	return true
}

func (p *Poll) finish(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// PollUntilTerminal reads the order immediately and then once per
// interval until it reaches a final status, the tick budget
// (MaxDuration/Interval reads) runs out, or the poll is cancelled. Read
// errors are logged and retried on the next tick. Starting a poll for an
// order cancels the one already running for it.
func (c *Controller) PollUntilTerminal(ctx context.Context, orderID string, cfg PollConfig) *Poll {
	if cfg.Interval <= 0 {
		cfg.Interval = c.opts.PollInterval
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = c.opts.PollMaxDuration
	}
	maxTicks := int(cfg.MaxDuration / cfg.Interval)
	if maxTicks < 1 {
		maxTicks = 1
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Poll{orderID: orderID, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.Cancel()
		p.finish(ErrControllerClosed)
		close(p.done)
		return p
	}
	prev := c.polls[orderID]
	c.polls[orderID] = p
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		c.log.Debug("replaced running poll", "order_id", orderID)
	}

	go c.runPoll(pctx, p, cfg, maxTicks)
	return p
}

func (c *Controller) runPoll(ctx context.Context, p *Poll, cfg PollConfig, maxTicks int) {
	defer close(p.done)
	defer c.release(p)

	log := c.log.With("order_id", p.orderID)
	var lastStatus model.OrderStatus

	timer := time.NewTimer(0)
	defer timer.Stop()

	for tick := 1; tick <= maxTicks; tick++ {
		select {
		case <-ctx.Done():
			p.finish(ErrPollCancelled)
			return
		case <-timer.C:
		}

		p.countTick()
		order, err := c.store.GetOrder(ctx, p.orderID)
		if ctx.Err() != nil {
			p.finish(ErrPollCancelled)
			return
		}
		if err != nil {
			log.Warn("poll order", "tick", tick, "error", err)
			timer.Reset(cfg.Interval)
			continue
		}

		status := order.EffectiveStatus()
		if !status.Valid() {
			log.Warn("unknown order status", "status", status)
		}
		changed := status != lastStatus
		terminal := status.IsTerminal()

		if !p.observe(order) {
			p.finish(ErrPollCancelled)
			return
		}
		if changed {
			lastStatus = status
			c.remember(p.orderID, status)
			if cfg.OnChange != nil {
				cfg.OnChange(order)
			}
		}
		if terminal {
			// OnChange may have cancelled, so the claim comes after it.
			if !p.claimEmit() {
				p.finish(ErrPollCancelled)
				return
			}
			c.emitTerminal(ctx, order, cfg, log)
			p.finish(nil)
			return
		}
		timer.Reset(cfg.Interval)
	}

	log.Info("poll budget exhausted", "ticks", maxTicks, "status", lastStatus)
	p.finish(ErrPollExhausted)
}

func (c *Controller) emitTerminal(ctx context.Context, order *model.Order, cfg PollConfig, log *slog.Logger) {
	status := order.EffectiveStatus()
	log.Info("order reached final status", "status", status)
	if cfg.OnTerminal != nil {
		cfg.OnTerminal(order)
	}
	if status != model.OrderStatusPaid {
		return
	}
	// The email is owed once payment is seen, even if the view goes away.
	if err := c.OnTerminalPaid(context.WithoutCancel(ctx), order); err != nil && cfg.OnWarning != nil {
		cfg.OnWarning(err)
	}
}

func (c *Controller) release(p *Poll) {
	c.mu.Lock()
	if c.polls[p.orderID] == p {
		delete(c.polls, p.orderID)
	}
	c.mu.Unlock()
}
