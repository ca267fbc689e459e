package session

import (
	"context"
	"sync"
	"time"
)

// Cooldown counts down the resend window in fixed ticks. Starting it again
// replaces the running countdown.
type Cooldown struct {
	window time.Duration
	tick   time.Duration

	mu     sync.Mutex
	ticks  int
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCooldown creates a countdown of window split into ticks of tick
func NewCooldown(window, tick time.Duration) *Cooldown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Cooldown{window: window, tick: tick}
}

// Start begins a full window, replacing any running countdown
func (c *Cooldown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.ticks = int((c.window + c.tick - 1) / c.tick)
	if c.ticks <= 0 {
		c.cancel = nil
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx, gen)
}

func (c *Cooldown) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.ticks--
		finished := c.ticks <= 0
		if finished {
			c.ticks = 0
			c.cancel = nil
		}
		c.mu.Unlock()

		if finished {
			return
		}
	}
}

// Stop cancels the countdown and re-enables resending
func (c *Cooldown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.ticks = 0
}

// Remaining is the time left before resending is allowed again
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.ticks) * c.tick
}

func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks > 0
}

// Wait blocks until countdown goroutines have exited
func (c *Cooldown) Wait() {
	c.wg.Wait()
}
