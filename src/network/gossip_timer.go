package network

import (
	"context"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// GossipTimer ticks once per interval. The next interval starts when the
// previous tick has been consumed, so ticks never pile up behind a busy
// dispatcher.
type GossipTimer struct {
	timerFactory timerFactory
	interval     time.Duration
	tickCh       chan struct{}
}

// NewGossipTimer creates a timer ticking every interval.
func NewGossipTimer(interval time.Duration) *GossipTimer {
	return newGossipTimer(interval, time.After)
}

func newGossipTimer(interval time.Duration, factory timerFactory) *GossipTimer {
	if interval <= 0 {
		interval = DefaultGossipInterval
	}
	return &GossipTimer{
		timerFactory: factory,
		interval:     interval,
		tickCh:       make(chan struct{}),
	}
}

// Ticks returns the channel the ticks are sent on.
func (c *GossipTimer) Ticks() <-chan struct{} {
	return c.tickCh
}

// Run sends ticks until ctx is done.
func (c *GossipTimer) Run(ctx context.Context) error {
	timer := c.timerFactory(c.interval)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			timer = c.timerFactory(c.interval)
		case <-ctx.Done():
			return nil
		}
	}
}
