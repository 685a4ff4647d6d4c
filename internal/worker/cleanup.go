// Package worker runs background maintenance tasks.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/identity-server/internal/logger"
)

// Sweeper deletes refresh tokens that left the retention window.
type Sweeper interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Cleanup periodically sweeps stale refresh tokens.
type Cleanup struct {
	sweeper      Sweeper
	retention    time.Duration
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration
	logger       *logger.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewCleanup(sweeper Sweeper, retention, interval, initialDelay, timeout time.Duration, logger *logger.Logger) *Cleanup {
	return &Cleanup{
		sweeper:      sweeper,
		retention:    retention,
		interval:     interval,
		initialDelay: initialDelay,
		timeout:      timeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs after the initial delay.
func (c *Cleanup) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (c *Cleanup) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// RunOnce performs a single sweep.
func (c *Cleanup) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	n, err := c.sweeper.Cleanup(ctx, c.retention)
	if err != nil {
		c.logger.Error("Cleanup worker: sweep failed",
			"error", err.Error())
		return 0, err
	}

	c.logger.Info("Cleanup worker: sweep finished",
		"deleted", n,
		"duration_ms", time.Since(started).Milliseconds())
	return n, nil
}

func (c *Cleanup) run() {
	defer c.wg.Done()

	delay := time.NewTimer(c.initialDelay)
	defer delay.Stop()

	select {
	case <-delay.C:
	case <-c.done:
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_, _ = c.RunOnce(context.Background())

		select {
		case <-ticker.C:
		case <-c.done:
			return
		}
	}
}
