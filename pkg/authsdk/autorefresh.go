package authsdk

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/authkit/pkg/jwtx"
)

// scheduleRefresh replaces any pending timer with one that fires
// RefreshBuffer before accessToken expires.
func (c *Client) scheduleRefresh(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	if c.cfg.DisableAutoRefresh || c.closed {
		return
	}

	delay, ok := jwtx.RefreshDelay(accessToken, c.cfg.RefreshBuffer, c.now())
	if !ok {
		c.logger.Warn("auto-refresh not armed, access token has no usable expiry")
		return
	}

	c.timerGen++
	gen := c.timerGen
	c.timer = c.afterFunc(delay, func() { c.fireRefresh(gen) })

	c.logger.Debug("auto-refresh armed", "in", delay)
}

// stopTimerLocked cancels the pending timer. c.mu must be held.
func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// A timer that already fired but has not taken the lock yet sees a
	// different generation and does nothing.
	c.timerGen++
}

func (c *Client) fireRefresh(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	sessionGen := c.generation
	c.mu.Unlock()

	ctx := context.Background()
	_, err := c.RefreshToken(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errSessionReplaced) || c.currentGeneration() != sessionGen:
		// Logged out or replaced while the request was out; nothing to report.
		c.logger.Info("auto-refresh abandoned, session changed", "err", err)
	default:
		c.logger.Error("auto-refresh failed", "err", err)
		if !wasReported(err) && c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
	}
}
