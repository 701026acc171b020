// Package audit runs the scheduled conservation check: transfers only move
// money, so the sum of all balances must always equal the sum of everything
// ever provisioned. Drift means money was created or destroyed and is
// treated as an incident.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/metrics"
)

// Summer is the one store capability the checker needs.
type Summer interface {
	ConservationTotals(ctx context.Context) (current, provisioned decimal.Decimal, err error)
}

// Notifier is implemented by the SMTP alerter; nil disables alerting.
type Notifier interface {
	SendDriftAlert(current, provisioned decimal.Decimal) error
}

// Checker re-sums the ledger on a cron schedule.
type Checker struct {
	store    Summer
	metrics  *metrics.Collector
	notifier Notifier
	log      *logrus.Logger
	cron     *cron.Cron
}

// NewChecker initializes a checker; notifier may be nil.
func NewChecker(store Summer, collector *metrics.Collector, notifier Notifier, log *logrus.Logger) *Checker {
	return &Checker{store: store, metrics: collector, notifier: notifier, log: log}
}

// Start schedules the check. The schedule accepts cron expressions and
// @every durations.
func (c *Checker) Start(schedule string) error {
	c.cron = cron.New()
	_, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Check(ctx); err != nil {
			c.log.Errorf("conservation check failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule conservation check: %w", err)
	}
	c.cron.Start()
	c.log.Infof("conservation check scheduled: %s", schedule)
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (c *Checker) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// Check performs one conservation pass and returns an error when the ledger
// total has drifted from the provisioned total.
func (c *Checker) Check(ctx context.Context) error {
	current, provisioned, err := c.store.ConservationTotals(ctx)
	if err != nil {
		return err
	}

	c.metrics.SetTotalBalance(current)
	if current.Equal(provisioned) {
		c.log.WithField("total", current.String()).Debug("conservation check passed")
		return nil
	}

	c.log.WithFields(logrus.Fields{
		"current":     current.String(),
		"provisioned": provisioned.String(),
	}).Error("conservation violated: ledger total drifted")
	if c.notifier != nil {
		if err := c.notifier.SendDriftAlert(current, provisioned); err != nil {
			c.log.Errorf("failed to send drift alert: %v", err)
		}
	}
	return fmt.Errorf("ledger total %s does not match provisioned total %s", current, provisioned)
}
