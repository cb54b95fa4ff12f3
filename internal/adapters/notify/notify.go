// Package notify delivers audit notifications for runs that need attention.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/audit"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// Notification is the payload sent to every destination.
type Notification struct {
	RunID          string                    `json:"run_id"`
	Title          string                    `json:"title"`
	EngineVersion  model.EngineVersion       `json:"engine_version"`
	CatalogVersion string                    `json:"catalog_version"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	Entities       int                       `json:"entities"`
	Counts         map[model.AnomalyKind]int `json:"counts"`
	Anomalies      []model.Anomaly           `json:"anomalies"`
}

// FromReport builds a notification carrying the report's over-cap and
// missing-source samples. It returns nil when the report needs no attention.
func FromReport(r *audit.Report) *Notification {
	if r == nil || !r.NeedsAttention() {
		return nil
	}
	n := &Notification{
		RunID:          r.RunID,
		EngineVersion:  r.EngineVersion,
		CatalogVersion: r.CatalogVersion,
		GeneratedAt:    r.GeneratedAt,
		Entities:       r.Entities,
		Counts:         r.Counts,
	}
	for _, a := range r.Anomalies {
		if a.Kind == model.AnomalyOverCap || a.Kind == model.AnomalyMissingSource {
			n.Anomalies = append(n.Anomalies, a)
		}
	}
	n.Title = fmt.Sprintf("rating run %s: %d over_cap, %d missing_source",
		r.RunID, r.Count(model.AnomalyOverCap), r.Count(model.AnomalyMissingSource))
	return n
}

// Notifier delivers notifications to one destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
	logger    logger.Logger
}

// NewManager creates a manager. Nil notifiers are skipped.
func NewManager(notifiers ...Notifier) *Manager {
	m := &Manager{logger: logger.Get().Named("notify")}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends n to every notifier and joins their errors.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		err := notifier.Send(ctx, n)
		metrics.RecordNotification(err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NotifyReport sends a notification for r when it needs attention. Failures
// are logged and never returned.
func (m *Manager) NotifyReport(ctx context.Context, r *audit.Report) bool {
	if !m.HasNotifiers() {
		return false
	}
	n := FromReport(r)
	if n == nil {
		return false
	}
	if err := m.Broadcast(ctx, n); err != nil {
		metrics.RecordErrorByComponent("notify", "send_error")
		m.logger.Warn(ctx, "audit notification failed",
			logger.String("run_id", n.RunID),
			logger.Error(err),
		)
		return false
	}
	m.logger.Info(ctx, "audit notification sent", logger.String("run_id", n.RunID))
	return true
}
