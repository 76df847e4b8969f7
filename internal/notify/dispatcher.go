package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/metrics"
	"github.com/tripdesk/backend/internal/models"
)

type Store interface {
	ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	MarkNotificationRetry(ctx context.Context, id string, next time.Time, lastErr string, failed bool) error
	CountPendingNotifications(ctx context.Context) (int, error)
}

type Dispatcher struct {
	Store       Store
	Sender      Sender
	Logger      zerolog.Logger
	BaseURL     string
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// SendTimeout bounds a single delivery. Zero means Interval, at least 10s.
	SendTimeout time.Duration
	Now         func() time.Time
}

// Run polls the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.Logger.Info().Dur("interval", interval).Msg("notification dispatcher started")
	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.Logger.Error().Err(err).Msg("notification dispatch failed")
		}
		select {
		case <-ctx.Done():
			d.Logger.Info().Msg("notification dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce sends one batch of due notifications and reports how many were
// delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now()
	lease := d.sendTimeout() * 2
	batch, err := d.Store.ClaimDueNotifications(ctx, now, lease, d.batchSize())
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range batch {
		if ctx.Err() != nil {
			break
		}
		if d.deliver(ctx, n) {
			sent++
		}
	}

	if pending, err := d.Store.CountPendingNotifications(ctx); err == nil {
		metrics.NotificationsPending.Set(float64(pending))
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) bool {
	log := d.Logger.With().Str("notification_id", n.ID).Str("kind", n.Kind).Int("attempt", n.Attempts+1).Logger()

	msg, err := Render(n, d.BaseURL)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout())
		err = d.Sender.Send(sendCtx, msg)
		cancel()
	}
	if err == nil {
		if markErr := d.Store.MarkNotificationSent(ctx, n.ID, d.now()); markErr != nil {
			log.Error().Err(markErr).Msg("mark notification sent")
		}
		metrics.Notifications.WithLabelValues(n.Kind, "sent").Inc()
		log.Info().Str("to", n.Recipient).Msg("notification sent")
		return true
	}

	attempts := n.Attempts + 1
	failed := attempts >= d.maxAttempts()
	next := d.now().Add(time.Duration(attempts) * d.interval())
	if markErr := d.Store.MarkNotificationRetry(ctx, n.ID, next, err.Error(), failed); markErr != nil {
		log.Error().Err(markErr).Msg("mark notification retry")
	}
	outcome := "retry"
	if failed {
		outcome = "failed"
	}
	metrics.Notifications.WithLabelValues(n.Kind, outcome).Inc()
	log.Warn().Err(err).Bool("gave_up", failed).Time("next_attempt", next).Msg("notification send failed")
	return false
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) interval() time.Duration {
	if d.Interval <= 0 {
		return 5 * time.Second
	}
	return d.Interval
}

func (d *Dispatcher) sendTimeout() time.Duration {
	if d.SendTimeout > 0 {
		return d.SendTimeout
	}
	if d.interval() < 10*time.Second {
		return 10 * time.Second
	}
	return d.interval()
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize <= 0 {
		return 20
	}
	return d.BatchSize
}

func (d *Dispatcher) maxAttempts() int {
	if d.MaxAttempts <= 0 {
		return 5
	}
	return d.MaxAttempts
}
