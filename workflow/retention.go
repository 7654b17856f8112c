package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"github.com/sirupsen/logrus"
)

// RetentionActor is the synthetic actor retention deletions are audited under.
const RetentionActor = "retention-sweeper"

// RetentionSweeper deletes purchase orders that finished their lifecycle
// (recebido) more than the retention window ago. Every deletion goes through
// the gateway, so it is audited and broadcast like any operator delete.
type RetentionSweeper struct {
	gw      *gateway.Gateway
	window  time.Duration
	now     func() time.Time
	log     *logrus.Logger
	running atomic.Bool
}

func NewRetentionSweeper(gw *gateway.Gateway, window time.Duration) *RetentionSweeper {
	if window <= 0 {
		window = config.DefaultRetentionWindow
	}
	return &RetentionSweeper{
		gw:     gw,
		window: window,
		now:    time.Now,
		log:    config.GetLogger(),
	}
}

// Sweep runs one pass. Overlapping invocations are collapsed: if a previous
// pass is still running, this one returns immediately.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.running.Store(false)

	cutoff := s.now().UTC().Add(-s.window)
	ctx = utils.SetActorNameInContext(ctx, RetentionActor)
	ctx = utils.SetAuditMetaInContext(ctx, map[string]any{
		"retention_window": s.window.String(),
		"cutoff":           cutoff.Format(time.RFC3339),
	})

	rows, err := s.gw.List(ctx, models.TablePedidosCompra, models.Query{
		Filters: models.Filters{"status": models.OrderStatusReceived},
		OrderBy: "received_at",
		Limit:   gateway.ListLimitCeiling,
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, row := range rows {
		receivedAt, ok := parseTimestamp(row.GetString("received_at"))
		if !ok || !receivedAt.Before(cutoff) {
			continue
		}
		if _, err := s.gw.Delete(ctx, models.TablePedidosCompra, models.Filters{"id": row.GetString("id")}); err != nil {
			config.LogError(s.log, "workflow", "RetentionSweeper.Sweep", "delete expired order", map[string]interface{}{
				"numero": row.GetString("numero"),
			}, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("retention sweep removed expired orders")
	}
	return deleted, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
