package worker

import (
	"context"
	"time"

	"github.com/medvault/medvault-api/internal/repository"
	"github.com/medvault/medvault-api/internal/service/audit"
	"github.com/medvault/medvault-api/internal/service/file"
	"github.com/medvault/medvault-api/pkg/logger"
	"github.com/medvault/medvault-api/pkg/metrics"
)

type SweeperConfig struct {
	// Interval between pending-upload sweeps.
	Interval time.Duration
	// AuditRetention is how long audit rows are kept.
	AuditRetention time.Duration
	// OutboxRetention is how long processed outbox rows are kept.
	OutboxRetention time.Duration
}

// Sweeper runs the periodic maintenance passes: unconfirmed-upload
// cleanup, audit retention, and processed-outbox pruning. The upload
// sweep runs every Interval; the retention passes run hourly.
type Sweeper struct {
	files   *file.Service
	audits  *audit.Service
	outbox  repository.OutboxRepository
	config  SweeperConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewSweeper(
	files *file.Service,
	audits *audit.Service,
	outbox repository.OutboxRepository,
	config SweeperConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.AuditRetention <= 0 {
		config.AuditRetention = 90 * 24 * time.Hour
	}
	if config.OutboxRetention <= 0 {
		config.OutboxRetention = 7 * 24 * time.Hour
	}
	return &Sweeper{
		files:   files,
		audits:  audits,
		outbox:  outbox,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	uploads := time.NewTicker(s.config.Interval)
	retention := time.NewTicker(time.Hour)
	defer uploads.Stop()
	defer retention.Stop()

	s.logger.Info("starting maintenance sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down maintenance sweeper")
			return
		case <-uploads.C:
			s.sweepPendingUploads(ctx)
		case <-retention.C:
			s.sweepAuditRetention(ctx)
			s.sweepProcessedOutbox(ctx)
		}
	}
}

func (s *Sweeper) sweepPendingUploads(ctx context.Context) {
	removed, err := s.files.CleanupPending(ctx)
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("pending_uploads", "error").Inc()
		s.logger.Error(err, "pending upload sweep failed")
		return
	}
	s.metrics.SweepRuns.WithLabelValues("pending_uploads", "success").Inc()
	if removed > 0 {
		s.metrics.SweepItemsRemoved.WithLabelValues("pending_uploads").Add(float64(removed))
		s.logger.Info("removed unconfirmed uploads", "count", removed)
	}
}

func (s *Sweeper) sweepAuditRetention(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.AuditRetention)
	removed, err := s.audits.Cleanup(ctx, cutoff)
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("audit_retention", "error").Inc()
		s.logger.Error(err, "audit retention sweep failed")
		return
	}
	s.metrics.SweepRuns.WithLabelValues("audit_retention", "success").Inc()
	if removed > 0 {
		s.metrics.SweepItemsRemoved.WithLabelValues("audit_retention").Add(float64(removed))
	}
}

func (s *Sweeper) sweepProcessedOutbox(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.OutboxRetention)
	removed, err := s.outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		s.metrics.SweepRuns.WithLabelValues("outbox_prune", "error").Inc()
		s.logger.Error(err, "outbox prune failed")
		return
	}
	s.metrics.SweepRuns.WithLabelValues("outbox_prune", "success").Inc()
	if removed > 0 {
		s.metrics.SweepItemsRemoved.WithLabelValues("outbox_prune").Add(float64(removed))
	}
}
