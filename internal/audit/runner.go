package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"autoseo/internal/analyzer"
	"autoseo/internal/billing"
	"autoseo/internal/crawler"
	"autoseo/internal/logging"
	"autoseo/internal/models"
	"autoseo/internal/plans"
)

const (
	// DefaultWorkers is the audit pool size when none is configured
	DefaultWorkers = 4

	// DefaultStaleThreshold bounds how long a site may sit in running
	// before the recovery sweep declares the audit dead
	DefaultStaleThreshold = 30 * time.Minute

	queueDepth = 100
)

// ErrQueueFull is returned when the audit queue cannot accept more work
var ErrQueueFull = fmt.Errorf("audit queue is full")

// Job identifies one queued audit
type Job struct {
	SiteID   string
	TenantID string
	URL      string
}

// Metrics holds the runner's Prometheus counters. A nil Metrics disables
// collection.
type Metrics struct {
	Audits       *prometheus.CounterVec // labels: outcome
	PagesCrawled prometheus.Counter
}

// Runner executes audits on a bounded worker pool. HTTP handlers enqueue and
// return immediately; workers call back into the billing engine so completed
// audits are billed and quota is re-checked at execution time, not enqueue
// time.
type Runner struct {
	db         *sql.DB
	logger     logging.Logger
	engine     *billing.Engine
	metrics    *Metrics
	crawlerCfg crawler.Config
	workers    int

	jobs chan Job
	wg   sync.WaitGroup
}

// NewRunner creates an audit runner. workers <= 0 selects DefaultWorkers.
func NewRunner(db *sql.DB, logger logging.Logger, engine *billing.Engine, metrics *Metrics, crawlerCfg crawler.Config, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		db:         db,
		logger:     logger,
		engine:     engine,
		metrics:    metrics,
		crawlerCfg: crawlerCfg,
		workers:    workers,
		jobs:       make(chan Job, queueDepth),
	}
}

// Start launches the worker pool. Workers exit when the context is canceled
// or the queue is closed.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					r.run(ctx, job)
				}
			}
		}(i)
	}
	r.logger.WithField("workers", r.workers).Info("Started audit worker pool")
}

// Stop closes the queue and waits for in-flight audits to finish
func (r *Runner) Stop() {
	close(r.jobs)
	r.wg.Wait()
}

// Enqueue hands a job to the pool without blocking the caller
func (r *Runner) Enqueue(job Job) error {
	select {
	case r.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports queued jobs and total queue capacity
func (r *Runner) QueueDepth() (int, int) {
	return len(r.jobs), cap(r.jobs)
}

// RecoverStale resets sites stuck in running longer than the threshold to
// failed. Run once at startup to clean up audits lost to a crash.
func (r *Runner) RecoverStale(threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	cutoff := time.Now().UTC().Add(-threshold)

	result, err := r.db.Exec(`
		UPDATE sites SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`, models.SiteFailed, time.Now().UTC(), models.SiteRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale audits: %w", err)
	}

	recovered, _ := result.RowsAffected()
	if recovered > 0 {
		r.logger.WithField("sites", recovered).Warn("Reset stale running audits to failed")
	}
	return int(recovered), nil
}

// run executes one audit end to end. Failures after the quota check mark the
// site failed and are logged, never propagated.
func (r *Runner) run(ctx context.Context, job Job) {
	log := r.logger.WithFields(logging.Fields{
		"site_id":   job.SiteID,
		"tenant_id": job.TenantID,
		"url":       job.URL,
	})

	tenant, err := r.engine.CheckQuota(job.TenantID)
	if err != nil {
		log.WithError(err).Warn("Audit denied by quota gate")
		r.markFailed(job.SiteID)
		r.count("denied")
		return
	}

	if err := r.setStatus(job.SiteID, models.SiteRunning); err != nil {
		log.WithError(err).Error("Failed to mark site running")
		r.count("error")
		return
	}

	plan := plans.Get(tenant.PlanType)
	pages, err := crawler.New(r.logger, r.crawlerCfg).Crawl(ctx, job.URL, plan.MaxPagesPerAudit)
	if err != nil {
		log.WithError(err).Error("Crawl failed")
		r.markFailed(job.SiteID)
		r.count("failed")
		return
	}
	if r.metrics != nil && r.metrics.PagesCrawled != nil {
		r.metrics.PagesCrawled.Add(float64(len(pages)))
	}

	result := analyzer.Analyze(pages)

	auditID, err := r.persist(job, result)
	if err != nil {
		log.WithError(err).Error("Failed to persist audit")
		r.markFailed(job.SiteID)
		r.count("failed")
		return
	}

	if err := r.complete(job.SiteID, auditID, result.Score); err != nil {
		log.WithError(err).Error("Failed to finalize site")
		r.markFailed(job.SiteID)
		r.count("failed")
		return
	}

	if err := r.engine.RecordUsage(job.TenantID, models.ActionAuditCompleted, &job.SiteID); err != nil {
		log.WithError(err).Error("Failed to record audit usage event")
	}

	log.WithFields(logging.Fields{
		"audit_id": auditID,
		"score":    result.Score,
		"pages":    result.PagesAnalyzed,
	}).Info("Completed audit")
	r.count("completed")
}

func (r *Runner) persist(job Job, result analyzer.Result) (string, error) {
	issues, err := json.Marshal(result.Issues)
	if err != nil {
		return "", fmt.Errorf("failed to encode issues: %w", err)
	}

	now := time.Now().UTC()
	auditID := uuid.New().String()
	_, err = r.db.Exec(`
		INSERT INTO audits (id, site_id, tenant_id, score, issues, pages_analyzed, billing_cycle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, auditID, job.SiteID, job.TenantID, result.Score, issues, result.PagesAnalyzed, billing.CycleTag(now), now)
	if err != nil {
		return "", fmt.Errorf("failed to insert audit: %w", err)
	}
	return auditID, nil
}

func (r *Runner) complete(siteID, auditID string, score float64) error {
	_, err := r.db.Exec(`
		UPDATE sites
		SET status = $1, last_audit = $2, last_score = $3, audit_count = audit_count + 1, updated_at = $4
		WHERE id = $5
	`, models.SiteCompleted, auditID, score, time.Now().UTC(), siteID)
	return err
}

func (r *Runner) setStatus(siteID, status string) error {
	_, err := r.db.Exec(`
		UPDATE sites SET status = $1, updated_at = $2 WHERE id = $3
	`, status, time.Now().UTC(), siteID)
	return err
}

func (r *Runner) markFailed(siteID string) {
	if err := r.setStatus(siteID, models.SiteFailed); err != nil {
		r.logger.WithError(err).WithField("site_id", siteID).Error("Failed to mark site failed")
	}
}

func (r *Runner) count(outcome string) {
	if r.metrics != nil && r.metrics.Audits != nil {
		r.metrics.Audits.WithLabelValues(outcome).Inc()
	}
}
