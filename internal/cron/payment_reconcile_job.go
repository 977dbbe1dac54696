package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

const paymentReconcileJobName = "payment_reconcile"

type tenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type tenantBinder interface {
	Bind(ctx context.Context, subdomain string) (*tenant.Context, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, tc *tenant.Context, cutoff time.Time, limit int) (payments.ReconcileReport, error)
}

// PaymentReconcileJobParams wires the reconcile sweep.
type PaymentReconcileJobParams struct {
	Tenants  tenantLister
	Binder   tenantBinder
	Payments reconciler
	Config   config.ReconcileConfig
	Metrics  *metrics.CronJobMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// PaymentReconcileJob re-fetches gateway payments left pending past the stale
// window, for each active tenant. It backs up lost webhooks.
type PaymentReconcileJob struct {
	tenants  tenantLister
	binder   tenantBinder
	payments reconciler
	cfg      config.ReconcileConfig
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewPaymentReconcileJob validates the params.
func NewPaymentReconcileJob(p PaymentReconcileJobParams) (*PaymentReconcileJob, error) {
	if p.Tenants == nil {
		return nil, fmt.Errorf("tenant directory required")
	}
	if p.Binder == nil {
		return nil, fmt.Errorf("tenant binder required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	cfg := p.Config
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &PaymentReconcileJob{
		tenants:  p.Tenants,
		binder:   p.Binder,
		payments: p.Payments,
		cfg:      cfg,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      now,
	}, nil
}

func (j *PaymentReconcileJob) Name() string { return paymentReconcileJobName }

// Run sweeps every tenant even when some fail; the failures are combined.
func (j *PaymentReconcileJob) Run(ctx context.Context) error {
	tenants, err := j.tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	cutoff := j.now().Add(-j.cfg.StaleAfter)

	var errs error
	var total payments.ReconcileReport
	for _, t := range tenants {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if !t.HasGatewayCredentials() {
			continue
		}
		tctx := j.logg.WithTenant(ctx, t.ID.String(), t.Subdomain)
		tc, err := j.binder.Bind(tctx, t.Subdomain)
		if err != nil {
			// A tenant deactivated mid-sweep is not a failed run.
			if !pkgerrors.Retryable(err) {
				j.logg.WarnErr(tctx, "tenant skipped by reconcile", err)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("bind %s: %w", t.Subdomain, err))
			continue
		}
		report, err := j.payments.Reconcile(tctx, tc, cutoff, j.cfg.BatchSize)
		total.Checked += report.Checked
		total.Applied += report.Applied
		j.metrics.ObserveReconcile(report.Checked, report.Applied)
		if err != nil {
			j.logg.WarnErr(tctx, "tenant reconcile incomplete", err)
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", t.Subdomain, err))
		}
		if report.Checked > 0 {
			j.logg.Info(j.logg.WithFields(tctx, map[string]any{
				"checked": report.Checked,
				"applied": report.Applied,
			}), "tenant payments reconciled")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"tenants": len(tenants),
		"checked": total.Checked,
		"applied": total.Applied,
	}), "payment reconcile sweep finished")
	return errs
}
