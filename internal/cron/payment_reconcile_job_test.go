package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

type staticTenants []models.Tenant

func (s staticTenants) ListActive(context.Context) ([]models.Tenant, error) { return s, nil }

type fakeBinder struct {
	fail map[string]error
}

func (f fakeBinder) Bind(_ context.Context, subdomain string) (*tenant.Context, error) {
	if err := f.fail[subdomain]; err != nil {
		return nil, err
	}
	return &tenant.Context{Tenant: models.Tenant{Subdomain: subdomain}}, nil
}

type reconcileCall struct {
	subdomain string
	cutoff    time.Time
	limit     int
}

type fakeReconciler struct {
	calls  []reconcileCall
	report payments.ReconcileReport
	fail   map[string]error
}

func (f *fakeReconciler) Reconcile(_ context.Context, tc *tenant.Context, cutoff time.Time, limit int) (payments.ReconcileReport, error) {
	f.calls = append(f.calls, reconcileCall{subdomain: tc.Tenant.Subdomain, cutoff: cutoff, limit: limit})
	return f.report, f.fail[tc.Tenant.Subdomain]
}

func gatewayTenant(sub string) models.Tenant {
	pub, token := "pk", "tok"
	return models.Tenant{ID: uuid.New(), Subdomain: sub, IsActive: true, GatewayPublicKey: &pub, GatewayAccessToken: &token}
}

func TestPaymentReconcileJobSweepsGatewayTenants(t *testing.T) {
	now := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)
	rec := &fakeReconciler{report: payments.ReconcileReport{Checked: 2, Applied: 1}}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Tenants:  staticTenants{gatewayTenant("bobscafe"), {ID: uuid.New(), Subdomain: "cashonly", IsActive: true}, gatewayTenant("pizzaria")},
		Binder:   fakeBinder{},
		Payments: rec,
		Config:   config.ReconcileConfig{StaleAfter: 15 * time.Minute, BatchSize: 25},
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, "payment_reconcile", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "bobscafe", rec.calls[0].subdomain)
	assert.Equal(t, "pizzaria", rec.calls[1].subdomain)
	assert.Equal(t, now.Add(-15*time.Minute), rec.calls[0].cutoff)
	assert.Equal(t, 25, rec.calls[0].limit)
}

func TestPaymentReconcileJobContinuesPastFailures(t *testing.T) {
	rec := &fakeReconciler{fail: map[string]error{"pizzaria": errors.New("gateway down")}}
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Tenants:  staticTenants{gatewayTenant("offline"), gatewayTenant("pizzaria"), gatewayTenant("bobscafe")},
		Binder:   fakeBinder{fail: map[string]error{"offline": errors.New("shard unreachable")}},
		Payments: rec,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "bobscafe", rec.calls[1].subdomain)
	assert.Equal(t, 50, rec.calls[1].limit)
}

func TestPaymentReconcileJobSkipsDeactivatedTenants(t *testing.T) {
	rec := &fakeReconciler{report: payments.ReconcileReport{Checked: 3, Applied: 1}}
	reg := prometheus.NewRegistry()
	job, err := NewPaymentReconcileJob(PaymentReconcileJobParams{
		Tenants:  staticTenants{gatewayTenant("closed"), gatewayTenant("bobscafe")},
		Binder:   fakeBinder{fail: map[string]error{"closed": pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")}},
		Payments: rec,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "bobscafe", rec.calls[0].subdomain)

	applied, err := testutil.GatherAndCount(reg, metrics.Namespace+"_payments_reconciled_total")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}
