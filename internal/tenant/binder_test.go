package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/repo/repotest"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

type fakeShards struct {
	mu        sync.Mutex
	conn      *gorm.DB
	available map[string]bool
	calls     map[string]int
}

func (f *fakeShards) Get(_ context.Context, database string) (*gorm.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[database]++
	if !f.available[database] {
		return nil, errors.New("database does not exist")
	}
	return f.conn, nil
}

func (f *fakeShards) markAvailable(database string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available == nil {
		f.available = map[string]bool{}
	}
	f.available[database] = true
}

type fakeProvisioner struct {
	shards *fakeShards
	runs   int32
	err    error
}

func (p *fakeProvisioner) EnsureDatabase(_ context.Context, name string) error {
	atomic.AddInt32(&p.runs, 1)
	time.Sleep(10 * time.Millisecond)
	if p.err != nil {
		return p.err
	}
	p.shards.markAvailable(name)
	return nil
}

func seedTenant(t *testing.T, conn *gorm.DB, subdomain string, active bool, shard int) models.Tenant {
	t.Helper()
	tn := models.Tenant{
		ID:        uuid.New(),
		Subdomain: subdomain,
		Name:      subdomain,
		IsActive:  active,
		ShardID:   shard,
		Timezone:  "America/Sao_Paulo",
	}
	if err := conn.Create(&tn).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tn
}

func newTestBinder(t *testing.T, shards *fakeShards, prov *fakeProvisioner, allow bool, m *metrics.Platform) (*Binder, *gorm.DB) {
	t.Helper()
	platform := repotest.NewPlatform(t)
	dir, err := NewDirectory(platform)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	params := BinderParams{
		Directory:      dir,
		Shards:         shards,
		Tenancy:        config.TenancyConfig{DatabaseBase: "cardapy", ConnectTimeout: time.Second, ProvisionTimeout: time.Second},
		Storage:        config.StorageConfig{BaseDir: "/srv/assets", PublicURLBase: "/storage"},
		AllowProvision: allow,
		Metrics:        m,
	}
	if prov != nil {
		params.Provisioner = prov
	}
	b, err := NewBinder(params)
	if err != nil {
		t.Fatalf("binder: %v", err)
	}
	return b, platform
}

func TestBindResolvesActiveTenant(t *testing.T) {
	shard := repotest.NewShard(t)
	shards := &fakeShards{conn: shard}
	shards.markAvailable("cardapy_tenant_3")
	b, platform := newTestBinder(t, shards, nil, false, nil)
	tn := seedTenant(t, platform, "bobscafe", true, 3)

	tc, err := b.Bind(context.Background(), "bobscafe")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if tc.ID() != tn.ID {
		t.Fatalf("unexpected tenant %s", tc.ID())
	}
	if tc.Target.Database != "cardapy_tenant_3" {
		t.Fatalf("unexpected database %q", tc.Target.Database)
	}
	if tc.DB != shard {
		t.Fatalf("expected shard handle")
	}
}

func TestBindRejectsUnknownInactiveAndCaseMismatch(t *testing.T) {
	shards := &fakeShards{}
	reg := prometheus.NewRegistry()
	m := metrics.NewPlatform(reg)
	b, platform := newTestBinder(t, shards, nil, false, m)
	seedTenant(t, platform, "closed", false, 1)
	seedTenant(t, platform, "bobscafe", true, 1)

	for _, sub := range []string{"missing", "closed", "BOBSCAFE", ""} {
		_, err := b.Bind(context.Background(), sub)
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			t.Fatalf("Bind(%q): expected not found, got %v", sub, err)
		}
	}
	if len(shards.calls) != 0 {
		t.Fatalf("no shard may be touched for unknown tenants")
	}
	if got := bindCount(t, reg, metrics.BindNotFound); got != 4 {
		t.Fatalf("expected 4 not_found bindings, got %v", got)
	}
}

func TestBindProductionNeverProvisions(t *testing.T) {
	shards := &fakeShards{}
	b, platform := newTestBinder(t, shards, nil, false, nil)
	seedTenant(t, platform, "bobscafe", true, 2)

	_, err := b.Bind(context.Background(), "bobscafe")
	if !pkgerrors.Is(err, pkgerrors.CodeUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if shards.calls["cardapy_tenant_2"] != 1 {
		t.Fatalf("expected exactly one connection attempt, got %d", shards.calls["cardapy_tenant_2"])
	}
}

func TestBindProvisionsOnceUnderConcurrency(t *testing.T) {
	shards := &fakeShards{conn: repotest.NewShard(t)}
	prov := &fakeProvisioner{shards: shards}
	b, platform := newTestBinder(t, shards, prov, true, nil)
	seedTenant(t, platform, "bobscafe", true, 5)

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Bind(context.Background(), "bobscafe")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("bind: %v", err)
		}
	}
	if runs := atomic.LoadInt32(&prov.runs); runs < 1 || runs > 6 {
		t.Fatalf("unexpected provisioning runs %d", runs)
	}
}

func TestBindProvisionFailureIsUnavailable(t *testing.T) {
	shards := &fakeShards{}
	prov := &fakeProvisioner{shards: shards, err: errors.New("permission denied")}
	b, platform := newTestBinder(t, shards, prov, true, nil)
	seedTenant(t, platform, "bobscafe", true, 1)

	_, err := b.Bind(context.Background(), "bobscafe")
	if !pkgerrors.Is(err, pkgerrors.CodeUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if shards.calls["cardapy_tenant_1"] != 1 {
		t.Fatalf("failed provisioning must not retry the connection")
	}
}

func TestSequentialBindingsDoNotLeak(t *testing.T) {
	shards := &fakeShards{conn: repotest.NewShard(t)}
	shards.markAvailable("cardapy_tenant_1")
	shards.markAvailable("cardapy_tenant_2")
	b, platform := newTestBinder(t, shards, nil, false, nil)
	t1 := seedTenant(t, platform, "alpha", true, 1)
	t2 := seedTenant(t, platform, "beta", true, 2)

	base := context.Background()
	c1, err := b.Bind(base, "alpha")
	if err != nil {
		t.Fatalf("bind alpha: %v", err)
	}
	ctx1 := WithContext(base, c1)
	c2, err := b.Bind(base, "beta")
	if err != nil {
		t.Fatalf("bind beta: %v", err)
	}
	ctx2 := WithContext(base, c2)

	got1, _ := FromContext(ctx1)
	got2, _ := FromContext(ctx2)
	if got1.ID() != t1.ID || got2.ID() != t2.ID {
		t.Fatalf("contexts crossed tenants")
	}
	if got1.Target.CacheNamespace == got2.Target.CacheNamespace || got1.Target.Storage == got2.Target.Storage {
		t.Fatalf("bindings leaked between tenants")
	}
	if _, ok := FromContext(base); ok {
		t.Fatalf("base context must stay unbound")
	}
}

func bindCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "cardapy_tenant_bindings_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
