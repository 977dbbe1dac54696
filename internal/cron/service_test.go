package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.deadline = ctx.Deadline()
	return t.err
}

func newTestCron(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry:   NewRegistry(jobs...),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		JobTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	bad := &testJob{name: "bad", err: errors.New("boom")}
	lock := &fakeLock{}
	svc := newTestCron(t, lock, nil, bad, ok)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job once, got ok=%d bad=%d", ok.runs, bad.runs)
	}
	if !ok.deadline {
		t.Fatalf("expected job context to carry the timeout")
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock must be released after the cycle")
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "ok"}
	svc := newTestCron(t, &fakeLock{held: true}, nil, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
}

func TestRunCycleRecordsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newTestCron(t, &fakeLock{}, reg,
		&testJob{name: "ok"},
		&testJob{name: "bad", err: errors.New("boom")},
	)
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			counts[key] = m.GetCounter().GetValue()
		}
	}
	if counts[metrics.Namespace+"_cron_job_runs_total/ok/"+metrics.RunSucceeded] != 1 {
		t.Fatalf("expected one success for ok, got %v", counts)
	}
	if counts[metrics.Namespace+"_cron_job_runs_total/bad/"+metrics.RunFailed] != 1 {
		t.Fatalf("expected one failure for bad, got %v", counts)
	}
	if n, err := testutil.GatherAndCount(reg, metrics.Namespace+"_cron_job_duration_seconds"); err != nil || n != 2 {
		t.Fatalf("expected two duration series, got %d (%v)", n, err)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{})}); err == nil {
		t.Fatalf("expected missing lock to fail")
	}
}
