package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
	"github.com/evanofslack/ovh-reconcile/internal/provider"
)

type Engine interface {
	Reconcile(ctx context.Context, req Request) (Outcome, error)
}

type engine struct {
	gw      gateway.Gateway
	dns     provider.Provider
	journal journal.Journal
	poller  *poll.Poller
	metrics *metrics.Metrics
}

func NewEngine(gw gateway.Gateway, dns provider.Provider, j journal.Journal, poller *poll.Poller, metrics *metrics.Metrics) *engine {
	if j == nil {
		j = journal.Discard{}
	}
	if poller == nil {
		poller = poll.New(10, 10*time.Second)
	}
	return &engine{
		gw:      gw,
		dns:     dns,
		journal: j,
		poller:  poller,
		metrics: metrics,
	}
}

// Reconcile brings one resource to its desired state. A non-nil error always
// comes with a failed Outcome; the caller may render either.
func (e *engine) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	if req.Desired == nil {
		err := errors.New("no desired state given")
		return Failed(err), err
	}
	kind := req.Desired.Kind()
	if err := req.Desired.Validate(); err != nil {
		e.metrics.IncReconcile(string(kind), "invalid", false)
		return Failed(err), err
	}

	r := &run{
		engine:      e,
		id:          uuid.NewString(),
		kind:        kind,
		simulate:    req.Simulate,
		maxAttempts: req.MaxAttempts,
		delay:       req.Delay,
		action:      Read,
	}
	log := slog.With("run", r.id, "kind", kind, "simulate", r.simulate)
	log.Debug("Starting reconciliation")

	start := time.Now()
	out, err := req.Desired.reconcile(ctx, r)
	e.metrics.SetRunDuration(time.Since(start))
	e.metrics.IncReconcile(string(kind), r.action.String(), err == nil)

	if err != nil {
		log.Error("Reconciliation failed", "action", r.action.String(), "error", err)
		return Failed(err), err
	}
	log.Info("Reconciliation finished", "action", r.action.String(), "changed", out.Changed, "msg", out.Message)
	return out, nil
}
