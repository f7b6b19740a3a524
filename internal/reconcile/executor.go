package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
)

const dryRunSuffix = " - (dry run mode)"

// run carries the state of one Reconcile invocation.
type run struct {
	engine   *engine
	id       string
	kind     Kind
	target   string
	simulate bool
	action   Action

	maxAttempts int
	delay       time.Duration

	seq     int
	planned []string
}

// mutation is one corrective remote call.
type mutation struct {
	Step   string
	Method string
	Path   string
	Do     func(ctx context.Context) error
}

func (m mutation) String() string {
	return m.Method + " " + m.Path
}

// mutate performs m, or only records it when simulating. Applied mutations
// are journaled; a journal failure does not fail the invocation.
func (r *run) mutate(ctx context.Context, m mutation) error {
	if r.simulate {
		slog.Info("Dry run, skipping call", "run", r.id, "step", m.Step, "call", m.String())
		r.planned = append(r.planned, m.String())
		return nil
	}

	if err := m.Do(ctx); err != nil {
		return err
	}

	r.seq++
	entry := journal.Entry{
		RunID:  r.id,
		Seq:    r.seq,
		Kind:   string(r.kind),
		Target: r.target,
		Step:   m.Step,
		Method: m.Method,
		Path:   m.Path,
	}
	if err := r.engine.journal.Append(ctx, entry); err != nil {
		slog.Warn("Failed to journal applied call", "run", r.id, "call", m.String(), "error", err)
	}
	return nil
}

func (r *run) post(ctx context.Context, step, path string, body, out any) error {
	return r.mutate(ctx, mutation{
		Step:   step,
		Method: http.MethodPost,
		Path:   path,
		Do: func(ctx context.Context) error {
			return r.engine.gw.Post(ctx, path, body, out)
		},
	})
}

func (r *run) put(ctx context.Context, step, path string, body any) error {
	return r.mutate(ctx, mutation{
		Step:   step,
		Method: http.MethodPut,
		Path:   path,
		Do: func(ctx context.Context) error {
			return r.engine.gw.Put(ctx, path, body, nil)
		},
	})
}

func (r *run) del(ctx context.Context, step, path string) error {
	return r.mutate(ctx, mutation{
		Step:   step,
		Method: http.MethodDelete,
		Path:   path,
		Do: func(ctx context.Context) error {
			return r.engine.gw.Delete(ctx, path, nil)
		},
	})
}

// decide records the chosen action and refuses ambiguous ones before any
// mutation is attempted.
func (r *run) decide(selector string, d Decision) error {
	r.action = d.Action
	slog.Debug("Comparison done", "run", r.id, "selector", selector, "action", d.Action.String(), "ids", d.IDs)
	if d.Action == Ambiguous {
		return &AmbiguityError{Kind: r.kind, Selector: selector, IDs: d.IDs}
	}
	return nil
}

// changed builds the outcome of an applied, or simulated, corrective action.
// A simulated outcome carries the calls that would have been made.
func (r *run) changed(msg string, payload any) Outcome {
	if r.simulate {
		return Outcome{
			Success:   true,
			Changed:   true,
			Simulated: true,
			Message:   msg + dryRunSuffix,
			Payload:   r.planned,
		}
	}
	return Outcome{Success: true, Changed: true, Message: msg, Payload: payload}
}

// poll runs fetch under the engine poller, honoring per-request overrides.
func (r *run) poll(ctx context.Context, fetch poll.FetchFunc) (*poll.Run, error) {
	p := *r.engine.poller
	if r.maxAttempts > 0 {
		p.MaxAttempts = r.maxAttempts
	}
	if r.delay > 0 {
		p.Delay = r.delay
	}

	pr, err := p.Until(ctx, fetch)
	r.engine.metrics.ObservePoll(string(r.kind), pr.State.String(), pr.Attempt)
	if err != nil {
		return pr, fmt.Errorf("polling %s: %w", r.target, err)
	}
	return pr, nil
}
