// Package poll waits for asynchronous provider-side operations with a bounded
// number of attempts separated by a fixed delay.
//
// A run is a small state machine:
//
//	Waiting -> Waiting    status fetched, not terminal, attempts left
//	Waiting -> Succeeded  status reports completion
//	Waiting -> Failed     fetch error, or status reports a terminal failure
//	Waiting -> Exhausted  MaxAttempts fetches without completion
//
// With MaxAttempts N a run performs at most N fetches and N-1 sleeps; it never
// sleeps after the final fetch.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type State int

const (
	Waiting State = iota
	Succeeded
	Exhausted
	Failed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is one observation of the remote operation.
type Status struct {
	// Done marks terminal success.
	Done bool
	// Terminal marks a terminal failure reported by the provider.
	Terminal bool
	// Value is the raw provider status, e.g. "doing".
	Value string
	// Message is an optional human readable progress detail.
	Message string
}

type FetchFunc func(ctx context.Context, attempt int) (Status, error)

type SleepFunc func(ctx context.Context, d time.Duration) error

// Run is the mutable state of one polling operation.
type Run struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	Last        Status
	State       State

	err error
}

type Poller struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
}

func New(maxAttempts int, delay time.Duration) *Poller {
	return &Poller{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Sleep:       Sleep,
	}
}

// Sleep suspends for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Until fetches status until it is done, fails or attempts run out. The
// returned Run is always non-nil and reflects the final state.
func (p *Poller) Until(ctx context.Context, fetch FetchFunc) (*Run, error) {
	run := &Run{
		MaxAttempts: max(p.MaxAttempts, 1),
		Delay:       p.Delay,
		State:       Waiting,
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for {
		run.Attempt++
		status, err := fetch(ctx, run.Attempt)
		run.observe(status, err)
		slog.Debug("Poll attempt", "attempt", run.Attempt, "max", run.MaxAttempts, "status", status.Value, "message", status.Message, "state", run.State.String())

		switch run.State {
		case Succeeded:
			return run, nil
		case Failed:
			return run, run.err
		case Exhausted:
			return run, &ExhaustedError{Attempts: run.Attempt, Delay: run.Delay, Last: run.Last}
		}

		if err := sleep(ctx, run.Delay); err != nil {
			run.State = Failed
			run.err = err
			return run, err
		}
	}
}

func (r *Run) observe(status Status, err error) {
	if err != nil {
		r.State = Failed
		r.err = err
		return
	}
	r.Last = status
	switch {
	case status.Done:
		r.State = Succeeded
	case status.Terminal:
		r.State = Failed
		r.err = &TerminalStatusError{Status: status.Value, Message: status.Message, Attempt: r.Attempt}
	case r.Attempt >= r.MaxAttempts:
		r.State = Exhausted
	default:
		r.State = Waiting
	}
}

// ExhaustedError is returned when no terminal status was observed within the
// allowed attempts.
type ExhaustedError struct {
	Attempts int
	Delay    time.Duration
	Last     Status
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max wait time reached, about %d x %s (last status %q)", e.Attempts, e.Delay, e.Last.Value)
}

// TerminalStatusError is returned when the provider reports the operation as
// failed or cancelled.
type TerminalStatusError struct {
	Status  string
	Message string
	Attempt int
}

func (e *TerminalStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("operation ended with status %q after %d attempt(s): %s", e.Status, e.Attempt, e.Message)
	}
	return fmt.Sprintf("operation ended with status %q after %d attempt(s)", e.Status, e.Attempt)
}
