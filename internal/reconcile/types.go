package reconcile

import (
	"context"
	"time"
)

// Kind identifies a reconcilable resource kind.
type Kind string

const (
	KindDNS           Kind = "dns"
	KindDNSRefresh    Kind = "dns_refresh"
	KindReverse       Kind = "reverse"
	KindBoot          Kind = "boot"
	KindMonitoring    Kind = "monitoring"
	KindVrack         Kind = "vrack"
	KindInstall       Kind = "install"
	KindInstallStatus Kind = "status"
	KindTemplate      Kind = "template"
	KindTerminate     Kind = "terminate"
	KindList          Kind = "list"
	KindMAC           Kind = "mac"
)

// Desired is the declared target state of one resource. The set of
// implementations is closed: every kind in this package provides its own
// reconcile step, so adding a kind without a handler does not compile.
type Desired interface {
	Kind() Kind
	// Validate checks required fields before any remote call is made.
	Validate() error

	reconcile(ctx context.Context, r *run) (Outcome, error)
}

// Request is one reconciliation invocation.
type Request struct {
	Desired Desired
	// Simulate computes and reports the corrective action without issuing
	// any mutating call.
	Simulate bool
	// MaxAttempts and Delay override the engine's polling defaults when set.
	MaxAttempts int
	Delay       time.Duration
}

// Action is the corrective step chosen by a comparator.
type Action int

const (
	NoopMatch Action = iota
	NoopAbsent
	Create
	Update
	Delete
	Ambiguous
	// Read marks read-only kinds that never mutate.
	Read
)

func (a Action) String() string {
	switch a {
	case NoopMatch:
		return "noop_match"
	case NoopAbsent:
		return "noop_absent"
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Ambiguous:
		return "ambiguous"
	case Read:
		return "read"
	default:
		return "unknown"
	}
}

// Decision is the comparator result. IDs holds the update target, the records
// to delete, or the ambiguous candidates.
type Decision struct {
	Action Action
	IDs    []string
}

func (d Decision) IsNoop() bool {
	return d.Action == NoopMatch || d.Action == NoopAbsent
}

// Outcome is the normalized result returned to the caller.
type Outcome struct {
	Success   bool   `json:"success"`
	Changed   bool   `json:"changed"`
	Simulated bool   `json:"simulated,omitempty"`
	Message   string `json:"msg,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Failed renders an error as a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Success: false, Changed: false, Message: err.Error()}
}

func unchanged(msg string, payload any) Outcome {
	return Outcome{Success: true, Changed: false, Message: msg, Payload: payload}
}
