package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evanofslack/ovh-reconcile/internal/config"
	ovhgw "github.com/evanofslack/ovh-reconcile/internal/gateway/ovh"
	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
	"github.com/evanofslack/ovh-reconcile/internal/provider"
	"github.com/evanofslack/ovh-reconcile/internal/provider/cloudflare"
	ovhdns "github.com/evanofslack/ovh-reconcile/internal/provider/ovh"
	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
)

const pushTimeout = 5 * time.Second

// buildEngine wires the engine and its journal from config. Tests replace it.
var buildEngine = func(cfg *config.Config, m *metrics.Metrics) (reconcile.Engine, journal.Journal, error) {
	gw, err := ovhgw.New(cfg.OVH, m)
	if err != nil {
		return nil, nil, err
	}

	var dns provider.Provider
	switch cfg.DNS.Provider {
	case "cloudflare":
		if dns, err = cloudflare.New(cfg.DNS, m); err != nil {
			return nil, nil, err
		}
	default:
		dns = ovhdns.New(gw, cfg.DNS.TTL, m)
	}

	var j journal.Journal = journal.Discard{}
	if cfg.Journal.Enabled {
		if j, err = journal.New(cfg.Journal.Path, m); err != nil {
			return nil, nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	poller := poll.New(cfg.Poll.MaxRetry, cfg.Poll.Sleep)
	return reconcile.NewEngine(gw, dns, j, poller, m), j, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, aborting any wait in progress.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// reconcileDesired runs one reconciliation and prints its outcome. The error
// is returned so Execute can pick the exit code.
func reconcileDesired(cmd *cobra.Command, desired reconcile.Desired) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	m := metrics.New(cfg.Metrics.PushgatewayURL != "")
	engine, j, err := buildEngine(cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			slog.Warn("Failed to close journal", "error", err)
		}
	}()

	out, err := engine.Reconcile(ctx, reconcile.Request{
		Desired:     desired,
		Simulate:    opts.simulate,
		MaxAttempts: opts.maxRetry,
		Delay:       opts.sleep,
	})
	if werr := writeOutcome(cmd.OutOrStdout(), out); werr != nil {
		slog.Error("Failed to write outcome", "error", werr)
	}
	pushMetrics(m)
	return err
}

func writeOutcome(w io.Writer, out reconcile.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func pushMetrics(m *metrics.Metrics) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		slog.Warn("Failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
	}
}
