package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanofslack/ovh-reconcile/internal/config"
	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
	"github.com/evanofslack/ovh-reconcile/internal/poll"
	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
	"github.com/evanofslack/ovh-reconcile/internal/source"
)

type fakeEngine struct {
	requests []reconcile.Request
	outcome  reconcile.Outcome
	err      error
}

func (f *fakeEngine) Reconcile(_ context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	f.requests = append(f.requests, req)
	return f.outcome, f.err
}

type fakeSource struct {
	spec reconcile.TemplateSpec
}

func (f fakeSource) Template(context.Context, string) (reconcile.TemplateSpec, error) {
	return f.spec, nil
}

type memJournal struct {
	entries []journal.Entry
}

func (m *memJournal) Append(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) List(_ context.Context, runID string) ([]journal.Entry, error) {
	out := []journal.Entry{}
	for _, e := range m.entries {
		if runID == "" || e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memJournal) Close() error { return nil }

// execute runs the root command against a fake engine and returns stdout.
func execute(t *testing.T, fake *fakeEngine, args ...string) (string, error) {
	t.Helper()

	prevBuild := buildEngine
	buildEngine = func(*config.Config, *metrics.Metrics) (reconcile.Engine, journal.Journal, error) {
		return fake, journal.Discard{}, nil
	}
	t.Cleanup(func() { buildEngine = prevBuild })
	opts = globalOptions{}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "ovh-reconcile", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{
		"dns", "reverse", "boot", "monitoring", "vrack", "install",
		"status", "template", "terminate", "list", "mac", "journal",
	} {
		assert.True(t, found[name], "expected subcommand %s", name)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"validation", &reconcile.ValidationError{Kind: reconcile.KindDNS, Field: "ip", Reason: "is required"}, ExitCodeInvalid},
		{"ambiguity", &reconcile.AmbiguityError{Kind: reconcile.KindDNS, IDs: []string{"1", "2"}}, ExitCodeRefused},
		{"topology", &reconcile.TopologyMismatchError{Server: "sv1", Controllers: 2}, ExitCodeRefused},
		{"wrapped exhausted", fmt.Errorf("polling monitoring: %w", &poll.ExhaustedError{Attempts: 3, Delay: time.Second}), ExitCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestFlagsToDesired(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want reconcile.Desired
	}{
		{
			name: "dns present",
			args: []string{"dns", "--domain", "example.com", "--name", "internal.bar", "--ip", "192.0.2.1", "--state", "present"},
			want: reconcile.DNSRecord{Domain: "example.com", Name: "internal.bar", IP: "192.0.2.1", Present: true},
		},
		{
			name: "dns absent",
			args: []string{"dns", "--domain", "example.com", "--name", "internal.bar", "--ip=", "--state", "absent"},
			want: reconcile.DNSRecord{Domain: "example.com", Name: "internal.bar"},
		},
		{
			name: "dns refresh",
			args: []string{"dns", "--domain", "example.com", "--name", "refresh"},
			want: reconcile.DNSRefresh{Domain: "example.com"},
		},
		{
			name: "boot",
			args: []string{"boot", "--name", "sv1", "--boot", "rescue", "--force-reboot"},
			want: reconcile.Boot{Server: "sv1", Mode: "rescue", ForceReboot: true},
		},
		{
			name: "monitoring off",
			args: []string{"monitoring", "--name", "sv1", "--state", "absent"},
			want: reconcile.Monitoring{Server: "sv1"},
		},
		{
			name: "vrack",
			args: []string{"vrack", "--name", "sv1", "--vrack", "pn-1", "--state", "present"},
			want: reconcile.Vrack{Server: "sv1", Vrack: "pn-1", Present: true},
		},
		{
			name: "install",
			args: []string{"install", "--name", "sv1", "--template", "debian12_64", "--hostname", "sv1.example.com", "--ssh-key-name", "deploy", "--wait"},
			want: reconcile.Install{Server: "sv1", Template: "debian12_64", Hostname: "sv1.example.com", SSHKeyName: "deploy", Wait: true},
		},
		{
			name: "status",
			args: []string{"status", "--name", "sv1"},
			want: reconcile.InstallStatus{Server: "sv1"},
		},
		{
			name: "reverse",
			args: []string{"reverse", "--domain", "example.com", "--name", "sv1", "--ip", "192.0.2.1"},
			want: reconcile.Reverse{Domain: "example.com", Name: "sv1", IP: "192.0.2.1"},
		},
		{
			name: "terminate",
			args: []string{"terminate", "--name", "sv1"},
			want: reconcile.Terminate{Server: "sv1"},
		},
		{
			name: "list",
			args: []string{"list", "templates"},
			want: reconcile.Listing{Target: reconcile.ListTemplates},
		},
		{
			name: "mac",
			args: []string{"mac", "--name", "sv1", "--link-type", "private"},
			want: reconcile.MAC{Server: "sv1", LinkType: "private"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEngine{outcome: reconcile.Outcome{Success: true, Message: "ok"}}
			_, err := execute(t, fake, tt.args...)
			require.NoError(t, err)
			require.Len(t, fake.requests, 1)
			assert.Equal(t, tt.want, fake.requests[0].Desired)
		})
	}
}

func TestGlobalFlagsReachRequest(t *testing.T) {
	fake := &fakeEngine{outcome: reconcile.Outcome{Success: true}}
	_, err := execute(t, fake, "--simulate", "--max-retry", "3", "--sleep", "2s", "status", "--name", "sv1")
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)
	assert.True(t, fake.requests[0].Simulate)
	assert.Equal(t, 3, fake.requests[0].MaxAttempts)
	assert.Equal(t, 2*time.Second, fake.requests[0].Delay)
}

func TestTemplateReadsDescription(t *testing.T) {
	prev := newSource
	newSource = func() source.Client {
		return fakeSource{spec: reconcile.TemplateSpec{Name: "debian12-raid"}}
	}
	t.Cleanup(func() { newSource = prev })

	fake := &fakeEngine{outcome: reconcile.Outcome{Success: true}}
	_, err := execute(t, fake, "template", "--name", "sv1", "--template", "template.yml", "--state", "absent")
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, reconcile.Template{Server: "sv1", Spec: reconcile.TemplateSpec{Name: "debian12-raid"}}, fake.requests[0].Desired)
}

func TestInvalidState(t *testing.T) {
	fake := &fakeEngine{}
	_, err := execute(t, fake, "vrack", "--name", "sv1", "--vrack", "pn-1", "--state", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalid, getExitCode(err))
	assert.Empty(t, fake.requests)
}

func TestOutcomePrintedOnFailure(t *testing.T) {
	cause := &reconcile.AmbiguityError{Kind: reconcile.KindDNS, Selector: "internal.bar", IDs: []string{"1", "2"}}
	fake := &fakeEngine{outcome: reconcile.Failed(cause), err: cause}

	out, err := execute(t, fake, "dns", "--domain", "example.com", "--name", "internal.bar", "--ip", "192.0.2.1", "--state", "present")
	require.Error(t, err)
	assert.Equal(t, ExitCodeRefused, getExitCode(err))

	var printed reconcile.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.False(t, printed.Success)
	assert.False(t, printed.Changed)
	assert.Equal(t, cause.Error(), printed.Message)
}

func TestJournalTable(t *testing.T) {
	mem := &memJournal{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.entries = []journal.Entry{
		{RunID: "run-a", Seq: 1, Kind: "template", Target: "debian12-raid", Step: "register template", Method: "POST", Path: "/me/installationTemplate", Time: at},
		{RunID: "run-b", Seq: 1, Kind: "terminate", Target: "sv1", Step: "terminate", Method: "POST", Path: "/dedicated/server/sv1/terminate", Time: at},
	}
	prev := openJournal
	openJournal = func(string) (journal.Journal, error) { return mem, nil }
	t.Cleanup(func() { openJournal = prev })
	t.Setenv("OVH_RECONCILE_JOURNAL", "true")

	out, err := execute(t, &fakeEngine{}, "journal", "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "register template")
	assert.Contains(t, out, "POST /me/installationTemplate")
	assert.NotContains(t, out, "run-b")
}
